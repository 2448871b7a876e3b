package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DedupStore is an idempotency key set shared by every handler instance.
// Keys expire through the table's TTL.
type DedupStore struct {
	client    API
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDedupStore creates a store remembering keys for ttl
func NewDedupStore(client API, tableName string, ttl time.Duration) *DedupStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DedupStore{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

// Add inserts key unless a live entry exists. Entries past their TTL that
// DynamoDB has not swept yet count as absent.
func (s *DedupStore) Add(ctx context.Context, key string) (bool, error) {
	now := s.now()
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: key},
			ttlAttr: &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(s.ttl).Unix(), 10)},
		},
		ConditionExpression: stringPtr("attribute_not_exists(#pk) OR #ttl < :now"),
		ExpressionAttributeNames: map[string]string{
			"#pk":  keyAttr,
			"#ttl": ttlAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			return false, nil
		}
		return false, fmt.Errorf("put dedup key: %w", err)
	}
	return true, nil
}
