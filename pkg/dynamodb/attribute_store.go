package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/savaki/tutorbot/pkg/attributes"
)

const (
	keyAttr       = "pk"
	updatedAtAttr = "updated_at"
	ttlAttr       = "ttl"

	contactPrefix      = "contact#"
	conversationPrefix = "conversation#"
)

// reserved item attributes that never surface as user attributes
var bookkeeping = map[string]bool{keyAttr: true, updatedAtAttr: true, ttlAttr: true}

// AttributeStore keeps contact and conversation attributes in one table, one
// item per scope, one DynamoDB attribute per key
type AttributeStore struct {
	client          API
	tableName       string
	conversationTTL time.Duration
	now             func() time.Time
}

// NewAttributeStore creates a store. Conversation items expire after
// conversationTTL of inactivity; zero disables expiry.
func NewAttributeStore(client API, tableName string, conversationTTL time.Duration) *AttributeStore {
	return &AttributeStore{
		client:          client,
		tableName:       tableName,
		conversationTTL: conversationTTL,
		now:             time.Now,
	}
}

var _ attributes.Store = (*AttributeStore)(nil)

func (s *AttributeStore) GetContactAttributes(ctx context.Context, contactID string) (attributes.Map, error) {
	return s.get(ctx, contactPrefix+contactID)
}

func (s *AttributeStore) SetContactAttributes(ctx context.Context, contactID string, attrs attributes.Map) error {
	return s.set(ctx, contactPrefix+contactID, attrs, 0)
}

func (s *AttributeStore) GetConversationAttributes(ctx context.Context, conversationID string) (attributes.Map, error) {
	return s.get(ctx, conversationPrefix+conversationID)
}

func (s *AttributeStore) SetConversationAttributes(ctx context.Context, conversationID string, attrs attributes.Map) error {
	return s.set(ctx, conversationPrefix+conversationID, attrs, s.conversationTTL)
}

func (s *AttributeStore) get(ctx context.Context, pk string) (attributes.Map, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: pk},
		},
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	attrs := attributes.Map{}
	if result.Item == nil {
		return attrs, nil
	}

	var raw map[string]any
	if err := attributevalue.UnmarshalMap(result.Item, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	for k, v := range raw {
		if !bookkeeping[k] {
			attrs[k] = v
		}
	}
	return attrs, nil
}

// set merges attrs into the item with a single UpdateItem. Keys are sorted so
// the expression is stable.
func (s *AttributeStore) set(ctx context.Context, pk string, attrs attributes.Map, ttl time.Duration) error {
	if len(attrs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if bookkeeping[k] {
			return fmt.Errorf("attribute %q is reserved", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := s.now()
	names := map[string]string{"#updated": updatedAtAttr}
	values := map[string]types.AttributeValue{
		":updated": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
	}
	clauses := []string{"#updated = :updated"}

	for i, k := range keys {
		av, err := attributevalue.Marshal(attrs[k])
		if err != nil {
			return fmt.Errorf("marshal attribute %s: %w", k, err)
		}
		n, v := "#a"+strconv.Itoa(i), ":v"+strconv.Itoa(i)
		names[n] = k
		values[v] = av
		clauses = append(clauses, n+" = "+v)
	}

	if ttl > 0 {
		names["#ttl"] = ttlAttr
		values[":ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)}
		clauses = append(clauses, "#ttl = :ttl")
	}

	updateExpr := "SET " + strings.Join(clauses, ", ")
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: pk},
		},
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}
