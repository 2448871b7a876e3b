package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/savaki/tutorbot/pkg/models"
)

// TranscriptRepository keeps recent inbound messages per conversation
type TranscriptRepository struct {
	client    API
	tableName string
	ttl       time.Duration
}

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(client API, tableName string, ttl time.Duration) *TranscriptRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TranscriptRepository{client: client, tableName: tableName, ttl: ttl}
}

// Append stores an accepted event in the transcript
func (r *TranscriptRepository) Append(ctx context.Context, event models.InboundEvent) error {
	item, err := attributevalue.MarshalMap(models.NewTranscriptEntry(event, r.ttl))
	if err != nil {
		return fmt.Errorf("marshal transcript entry: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put transcript entry: %w", err)
	}
	return nil
}

// Recent returns up to limit of the latest entries, oldest first
func (r *TranscriptRepository) Recent(ctx context.Context, conversationID string, limit int) ([]models.TranscriptEntry, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &r.tableName,
		KeyConditionExpression: stringPtr("conversation_id = :convId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":convId": &types.AttributeValueMemberS{Value: conversationID},
		},
		ScanIndexForward: boolPtr(false), // Most recent first
		Limit:            int32Ptr(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}

	var entries []models.TranscriptEntry
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
