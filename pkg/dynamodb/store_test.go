package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/savaki/tutorbot/pkg/attributes"
	"github.com/savaki/tutorbot/pkg/dedup"
	"github.com/savaki/tutorbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockAPI struct {
	GetItemFunc    func(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	PutItemFunc    func(ctx context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	UpdateItemFunc func(ctx context.Context, in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	QueryFunc      func(ctx context.Context, in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
}

func (m *MockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return m.GetItemFunc(ctx, in)
}

func (m *MockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return m.PutItemFunc(ctx, in)
}

func (m *MockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return m.UpdateItemFunc(ctx, in)
}

func (m *MockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return m.QueryFunc(ctx, in)
}

var (
	_ API         = (*MockAPI)(nil)
	_ dedup.Cache = (*DedupStore)(nil)
)

func TestAttributeStoreGet(t *testing.T) {
	api := &MockAPI{
		GetItemFunc: func(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			assert.Equal(t, "tutorbot-attributes", *in.TableName)
			assert.Equal(t, &types.AttributeValueMemberS{Value: "contact#42"}, in.Key["pk"])
			assert.True(t, *in.ConsistentRead)
			return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
				"pk":              &types.AttributeValueMemberS{Value: "contact#42"},
				"updated_at":      &types.AttributeValueMemberS{Value: "2024-03-04T07:00:00Z"},
				"language":        &types.AttributeValueMemberS{Value: "nl"},
				"has_paid_lesson": &types.AttributeValueMemberBOOL{Value: true},
			}}, nil
		},
	}

	store := NewAttributeStore(api, "tutorbot-attributes", 0)
	attrs, err := store.GetContactAttributes(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, attributes.Map{"language": "nl", "has_paid_lesson": true}, attrs)
}

func TestAttributeStoreGetMissingItem(t *testing.T) {
	api := &MockAPI{
		GetItemFunc: func(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			assert.Equal(t, &types.AttributeValueMemberS{Value: "conversation#7"}, in.Key["pk"])
			return &dynamodb.GetItemOutput{}, nil
		},
	}

	attrs, err := NewAttributeStore(api, "t", 0).GetConversationAttributes(context.Background(), "7")
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestAttributeStoreSetMerges(t *testing.T) {
	now := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)
	var got *dynamodb.UpdateItemInput
	api := &MockAPI{
		UpdateItemFunc: func(ctx context.Context, in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			got = in
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}

	store := NewAttributeStore(api, "t", 48*time.Hour)
	store.now = func() time.Time { return now }

	err := store.SetConversationAttributes(context.Background(), "7", attributes.Map{
		"pending_intent":     "action_menu",
		"intake_corrections": []string{"school_level"},
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "SET #updated = :updated, #a0 = :v0, #a1 = :v1, #ttl = :ttl", *got.UpdateExpression)
	assert.Equal(t, "intake_corrections", got.ExpressionAttributeNames["#a0"])
	assert.Equal(t, "pending_intent", got.ExpressionAttributeNames["#a1"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "action_menu"}, got.ExpressionAttributeValues[":v1"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1709708400"}, got.ExpressionAttributeValues[":ttl"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "conversation#7"}, got.Key["pk"])
}

func TestAttributeStoreSetContactHasNoTTL(t *testing.T) {
	api := &MockAPI{
		UpdateItemFunc: func(ctx context.Context, in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			assert.NotContains(t, *in.UpdateExpression, "#ttl")
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}

	store := NewAttributeStore(api, "t", time.Hour)
	require.NoError(t, store.SetContactAttributes(context.Background(), "42", attributes.Map{"segment": "new"}))
}

func TestAttributeStoreSetEdgeCases(t *testing.T) {
	api := &MockAPI{
		UpdateItemFunc: func(ctx context.Context, in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	store := NewAttributeStore(api, "t", 0)
	ctx := context.Background()

	assert.NoError(t, store.SetContactAttributes(ctx, "42", attributes.Map{}), "empty update is a no-op")
	assert.ErrorContains(t, store.SetContactAttributes(ctx, "42", attributes.Map{"pk": "x"}), "reserved")
	assert.ErrorContains(t, store.SetContactAttributes(ctx, "42", attributes.Map{"segment": "new"}), "update item")
}

func TestDedupStoreAdd(t *testing.T) {
	seen := map[string]bool{}
	api := &MockAPI{
		PutItemFunc: func(ctx context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			assert.Equal(t, "attribute_not_exists(#pk) OR #ttl < :now", *in.ConditionExpression)
			key := in.Item["pk"].(*types.AttributeValueMemberS).Value
			if seen[key] {
				return nil, &types.ConditionalCheckFailedException{Message: stringPtr("exists")}
			}
			seen[key] = true
			return &dynamodb.PutItemOutput{}, nil
		},
	}

	store := NewDedupStore(api, "dedup", time.Hour)
	d := dedup.New(store, nil)
	event := models.InboundEvent{EventType: models.EventMessageCreated, ConversationID: "1", MessageID: "2"}

	assert.True(t, d.ShouldProcess(context.Background(), event))
	assert.False(t, d.ShouldProcess(context.Background(), event))
}

func TestDedupStoreError(t *testing.T) {
	api := &MockAPI{
		PutItemFunc: func(ctx context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	added, err := NewDedupStore(api, "dedup", 0).Add(context.Background(), "k")
	assert.False(t, added)
	assert.ErrorContains(t, err, "put dedup key")
}

func TestTranscriptRepository(t *testing.T) {
	received := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)
	var stored []map[string]types.AttributeValue

	api := &MockAPI{
		PutItemFunc: func(ctx context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			assert.Equal(t, "transcripts", *in.TableName)
			stored = append(stored, in.Item)
			return &dynamodb.PutItemOutput{}, nil
		},
		QueryFunc: func(ctx context.Context, in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.False(t, *in.ScanIndexForward)
			assert.Equal(t, int32(2), *in.Limit)
			// newest first, as DynamoDB returns them
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{stored[1], stored[0]}}, nil
		},
	}

	repo := NewTranscriptRepository(api, "transcripts", 0)
	ctx := context.Background()
	for i, content := range []string{"hallo", "ik zoek bijles"} {
		event := models.InboundEvent{
			EventType:      models.EventMessageCreated,
			ConversationID: "7",
			Content:        content,
			SenderType:     models.SenderUser,
			ReceivedAt:     received.Add(time.Duration(i) * time.Second),
			CorrelationID:  "evt-" + content,
		}
		require.NoError(t, repo.Append(ctx, event))
	}

	var first models.TranscriptEntry
	require.NoError(t, attributevalue.UnmarshalMap(stored[0], &first))
	assert.Equal(t, "2024-03-04T07:00:00Z#evt-hallo", first.SortKey)
	assert.Equal(t, received.Add(7*24*time.Hour).Unix(), first.TTL)

	entries, err := repo.Recent(ctx, "7", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "hallo", entries[0].Content)
	assert.Equal(t, "ik zoek bijles", entries[1].Content)
}
