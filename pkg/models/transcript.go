package models

import "time"

// TranscriptEntry is one accepted inbound message kept for human handoff context
type TranscriptEntry struct {
	ConversationID string    `dynamodbav:"conversation_id"`
	SortKey        string    `dynamodbav:"sk"` // received_at#correlation_id
	CorrelationID  string    `dynamodbav:"correlation_id"`
	EventType      string    `dynamodbav:"event_type"`
	SenderType     string    `dynamodbav:"sender_type"`
	Content        string    `dynamodbav:"content"`
	ReceivedAt     time.Time `dynamodbav:"received_at"`
	TTL            int64     `dynamodbav:"ttl"` // Unix timestamp
}

// NewTranscriptEntry builds an entry for event expiring after ttl
func NewTranscriptEntry(event InboundEvent, ttl time.Duration) TranscriptEntry {
	content := event.Content
	if content == "" {
		content = event.Selection
	}
	return TranscriptEntry{
		ConversationID: event.ConversationID,
		SortKey:        event.ReceivedAt.UTC().Format(time.RFC3339Nano) + "#" + event.CorrelationID,
		CorrelationID:  event.CorrelationID,
		EventType:      string(event.EventType),
		SenderType:     string(event.SenderType),
		Content:        content,
		ReceivedAt:     event.ReceivedAt,
		TTL:            event.ReceivedAt.Add(ttl).Unix(),
	}
}
