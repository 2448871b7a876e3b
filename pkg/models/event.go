package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of webhook delivery
type EventType string

// EventType constants
const (
	EventConversationCreated EventType = "conversation_created"
	EventMessageCreated      EventType = "message_created"
	EventConversationUpdated EventType = "conversation_updated"
	EventPaymentSucceeded    EventType = "payment_succeeded"
)

// SenderType identifies who authored an inbound message
type SenderType string

// SenderType constants
const (
	SenderUser  SenderType = "user"
	SenderAgent SenderType = "agent"
	SenderBot   SenderType = "bot"
)

// InboundEvent is one webhook delivery. It is never mutated after parsing.
type InboundEvent struct {
	EventType      EventType
	ConversationID string
	ContactID      string
	MessageID      string // empty when the provider did not send one
	Content        string
	Selection      string // interactive reply tag, if the user tapped a menu option
	SenderType     SenderType
	ReceivedAt     time.Time
	CorrelationID  string
}

// NewInboundEvent stamps an event with its receive time and a correlation ID
func NewInboundEvent(eventType EventType, conversationID, contactID, messageID string) InboundEvent {
	now := time.Now()
	return InboundEvent{
		EventType:      eventType,
		ConversationID: conversationID,
		ContactID:      contactID,
		MessageID:      messageID,
		SenderType:     SenderUser,
		ReceivedAt:     now,
		CorrelationID:  "evt-" + generateULID(now),
	}
}

// Input returns the menu tag when present, otherwise the free text
func (e InboundEvent) Input() string {
	if e.Selection != "" {
		return e.Selection
	}
	return e.Content
}

// FromUser reports whether the message was written by the contact
func (e InboundEvent) FromUser() bool {
	return e.SenderType == SenderUser
}

// NewBookingName returns a unique, Step Functions safe execution name
func NewBookingName() string {
	return "booking-" + generateULID(time.Now())
}

// generateULID generates a ULID string for unique identifiers
func generateULID(t time.Time) string {
	id, _ := ulid.New(ulid.Timestamp(t), rand.Reader)
	return id.String()
}
