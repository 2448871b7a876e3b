package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/savaki/tutorbot/pkg/models"
)

// flexID accepts ids sent either as JSON numbers or strings
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type chatwootParty struct {
	ID   flexID `json:"id"`
	Type string `json:"type"`
}

type chatwootConversation struct {
	ID           flexID `json:"id"`
	ContactInbox struct {
		ContactID flexID `json:"contact_id"`
	} `json:"contact_inbox"`
	Meta struct {
		Sender chatwootParty `json:"sender"`
	} `json:"meta"`
}

// chatwootPayload covers message and conversation webhooks. Conversation
// events carry the conversation at the top level (id, contact_inbox, meta),
// message events nest it under conversation.
type chatwootPayload struct {
	Event             string               `json:"event"`
	ID                flexID               `json:"id"`
	Content           string               `json:"content"`
	MessageType       flexID               `json:"message_type"`
	Private           bool                 `json:"private"`
	ContentAttributes json.RawMessage      `json:"content_attributes"`
	Sender            chatwootParty        `json:"sender"`
	Contact           chatwootParty        `json:"contact"`
	Conversation      chatwootConversation `json:"conversation"`
	UpdatedAt         flexID               `json:"updated_at"`
	chatwootConversation
}

type contentAttributes struct {
	Payload         string `json:"payload"`
	SubmittedValues []struct {
		Title string `json:"title"`
		Value string `json:"value"`
	} `json:"submitted_values"`
}

// selection returns the tag of a tapped menu option, if any
func (p chatwootPayload) selection() string {
	if len(p.ContentAttributes) == 0 {
		return ""
	}
	var attrs contentAttributes
	if err := json.Unmarshal(p.ContentAttributes, &attrs); err != nil {
		return ""
	}
	if attrs.Payload != "" {
		return attrs.Payload
	}
	if len(attrs.SubmittedValues) > 0 {
		if v := attrs.SubmittedValues[0].Value; v != "" {
			return v
		}
		return attrs.SubmittedValues[0].Title
	}
	return ""
}

// senderType maps Chatwoot's message_type (name or enum value) to the author
func (p chatwootPayload) senderType() models.SenderType {
	if p.Private {
		return models.SenderAgent
	}
	switch strings.ToLower(string(p.MessageType)) {
	case "incoming", "0":
		return models.SenderUser
	case "outgoing", "1":
		if p.Sender.Type == "agent_bot" {
			return models.SenderBot
		}
		return models.SenderAgent
	default:
		return models.SenderBot
	}
}

func firstNonEmpty(ids ...flexID) string {
	for _, id := range ids {
		if id != "" {
			return string(id)
		}
	}
	return ""
}

// ParseChatwoot converts a Chatwoot webhook body into an InboundEvent. ok is
// false for events the bot does not act on; err is set only for bodies that
// are not JSON.
func ParseChatwoot(body []byte) (event models.InboundEvent, ok bool, err error) {
	var p chatwootPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return models.InboundEvent{}, false, fmt.Errorf("decode chatwoot payload: %w", err)
	}

	switch models.EventType(p.Event) {
	case models.EventMessageCreated:
		convID := string(p.Conversation.ID)
		if convID == "" {
			return models.InboundEvent{}, false, nil
		}
		var senderID flexID
		if p.Sender.Type == "" || p.Sender.Type == "contact" {
			senderID = p.Sender.ID
		}
		contactID := firstNonEmpty(p.Contact.ID, p.Conversation.ContactInbox.ContactID, p.Conversation.Meta.Sender.ID, senderID)

		event = models.NewInboundEvent(models.EventMessageCreated, convID, contactID, string(p.ID))
		event.Content = strings.TrimSpace(p.Content)
		event.Selection = strings.TrimSpace(p.selection())
		event.SenderType = p.senderType()
		return event, true, nil

	case models.EventConversationCreated, models.EventConversationUpdated:
		convID := firstNonEmpty(p.ID, p.Conversation.ID)
		if convID == "" {
			return models.InboundEvent{}, false, nil
		}
		contactID := firstNonEmpty(p.Contact.ID, p.ContactInbox.ContactID, p.Meta.Sender.ID,
			p.Conversation.ContactInbox.ContactID, p.Conversation.Meta.Sender.ID)

		// updates are distinct deliveries, creation happens once
		var messageID string
		if p.Event == string(models.EventConversationUpdated) {
			messageID = string(p.UpdatedAt)
		}
		return models.NewInboundEvent(models.EventType(p.Event), convID, contactID, messageID), true, nil
	}
	return models.InboundEvent{}, false, nil
}

// Stripe event types that count as a successful payment
var stripePaymentEvents = map[string]bool{
	"payment_intent.succeeded":   true,
	"checkout.session.completed": true,
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseStripe converts a Stripe event into a payment_succeeded InboundEvent.
// The contact and conversation travel in the payment's metadata.
func ParseStripe(body []byte) (event models.InboundEvent, ok bool, err error) {
	var e stripeEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return models.InboundEvent{}, false, fmt.Errorf("decode stripe event: %w", err)
	}
	if !stripePaymentEvents[e.Type] {
		return models.InboundEvent{}, false, nil
	}

	md := e.Data.Object.Metadata
	contactID, convID := md[models.PaymentMetaContactID], md[models.PaymentMetaConversationID]
	if contactID == "" {
		return models.InboundEvent{}, false, nil
	}

	event = models.NewInboundEvent(models.EventPaymentSucceeded, convID, contactID, e.ID)
	event.SenderType = models.SenderBot
	return event, true, nil
}
