package handler

import (
	"testing"

	"github.com/savaki/tutorbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChatwootMessage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantOK    bool
		conv      string
		contact   string
		messageID string
		content   string
		selection string
		sender    models.SenderType
	}{
		{
			name:      "incoming text",
			body:      `{"event":"message_created","id":101,"content":" Hoi ","message_type":"incoming","sender":{"id":5,"type":"contact"},"conversation":{"id":7,"contact_inbox":{"contact_id":5}}}`,
			wantOK:    true,
			conv:      "7",
			contact:   "5",
			messageID: "101",
			content:   "Hoi",
			sender:    models.SenderUser,
		},
		{
			name:      "submitted values selection",
			body:      `{"event":"message_created","id":"102","content":"Proefles plannen","message_type":"incoming","content_attributes":{"submitted_values":[{"title":"Proefles plannen","value":"plan_trial_lesson"}]},"contact":{"id":5},"conversation":{"id":7}}`,
			wantOK:    true,
			conv:      "7",
			contact:   "5",
			messageID: "102",
			content:   "Proefles plannen",
			selection: "plan_trial_lesson",
			sender:    models.SenderUser,
		},
		{
			name:      "payload selection",
			body:      `{"event":"message_created","id":103,"message_type":"incoming","content_attributes":{"payload":"confirm_all"},"conversation":{"id":7,"meta":{"sender":{"id":5}}}}`,
			wantOK:    true,
			conv:      "7",
			contact:   "5",
			messageID: "103",
			selection: "confirm_all",
			sender:    models.SenderUser,
		},
		{
			name:      "outgoing agent message",
			body:      `{"event":"message_created","id":104,"content":"Ik help je verder","message_type":"outgoing","sender":{"id":2,"type":"user"},"conversation":{"id":7,"contact_inbox":{"contact_id":5}}}`,
			wantOK:    true,
			conv:      "7",
			contact:   "5",
			messageID: "104",
			content:   "Ik help je verder",
			sender:    models.SenderAgent,
		},
		{
			name:      "private note",
			body:      `{"event":"message_created","id":105,"content":"note","message_type":"incoming","private":true,"conversation":{"id":7}}`,
			wantOK:    true,
			conv:      "7",
			messageID: "105",
			content:   "note",
			sender:    models.SenderAgent,
		},
		{
			name:   "missing conversation",
			body:   `{"event":"message_created","id":106,"message_type":"incoming"}`,
			wantOK: false,
		},
		{
			name:   "unhandled event",
			body:   `{"event":"contact_updated","id":5}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok, err := ParseChatwoot([]byte(tt.body))
			require.NoError(t, err)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, models.EventMessageCreated, event.EventType)
			assert.Equal(t, tt.conv, event.ConversationID)
			assert.Equal(t, tt.contact, event.ContactID)
			assert.Equal(t, tt.messageID, event.MessageID)
			assert.Equal(t, tt.content, event.Content)
			assert.Equal(t, tt.selection, event.Selection)
			assert.Equal(t, tt.sender, event.SenderType)
			assert.NotEmpty(t, event.CorrelationID)
		})
	}
}

func TestParseChatwootConversationEvents(t *testing.T) {
	event, ok, err := ParseChatwoot([]byte(`{"event":"conversation_created","id":7,"contact_inbox":{"contact_id":5},"meta":{"sender":{"id":5}}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.EventConversationCreated, event.EventType)
	assert.Equal(t, "7", event.ConversationID)
	assert.Equal(t, "5", event.ContactID)
	assert.Empty(t, event.MessageID)

	event, ok, err = ParseChatwoot([]byte(`{"event":"conversation_updated","id":7,"updated_at":1709535600,"meta":{"sender":{"id":5}}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.EventConversationUpdated, event.EventType)
	assert.Equal(t, "1709535600", event.MessageID)
	assert.Equal(t, "5", event.ContactID)
}

func TestParseChatwootMalformed(t *testing.T) {
	_, _, err := ParseChatwoot([]byte(`{"event":`))
	assert.Error(t, err)
}

func TestParseStripe(t *testing.T) {
	event, ok, err := ParseStripe([]byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","metadata":{"contact_id":"5","conversation_id":"7"}}}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.EventPaymentSucceeded, event.EventType)
	assert.Equal(t, "5", event.ContactID)
	assert.Equal(t, "7", event.ConversationID)
	assert.Equal(t, "evt_1", event.MessageID)

	_, ok, err = ParseStripe([]byte(`{"id":"evt_2","type":"charge.refunded","data":{"object":{"metadata":{"contact_id":"5"}}}}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ParseStripe([]byte(`{"id":"evt_3","type":"checkout.session.completed","data":{"object":{"metadata":{}}}}`))
	require.NoError(t, err)
	assert.False(t, ok, "payments without a contact are ignored")

	_, _, err = ParseStripe([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseStripeCheckoutSession(t *testing.T) {
	body := `{"id":"evt_cs","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1",` +
		`"client_reference_id":"order-01HQ","metadata":{"contact_id":"42","conversation_id":"7","order_id":"order-01HQ"}}}}`

	event, ok, err := ParseStripe([]byte(body))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.EventPaymentSucceeded, event.EventType)
	assert.Equal(t, "42", event.ContactID)
	assert.Equal(t, "7", event.ConversationID)
	assert.Equal(t, "evt_cs", event.MessageID)
}
