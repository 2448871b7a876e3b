package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/savaki/tutorbot/pkg/dedup"
	"github.com/savaki/tutorbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockProcessor struct {
	HandleFunc func(ctx context.Context, event models.InboundEvent) error
	events     []models.InboundEvent
}

func (m *MockProcessor) Handle(ctx context.Context, event models.InboundEvent) error {
	m.events = append(m.events, event)
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, event)
	}
	return nil
}

type MockTranscripts struct {
	AppendFunc func(ctx context.Context, event models.InboundEvent) error
	appended   []models.InboundEvent
}

func (m *MockTranscripts) Append(ctx context.Context, event models.InboundEvent) error {
	m.appended = append(m.appended, event)
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, event)
	}
	return nil
}

var (
	_ Processor          = (*MockProcessor)(nil)
	_ TranscriptAppender = (*MockTranscripts)(nil)
)

const (
	chatwootSecret = "cw-secret"
	stripeSecret   = "whsec_test"
)

var stripeNow = time.Unix(1709535600, 0)

func newTestHandler(processor *MockProcessor, transcripts *MockTranscripts) *WebhookHandler {
	d := dedup.New(dedup.NewMemoryCache(100, dedup.ResetOnOverflow), nil)
	var appender TranscriptAppender
	if transcripts != nil {
		appender = transcripts
	}
	h := NewWebhookHandler(Secrets{Chatwoot: chatwootSecret, Stripe: stripeSecret}, d, processor, appender, nil)
	h.now = func() time.Time { return stripeNow }
	return h
}

func chatwootRequest(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		Path:    "/prod" + ChatwootPath,
		Body:    body,
		Headers: map[string]string{"x-chatwoot-signature": hexHMAC(chatwootSecret, body)},
	}
}

func stripeRequest(body string) events.APIGatewayProxyRequest {
	ts := strconv.FormatInt(stripeNow.Unix(), 10)
	return events.APIGatewayProxyRequest{
		Path:    StripePath,
		Body:    body,
		Headers: map[string]string{"Stripe-Signature": "t=" + ts + ",v1=" + hexHMAC(stripeSecret, ts+"."+body)},
	}
}

const incoming = `{"event":"message_created","id":101,"content":"Hoi","message_type":"incoming","sender":{"id":5,"type":"contact"},"conversation":{"id":7}}`

func TestHandleIncomingMessage(t *testing.T) {
	processor := &MockProcessor{}
	transcripts := &MockTranscripts{}
	h := newTestHandler(processor, transcripts)

	resp, err := h.Handle(context.Background(), chatwootRequest(incoming))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, "correlation_id")

	require.Len(t, processor.events, 1)
	assert.Equal(t, "7", processor.events[0].ConversationID)
	assert.Equal(t, "Hoi", processor.events[0].Content)
	require.Len(t, transcripts.appended, 1)
}

func TestHandleDuplicateDelivery(t *testing.T) {
	processor := &MockProcessor{}
	h := newTestHandler(processor, nil)

	for i := 0; i < 3; i++ {
		resp, err := h.Handle(context.Background(), chatwootRequest(incoming))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Len(t, processor.events, 1)
}

func TestHandleRejectsBadSignature(t *testing.T) {
	processor := &MockProcessor{}
	h := newTestHandler(processor, nil)

	req := chatwootRequest(incoming)
	req.Headers["x-chatwoot-signature"] = "deadbeef"

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, processor.events)
}

func TestHandleRejectsMalformedBody(t *testing.T) {
	processor := &MockProcessor{}
	h := newTestHandler(processor, nil)

	resp, err := h.Handle(context.Background(), chatwootRequest(`{"event":`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, processor.events)
}

func TestHandleAcknowledgesProcessingErrors(t *testing.T) {
	processor := &MockProcessor{
		HandleFunc: func(ctx context.Context, event models.InboundEvent) error {
			return errors.New("store unavailable")
		},
	}
	transcripts := &MockTranscripts{
		AppendFunc: func(ctx context.Context, event models.InboundEvent) error {
			return errors.New("throttled")
		},
	}
	h := newTestHandler(processor, transcripts)

	resp, err := h.Handle(context.Background(), chatwootRequest(incoming))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, processor.events, 1)
}

func TestHandleOutgoingSkipsTranscript(t *testing.T) {
	processor := &MockProcessor{}
	transcripts := &MockTranscripts{}
	h := newTestHandler(processor, transcripts)

	body := `{"event":"message_created","id":200,"content":"Hallo!","message_type":"outgoing","sender":{"id":1,"type":"agent_bot"},"conversation":{"id":7}}`
	resp, err := h.Handle(context.Background(), chatwootRequest(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, processor.events, 1)
	assert.Equal(t, models.SenderBot, processor.events[0].SenderType)
	assert.Empty(t, transcripts.appended)
}

func TestHandleIgnoredEvent(t *testing.T) {
	processor := &MockProcessor{}
	h := newTestHandler(processor, nil)

	resp, err := h.Handle(context.Background(), chatwootRequest(`{"event":"webwidget_triggered"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, processor.events)
}

func TestHandleBase64Body(t *testing.T) {
	processor := &MockProcessor{}
	h := newTestHandler(processor, nil)

	req := chatwootRequest(incoming)
	req.Body = base64.StdEncoding.EncodeToString([]byte(incoming))
	req.IsBase64Encoded = true

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, processor.events, 1)
}

func TestHandleStripe(t *testing.T) {
	processor := &MockProcessor{}
	h := newTestHandler(processor, nil)

	body := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"metadata":{"contact_id":"5","conversation_id":"7"}}}}`
	resp, err := h.Handle(context.Background(), stripeRequest(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, processor.events, 1)
	assert.Equal(t, models.EventPaymentSucceeded, processor.events[0].EventType)

	stale := stripeRequest(body)
	h.now = func() time.Time { return stripeNow.Add(10 * time.Minute) }
	resp, err = h.Handle(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRoutes(t *testing.T) {
	h := newTestHandler(&MockProcessor{}, nil)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{Path: "/webhook/unknown"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	h.secrets.Stripe = ""
	resp, err = h.Handle(context.Background(), stripeRequest(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
