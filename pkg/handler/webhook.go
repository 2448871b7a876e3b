package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/savaki/tutorbot/pkg/dedup"
	"github.com/savaki/tutorbot/pkg/logging"
	"github.com/savaki/tutorbot/pkg/models"
	"go.uber.org/zap"
)

// Routes
const (
	ChatwootPath = "/webhook/chatwoot"
	StripePath   = "/webhook/stripe"
)

// Processor runs business logic for one accepted event
type Processor interface {
	Handle(ctx context.Context, event models.InboundEvent) error
}

// TranscriptAppender records accepted user messages
type TranscriptAppender interface {
	Append(ctx context.Context, event models.InboundEvent) error
}

// Secrets are the webhook signing secrets. An empty Stripe secret disables
// the payment route.
type Secrets struct {
	Chatwoot string
	Stripe   string
}

// WebhookHandler verifies, parses and deduplicates webhook deliveries and
// passes them on. Every delivery that passes verification is acknowledged
// with 200 so providers do not retry it.
type WebhookHandler struct {
	secrets     Secrets
	dedup       *dedup.Deduplicator
	processor   Processor
	transcripts TranscriptAppender
	logger      *zap.Logger
	now         func() time.Time
}

// NewWebhookHandler creates a handler. transcripts may be nil.
func NewWebhookHandler(secrets Secrets, deduper *dedup.Deduplicator, processor Processor, transcripts TranscriptAppender, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		secrets:     secrets,
		dedup:       deduper,
		processor:   processor,
		transcripts: transcripts,
		logger:      logging.OrNop(logger),
		now:         time.Now,
	}
}

// Handle is the API Gateway proxy entry point
func (h *WebhookHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body, err := requestBody(request)
	if err != nil {
		h.logger.Warn("undecodable body", zap.Error(err))
		return badRequest("Invalid body"), nil
	}

	var (
		event models.InboundEvent
		ok    bool
	)
	switch {
	case strings.HasSuffix(request.Path, ChatwootPath):
		if err := ValidateChatwootRequest(body, header(request, "X-Chatwoot-Signature"), h.secrets.Chatwoot); err != nil {
			h.logger.Warn("rejected chatwoot webhook", zap.Error(err))
			return badRequest("Invalid signature"), nil
		}
		event, ok, err = ParseChatwoot(body)

	case strings.HasSuffix(request.Path, StripePath):
		if h.secrets.Stripe == "" {
			return notFound(), nil
		}
		if err := ValidateStripeRequest(body, header(request, "Stripe-Signature"), h.secrets.Stripe, h.now()); err != nil {
			h.logger.Warn("rejected stripe webhook", zap.Error(err))
			return badRequest("Invalid signature"), nil
		}
		event, ok, err = ParseStripe(body)

	default:
		return notFound(), nil
	}

	if err != nil {
		h.logger.Warn("unparsable webhook", zap.String("path", request.Path), zap.Error(err))
		return badRequest("Invalid event format"), nil
	}
	if !ok {
		h.logger.Debug("ignoring webhook", zap.String("path", request.Path))
		return okResponse(map[string]any{"ok": true}), nil
	}

	return h.accept(ctx, event), nil
}

// accept runs an event through dedup and the processor. Failures past this
// point are logged, never surfaced to the provider.
func (h *WebhookHandler) accept(ctx context.Context, event models.InboundEvent) events.APIGatewayProxyResponse {
	logger := h.logger.With(
		zap.String("correlation_id", event.CorrelationID),
		zap.String("conversation_id", event.ConversationID),
		zap.String("event_type", string(event.EventType)))

	if !h.dedup.ShouldProcess(ctx, event) {
		return okResponse(map[string]any{"ok": true, "duplicate": true})
	}

	if h.transcripts != nil && event.EventType == models.EventMessageCreated && event.FromUser() {
		if err := h.transcripts.Append(ctx, event); err != nil {
			logger.Warn("failed to append transcript", zap.Error(err))
		}
	}

	if err := h.processor.Handle(ctx, event); err != nil {
		logger.Error("failed to process event", zap.Error(err))
	} else {
		logger.Debug("event processed")
	}

	return okResponse(map[string]any{"ok": true, "correlation_id": event.CorrelationID})
}

func requestBody(request events.APIGatewayProxyRequest) ([]byte, error) {
	if request.IsBase64Encoded {
		body, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return nil, fmt.Errorf("decode base64 body: %w", err)
		}
		return body, nil
	}
	return []byte(request.Body), nil
}

// header looks a header up case-insensitively; API Gateway preserves the
// client's casing
func header(request events.APIGatewayProxyRequest, name string) string {
	if v, ok := request.Headers[name]; ok {
		return v
	}
	for k, v := range request.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, v := range request.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// badRequest returns a 400 error response
func badRequest(message string) events.APIGatewayProxyResponse {
	return errorResponse(http.StatusBadRequest, message)
}

func notFound() events.APIGatewayProxyResponse {
	return errorResponse(http.StatusNotFound, "Not found")
}

func errorResponse(status int, message string) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// okResponse returns a successful response
func okResponse(body any) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(body)
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
