// Package dedup suppresses re-delivered webhook events.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/savaki/tutorbot/pkg/logging"
	"github.com/savaki/tutorbot/pkg/models"
	"go.uber.org/zap"
)

// Cache is a bounded set of idempotency keys. Add reports whether key was
// newly inserted.
type Cache interface {
	Add(ctx context.Context, key string) (bool, error)
}

// Deduplicator gates every inbound event before any business logic runs
type Deduplicator struct {
	cache  Cache
	logger *zap.Logger
}

// New returns a Deduplicator backed by cache
func New(cache Cache, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{
		cache:  cache,
		logger: logging.OrNop(logger),
	}
}

// Key derives the idempotency key for an event. A missing message ID
// collapses to conversation and event type only.
func Key(event models.InboundEvent) string {
	h := sha256.New()
	h.Write([]byte(event.ConversationID))
	h.Write([]byte{0})
	h.Write([]byte(event.MessageID))
	h.Write([]byte{0})
	h.Write([]byte(event.EventType))
	return hex.EncodeToString(h.Sum(nil))
}

// ShouldProcess returns false when the event was already seen. Cache errors
// fail open.
func (d *Deduplicator) ShouldProcess(ctx context.Context, event models.InboundEvent) bool {
	key := Key(event)
	added, err := d.cache.Add(ctx, key)
	if err != nil {
		d.logger.Warn("dedup cache unavailable, processing event",
			zap.String("conversation_id", event.ConversationID),
			zap.String("event_type", string(event.EventType)),
			zap.Error(err))
		return true
	}
	if !added {
		d.logger.Info("duplicate webhook suppressed",
			zap.String("conversation_id", event.ConversationID),
			zap.String("message_id", event.MessageID),
			zap.String("event_type", string(event.EventType)),
			zap.String("correlation_id", event.CorrelationID))
		return false
	}
	return true
}
