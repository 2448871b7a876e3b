// Package segment derives a contact's customer segment from their attributes.
package segment

import (
	"context"

	"github.com/savaki/tutorbot/pkg/attributes"
	"github.com/savaki/tutorbot/pkg/logging"
	"github.com/savaki/tutorbot/pkg/models"
	"go.uber.org/zap"
)

// existingMarkers are the flags that mark a contact as an existing customer
var existingMarkers = []string{
	models.AttrCustomerSince,
	models.AttrHasPaidLesson,
	models.AttrHasCompletedIntake,
	models.AttrIntakeCompleted,
	models.AttrTrialLessonCompleted,
	models.AttrLessonBooked,
}

// Classify evaluates the segment priority table. The first match wins and the
// order must not change.
func Classify(attrs attributes.Map) models.Segment {
	if attrs.Bool(models.AttrWeekendWhitelisted) {
		return models.SegmentWeekend
	}
	if attrs.Bool(models.AttrReturningBroadcast) {
		return models.SegmentReturningBroadcast
	}
	if isExisting(attrs) {
		return models.SegmentExisting
	}
	return models.SegmentNew
}

func isExisting(attrs attributes.Map) bool {
	for _, key := range existingMarkers {
		if key == models.AttrCustomerSince {
			if attrs.Has(key) {
				return true
			}
			continue
		}
		if attrs.Bool(key) {
			return true
		}
	}
	return attrs.String(models.AttrCustomerStatus) == "active"
}

// Classifier caches the segment into the contact's attributes
type Classifier struct {
	store  attributes.Store
	logger *zap.Logger
}

// NewClassifier creates a classifier reading and writing through store
func NewClassifier(store attributes.Store, logger *zap.Logger) *Classifier {
	return &Classifier{store: store, logger: logging.OrNop(logger)}
}

// Detect returns the cached segment when present, otherwise classifies the
// contact and caches the result. It never fails.
func (c *Classifier) Detect(ctx context.Context, contactID string) models.Segment {
	attrs, err := c.store.GetContactAttributes(ctx, contactID)
	if err != nil {
		c.logger.Warn("read contact attributes for segment",
			zap.String("contact_id", contactID), zap.Error(err))
		return Classify(nil)
	}
	return c.DetectFrom(ctx, contactID, attrs)
}

// DetectFrom is Detect for callers that already loaded the contact attributes
func (c *Classifier) DetectFrom(ctx context.Context, contactID string, attrs attributes.Map) models.Segment {
	if seg, ok := models.ParseSegment(attrs.String(models.AttrSegment)); ok {
		return seg
	}

	seg := Classify(attrs)
	if err := c.store.SetContactAttributes(ctx, contactID, attributes.Map{models.AttrSegment: string(seg)}); err != nil {
		c.logger.Warn("cache contact segment",
			zap.String("contact_id", contactID),
			zap.String("segment", string(seg)),
			zap.Error(err))
	}
	c.logger.Debug("segment detected", zap.String("contact_id", contactID), zap.String("segment", string(seg)))
	return seg
}
