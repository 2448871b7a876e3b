// Package prefill turns a free-form first message into a validated
// IntakeRecord.
package prefill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/savaki/tutorbot/pkg/logging"
	"github.com/savaki/tutorbot/pkg/models"
	"go.uber.org/zap"
)

// ErrNoJSON is returned when a service response contains no JSON object
var ErrNoJSON = errors.New("no json object in response")

// TextUnderstanding is the external language model. It returns the raw
// response text, which should contain one JSON object following Instructions.
type TextUnderstanding interface {
	Understand(ctx context.Context, text, languageHint string) ([]byte, error)
}

// payload is the strict schema applied to service output
type payload struct {
	StudentName    *string  `json:"student_name" validate:"omitempty,max=80"`
	Relationship   *string  `json:"relationship" validate:"omitempty,oneof=self parent teacher other"`
	SchoolLevel    *string  `json:"school_level" validate:"omitempty,oneof=po vmbo havo vwo mbo university_hbo university_wo adult"`
	Subject        *string  `json:"subject" validate:"omitempty,oneof=math stats science chemistry english programming other"`
	Topic          *string  `json:"topic" validate:"omitempty,max=120"`
	LessonMode     *string  `json:"lesson_mode" validate:"omitempty,oneof=online in_person hybrid"`
	AgeOver18      *bool    `json:"age_over_18"`
	PreferredTimes *string  `json:"preferred_times" validate:"omitempty,max=200"`
	Confidence     *float64 `json:"confidence"`
}

// Extractor validates and normalizes whatever the service returns
type Extractor struct {
	service  TextUnderstanding
	validate *validator.Validate
	timeout  time.Duration
	logger   *zap.Logger
}

// NewExtractor creates an Extractor. A zero timeout means no deadline beyond
// the caller's context.
func NewExtractor(service TextUnderstanding, timeout time.Duration, logger *zap.Logger) *Extractor {
	return &Extractor{
		service:  service,
		validate: validator.New(),
		timeout:  timeout,
		logger:   logging.OrNop(logger),
	}
}

// Extract never fails. Service errors and malformed output yield an empty
// record with zero confidence.
func (e *Extractor) Extract(ctx context.Context, text, languageHint string) models.IntakeRecord {
	if strings.TrimSpace(text) == "" || e.service == nil {
		return models.IntakeRecord{}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.service.Understand(ctx, text, languageHint)
	if err != nil {
		e.logger.Warn("text understanding failed", zap.Error(err))
		return models.IntakeRecord{}
	}

	rec, err := e.Parse(raw)
	if err != nil {
		e.logger.Warn("unparsable extraction", zap.Error(err), zap.Int("bytes", len(raw)))
		return models.IntakeRecord{}
	}

	e.logger.Debug("prefill extracted",
		zap.Bool("sufficient", rec.IsSufficientForTrialLesson()),
		zap.Float64("confidence", rec.Confidence))
	return rec
}

// Parse decodes raw service output into a normalized record. Each field is
// decoded on its own so one mistyped value only loses that field.
func (e *Extractor) Parse(raw []byte) (models.IntakeRecord, error) {
	fields, err := jsonObject(raw)
	if err != nil {
		return models.IntakeRecord{}, err
	}

	var p payload
	for name, decode := range p.decoders() {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if err := decode(v); err != nil {
			e.logger.Debug("discarding mistyped field", zap.String("field", name), zap.Error(err))
		}
	}

	canonicalize(&p.Relationship, CanonicalRelationship)
	canonicalize(&p.SchoolLevel, CanonicalSchoolLevel)
	canonicalize(&p.Subject, CanonicalSubject)
	canonicalize(&p.LessonMode, CanonicalLessonMode)
	for _, s := range []**string{&p.StudentName, &p.Topic, &p.PreferredTimes} {
		if *s != nil {
			*s = models.StringPtr(strings.TrimSpace(**s))
		}
	}

	if err := e.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return models.IntakeRecord{}, fmt.Errorf("validate extraction: %w", err)
		}
		for _, fe := range verrs {
			e.logger.Debug("discarding invalid field", zap.String("field", fe.Field()), zap.String("tag", fe.Tag()))
			p.discard(fe.StructField())
		}
	}

	rec := models.IntakeRecord{
		StudentName:    p.StudentName,
		Relationship:   p.Relationship,
		SchoolLevel:    p.SchoolLevel,
		Subject:        p.Subject,
		Topic:          p.Topic,
		LessonMode:     p.LessonMode,
		AgeOver18:      p.AgeOver18,
		PreferredTimes: p.PreferredTimes,
	}
	if p.Confidence != nil {
		rec.Confidence = clamp(*p.Confidence)
	}
	return rec, nil
}

// decoders maps each json key to a func filling the matching field
func (p *payload) decoders() map[string]func(json.RawMessage) error {
	return map[string]func(json.RawMessage) error{
		"student_name":    decodeInto(&p.StudentName),
		"relationship":    decodeInto(&p.Relationship),
		"school_level":    decodeInto(&p.SchoolLevel),
		"subject":         decodeInto(&p.Subject),
		"topic":           decodeInto(&p.Topic),
		"lesson_mode":     decodeInto(&p.LessonMode),
		"age_over_18":     decodeInto(&p.AgeOver18),
		"preferred_times": decodeInto(&p.PreferredTimes),
		"confidence":      decodeInto(&p.Confidence),
	}
}

// decodeInto only assigns dst when the value decodes cleanly, since a type
// error can leave a half-allocated pointer behind
func decodeInto[T any](dst **T) func(json.RawMessage) error {
	return func(raw json.RawMessage) error {
		var v *T
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func (p *payload) discard(structField string) {
	switch structField {
	case "StudentName":
		p.StudentName = nil
	case "Relationship":
		p.Relationship = nil
	case "SchoolLevel":
		p.SchoolLevel = nil
	case "Subject":
		p.Subject = nil
	case "Topic":
		p.Topic = nil
	case "LessonMode":
		p.LessonMode = nil
	case "PreferredTimes":
		p.PreferredTimes = nil
	}
}

// canonicalize replaces *field with its canonical form, or nil when unknown
func canonicalize(field **string, canon func(string) (string, bool)) {
	if *field == nil {
		return
	}
	v, ok := canon(**field)
	if !ok {
		*field = nil
		return
	}
	*field = &v
}

// jsonObject skips code fences and prose up to the first JSON object and
// decodes only that object, ignoring whatever follows it
func jsonObject(raw []byte) (map[string]json.RawMessage, error) {
	for start := bytes.IndexByte(raw, '{'); start >= 0; {
		var obj map[string]json.RawMessage
		if err := json.NewDecoder(bytes.NewReader(raw[start:])).Decode(&obj); err == nil {
			return obj, nil
		}
		next := bytes.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, ErrNoJSON
}

func clamp(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
