package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/savaki/tutorbot/pkg/models"
)

// ErrUnknownIntent is returned for a stored pending_intent that does not decode
var ErrUnknownIntent = errors.New("unknown pending intent")

// Kind names the step a conversation is waiting on
type Kind string

// Kind constants. The string values are what gets stored.
const (
	KindNone                Kind = ""
	KindPrefillConfirmation Kind = "prefill_confirmation"
	KindPartialCorrection   Kind = "prefill_correction"
	KindFieldCorrection     Kind = "prefill_correction_field"
	KindStepIntake          Kind = "intake"
	KindActionMenu          Kind = "action_menu"
	KindMainMenu            Kind = "main_menu"
	KindInfoMenu            Kind = "info_menu"
	KindPlanning            Kind = "planning"
	KindSlotSelection       Kind = "slot_selection"
	KindHandoff             Kind = "handoff"
)

// Intent is the decoded form of pending_intent. Field is set for
// KindFieldCorrection and KindStepIntake, Profile for KindPlanning and
// KindSlotSelection.
type Intent struct {
	Kind    Kind
	Field   models.Field
	Profile string
}

// String encodes the intent for storage
func (i Intent) String() string {
	switch i.Kind {
	case KindFieldCorrection:
		return string(KindPartialCorrection) + ":" + string(i.Field)
	case KindStepIntake:
		return string(KindStepIntake) + ":" + string(i.Field)
	case KindPlanning, KindSlotSelection:
		return string(i.Kind) + ":" + i.Profile
	}
	return string(i.Kind)
}

// ParseIntent decodes a stored pending_intent
func ParseIntent(s string) (Intent, error) {
	s = strings.TrimSpace(s)
	head, arg, hasArg := strings.Cut(s, ":")

	switch Kind(head) {
	case KindNone, KindPrefillConfirmation, KindActionMenu, KindMainMenu, KindInfoMenu, KindHandoff:
		if hasArg {
			break
		}
		return Intent{Kind: Kind(head)}, nil
	case KindPartialCorrection:
		if !hasArg {
			return Intent{Kind: KindPartialCorrection}, nil
		}
		if f, ok := models.ParseField(arg); ok {
			return Intent{Kind: KindFieldCorrection, Field: f}, nil
		}
	case KindStepIntake:
		if f, ok := models.ParseField(arg); ok && isIntakeStep(f) {
			return Intent{Kind: KindStepIntake, Field: f}, nil
		}
	case KindPlanning, KindSlotSelection:
		if arg != "" {
			return Intent{Kind: Kind(head), Profile: arg}, nil
		}
	}
	return Intent{}, fmt.Errorf("%w: %q", ErrUnknownIntent, s)
}

// intakeSteps are asked in order during step-by-step intake
var intakeSteps = []models.Field{
	models.FieldStudentName,
	models.FieldSchoolLevel,
	models.FieldSubject,
	models.FieldLessonMode,
}

func isIntakeStep(f models.Field) bool {
	for _, step := range intakeSteps {
		if step == f {
			return true
		}
	}
	return false
}

// nextStep returns the first intake step the record has no value for
func nextStep(rec models.IntakeRecord) (models.Field, bool) {
	for _, step := range intakeSteps {
		if rec.Value(step) == "" {
			return step, true
		}
	}
	return "", false
}
