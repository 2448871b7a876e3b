package intake

import (
	"fmt"
	"strings"

	"github.com/savaki/tutorbot/pkg/models"
)

// Menu option tags
const (
	TagConfirmAll      = "confirm_all"
	TagCorrectAll      = "correct_all"
	TagCorrectPartial  = "correct_partial"
	TagLooksRight      = "looks_right"
	TagPlanTrialLesson = "plan_trial_lesson"
	TagPlanAllLessons  = "plan_all_lessons"
	TagUrgentSession   = "urgent_session"
	TagMainMenu        = "go_to_main_menu"
	TagHandoff         = "handoff"
	TagPlanLesson      = "plan_lesson"
	TagSamePreferences = "same_preferences"
	TagOldPreferences  = "old_preferences"
	TagInfo            = "info"
	TagOtherTimes      = "other_times"
	TagTariffs         = "tariffs"
	TagWorkMethod      = "work_method"
	TagServices        = "services"
	TagWorkshops       = "workshops"
)

// Lesson types passed on to booking and payment
const (
	LessonTrial   = "trial"
	LessonRegular = "regular"
	LessonUrgent  = "urgent"
)

// Option is one selectable menu entry
type Option struct {
	Tag   string
	Label string
}

// Menu is a prompt plus options. Rendering is up to the Messenger.
type Menu struct {
	ID      string
	Text    string
	Options []Option
}

// Match finds the option whose tag equals input exactly, ignoring surrounding
// whitespace. Free text never matches.
func (m Menu) Match(input string) (Option, bool) {
	input = strings.TrimSpace(input)
	for _, opt := range m.Options {
		if opt.Tag == input {
			return opt, true
		}
	}
	return Option{}, false
}

func options(lang string, tags ...string) []Option {
	opts := make([]Option, 0, len(tags))
	for _, tag := range tags {
		opts = append(opts, Option{Tag: tag, Label: text(lang, tag)})
	}
	return opts
}

func confirmationMenu(lang string) Menu {
	return Menu{
		ID:      "prefill_confirmation",
		Text:    text(lang, "confirm_prompt"),
		Options: options(lang, TagConfirmAll, TagCorrectAll, TagCorrectPartial),
	}
}

func correctionMenu(lang string) Menu {
	opts := make([]Option, 0, len(models.EditableFields)+1)
	for _, f := range models.EditableFields {
		opts = append(opts, Option{Tag: string(f), Label: text(lang, "label_"+string(f))})
	}
	opts = append(opts, Option{Tag: TagLooksRight, Label: text(lang, TagLooksRight)})
	return Menu{ID: "prefill_correction", Text: text(lang, "correction_prompt"), Options: opts}
}

// actionMenu branches on segment: new customers get trial lesson first,
// everyone else can also plan a full series
func actionMenu(seg models.Segment, lang string) Menu {
	tags := []string{TagPlanTrialLesson, TagUrgentSession, TagMainMenu, TagHandoff}
	if seg != models.SegmentNew {
		tags = []string{TagPlanTrialLesson, TagPlanAllLessons, TagUrgentSession, TagMainMenu, TagHandoff}
	}
	return Menu{ID: "action_menu", Text: text(lang, "action_prompt"), Options: options(lang, tags...)}
}

func mainMenu(seg models.Segment, lang string) Menu {
	var tags []string
	switch seg {
	case models.SegmentExisting:
		tags = []string{TagPlanLesson, TagSamePreferences, TagInfo, TagHandoff}
	case models.SegmentReturningBroadcast:
		tags = []string{TagPlanLesson, TagOldPreferences, TagInfo, TagHandoff}
	default:
		tags = []string{TagPlanLesson, TagInfo, TagHandoff}
	}
	return Menu{ID: "main_menu", Text: text(lang, "greeting"), Options: options(lang, tags...)}
}

func infoMenu(lang string) Menu {
	return Menu{
		ID:      "info_menu",
		Text:    text(lang, "info_prompt"),
		Options: options(lang, TagTariffs, TagWorkMethod, TagServices, TagWorkshops, TagPlanLesson, TagHandoff, TagMainMenu),
	}
}

// tariffsKey picks the price list to show. MBO trajectories are left out for
// students already past that route.
func tariffsKey(level string, adult bool) string {
	key := "info_tariffs"
	if adult || level == "adult" {
		key += "_adult"
	}
	switch level {
	case "havo", "vwo", "university_hbo", "university_wo":
		key += "_no_mbo"
	}
	return key
}

func lessonModeMenu(lang string) Menu {
	opts := make([]Option, 0, len(models.LessonModes))
	for _, mode := range models.LessonModes {
		opts = append(opts, Option{Tag: mode, Label: text(lang, "mode_"+mode)})
	}
	return Menu{ID: "lesson_mode", Text: text(lang, "ask_lesson_mode"), Options: opts}
}

func slotMenu(slots []models.SlotCandidate, lang string) Menu {
	opts := make([]Option, 0, len(slots)+2)
	for _, s := range slots {
		opts = append(opts, Option{Tag: s.Tag(), Label: formatSlot(s, lang)})
	}
	opts = append(opts, options(lang, TagOtherTimes, TagHandoff)...)
	return Menu{ID: "slot_selection", Text: text(lang, "slots_prompt"), Options: opts}
}

var weekdayNames = map[string][7]string{
	"nl": {"zondag", "maandag", "dinsdag", "woensdag", "donderdag", "vrijdag", "zaterdag"},
	"en": {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
}

func formatSlot(s models.SlotCandidate, lang string) string {
	names, ok := weekdayNames[lang]
	if !ok {
		names = weekdayNames["nl"]
	}
	return fmt.Sprintf("%s %s %s-%s",
		names[s.Start.Weekday()],
		s.Start.Format("02-01"),
		s.Start.Format("15:04"),
		s.End.Format("15:04"))
}

// summary renders the record as one line per editable field
func summary(rec models.IntakeRecord, lang string) string {
	var b strings.Builder
	b.WriteString(text(lang, "summary_intro"))
	for _, f := range models.EditableFields {
		fmt.Fprintf(&b, "\n%s: %s", text(lang, "label_"+string(f)), displayValue(rec, f, lang))
	}
	return b.String()
}

// displayPrefix maps coded fields to the message keys holding their labels
var displayPrefix = map[models.Field]string{
	models.FieldRelationship: "relationship_",
	models.FieldSchoolLevel:  "level_",
	models.FieldSubject:      "subject_",
	models.FieldLessonMode:   "mode_",
	models.FieldAgeOver18:    "answer_",
}

// displayValue renders a stored code the way the user would write it
func displayValue(rec models.IntakeRecord, f models.Field, lang string) string {
	v := rec.Value(f)
	if v == "" {
		return "-"
	}
	prefix, ok := displayPrefix[f]
	if !ok {
		return v
	}
	if label := text(lang, prefix+v); label != prefix+v {
		return label
	}
	return v
}

// formatAmount renders cents as euros in the user's notation
func formatAmount(cents int64, lang string) string {
	sep := ","
	if lang == "en" {
		sep = "."
	}
	return fmt.Sprintf("€%d%s%02d", cents/100, sep, cents%100)
}

func question(f models.Field, lang string) string {
	return text(lang, "ask_"+string(f))
}
