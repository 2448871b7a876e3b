package models

import "strings"

// Field names an editable IntakeRecord field
type Field string

// Field constants
const (
	FieldStudentName  Field = "student_name"
	FieldRelationship Field = "relationship"
	FieldSchoolLevel  Field = "school_level"
	FieldSubject      Field = "subject"
	FieldTopic        Field = "topic"
	FieldLessonMode   Field = "lesson_mode"
	FieldAgeOver18    Field = "age_over_18"
)

// EditableFields lists the fields offered for partial correction, in menu order
var EditableFields = []Field{
	FieldStudentName,
	FieldRelationship,
	FieldSchoolLevel,
	FieldSubject,
	FieldTopic,
	FieldLessonMode,
	FieldAgeOver18,
}

// ParseField returns the field named by s and whether it is editable
func ParseField(s string) (Field, bool) {
	for _, f := range EditableFields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Closed enumerations accepted in an IntakeRecord
var (
	Relationships = []string{"self", "parent", "teacher", "other"}
	SchoolLevels  = []string{"po", "vmbo", "havo", "vwo", "mbo", "university_hbo", "university_wo", "adult"}
	Subjects      = []string{"math", "stats", "science", "chemistry", "english", "programming", "other"}
	LessonModes   = []string{"online", "in_person", "hybrid"}
)

// IntakeRecord is the structured result of a prefill extraction. A nil field
// is absent.
type IntakeRecord struct {
	StudentName    *string `json:"student_name"`
	Relationship   *string `json:"relationship"`
	SchoolLevel    *string `json:"school_level"`
	Subject        *string `json:"subject"`
	Topic          *string `json:"topic"`
	LessonMode     *string `json:"lesson_mode"`
	AgeOver18      *bool   `json:"age_over_18"`
	PreferredTimes *string `json:"preferred_times"`
	Confidence     float64 `json:"confidence"`
}

// IsSufficientForTrialLesson requires student identity, school level and subject
func (r IntakeRecord) IsSufficientForTrialLesson() bool {
	return present(r.StudentName) && present(r.SchoolLevel) && present(r.Subject)
}

// IsEmpty reports whether no field was extracted
func (r IntakeRecord) IsEmpty() bool {
	return r.StudentName == nil && r.Relationship == nil && r.SchoolLevel == nil &&
		r.Subject == nil && r.Topic == nil && r.LessonMode == nil &&
		r.AgeOver18 == nil && r.PreferredTimes == nil
}

// ContactAttributes returns the non-null fields keyed by contact attribute name
func (r IntakeRecord) ContactAttributes() map[string]any {
	attrs := map[string]any{}
	put := func(key string, v *string) {
		if present(v) {
			attrs[key] = *v
		}
	}
	put(AttrStudentName, r.StudentName)
	put(AttrRelationship, r.Relationship)
	put(AttrSchoolLevel, r.SchoolLevel)
	put(AttrSubject, r.Subject)
	put(AttrTopic, r.Topic)
	put(AttrLessonMode, r.LessonMode)
	if r.AgeOver18 != nil {
		attrs[AttrAgeOver18] = *r.AgeOver18
	}
	return attrs
}

// Value returns the display value of a field, or "" when absent
func (r IntakeRecord) Value(f Field) string {
	switch f {
	case FieldStudentName:
		return deref(r.StudentName)
	case FieldRelationship:
		return deref(r.Relationship)
	case FieldSchoolLevel:
		return deref(r.SchoolLevel)
	case FieldSubject:
		return deref(r.Subject)
	case FieldTopic:
		return deref(r.Topic)
	case FieldLessonMode:
		return deref(r.LessonMode)
	case FieldAgeOver18:
		if r.AgeOver18 == nil {
			return ""
		}
		if *r.AgeOver18 {
			return "yes"
		}
		return "no"
	}
	return ""
}

// StringPtr returns a pointer to s, or nil when s is blank
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
