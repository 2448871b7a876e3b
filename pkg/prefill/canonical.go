package prefill

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/savaki/tutorbot/pkg/models"
)

// ErrInvalidValue is returned when a correction cannot be mapped onto a field
var ErrInvalidValue = errors.New("invalid value for field")

var schoolLevelAliases = map[string]string{
	"basisschool": "po", "primary school": "po", "primary": "po", "groep 7": "po", "groep 8": "po",
	"speciaal onderwijs": "po", "special education": "po",
	"vmbo": "vmbo", "vmbo-tl": "vmbo", "vmbo-gl": "vmbo", "vmbo-bl": "vmbo", "vmbo-kl": "vmbo", "mavo": "vmbo",
	"havo": "havo",
	"vwo":  "vwo", "gymnasium": "vwo", "atheneum": "vwo",
	"ib": "vwo", "international baccalaureate": "vwo", "ib diploma": "vwo",
	"cambridge": "vwo", "igcse": "vwo", "international school": "vwo", "internationale school": "vwo",
	"mbo": "mbo",
	"hbo": "university_hbo", "hogeschool": "university_hbo",
	"wo": "university_wo", "universiteit": "university_wo", "university": "university_wo",
	"bachelor": "university_wo", "master": "university_wo", "bsc": "university_wo", "msc": "university_wo",
	"volwassenenonderwijs": "adult", "volwassene": "adult", "volwassenen": "adult", "adult": "adult",
	"werkende": "adult", "professional": "adult",
}

var subjectAliases = map[string]string{
	"wiskunde": "math", "math": "math", "maths": "math", "mathematics": "math", "rekenen": "math",
	"algebra": "math", "calculus": "math", "geometry": "math", "meetkunde": "math",
	"wiskunde a": "math", "wiskunde b": "math", "wiskunde c": "math", "wiskunde d": "math",
	"statistiek": "stats", "statistics": "stats", "stats": "stats", "kansrekening": "stats", "probability": "stats",
	"natuurkunde": "science", "physics": "science", "fysica": "science", "biologie": "science",
	"biology": "science", "science": "science",
	"scheikunde": "chemistry", "chemistry": "chemistry", "chemie": "chemistry",
	"engels": "english", "english": "english",
	"programmeren": "programming", "programming": "programming", "coding": "programming",
	"python": "programming", "java": "programming", "javascript": "programming", "matlab": "programming",
	"economie": "other", "economics": "other", "nederlands": "other", "dutch": "other",
	"geschiedenis": "other", "history": "other", "aardrijkskunde": "other", "geography": "other", "other": "other",
}

var relationshipAliases = map[string]string{
	"self": "self", "zelf": "self", "ikzelf": "self", "student": "self", "myself": "self",
	"parent": "parent", "ouder": "parent", "moeder": "parent", "vader": "parent", "mother": "parent",
	"father": "parent", "mom": "parent", "dad": "parent", "mama": "parent", "papa": "parent",
	"teacher": "teacher", "docent": "teacher", "leraar": "teacher", "lerares": "teacher", "mentor": "teacher",
	"other": "other", "anders": "other",
}

var lessonModeAliases = map[string]string{
	"online": "online", "op afstand": "online", "remote": "online", "video": "online",
	"in_person": "in_person", "in person": "in_person", "fysiek": "in_person", "thuis": "in_person",
	"op locatie": "in_person", "face to face": "in_person",
	"hybrid": "hybrid", "hybride": "hybrid", "beide": "hybrid", "both": "hybrid",
}

// "5 vwo", "havo 4", "4h" and friends
var classYearPattern = regexp.MustCompile(`^(?:\d\s*)?(v|h|m)(?:\s*\d)?$`)

var classYearLevels = map[string]string{"v": "vwo", "h": "havo", "m": "vmbo"}

type aliasTable struct {
	exact map[string]string
	keys  []string // longest first, so "wiskunde b" wins over "wiskunde"
}

func newAliasTable(aliases map[string]string) aliasTable {
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return aliasTable{exact: aliases, keys: keys}
}

func (a aliasTable) lookup(raw string) (string, bool) {
	s := normalizeText(raw)
	if s == "" {
		return "", false
	}
	if v, ok := a.exact[s]; ok {
		return v, true
	}
	padded := " " + s + " "
	for _, k := range a.keys {
		if strings.Contains(padded, " "+k+" ") {
			return a.exact[k], true
		}
	}
	return "", false
}

var (
	schoolLevels  = newAliasTable(schoolLevelAliases)
	subjects      = newAliasTable(subjectAliases)
	relationships = newAliasTable(relationshipAliases)
	lessonModes   = newAliasTable(lessonModeAliases)
)

// CanonicalSchoolLevel maps a free-text school level onto the closed enum
func CanonicalSchoolLevel(raw string) (string, bool) {
	if v, ok := enumValue(raw, models.SchoolLevels); ok {
		return v, true
	}
	if m := classYearPattern.FindStringSubmatch(normalizeText(raw)); m != nil {
		return classYearLevels[m[1]], true
	}
	return schoolLevels.lookup(raw)
}

// CanonicalSubject maps a free-text subject onto the closed enum
func CanonicalSubject(raw string) (string, bool) {
	if v, ok := enumValue(raw, models.Subjects); ok {
		return v, true
	}
	return subjects.lookup(raw)
}

// CanonicalRelationship maps a free-text relationship onto the closed enum
func CanonicalRelationship(raw string) (string, bool) {
	if v, ok := enumValue(raw, models.Relationships); ok {
		return v, true
	}
	return relationships.lookup(raw)
}

// CanonicalLessonMode maps a free-text lesson mode onto the closed enum
func CanonicalLessonMode(raw string) (string, bool) {
	if v, ok := enumValue(raw, models.LessonModes); ok {
		return v, true
	}
	return lessonModes.lookup(raw)
}

// ParseYesNo reads a yes/no answer in Dutch or English
func ParseYesNo(raw string) (bool, bool) {
	switch normalizeText(raw) {
	case "ja", "yes", "y", "j", "true", "klopt", "18+", "ouder dan 18", "over 18":
		return true, true
	case "nee", "no", "n", "false", "jonger", "under 18", "jonger dan 18":
		return false, true
	}
	return false, false
}

// ApplyField overwrites a single field of rec from user input. The value is
// canonicalized first; ErrInvalidValue leaves rec untouched.
func ApplyField(rec *models.IntakeRecord, field models.Field, raw string) error {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ErrInvalidValue
	}

	switch field {
	case models.FieldStudentName:
		if len([]rune(value)) > 80 {
			return ErrInvalidValue
		}
		rec.StudentName = models.StringPtr(value)
	case models.FieldTopic:
		if len([]rune(value)) > 120 {
			return ErrInvalidValue
		}
		rec.Topic = models.StringPtr(value)
	case models.FieldRelationship:
		return setCanonical(&rec.Relationship, value, CanonicalRelationship)
	case models.FieldSchoolLevel:
		return setCanonical(&rec.SchoolLevel, value, CanonicalSchoolLevel)
	case models.FieldSubject:
		return setCanonical(&rec.Subject, value, CanonicalSubject)
	case models.FieldLessonMode:
		return setCanonical(&rec.LessonMode, value, CanonicalLessonMode)
	case models.FieldAgeOver18:
		b, ok := ParseYesNo(value)
		if !ok {
			return ErrInvalidValue
		}
		rec.AgeOver18 = models.BoolPtr(b)
	default:
		return ErrInvalidValue
	}
	return nil
}

func setCanonical(dst **string, raw string, canon func(string) (string, bool)) error {
	v, ok := canon(raw)
	if !ok {
		return ErrInvalidValue
	}
	*dst = models.StringPtr(v)
	return nil
}

func enumValue(raw string, allowed []string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, a := range allowed {
		if s == a {
			return a, true
		}
	}
	return "", false
}

// normalizeText lowercases and collapses punctuation to single spaces, keeping
// '+' and '-' which appear in level names
func normalizeText(raw string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
