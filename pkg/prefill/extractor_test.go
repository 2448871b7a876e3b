package prefill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/savaki/tutorbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	UnderstandFunc func(ctx context.Context, text, languageHint string) ([]byte, error)
}

func (m *MockService) Understand(ctx context.Context, text, languageHint string) ([]byte, error) {
	return m.UnderstandFunc(ctx, text, languageHint)
}

var _ TextUnderstanding = (*MockService)(nil)

func respond(body string) *MockService {
	return &MockService{
		UnderstandFunc: func(ctx context.Context, text, languageHint string) ([]byte, error) {
			return []byte(body), nil
		},
	}
}

func TestExtractScenarioMaria(t *testing.T) {
	service := respond("```json\n" + `{
		"student_name": "Maria",
		"relationship": "moeder",
		"school_level": "havo 5",
		"subject": "wiskunde",
		"topic": "wiskunde B",
		"lesson_mode": null,
		"age_over_18": false,
		"preferred_times": null,
		"confidence": 0.9
	}` + "\n```")

	rec := NewExtractor(service, time.Second, nil).Extract(context.Background(),
		"Mijn dochter Maria zit in havo 5, hulp bij wiskunde", "nl")

	require.NotNil(t, rec.StudentName)
	assert.Equal(t, "Maria", *rec.StudentName)
	assert.Equal(t, "parent", *rec.Relationship)
	assert.Equal(t, "havo", *rec.SchoolLevel)
	assert.Equal(t, "math", *rec.Subject)
	assert.Equal(t, "wiskunde B", *rec.Topic)
	assert.Nil(t, rec.LessonMode)
	assert.Equal(t, false, *rec.AgeOver18)
	assert.InDelta(t, 0.9, rec.Confidence, 0.0001)
	assert.True(t, rec.IsSufficientForTrialLesson())
}

func TestExtractDiscardsInvalidValues(t *testing.T) {
	service := respond(`{
		"student_name": "Jan",
		"relationship": "neighbour",
		"school_level": "kindergarten",
		"subject": "basket weaving",
		"lesson_mode": "carrier pigeon",
		"confidence": 7
	}`)

	rec := NewExtractor(service, 0, nil).Extract(context.Background(), "hoi ik ben Jan", "nl")

	assert.Equal(t, "Jan", *rec.StudentName)
	assert.Nil(t, rec.Relationship)
	assert.Nil(t, rec.SchoolLevel)
	assert.Nil(t, rec.Subject)
	assert.Nil(t, rec.LessonMode)
	assert.Equal(t, 1.0, rec.Confidence)
	assert.False(t, rec.IsSufficientForTrialLesson())
}

func TestExtractDiscardsOverlongName(t *testing.T) {
	long := make([]byte, 120)
	for i := range long {
		long[i] = 'a'
	}
	service := respond(`{"student_name": "` + string(long) + `", "subject": "math"}`)

	rec := NewExtractor(service, 0, nil).Extract(context.Background(), "text", "nl")
	assert.Nil(t, rec.StudentName)
	assert.Equal(t, "math", *rec.Subject)
}

func TestExtractKeepsFieldsBesideMistypedOnes(t *testing.T) {
	const base = `"student_name": "Sanne", "school_level": "havo 4", "subject": "wiskunde"`

	tests := []struct {
		name       string
		body       string
		age        *bool
		confidence float64
	}{
		{
			name:       "age as text",
			body:       `{` + base + `, "age_over_18": "unknown", "confidence": 0.8}`,
			confidence: 0.8,
		},
		{
			name: "confidence as text",
			body: `{` + base + `, "age_over_18": false, "confidence": "high"}`,
			age:  models.BoolPtr(false),
		},
		{
			name:       "braces in trailing prose",
			body:       `{` + base + `, "confidence": 0.7}` + "\nNote: lesson mode was {not stated}.",
			confidence: 0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewExtractor(respond(tt.body), 0, nil).Extract(context.Background(), "Sanne zit in havo 4 en heeft hulp nodig bij wiskunde", "nl")

			require.NotNil(t, rec.StudentName)
			assert.Equal(t, "Sanne", *rec.StudentName)
			assert.Equal(t, "havo", *rec.SchoolLevel)
			assert.Equal(t, "math", *rec.Subject)
			assert.Equal(t, tt.age, rec.AgeOver18)
			assert.InDelta(t, tt.confidence, rec.Confidence, 0.0001)
			assert.True(t, rec.IsSufficientForTrialLesson())
		})
	}
}

func TestJSONObjectSkipsLeadingBraces(t *testing.T) {
	obj, err := jsonObject([]byte(`Here you go {see below}: {"subject": "math"} {"subject": "chemistry"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"math"`, string(obj["subject"]))

	_, err = jsonObject([]byte(`{not json}`))
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestExtractFailuresYieldEmptyRecord(t *testing.T) {
	tests := []struct {
		name    string
		service TextUnderstanding
	}{
		{
			name: "service error",
			service: &MockService{UnderstandFunc: func(ctx context.Context, text, lang string) ([]byte, error) {
				return nil, errors.New("throttled")
			}},
		},
		{name: "prose only", service: respond("Sorry, I cannot help with that.")},
		{name: "broken json", service: respond(`{"student_name": "Jan",`)},
		{name: "wrong types", service: respond(`{"student_name": 42}`)},
		{name: "nil service", service: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewExtractor(tt.service, 0, nil).Extract(context.Background(), "Mijn zoon zit in 3 vwo", "nl")
			assert.True(t, rec.IsEmpty())
			assert.Zero(t, rec.Confidence)
			assert.False(t, rec.IsSufficientForTrialLesson())
		})
	}
}

func TestExtractSkipsBlankText(t *testing.T) {
	called := false
	service := &MockService{UnderstandFunc: func(ctx context.Context, text, lang string) ([]byte, error) {
		called = true
		return nil, nil
	}}

	rec := NewExtractor(service, 0, nil).Extract(context.Background(), "   ", "nl")
	assert.True(t, rec.IsEmpty())
	assert.False(t, called)
}

func TestExtractAppliesTimeout(t *testing.T) {
	service := &MockService{UnderstandFunc: func(ctx context.Context, text, lang string) ([]byte, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return []byte(`{}`), nil
	}}

	NewExtractor(service, 5*time.Second, nil).Extract(context.Background(), "hallo", "nl")
}

func TestCanonicalSchoolLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"vwo", "vwo", true},
		{"VWO", "vwo", true},
		{"havo 5", "havo", true},
		{"5 vwo", "vwo", true},
		{"4h", "havo", true},
		{"Gymnasium", "vwo", true},
		{"basisschool", "po", true},
		{"hogeschool", "university_hbo", true},
		{"university_wo", "university_wo", true},
		{"mbo niveau 4", "mbo", true},
		{"kindergarten", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalSchoolLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"math", "math", true},
		{"Wiskunde B", "math", true},
		{"hulp bij wiskunde", "math", true},
		{"statistiek", "stats", true},
		{"scheikunde", "chemistry", true},
		{"Python", "programming", true},
		{"economie", "other", true},
		{"basket weaving", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalSubject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyField(t *testing.T) {
	rec := models.IntakeRecord{
		StudentName: models.StringPtr("Maria"),
		SchoolLevel: models.StringPtr("havo"),
		Subject:     models.StringPtr("math"),
	}

	require.NoError(t, ApplyField(&rec, models.FieldSchoolLevel, "6 vwo"))
	assert.Equal(t, "vwo", *rec.SchoolLevel)

	require.NoError(t, ApplyField(&rec, models.FieldLessonMode, "fysiek"))
	assert.Equal(t, "in_person", *rec.LessonMode)

	require.NoError(t, ApplyField(&rec, models.FieldAgeOver18, "nee"))
	assert.False(t, *rec.AgeOver18)

	require.NoError(t, ApplyField(&rec, models.FieldRelationship, "vader"))
	assert.Equal(t, "parent", *rec.Relationship)

	assert.ErrorIs(t, ApplyField(&rec, models.FieldSubject, "basket weaving"), ErrInvalidValue)
	assert.Equal(t, "math", *rec.Subject, "invalid input leaves the field untouched")

	assert.ErrorIs(t, ApplyField(&rec, models.FieldStudentName, " "), ErrInvalidValue)
	assert.ErrorIs(t, ApplyField(&rec, models.Field("shoe_size"), "42"), ErrInvalidValue)
}

func TestApplyFieldSubjectLeavesTopic(t *testing.T) {
	var rec models.IntakeRecord
	require.NoError(t, ApplyField(&rec, models.FieldSubject, "scheikunde"))
	assert.Equal(t, "chemistry", *rec.Subject)
	assert.Nil(t, rec.Topic)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "nl", DetectLanguage("Mijn dochter Maria zit in havo 5, hulp bij wiskunde"))
	assert.Equal(t, "en", DetectLanguage("Hi, my son needs help with math, he is in year 10"))
	assert.Equal(t, "nl", DetectLanguage(""))
	assert.Equal(t, "nl", NormalizeLanguage("de"))
	assert.Equal(t, "en", NormalizeLanguage(" EN "))
}

func TestInstructionsMentionsSchema(t *testing.T) {
	prompt := Instructions("en")
	for _, key := range []string{"student_name", "school_level", "subject", "confidence"} {
		assert.Contains(t, prompt, key)
	}
	assert.Contains(t, prompt, "English")
	assert.Contains(t, Instructions("nl"), "Dutch")
}
