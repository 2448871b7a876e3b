package planning

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/savaki/tutorbot/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfiles []byte

// profileRules mirrors models.PlanningProfile for validation
type profileRules struct {
	Name            string `validate:"required"`
	DurationMinutes int    `validate:"min=15,max=240"`
	EarliestHour    int    `validate:"min=0,max=23"`
	LatestHour      int    `validate:"min=1,max=24,gtfield=EarliestHour"`
	MinLeadMinutes  int    `validate:"min=0"`
	DaysAhead       int    `validate:"min=1,max=60"`
	AllowedWeekdays []int  `validate:"omitempty,dive,min=0,max=6"`
	SlotStepMinutes int    `validate:"min=5,max=240"`
	MaxCandidates   int    `validate:"min=1,max=50"`
	PriceCents      int64  `validate:"min=0"`
}

// Profiles is an immutable set of planning profiles keyed by name
type Profiles struct {
	byName map[string]models.PlanningProfile
}

// DefaultProfiles returns the built-in profiles
func DefaultProfiles() (*Profiles, error) {
	return ParseProfiles(defaultProfiles)
}

// LoadProfiles reads profiles from a YAML file, falling back to the built-in
// set when path is empty
func LoadProfiles(path string) (*Profiles, error) {
	if path == "" {
		return DefaultProfiles()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes and validates a YAML list of profiles
func ParseProfiles(data []byte) (*Profiles, error) {
	var list []models.PlanningProfile
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	v := validator.New()
	byName := make(map[string]models.PlanningProfile, len(list))
	for _, p := range list {
		rules := profileRules{
			Name:            p.Name,
			DurationMinutes: p.DurationMinutes,
			EarliestHour:    p.EarliestHour,
			LatestHour:      p.LatestHour,
			MinLeadMinutes:  p.MinLeadMinutes,
			DaysAhead:       p.DaysAhead,
			AllowedWeekdays: p.AllowedWeekdays,
			SlotStepMinutes: p.SlotStepMinutes,
			MaxCandidates:   p.MaxCandidates,
			PriceCents:      p.PriceCents,
		}
		if err := v.Struct(rules); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("profile %q defined twice", p.Name)
		}
		byName[p.Name] = p
	}

	for _, seg := range []models.Segment{models.SegmentNew, models.SegmentExisting, models.SegmentWeekend, models.SegmentReturningBroadcast} {
		if _, ok := byName[seg.ProfileName()]; !ok {
			return nil, fmt.Errorf("missing profile for segment %q", seg)
		}
	}
	return &Profiles{byName: byName}, nil
}

// Get returns the named profile
func (p *Profiles) Get(name string) (models.PlanningProfile, bool) {
	profile, ok := p.byName[name]
	return profile, ok
}

// ForSegment returns the profile for seg. Unknown segments use the new
// customer profile.
func (p *Profiles) ForSegment(seg models.Segment) models.PlanningProfile {
	if profile, ok := p.byName[seg.ProfileName()]; ok {
		return profile
	}
	return p.byName[string(models.SegmentNew)]
}
