// Package planning enumerates profile-legal lesson slot candidates.
package planning

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/savaki/tutorbot/pkg/models"
)

// DefaultTimezone is the timezone lessons are planned in
const DefaultTimezone = "Europe/Amsterdam"

// Generator produces slot candidates in a fixed location
type Generator struct {
	loc *time.Location
}

// NewGenerator returns a Generator for the named IANA timezone
func NewGenerator(timezone string) (*Generator, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Generator{loc: loc}, nil
}

// Location returns the generator's timezone
func (g *Generator) Location() *time.Location {
	return g.loc
}

// Generate returns the first profile.MaxCandidates candidates in chronological
// order that satisfy the profile and the free-text preferences. The result
// depends only on its inputs.
func (g *Generator) Generate(profile models.PlanningProfile, preferences string, now time.Time) []models.SlotCandidate {
	now = now.In(g.loc)
	pref := ParsePreferences(preferences)
	earliest := now.Add(time.Duration(profile.MinLeadMinutes) * time.Minute)
	duration := time.Duration(profile.DurationMinutes) * time.Minute

	step := profile.SlotStepMinutes
	if step <= 0 {
		step = 60
	}
	limit := profile.MaxCandidates
	if limit <= 0 {
		limit = 6
	}

	var out []models.SlotCandidate
	for offset := 0; offset < profile.DaysAhead; offset++ {
		day := time.Date(now.Year(), now.Month(), now.Day()+offset, 0, 0, 0, 0, g.loc)
		if !dayAllowed(profile, day.Weekday()) || !pref.allowsDay(day.Weekday()) {
			continue
		}

		for minute := profile.EarliestHour * 60; minute < profile.LatestHour*60; minute += step {
			start := time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, g.loc)
			if start.Before(earliest) || !pref.allowsHour(start.Hour()) {
				continue
			}
			out = append(out, models.SlotCandidate{Start: start, End: start.Add(duration)})
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// dayAllowed applies excludeWeekends and the allowedWeekdays whitelist
func dayAllowed(profile models.PlanningProfile, wd time.Weekday) bool {
	weekend := wd == time.Saturday || wd == time.Sunday
	if profile.ExcludeWeekends && weekend {
		return false
	}
	if len(profile.AllowedWeekdays) == 0 {
		return true
	}
	idx := MondayIndex(wd)
	for _, allowed := range profile.AllowedWeekdays {
		if allowed == idx {
			return true
		}
	}
	return false
}

// MondayIndex converts a time.Weekday to Monday=0 ... Sunday=6
func MondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// Preferences is the parsed form of a free-text day and time-of-day filter
type Preferences struct {
	Days  map[time.Weekday]bool
	Bands []Band
}

// Band is a coarse time-of-day range [From, To) in hours
type Band struct {
	Name string
	From int
	To   int
}

var (
	morning   = Band{Name: "morning", From: 0, To: 12}
	afternoon = Band{Name: "afternoon", From: 12, To: 18}
	evening   = Band{Name: "evening", From: 18, To: 24}
)

var dayNames = map[string]time.Weekday{
	"maandag": time.Monday, "dinsdag": time.Tuesday, "woensdag": time.Wednesday,
	"donderdag": time.Thursday, "vrijdag": time.Friday, "zaterdag": time.Saturday, "zondag": time.Sunday,
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday, "sunday": time.Sunday,
}

var bandNames = map[string]Band{
	"ochtend": morning, "morgens": morning, "morning": morning,
	"middag": afternoon, "middags": afternoon, "afternoon": afternoon,
	"avond": evening, "avonds": evening, "evening": evening,
}

// ParsePreferences is an approximate substring filter, not a time parser
func ParsePreferences(text string) Preferences {
	lower := strings.ToLower(text)
	p := Preferences{Days: map[time.Weekday]bool{}}
	for name, wd := range dayNames {
		if strings.Contains(lower, name) {
			p.Days[wd] = true
		}
	}
	// several spellings share a band; walk them in a fixed order
	seen := map[string]bool{}
	for _, name := range []string{"ochtend", "morgens", "morning", "middag", "middags", "afternoon", "avond", "avonds", "evening"} {
		band := bandNames[name]
		if strings.Contains(lower, name) && !seen[band.Name] {
			seen[band.Name] = true
			p.Bands = append(p.Bands, band)
		}
	}
	return p
}

// IsEmpty reports whether the preferences filter nothing
func (p Preferences) IsEmpty() bool {
	return len(p.Days) == 0 && len(p.Bands) == 0
}

func (p Preferences) allowsDay(wd time.Weekday) bool {
	return len(p.Days) == 0 || p.Days[wd]
}

func (p Preferences) allowsHour(hour int) bool {
	if len(p.Bands) == 0 {
		return true
	}
	for _, b := range p.Bands {
		if hour >= b.From && hour < b.To {
			return true
		}
	}
	return false
}

// AllFree is the availability check used when no calendar is configured
type AllFree struct{}

// FreeSlots returns every candidate unchanged
func (AllFree) FreeSlots(_ context.Context, candidates []models.SlotCandidate) ([]models.SlotCandidate, error) {
	return candidates, nil
}
