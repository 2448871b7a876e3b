package models

import "time"

// PlanningProfile is a named bundle of scheduling constraints selected by segment
type PlanningProfile struct {
	Name                string `yaml:"name" json:"name"`
	DurationMinutes     int    `yaml:"duration_minutes" json:"durationMinutes"`
	EarliestHour        int    `yaml:"earliest_hour" json:"earliestHour"`
	LatestHour          int    `yaml:"latest_hour" json:"latestHour"`
	MinLeadMinutes      int    `yaml:"min_lead_minutes" json:"minLeadMinutes"`
	DaysAhead           int    `yaml:"days_ahead" json:"daysAhead"`
	ExcludeWeekends     bool   `yaml:"exclude_weekends" json:"excludeWeekends"`
	AllowedWeekdays     []int  `yaml:"allowed_weekdays,omitempty" json:"allowedWeekdays,omitempty"` // Monday=0 ... Sunday=6
	SlotStepMinutes     int    `yaml:"slot_step_minutes" json:"slotStepMinutes"`
	MaxCandidates       int    `yaml:"max_candidates" json:"maxCandidates"`
	BufferBeforeMinutes int    `yaml:"buffer_before_minutes" json:"bufferBeforeMinutes"`
	BufferAfterMinutes  int    `yaml:"buffer_after_minutes" json:"bufferAfterMinutes"`
	PriceCents          int64  `yaml:"price_cents" json:"priceCents,omitempty"` // per paid lesson, 0 means not charged online
}

// ProfilePremium is the profile used for urgent sessions
const ProfilePremium = "premium"

// SlotCandidate is a proposed, not yet confirmed lesson window
type SlotCandidate struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Tag is the menu tag identifying the candidate
func (s SlotCandidate) Tag() string {
	return s.Start.Format(time.RFC3339)
}

// BookingRequest is the input payload sent to Step Functions when a slot is chosen
type BookingRequest struct {
	ConversationID string        `json:"conversationId"`
	ContactID      string        `json:"contactId"`
	Profile        string        `json:"profile"`
	LessonType     string        `json:"lessonType"`
	Slot           SlotCandidate `json:"slot"`
	StudentName    string        `json:"studentName,omitempty"`
	Subject        string        `json:"subject,omitempty"`
	SchoolLevel    string        `json:"schoolLevel,omitempty"`
	CreatedAt      string        `json:"createdAt"`
}

// Metadata keys a payment carries so the success webhook can find its way back
const (
	PaymentMetaContactID      = "contact_id"
	PaymentMetaConversationID = "conversation_id"
	PaymentMetaOrderID        = "order_id"
)

// PaymentRequest asks the payment provider for a checkout link
type PaymentRequest struct {
	OrderID        string
	ConversationID string
	ContactID      string
	AmountCents    int64
	Description    string
}

// NewOrderID returns a unique, sortable order reference
func NewOrderID() string {
	return "order-" + generateULID(time.Now())
}
