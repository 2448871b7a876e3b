package models

// Segment is a coarse customer category driving dialog options and scheduling rules
type Segment string

// Segment constants
const (
	SegmentNew                Segment = "new"
	SegmentExisting           Segment = "existing"
	SegmentWeekend            Segment = "weekend"
	SegmentReturningBroadcast Segment = "returning_broadcast"
)

// ParseSegment returns the segment named by s and whether it is known
func ParseSegment(s string) (Segment, bool) {
	switch seg := Segment(s); seg {
	case SegmentNew, SegmentExisting, SegmentWeekend, SegmentReturningBroadcast:
		return seg, true
	}
	return "", false
}

// ProfileName returns the planning profile used for the segment
func (s Segment) ProfileName() string {
	if _, ok := ParseSegment(string(s)); !ok {
		return string(SegmentNew)
	}
	return string(s)
}

// Contact attribute keys
const (
	AttrLanguage             = "language"
	AttrSchoolLevel          = "school_level"
	AttrSegment              = "segment"
	AttrStudentName          = "student_name"
	AttrRelationship         = "relationship"
	AttrSubject              = "subject"
	AttrTopic                = "topic"
	AttrLessonMode           = "lesson_mode"
	AttrAgeOver18            = "age_over_18"
	AttrHasPaidLesson        = "has_paid_lesson"
	AttrHasCompletedIntake   = "has_completed_intake"
	AttrIntakeCompleted      = "intake_completed"
	AttrWeekendWhitelisted   = "weekend_whitelisted"
	AttrReturningBroadcast   = "returning_broadcast"
	AttrCustomerSince        = "customer_since"
	AttrTrialLessonCompleted = "trial_lesson_completed"
	AttrLessonBooked         = "lesson_booked"
	AttrCustomerStatus       = "customer_status"
	AttrLastPaymentAt        = "last_payment_at"
	AttrPreferredTimes       = "preferred_times"
)

// Conversation attribute keys
const (
	ConvPendingIntent     = "pending_intent"
	ConvIntakeFields      = "intake_fields"
	ConvIntakeCorrections = "intake_corrections"
	ConvPreferredTimes    = "preferred_times"
	ConvSuggestedSlots    = "suggested_slots"
	ConvPrefillDone       = "prefill_done"
	ConvBotDisabled       = "bot_disabled"
	ConvLanguage          = "language"
	ConvSegment           = "segment"
	ConvBookingExecution  = "booking_execution"
	ConvLessonType        = "lesson_type"
	ConvPaymentOrder      = "payment_order_id"
	ConvPaymentLink       = "payment_link"
)
