// Package intake drives the WhatsApp intake dialog. All dialog state lives in
// the conversation's attributes under pending_intent, so any instance can
// resume any conversation.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/savaki/tutorbot/pkg/attributes"
	"github.com/savaki/tutorbot/pkg/logging"
	"github.com/savaki/tutorbot/pkg/models"
	"github.com/savaki/tutorbot/pkg/planning"
	"github.com/savaki/tutorbot/pkg/prefill"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// minPrefillLength is the shortest first message worth sending to the
// language model; anything shorter is treated as a greeting
const minPrefillLength = 30

// Messenger delivers outbound messages to the conversation
type Messenger interface {
	SendText(ctx context.Context, conversationID, text string) error
	SendMenu(ctx context.Context, conversationID string, menu Menu) error
}

// HandoffRequest describes a conversation being passed to a human
type HandoffRequest struct {
	ConversationID string
	ContactID      string
	Segment        models.Segment
	Reason         string
	Summary        string
}

// HandoffNotifier is told when a conversation is handed to a human
type HandoffNotifier interface {
	NotifyHandoff(ctx context.Context, req HandoffRequest) error
}

// Availability filters candidates down to the ones actually free
type Availability interface {
	FreeSlots(ctx context.Context, candidates []models.SlotCandidate) ([]models.SlotCandidate, error)
}

// Booker starts the booking workflow for a chosen slot
type Booker interface {
	StartBooking(ctx context.Context, req models.BookingRequest) (string, error)
}

// PaymentLinker creates a checkout link for a paid lesson
type PaymentLinker interface {
	CreatePaymentLink(ctx context.Context, req models.PaymentRequest) (string, error)
}

// Extractor turns a first message into an intake record
type Extractor interface {
	Extract(ctx context.Context, text, languageHint string) models.IntakeRecord
}

// SegmentDetector classifies a contact, caching the result
type SegmentDetector interface {
	DetectFrom(ctx context.Context, contactID string, attrs attributes.Map) models.Segment
}

// Deps are the collaborators of a Machine
type Deps struct {
	Store        attributes.Store
	Segments     SegmentDetector
	Extractor    Extractor
	Profiles     *planning.Profiles
	Generator    *planning.Generator
	Availability Availability
	Booker       Booker
	Payments     PaymentLinker
	Messenger    Messenger
	Notifiers    []HandoffNotifier
	Logger       *zap.Logger
	Now          func() time.Time
}

// Machine is the intake state machine
type Machine struct {
	Deps
	logger *zap.Logger
}

// New creates a Machine. Availability defaults to planning.AllFree.
func New(deps Deps) *Machine {
	if deps.Availability == nil {
		deps.Availability = planning.AllFree{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Machine{Deps: deps, logger: logging.OrNop(deps.Logger)}
}

// session is the per-event view of a conversation
type session struct {
	event   models.InboundEvent
	contact attributes.Map
	conv    attributes.Map
	segment models.Segment
	lang    string
	logger  *zap.Logger
}

// Handle processes one deduplicated event
func (m *Machine) Handle(ctx context.Context, event models.InboundEvent) error {
	switch event.EventType {
	case models.EventConversationCreated:
		return m.conversationCreated(ctx, event)
	case models.EventPaymentSucceeded:
		return m.paymentSucceeded(ctx, event)
	case models.EventMessageCreated:
		if !event.FromUser() {
			m.logger.Debug("skipping outgoing message",
				zap.String("conversation_id", event.ConversationID),
				zap.String("sender_type", string(event.SenderType)))
			return nil
		}
		return m.message(ctx, event)
	}
	m.logger.Debug("ignoring event type", zap.String("event_type", string(event.EventType)))
	return nil
}

// load reads contact and conversation attributes concurrently
func (m *Machine) load(ctx context.Context, event models.InboundEvent) (*session, error) {
	s := &session{
		event:   event,
		contact: attributes.Map{},
		conv:    attributes.Map{},
		logger: m.logger.With(
			zap.String("conversation_id", event.ConversationID),
			zap.String("contact_id", event.ContactID),
			zap.String("correlation_id", event.CorrelationID)),
	}

	g, gctx := errgroup.WithContext(ctx)
	if event.ContactID != "" {
		g.Go(func() error {
			attrs, err := m.Store.GetContactAttributes(gctx, event.ContactID)
			if err != nil {
				return fmt.Errorf("get contact attributes: %w", err)
			}
			if attrs != nil {
				s.contact = attrs
			}
			return nil
		})
	}
	g.Go(func() error {
		attrs, err := m.Store.GetConversationAttributes(gctx, event.ConversationID)
		if err != nil {
			return fmt.Errorf("get conversation attributes: %w", err)
		}
		if attrs != nil {
			s.conv = attrs
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Machine) conversationCreated(ctx context.Context, event models.InboundEvent) error {
	s, err := m.load(ctx, event)
	if err != nil {
		return err
	}
	s.segment = m.segmentOf(ctx, s)
	s.lang = prefill.NormalizeLanguage(s.contact.String(models.AttrLanguage))

	m.setConv(ctx, s, attributes.Map{
		models.ConvLanguage:      s.lang,
		models.ConvSegment:       string(s.segment),
		models.ConvPendingIntent: Intent{}.String(),
	})
	s.logger.Info("conversation initialized", zap.String("segment", string(s.segment)))
	return nil
}

func (m *Machine) paymentSucceeded(ctx context.Context, event models.InboundEvent) error {
	if event.ContactID == "" {
		m.logger.Warn("payment event without contact", zap.String("correlation_id", event.CorrelationID))
		return nil
	}
	s, err := m.load(ctx, event)
	if err != nil {
		return err
	}

	now := m.Now().UTC().Format(time.RFC3339)
	update := attributes.Map{
		models.AttrHasPaidLesson:      true,
		models.AttrHasCompletedIntake: true,
		models.AttrLessonBooked:       true,
		models.AttrLastPaymentAt:      now,
	}
	if !s.contact.Has(models.AttrCustomerSince) {
		update[models.AttrCustomerSince] = now
	}
	m.setContact(ctx, s, update)
	s.logger.Info("payment recorded")

	if event.ConversationID != "" {
		s.lang = m.language(s)
		m.sendText(ctx, s, text(s.lang, "payment_received"))
	}
	return nil
}

func (m *Machine) message(ctx context.Context, event models.InboundEvent) error {
	s, err := m.load(ctx, event)
	if err != nil {
		return err
	}
	if s.conv.Bool(models.ConvBotDisabled) {
		s.logger.Debug("bot disabled for conversation")
		return nil
	}

	s.segment = m.segmentOf(ctx, s)
	s.lang = m.language(s)

	intent, err := ParseIntent(s.conv.String(models.ConvPendingIntent))
	if err != nil {
		s.logger.Warn("resetting undecodable intent", zap.Error(err))
		m.showMainMenu(ctx, s)
		return nil
	}
	s.logger.Debug("routing message", zap.String("pending_intent", intent.String()))

	switch intent.Kind {
	case KindNone:
		return m.onNoIntent(ctx, s)
	case KindPrefillConfirmation:
		return m.onPrefillConfirmation(ctx, s)
	case KindPartialCorrection:
		return m.onPartialCorrection(ctx, s)
	case KindFieldCorrection:
		return m.onFieldCorrection(ctx, s, intent.Field)
	case KindStepIntake:
		return m.onStepIntake(ctx, s, intent.Field)
	case KindActionMenu:
		return m.onActionMenu(ctx, s)
	case KindMainMenu:
		return m.onMainMenu(ctx, s)
	case KindInfoMenu:
		return m.onInfoMenu(ctx, s)
	case KindPlanning:
		return m.onPlanning(ctx, s, intent.Profile)
	case KindSlotSelection:
		return m.onSlotSelection(ctx, s, intent.Profile)
	case KindHandoff:
		// an agent re-enabled the bot
		m.showMainMenu(ctx, s)
	}
	return nil
}

func (m *Machine) segmentOf(ctx context.Context, s *session) models.Segment {
	if s.event.ContactID == "" || m.Segments == nil {
		if seg, ok := models.ParseSegment(s.conv.String(models.ConvSegment)); ok {
			return seg
		}
		return models.SegmentNew
	}
	return m.Segments.DetectFrom(ctx, s.event.ContactID, s.contact)
}

// language prefers the conversation, then the contact, then the message text
func (m *Machine) language(s *session) string {
	if l := s.conv.String(models.ConvLanguage); l != "" {
		return prefill.NormalizeLanguage(l)
	}
	if l := s.contact.String(models.AttrLanguage); l != "" {
		return prefill.NormalizeLanguage(l)
	}
	return prefill.DetectLanguage(s.event.Content)
}

func (m *Machine) onNoIntent(ctx context.Context, s *session) error {
	if s.event.Selection != "" {
		if _, ok := mainMenu(s.segment, s.lang).Match(s.event.Selection); ok {
			return m.onMainMenu(ctx, s)
		}
	}

	msg := strings.TrimSpace(s.event.Content)
	if s.conv.Bool(models.ConvPrefillDone) || len([]rune(msg)) < minPrefillLength {
		m.showMainMenu(ctx, s)
		return nil
	}
	return m.prefill(ctx, s, msg)
}

// prefill runs extraction on a first message and offers the confirmation
// shortcut when the record is sufficient
func (m *Machine) prefill(ctx context.Context, s *session, msg string) error {
	if !s.contact.Has(models.AttrLanguage) {
		s.lang = prefill.DetectLanguage(msg)
		m.setContact(ctx, s, attributes.Map{models.AttrLanguage: s.lang})
	}

	var rec models.IntakeRecord
	if m.Extractor != nil {
		rec = m.Extractor.Extract(ctx, msg, s.lang)
	}
	s.logger.Info("prefill extracted",
		zap.Bool("sufficient", rec.IsSufficientForTrialLesson()),
		zap.Float64("confidence", rec.Confidence))

	update := attributes.Map{
		models.ConvPrefillDone: true,
		models.ConvLanguage:    s.lang,
	}
	if rec.PreferredTimes != nil {
		update[models.ConvPreferredTimes] = *rec.PreferredTimes
	}
	m.setConv(ctx, s, update)

	if !rec.IsSufficientForTrialLesson() {
		m.startStepIntake(ctx, s, rec)
		return nil
	}
	m.showConfirmation(ctx, s, rec)
	return nil
}

func (m *Machine) showConfirmation(ctx context.Context, s *session, rec models.IntakeRecord) {
	m.setConv(ctx, s, attributes.Map{
		models.ConvIntakeFields:  encodeRecord(rec),
		models.ConvPendingIntent: Intent{Kind: KindPrefillConfirmation}.String(),
	})
	m.sendText(ctx, s, summary(rec, s.lang))
	m.sendMenu(ctx, s, confirmationMenu(s.lang))
}

func (m *Machine) onPrefillConfirmation(ctx context.Context, s *session) error {
	rec := m.record(s)
	menu := confirmationMenu(s.lang)
	opt, ok := menu.Match(s.event.Input())
	if !ok {
		m.sendText(ctx, s, summary(rec, s.lang))
		m.sendMenu(ctx, s, menu)
		return nil
	}

	switch opt.Tag {
	case TagConfirmAll:
		m.confirm(ctx, s, rec)
	case TagCorrectAll:
		m.setConv(ctx, s, attributes.Map{models.ConvIntakeCorrections: []string{}})
		m.startStepIntake(ctx, s, models.IntakeRecord{})
	case TagCorrectPartial:
		m.setConv(ctx, s, attributes.Map{models.ConvPendingIntent: Intent{Kind: KindPartialCorrection}.String()})
		m.sendMenu(ctx, s, correctionMenu(s.lang))
	}
	return nil
}

func (m *Machine) onPartialCorrection(ctx context.Context, s *session) error {
	menu := correctionMenu(s.lang)
	opt, ok := menu.Match(s.event.Input())
	if !ok {
		m.sendText(ctx, s, summary(m.record(s), s.lang))
		m.sendMenu(ctx, s, menu)
		return nil
	}

	if opt.Tag == TagLooksRight {
		m.confirm(ctx, s, m.record(s))
		return nil
	}

	field, _ := models.ParseField(opt.Tag)
	m.setConv(ctx, s, attributes.Map{
		models.ConvPendingIntent: Intent{Kind: KindFieldCorrection, Field: field}.String(),
	})
	m.askField(ctx, s, field)
	return nil
}

func (m *Machine) onFieldCorrection(ctx context.Context, s *session, field models.Field) error {
	rec := m.record(s)
	if err := prefill.ApplyField(&rec, field, s.event.Input()); err != nil {
		m.sendText(ctx, s, text(s.lang, "invalid_value"))
		m.askField(ctx, s, field)
		return nil
	}

	corrections := appendUnique(s.conv.Strings(models.ConvIntakeCorrections), string(field))
	m.setConv(ctx, s, attributes.Map{
		models.ConvIntakeFields:      encodeRecord(rec),
		models.ConvIntakeCorrections: corrections,
		models.ConvPendingIntent:     Intent{Kind: KindPartialCorrection}.String(),
	})
	s.logger.Info("intake field corrected", zap.String("field", string(field)))
	m.sendText(ctx, s, summary(rec, s.lang))
	m.sendMenu(ctx, s, correctionMenu(s.lang))
	return nil
}

// startStepIntake asks for whatever the seed record is missing, one field
// per message
func (m *Machine) startStepIntake(ctx context.Context, s *session, seed models.IntakeRecord) {
	step, ok := nextStep(seed)
	if !ok {
		m.showConfirmation(ctx, s, seed)
		return
	}
	m.setConv(ctx, s, attributes.Map{
		models.ConvIntakeFields:  encodeRecord(seed),
		models.ConvPendingIntent: Intent{Kind: KindStepIntake, Field: step}.String(),
	})
	m.sendText(ctx, s, text(s.lang, "intake_intro"))
	m.askField(ctx, s, step)
}

func (m *Machine) onStepIntake(ctx context.Context, s *session, step models.Field) error {
	rec := m.record(s)
	if err := prefill.ApplyField(&rec, step, s.event.Input()); err != nil {
		m.sendText(ctx, s, text(s.lang, "invalid_value"))
		m.askField(ctx, s, step)
		return nil
	}
	// the raw subject answer doubles as the topic during intake
	if step == models.FieldSubject && rec.Topic == nil {
		rec.Topic = models.StringPtr(strings.TrimSpace(s.event.Input()))
	}

	next, ok := nextStep(rec)
	if !ok {
		m.showConfirmation(ctx, s, rec)
		return nil
	}
	m.setConv(ctx, s, attributes.Map{
		models.ConvIntakeFields:  encodeRecord(rec),
		models.ConvPendingIntent: Intent{Kind: KindStepIntake, Field: next}.String(),
	})
	m.askField(ctx, s, next)
	return nil
}

func (m *Machine) askField(ctx context.Context, s *session, field models.Field) {
	if field == models.FieldLessonMode {
		m.sendMenu(ctx, s, lessonModeMenu(s.lang))
		return
	}
	m.sendText(ctx, s, question(field, s.lang))
}

// confirm merges the record into the contact and moves on to the action menu
func (m *Machine) confirm(ctx context.Context, s *session, rec models.IntakeRecord) {
	update := attributes.Map(rec.ContactAttributes())
	update[models.AttrHasCompletedIntake] = true
	update[models.AttrLanguage] = s.lang
	if !s.contact.Has(models.AttrCustomerSince) {
		update[models.AttrCustomerSince] = m.Now().UTC().Format(time.RFC3339)
	}
	m.setContact(ctx, s, update)

	m.setConv(ctx, s, attributes.Map{
		models.ConvIntakeFields:      encodeRecord(rec),
		models.ConvIntakeCorrections: []string{},
		models.ConvPendingIntent:     Intent{Kind: KindActionMenu}.String(),
	})
	s.logger.Info("intake confirmed", zap.String("segment", string(s.segment)))
	m.sendMenu(ctx, s, actionMenu(s.segment, s.lang))
}

func (m *Machine) onActionMenu(ctx context.Context, s *session) error {
	menu := actionMenu(s.segment, s.lang)
	opt, ok := menu.Match(s.event.Input())
	if !ok {
		m.sendMenu(ctx, s, menu)
		return nil
	}

	switch opt.Tag {
	case TagPlanTrialLesson:
		return m.startPlanning(ctx, s, s.segment.ProfileName(), LessonTrial)
	case TagPlanAllLessons:
		return m.startPlanning(ctx, s, s.segment.ProfileName(), LessonRegular)
	case TagUrgentSession:
		return m.startPlanning(ctx, s, models.ProfilePremium, LessonUrgent)
	case TagMainMenu:
		m.showMainMenu(ctx, s)
	case TagHandoff:
		m.handoff(ctx, s, "requested from action menu")
	}
	return nil
}

func (m *Machine) showMainMenu(ctx context.Context, s *session) {
	m.setConv(ctx, s, attributes.Map{models.ConvPendingIntent: Intent{Kind: KindMainMenu}.String()})
	m.sendMenu(ctx, s, mainMenu(s.segment, s.lang))
}

func (m *Machine) onMainMenu(ctx context.Context, s *session) error {
	menu := mainMenu(s.segment, s.lang)
	opt, ok := menu.Match(s.event.Input())
	if !ok {
		m.sendMenu(ctx, s, menu)
		return nil
	}

	switch opt.Tag {
	case TagPlanLesson:
		return m.planLesson(ctx, s)
	case TagSamePreferences, TagOldPreferences:
		if prefs := s.contact.String(models.AttrPreferredTimes); prefs != "" {
			m.setConv(ctx, s, attributes.Map{models.ConvPreferredTimes: prefs})
		}
		return m.startPlanning(ctx, s, s.segment.ProfileName(), LessonRegular)
	case TagInfo:
		m.showInfoMenu(ctx, s)
	case TagHandoff:
		m.handoff(ctx, s, "requested from main menu")
	}
	return nil
}

// planLesson sends new contacts through intake first
func (m *Machine) planLesson(ctx context.Context, s *session) error {
	if s.segment == models.SegmentNew && !s.contact.Bool(models.AttrHasCompletedIntake) {
		m.startStepIntake(ctx, s, m.record(s))
		return nil
	}
	return m.startPlanning(ctx, s, s.segment.ProfileName(), LessonRegular)
}

func (m *Machine) showInfoMenu(ctx context.Context, s *session) {
	m.setConv(ctx, s, attributes.Map{models.ConvPendingIntent: Intent{Kind: KindInfoMenu}.String()})
	m.sendMenu(ctx, s, infoMenu(s.lang))
}

// onInfoMenu answers an info topic and keeps the menu open until the user
// moves on
func (m *Machine) onInfoMenu(ctx context.Context, s *session) error {
	menu := infoMenu(s.lang)
	opt, ok := menu.Match(s.event.Input())
	if !ok {
		m.sendMenu(ctx, s, menu)
		return nil
	}

	switch opt.Tag {
	case TagTariffs:
		level, adult := m.studentProfile(s)
		m.sendText(ctx, s, text(s.lang, tariffsKey(level, adult)))
	case TagWorkMethod:
		m.sendText(ctx, s, text(s.lang, "info_work_method"))
	case TagServices:
		m.sendText(ctx, s, text(s.lang, "info_services"))
	case TagWorkshops:
		m.sendText(ctx, s, text(s.lang, "info_workshops"))
	case TagPlanLesson:
		return m.planLesson(ctx, s)
	case TagHandoff:
		m.handoff(ctx, s, "requested from info menu")
		return nil
	case TagMainMenu:
		m.showMainMenu(ctx, s)
		return nil
	}
	m.sendMenu(ctx, s, menu)
	return nil
}

// studentProfile returns the school level and adult flag, preferring
// confirmed contact attributes over an unconfirmed intake record
func (m *Machine) studentProfile(s *session) (string, bool) {
	rec := m.record(s)
	level := s.contact.String(models.AttrSchoolLevel)
	if level == "" {
		level = rec.Value(models.FieldSchoolLevel)
	}
	adult := s.contact.Bool(models.AttrAgeOver18)
	if !s.contact.Has(models.AttrAgeOver18) && rec.AgeOver18 != nil {
		adult = *rec.AgeOver18
	}
	return level, adult
}

// startPlanning offers slots straight away when preferences are already
// known, otherwise asks for them
func (m *Machine) startPlanning(ctx context.Context, s *session, profile, lessonType string) error {
	m.setConv(ctx, s, attributes.Map{models.ConvLessonType: lessonType})

	if prefs := s.conv.String(models.ConvPreferredTimes); prefs != "" {
		return m.offerSlots(ctx, s, profile, prefs)
	}
	m.askPreferences(ctx, s, profile)
	return nil
}

func (m *Machine) askPreferences(ctx context.Context, s *session, profile string) {
	m.setConv(ctx, s, attributes.Map{models.ConvPendingIntent: Intent{Kind: KindPlanning, Profile: profile}.String()})
	m.sendText(ctx, s, text(s.lang, "ask_preferences"))
}

func (m *Machine) onPlanning(ctx context.Context, s *session, profile string) error {
	prefs := strings.TrimSpace(s.event.Content)
	if planning.ParsePreferences(prefs).IsEmpty() {
		prefs = ""
	}
	m.setConv(ctx, s, attributes.Map{models.ConvPreferredTimes: prefs})
	if prefs != "" {
		m.setContact(ctx, s, attributes.Map{models.AttrPreferredTimes: prefs})
	}
	return m.offerSlots(ctx, s, profile, prefs)
}

func (m *Machine) profile(name string, seg models.Segment) models.PlanningProfile {
	if p, ok := m.Profiles.Get(name); ok {
		return p
	}
	return m.Profiles.ForSegment(seg)
}

// offerSlots generates candidates, filters them by availability and presents
// them. A failed availability check is returned to the caller.
func (m *Machine) offerSlots(ctx context.Context, s *session, profileName, prefs string) error {
	profile := m.profile(profileName, s.segment)
	candidates := m.Generator.Generate(profile, prefs, m.Now())

	free, err := m.Availability.FreeSlots(ctx, candidates)
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}
	s.logger.Info("slots generated",
		zap.String("profile", profile.Name),
		zap.Int("candidates", len(candidates)),
		zap.Int("free", len(free)))

	if len(free) == 0 {
		if prefs != "" {
			m.askPreferencesAgain(ctx, s, profileName)
			return nil
		}
		m.sendText(ctx, s, text(s.lang, "no_slots"))
		m.handoff(ctx, s, "no free slots")
		return nil
	}

	data, err := json.Marshal(free)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	m.setConv(ctx, s, attributes.Map{
		models.ConvSuggestedSlots: string(data),
		models.ConvPendingIntent:  Intent{Kind: KindSlotSelection, Profile: profileName}.String(),
	})
	m.sendMenu(ctx, s, slotMenu(free, s.lang))
	return nil
}

func (m *Machine) askPreferencesAgain(ctx context.Context, s *session, profile string) {
	m.setConv(ctx, s, attributes.Map{models.ConvPendingIntent: Intent{Kind: KindPlanning, Profile: profile}.String()})
	m.sendText(ctx, s, text(s.lang, "no_slots_for_preferences"))
}

func (m *Machine) onSlotSelection(ctx context.Context, s *session, profile string) error {
	slots := suggestedSlots(s.conv)
	menu := slotMenu(slots, s.lang)
	opt, ok := menu.Match(s.event.Input())
	if !ok {
		m.sendMenu(ctx, s, menu)
		return nil
	}

	switch opt.Tag {
	case TagOtherTimes:
		m.setConv(ctx, s, attributes.Map{models.ConvPreferredTimes: ""})
		m.askPreferences(ctx, s, profile)
		return nil
	case TagHandoff:
		m.handoff(ctx, s, "requested from slot selection")
		return nil
	}

	for _, slot := range slots {
		if slot.Tag() == opt.Tag {
			return m.book(ctx, s, profile, slot)
		}
	}
	return nil
}

func (m *Machine) book(ctx context.Context, s *session, profile string, slot models.SlotCandidate) error {
	if m.Booker == nil {
		m.handoff(ctx, s, "booking not configured")
		return nil
	}

	rec := m.record(s)
	lessonType := s.conv.String(models.ConvLessonType)
	req := models.BookingRequest{
		ConversationID: s.event.ConversationID,
		ContactID:      s.event.ContactID,
		Profile:        profile,
		LessonType:     lessonType,
		Slot:           slot,
		StudentName:    rec.Value(models.FieldStudentName),
		Subject:        rec.Value(models.FieldSubject),
		SchoolLevel:    rec.Value(models.FieldSchoolLevel),
		CreatedAt:      m.Now().UTC().Format(time.RFC3339),
	}
	executionArn, err := m.Booker.StartBooking(ctx, req)
	if err != nil {
		m.sendText(ctx, s, text(s.lang, "booking_failed"))
		m.sendMenu(ctx, s, slotMenu(suggestedSlots(s.conv), s.lang))
		return fmt.Errorf("start booking: %w", err)
	}

	m.setConv(ctx, s, attributes.Map{
		models.ConvBookingExecution: executionArn,
		models.ConvPendingIntent:    Intent{}.String(),
	})
	s.logger.Info("booking started", zap.String("execution_arn", executionArn), zap.Time("start", slot.Start))
	m.sendText(ctx, s, text(s.lang, "booking_started", formatSlot(slot, s.lang)))
	m.requestPayment(ctx, s, profile, lessonType)
	return nil
}

// requestPayment sends a checkout link for paid lessons. Trial lessons and
// profiles without a price are settled outside the bot.
func (m *Machine) requestPayment(ctx context.Context, s *session, profileName, lessonType string) {
	if m.Payments == nil || lessonType == LessonTrial {
		return
	}
	profile := m.profile(profileName, s.segment)
	if profile.PriceCents <= 0 {
		return
	}

	req := models.PaymentRequest{
		OrderID:        models.NewOrderID(),
		ConversationID: s.event.ConversationID,
		ContactID:      s.event.ContactID,
		AmountCents:    profile.PriceCents,
		Description:    text(s.lang, "payment_description", profile.DurationMinutes),
	}
	link, err := m.Payments.CreatePaymentLink(ctx, req)
	if err != nil {
		s.logger.Warn("create payment link", zap.Error(err))
		m.sendText(ctx, s, text(s.lang, "payment_link_failed"))
		return
	}

	m.setConv(ctx, s, attributes.Map{
		models.ConvPaymentOrder: req.OrderID,
		models.ConvPaymentLink:  link,
	})
	s.logger.Info("payment link sent", zap.String("order_id", req.OrderID))
	m.sendText(ctx, s, text(s.lang, "payment_request", formatAmount(req.AmountCents, s.lang), link))
}

// handoff passes the conversation to a human and silences the bot
func (m *Machine) handoff(ctx context.Context, s *session, reason string) {
	m.setConv(ctx, s, attributes.Map{
		models.ConvPendingIntent: Intent{Kind: KindHandoff}.String(),
		models.ConvBotDisabled:   true,
	})
	m.sendText(ctx, s, text(s.lang, "handoff_text"))

	req := HandoffRequest{
		ConversationID: s.event.ConversationID,
		ContactID:      s.event.ContactID,
		Segment:        s.segment,
		Reason:         reason,
	}
	if rec := m.record(s); !rec.IsEmpty() {
		req.Summary = summary(rec, s.lang)
	}
	for _, n := range m.Notifiers {
		if err := n.NotifyHandoff(ctx, req); err != nil {
			s.logger.Warn("handoff notification failed", zap.Error(err))
		}
	}
	s.logger.Info("conversation handed off", zap.String("reason", reason))
}

// record decodes intake_fields; a missing or corrupt value is an empty record
func (m *Machine) record(s *session) models.IntakeRecord {
	var rec models.IntakeRecord
	raw := s.conv.String(models.ConvIntakeFields)
	if raw == "" {
		return rec
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("discarding corrupt intake fields", zap.Error(err))
		return models.IntakeRecord{}
	}
	return rec
}

func encodeRecord(rec models.IntakeRecord) string {
	data, _ := json.Marshal(rec)
	return string(data)
}

func suggestedSlots(conv attributes.Map) []models.SlotCandidate {
	var slots []models.SlotCandidate
	if raw := conv.String(models.ConvSuggestedSlots); raw != "" {
		_ = json.Unmarshal([]byte(raw), &slots)
	}
	return slots
}

// setConv writes conversation attributes best-effort and mirrors them into
// the session so later steps of the same event see them
func (m *Machine) setConv(ctx context.Context, s *session, attrs attributes.Map) {
	for k, v := range attrs {
		s.conv[k] = v
	}
	if err := m.Store.SetConversationAttributes(ctx, s.event.ConversationID, attrs); err != nil {
		s.logger.Warn("write conversation attributes", zap.Error(err))
	}
}

func (m *Machine) setContact(ctx context.Context, s *session, attrs attributes.Map) {
	for k, v := range attrs {
		s.contact[k] = v
	}
	if s.event.ContactID == "" {
		s.logger.Debug("no contact to write attributes to")
		return
	}
	if err := m.Store.SetContactAttributes(ctx, s.event.ContactID, attrs); err != nil {
		s.logger.Warn("write contact attributes", zap.Error(err))
	}
}

func (m *Machine) sendText(ctx context.Context, s *session, msg string) {
	if m.Messenger == nil {
		return
	}
	if err := m.Messenger.SendText(ctx, s.event.ConversationID, msg); err != nil {
		s.logger.Warn("send text", zap.Error(err))
	}
}

func (m *Machine) sendMenu(ctx context.Context, s *session, menu Menu) {
	if m.Messenger == nil {
		return
	}
	if err := m.Messenger.SendMenu(ctx, s.event.ConversationID, menu); err != nil {
		s.logger.Warn("send menu", zap.String("menu", menu.ID), zap.Error(err))
	}
}

func appendUnique(list []string, v string) []string {
	for _, item := range list {
		if item == v {
			return list
		}
	}
	return append(list, v)
}
