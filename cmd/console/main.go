// Command console runs the intake dialog locally against in-memory state so
// flows, prompts and slot generation can be tried without Chatwoot.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/savaki/tutorbot/pkg/attributes"
	"github.com/savaki/tutorbot/pkg/bedrock"
	"github.com/savaki/tutorbot/pkg/gemini"
	"github.com/savaki/tutorbot/pkg/intake"
	"github.com/savaki/tutorbot/pkg/logging"
	"github.com/savaki/tutorbot/pkg/models"
	"github.com/savaki/tutorbot/pkg/planning"
	"github.com/savaki/tutorbot/pkg/prefill"
	"github.com/savaki/tutorbot/pkg/segment"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	consoleConversation = "console"
	consoleContact      = "console-contact"
)

var (
	llmProvider  string
	profilesFile string
	timezone     string
	logLevel     string
	seedSegment  string
	language     string
	profileName  string
	preferences  string
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the tutoring intake bot locally",
	RunE:  runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the intake dialog on stdin/stdout",
	RunE:  runChat,
}

var extractCmd = &cobra.Command{
	Use:   "extract [message]",
	Short: "Print the intake record extracted from a first message",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtract,
}

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Print slot candidates for a planning profile",
	RunE:  runSlots,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&llmProvider, "llm", "none", "text understanding backend: none, bedrock or gemini")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles", "", "planning profiles YAML (default: built-in)")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", planning.DefaultTimezone, "timezone for slot generation")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().StringVar(&language, "lang", "", "language hint (nl or en)")

	chatCmd.Flags().StringVar(&seedSegment, "segment", "", "seed the contact as new, existing, weekend or returning_broadcast")
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())

	slotsCmd.Flags().StringVar(&profileName, "profile", "new", "planning profile")
	slotsCmd.Flags().StringVar(&preferences, "prefs", "", "free-text time preferences")

	rootCmd.AddCommand(chatCmd, extractCmd, slotsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	logger, err := logging.New(logLevel, "local")
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newUnderstanding(ctx context.Context) (prefill.TextUnderstanding, error) {
	switch llmProvider {
	case "bedrock":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := bedrock.NewClient(awsCfg)
		client.SetModel(os.Getenv("BEDROCK_MODEL_ID"))
		return client, nil
	case "gemini":
		return gemini.NewClient(ctx, os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_MODEL"))
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", llmProvider)
}

func loadProfiles() (*planning.Profiles, error) {
	if profilesFile != "" {
		return planning.LoadProfiles(profilesFile)
	}
	return planning.DefaultProfiles()
}

// seedAttributes marks the console contact so the classifier lands on seg
func seedAttributes(seg models.Segment) attributes.Map {
	switch seg {
	case models.SegmentWeekend:
		return attributes.Map{models.AttrWeekendWhitelisted: true}
	case models.SegmentReturningBroadcast:
		return attributes.Map{models.AttrReturningBroadcast: true}
	case models.SegmentExisting:
		return attributes.Map{models.AttrHasPaidLesson: true}
	}
	return attributes.Map{}
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	understanding, err := newUnderstanding(ctx)
	if err != nil {
		return err
	}
	profiles, err := loadProfiles()
	if err != nil {
		return err
	}
	generator, err := planning.NewGenerator(timezone)
	if err != nil {
		return err
	}

	store := attributes.NewMemoryStore()
	contact := seedAttributes(models.Segment(seedSegment))
	if language != "" {
		contact[models.AttrLanguage] = language
	}
	if err := store.SetContactAttributes(ctx, consoleContact, contact); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	console := &consoleIO{out: out}
	machine := intake.New(intake.Deps{
		Store:     store,
		Segments:  segment.NewClassifier(store, logger),
		Extractor: prefill.NewExtractor(understanding, 15*time.Second, logger),
		Profiles:  profiles,
		Generator: generator,
		Booker:    console,
		Payments:  console,
		Messenger: console,
		Notifiers: []intake.HandoffNotifier{console},
		Logger:    logger,
	})

	created := models.NewInboundEvent(models.EventConversationCreated, consoleConversation, consoleContact, "")
	if err := machine.Handle(ctx, created); err != nil {
		return err
	}

	fmt.Fprintln(out, "Type a message, a menu number or tag. Ctrl-D quits.")
	return chatLoop(ctx, machine, console, cmd.InOrStdin())
}

func chatLoop(ctx context.Context, machine *intake.Machine, console *consoleIO, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for seq := 1; ; seq++ {
		fmt.Fprint(console.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(console.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		event := models.NewInboundEvent(models.EventMessageCreated, consoleConversation, consoleContact, strconv.Itoa(seq))
		event.Content = line
		event.Selection = console.selection(line)
		if err := machine.Handle(ctx, event); err != nil {
			fmt.Fprintf(console.out, "! %v\n", err)
		}
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	understanding, err := newUnderstanding(ctx)
	if err != nil {
		return err
	}
	if understanding == nil {
		return fmt.Errorf("extract needs --llm bedrock or --llm gemini")
	}

	text := strings.Join(args, " ")
	lang := language
	if lang == "" {
		lang = prefill.DetectLanguage(text)
	}

	rec := prefill.NewExtractor(understanding, 30*time.Second, newLogger()).Extract(ctx, text, lang)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sufficient for trial lesson: %t\n", rec.IsSufficientForTrialLesson())
	return nil
}

func runSlots(cmd *cobra.Command, _ []string) error {
	profiles, err := loadProfiles()
	if err != nil {
		return err
	}
	profile, ok := profiles.Get(profileName)
	if !ok {
		return fmt.Errorf("unknown profile %q", profileName)
	}
	generator, err := planning.NewGenerator(timezone)
	if err != nil {
		return err
	}

	for _, slot := range generator.Generate(profile, preferences, time.Now()) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s - %s\n", slot.Tag(),
			slot.Start.In(generator.Location()).Format("Mon 02-01 15:04"),
			slot.End.In(generator.Location()).Format("15:04"))
	}
	return nil
}

// consoleIO plays messenger, booker, payment provider and handoff notifier on stdout. It
// remembers the last menu so a typed number selects that option.
type consoleIO struct {
	mu       sync.Mutex
	out      io.Writer
	lastMenu intake.Menu
	bookings int
}

var (
	_ intake.Messenger       = (*consoleIO)(nil)
	_ intake.Booker          = (*consoleIO)(nil)
	_ intake.PaymentLinker   = (*consoleIO)(nil)
	_ intake.HandoffNotifier = (*consoleIO)(nil)
)

func (c *consoleIO) SendText(_ context.Context, _ string, text string) error {
	fmt.Fprintf(c.out, "bot: %s\n", text)
	return nil
}

func (c *consoleIO) SendMenu(_ context.Context, _ string, menu intake.Menu) error {
	c.mu.Lock()
	c.lastMenu = menu
	c.mu.Unlock()

	fmt.Fprintf(c.out, "bot: %s\n", menu.Text)
	for i, opt := range menu.Options {
		fmt.Fprintf(c.out, "  %d. %s [%s]\n", i+1, opt.Label, opt.Tag)
	}
	return nil
}

func (c *consoleIO) StartBooking(_ context.Context, req models.BookingRequest) (string, error) {
	c.mu.Lock()
	c.bookings++
	n := c.bookings
	c.mu.Unlock()

	fmt.Fprintf(c.out, "[booking] %s %s for %s\n", req.Profile, req.Slot.Tag(), req.StudentName)
	return fmt.Sprintf("console:booking:%d", n), nil
}

func (c *consoleIO) CreatePaymentLink(_ context.Context, req models.PaymentRequest) (string, error) {
	fmt.Fprintf(c.out, "[payment] %s %d cents for contact %s\n", req.OrderID, req.AmountCents, req.ContactID)
	return "https://pay.invalid/" + req.OrderID, nil
}

func (c *consoleIO) NotifyHandoff(_ context.Context, req intake.HandoffRequest) error {
	fmt.Fprintf(c.out, "[handoff] %s (%s)\n", req.Reason, req.Segment)
	return nil
}

// selection maps a typed option number or tag of the last menu to its tag
func (c *consoleIO) selection(input string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(c.lastMenu.Options) {
		return c.lastMenu.Options[n-1].Tag
	}
	if opt, ok := c.lastMenu.Match(input); ok {
		return opt.Tag
	}
	return ""
}
