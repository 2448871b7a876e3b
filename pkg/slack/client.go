package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/savaki/tutorbot/pkg/intake"
	"github.com/savaki/tutorbot/pkg/logging"
	"github.com/savaki/tutorbot/pkg/models"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// transcriptLimit is how many recent messages accompany a handoff alert
const transcriptLimit = 10

// API is the subset of the Slack SDK used here
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ API = (*slack.Client)(nil)

// Transcripts returns the latest inbound messages of a conversation
type Transcripts interface {
	Recent(ctx context.Context, conversationID string, limit int) ([]models.TranscriptEntry, error)
}

// Notifier alerts the staff channel when a conversation needs a human
type Notifier struct {
	client      API
	channelID   string
	inboxURL    string
	transcripts Transcripts
	logger      *zap.Logger
}

var _ intake.HandoffNotifier = (*Notifier)(nil)

// NewClient creates a Notifier with a bot token. inboxURL, when set, links
// each alert to the conversation in the support inbox.
func NewClient(botToken, channelID, inboxURL string, transcripts Transcripts, logger *zap.Logger) *Notifier {
	return NewWithAPI(slack.New(botToken), channelID, inboxURL, transcripts, logger)
}

// NewWithAPI creates a Notifier on top of an existing API
func NewWithAPI(api API, channelID, inboxURL string, transcripts Transcripts, logger *zap.Logger) *Notifier {
	return &Notifier{
		client:      api,
		channelID:   channelID,
		inboxURL:    strings.TrimRight(inboxURL, "/"),
		transcripts: transcripts,
		logger:      logging.OrNop(logger),
	}
}

// PostMessage posts a message to the staff channel
func (n *Notifier) PostMessage(ctx context.Context, opts ...slack.MsgOption) (string, error) {
	_, timestamp, err := n.client.PostMessageContext(ctx, n.channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}

	return timestamp, nil
}

// NotifyHandoff posts the handoff with the recent transcript. A transcript
// that cannot be read is left out rather than failing the alert.
func (n *Notifier) NotifyHandoff(ctx context.Context, req intake.HandoffRequest) error {
	var entries []models.TranscriptEntry
	if n.transcripts != nil {
		var err error
		entries, err = n.transcripts.Recent(ctx, req.ConversationID, transcriptLimit)
		if err != nil {
			n.logger.Warn("transcript unavailable for handoff",
				zap.String("conversation_id", req.ConversationID),
				zap.Error(err))
		}
	}

	headline := fmt.Sprintf("Handoff requested for conversation %s (%s)", req.ConversationID, req.Segment)
	_, err := n.PostMessage(ctx,
		slack.MsgOptionText(headline, false),
		slack.MsgOptionBlocks(n.blocks(headline, req, entries)...),
	)
	return err
}

func (n *Notifier) blocks(headline string, req intake.HandoffRequest, entries []models.TranscriptEntry) []slack.Block {
	title := "*" + headline + "*"
	if n.inboxURL != "" {
		title += fmt.Sprintf("\n<%s/conversations/%s|Open in inbox>", n.inboxURL, req.ConversationID)
	}

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Contact:*\n"+req.ContactID, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Reason:*\n"+req.Reason, false, false),
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, title, false, false), fields, nil),
	}
	if req.Summary != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*Intake:*\n"+req.Summary, false, false), nil, nil))
	}
	if len(entries) > 0 {
		var sb strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&sb, "> %s  _%s_\n", e.Content, e.ReceivedAt.Format("15:04"))
		}
		blocks = append(blocks,
			slack.NewDividerBlock(),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, sb.String(), false, false), nil, nil))
	}
	return blocks
}
