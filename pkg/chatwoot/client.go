// Package chatwoot talks to the Chatwoot REST API: outbound WhatsApp messages,
// interactive menus and conversation assignment.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/savaki/tutorbot/pkg/intake"
	"github.com/savaki/tutorbot/pkg/logging"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failed response ends up in an error
const maxErrorBody = 512

// HTTPStatusError captures non-2xx responses from Chatwoot
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("chatwoot: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client is a focused Chatwoot application API client for one account
type Client struct {
	baseURL    string
	accountID  string
	apiToken   string
	agentID    int
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ intake.Messenger       = (*Client)(nil)
	_ intake.HandoffNotifier = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHandoffAgent assigns handed-off conversations to agentID
func WithHandoffAgent(agentID int) Option {
	return func(c *Client) {
		c.agentID = agentID
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the account at baseURL
func NewClient(baseURL, accountID, apiToken string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chatwoot: base URL must not be empty")
	}
	if accountID == "" || apiToken == "" {
		return nil, errors.New("chatwoot: account ID and API token are required")
	}

	c := &Client{
		baseURL:    baseURL,
		accountID:  accountID,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)
	return c, nil
}

type selectItem struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type messageRequest struct {
	Content           string         `json:"content"`
	MessageType       string         `json:"message_type"`
	Private           bool           `json:"private"`
	ContentType       string         `json:"content_type,omitempty"`
	ContentAttributes map[string]any `json:"content_attributes,omitempty"`
}

// SendText posts an outgoing text message
func (c *Client) SendText(ctx context.Context, conversationID, text string) error {
	return c.postMessage(ctx, conversationID, messageRequest{
		Content:     text,
		MessageType: "outgoing",
	})
}

// SendMenu posts the menu as an input_select message. Each option's tag is
// its value, so the user's choice returns as the tag.
func (c *Client) SendMenu(ctx context.Context, conversationID string, menu intake.Menu) error {
	items := make([]selectItem, 0, len(menu.Options))
	for _, opt := range menu.Options {
		items = append(items, selectItem{Title: opt.Label, Value: opt.Tag})
	}
	return c.postMessage(ctx, conversationID, messageRequest{
		Content:           menu.Text,
		MessageType:       "outgoing",
		ContentType:       "input_select",
		ContentAttributes: map[string]any{"items": items},
	})
}

// NotifyHandoff assigns the conversation to the handoff agent, reopens it for
// humans and leaves the intake summary as a private note
func (c *Client) NotifyHandoff(ctx context.Context, req intake.HandoffRequest) error {
	var errs []error
	if c.agentID != 0 {
		if err := c.post(ctx, c.conversationURL(req.ConversationID, "assignments"), map[string]any{"assignee_id": c.agentID}); err != nil {
			errs = append(errs, fmt.Errorf("assign conversation: %w", err))
		}
	}
	if err := c.post(ctx, c.conversationURL(req.ConversationID, "toggle_status"), map[string]string{"status": "open"}); err != nil {
		errs = append(errs, fmt.Errorf("open conversation: %w", err))
	}

	note := fmt.Sprintf("Handoff (%s, %s)", req.Reason, req.Segment)
	if req.Summary != "" {
		note += "\n" + req.Summary
	}
	if err := c.postMessage(ctx, req.ConversationID, messageRequest{Content: note, MessageType: "outgoing", Private: true}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Client) conversationURL(conversationID, action string) string {
	return fmt.Sprintf("%s/api/v1/accounts/%s/conversations/%s/%s", c.baseURL, c.accountID, conversationID, action)
}

func (c *Client) postMessage(ctx context.Context, conversationID string, msg messageRequest) error {
	if err := c.post(ctx, c.conversationURL(conversationID, "messages"), msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("chatwoot: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chatwoot: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_access_token", c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatwoot: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPStatusError{StatusCode: resp.StatusCode, URL: url, Body: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("chatwoot request ok", zap.String("url", url), zap.Int("status", resp.StatusCode))
	return nil
}
