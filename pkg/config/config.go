package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/savaki/tutorbot/pkg/paramstore"
)

// Text understanding backends
const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderNone    = "none"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	// AWS
	AWSRegion string `validate:"required"`

	// Chatwoot
	ChatwootBaseURL       string `validate:"required,url"`
	ChatwootAccountID     string `validate:"required"`
	ChatwootAPIToken      string `validate:"required"`
	ChatwootWebhookSecret string `validate:"required"`
	HandoffAgentID        int    `validate:"min=0"`

	// Stripe; the payment route is disabled without a webhook secret and
	// payment links without a secret key
	StripeWebhookSecret string
	StripeSecretKey     string
	PaymentSuccessURL   string `validate:"required_with=StripeSecretKey"`
	PaymentCancelURL    string
	PaymentCurrency     string `validate:"len=3"`

	// Slack; handoff alerts are disabled without a token and channel
	SlackBotToken  string
	SlackChannelID string `validate:"required_with=SlackBotToken"`

	// DynamoDB
	AttributesTable     string `validate:"required"`
	DedupTable          string
	DedupCapacity       int    `validate:"min=1"`
	DedupPolicy         string `validate:"oneof=reset drop_oldest"`
	DedupTTLHours       int    `validate:"min=1"`
	TranscriptTable     string
	ConversationTTLDays int `validate:"min=0"`

	// Text understanding
	LLMProvider    string `validate:"oneof=bedrock gemini none"`
	LLMTimeout     time.Duration
	BedrockModelID string
	GeminiAPIKey   string `validate:"required_if=LLMProvider gemini"`
	GeminiModel    string

	// Step Functions
	BookingStateMachineArn string

	// Planning
	PlanningProfilesFile string
	Timezone             string `validate:"required"`

	// SSM prefix for secrets missing from the environment
	ParamPrefix string

	// Environment
	Environment string `validate:"required"`
	LogLevel    string
}

// Load reads configuration from environment variables. When PARAM_PREFIX is
// set and params is not nil, empty secrets are read from Parameter Store.
func Load(ctx context.Context, params paramstore.Getter) (*Config, error) {
	cfg := &Config{
		AWSRegion:              getEnv("AWS_REGION", "eu-west-1"),
		ChatwootBaseURL:        getEnv("CHATWOOT_BASE_URL", ""),
		ChatwootAccountID:      getEnv("CHATWOOT_ACCOUNT_ID", ""),
		ChatwootAPIToken:       getEnv("CHATWOOT_API_TOKEN", ""),
		ChatwootWebhookSecret:  getEnv("CHATWOOT_WEBHOOK_SECRET", ""),
		HandoffAgentID:         getEnvInt("HANDOFF_AGENT_ID", 0),
		StripeWebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
		PaymentSuccessURL:      getEnv("PAYMENT_SUCCESS_URL", ""),
		PaymentCancelURL:       getEnv("PAYMENT_CANCEL_URL", ""),
		PaymentCurrency:        strings.ToLower(getEnv("PAYMENT_CURRENCY", "eur")),
		SlackBotToken:          getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:         getEnv("SLACK_CHANNEL_ID", ""),
		AttributesTable:        getEnv("ATTRIBUTES_TABLE", "tutorbot-attributes"),
		DedupTable:             getEnv("DEDUP_TABLE", ""),
		DedupCapacity:          getEnvInt("DEDUP_CAPACITY", 1000),
		DedupPolicy:            strings.ToLower(getEnv("DEDUP_POLICY", "reset")),
		DedupTTLHours:          getEnvInt("DEDUP_TTL_HOURS", 24),
		TranscriptTable:        getEnv("TRANSCRIPT_TABLE", ""),
		ConversationTTLDays:    getEnvInt("CONVERSATION_TTL_DAYS", 30),
		LLMProvider:            strings.ToLower(getEnv("LLM_PROVIDER", ProviderBedrock)),
		LLMTimeout:             getEnvDuration("LLM_TIMEOUT", 8*time.Second),
		BedrockModelID:         getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", ""),
		BookingStateMachineArn: getEnv("BOOKING_STATE_MACHINE_ARN", ""),
		PlanningProfilesFile:   getEnv("PLANNING_PROFILES_FILE", ""),
		Timezone:               getEnv("TIMEZONE", "Europe/Amsterdam"),
		ParamPrefix:            strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),
		Environment:            getEnv("ENVIRONMENT", "dev"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
	}

	if cfg.ParamPrefix != "" && params != nil {
		if err := cfg.ResolveSecrets(ctx, params); err != nil {
			return nil, err
		}
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolveSecrets fills empty secrets from <ParamPrefix>/<name>. Only the
// Chatwoot secrets are mandatory; the rest stay empty when absent.
func (c *Config) ResolveSecrets(ctx context.Context, params paramstore.Getter) error {
	secrets := []struct {
		name     string
		target   *string
		required bool
	}{
		{"chatwoot-api-token", &c.ChatwootAPIToken, true},
		{"chatwoot-webhook-secret", &c.ChatwootWebhookSecret, true},
		{"stripe-webhook-secret", &c.StripeWebhookSecret, false},
		{"stripe-secret-key", &c.StripeSecretKey, false},
		{"slack-bot-token", &c.SlackBotToken, false},
		{"gemini-api-key", &c.GeminiAPIKey, c.LLMProvider == ProviderGemini},
	}

	for _, s := range secrets {
		if *s.target != "" {
			continue
		}
		value, err := params.GetParameter(ctx, c.ParamPrefix+"/"+s.name)
		if err != nil {
			if s.required {
				return fmt.Errorf("resolve %s: %w", s.name, err)
			}
			continue
		}
		*s.target = strings.TrimSpace(value)
	}
	return nil
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetConversationTTL returns how long idle conversation state is kept
func (c *Config) GetConversationTTL() time.Duration {
	return time.Duration(c.ConversationTTLDays*24) * time.Hour
}

// GetDedupTTL returns how long idempotency keys are remembered
func (c *Config) GetDedupTTL() time.Duration {
	return time.Duration(c.DedupTTLHours) * time.Hour
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
