package main

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/savaki/tutorbot/pkg/bedrock"
	"github.com/savaki/tutorbot/pkg/chatwoot"
	appconfig "github.com/savaki/tutorbot/pkg/config"
	"github.com/savaki/tutorbot/pkg/dedup"
	"github.com/savaki/tutorbot/pkg/dynamodb"
	"github.com/savaki/tutorbot/pkg/gemini"
	"github.com/savaki/tutorbot/pkg/handler"
	"github.com/savaki/tutorbot/pkg/intake"
	"github.com/savaki/tutorbot/pkg/logging"
	"github.com/savaki/tutorbot/pkg/paramstore"
	"github.com/savaki/tutorbot/pkg/planning"
	"github.com/savaki/tutorbot/pkg/prefill"
	"github.com/savaki/tutorbot/pkg/segment"
	slackclient "github.com/savaki/tutorbot/pkg/slack"
	"github.com/savaki/tutorbot/pkg/stepfunctions"
	"github.com/savaki/tutorbot/pkg/stripe"
	"go.uber.org/zap"
)

// buildHandler wires every collaborator once per cold start
func buildHandler(ctx context.Context) (*handler.WebhookHandler, *zap.Logger, error) {
	// Initialize AWS SDK
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}

	cfg, err := appconfig.Load(ctx, paramstore.NewClient(awsCfg))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = cfg.AWSRegion
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	// Storage
	ddbClient := dynamodb.NewClientWithConfig(awsCfg)
	store := dynamodb.NewAttributeStore(ddbClient, cfg.AttributesTable, cfg.GetConversationTTL())

	policy, _ := dedup.ParsePolicy(cfg.DedupPolicy)
	var cache dedup.Cache = dedup.NewMemoryCache(cfg.DedupCapacity, policy)
	if cfg.DedupTable != "" {
		cache = dynamodb.NewDedupStore(ddbClient, cfg.DedupTable, cfg.GetDedupTTL())
	}

	var transcripts *dynamodb.TranscriptRepository
	var appender handler.TranscriptAppender
	var recent slackclient.Transcripts
	if cfg.TranscriptTable != "" {
		transcripts = dynamodb.NewTranscriptRepository(ddbClient, cfg.TranscriptTable, 0)
		appender, recent = transcripts, transcripts
	}

	// Text understanding
	understanding, err := newUnderstanding(ctx, cfg, awsCfg)
	if err != nil {
		return nil, nil, err
	}

	// Planning
	profiles, err := loadProfiles(cfg.PlanningProfilesFile)
	if err != nil {
		return nil, nil, err
	}
	generator, err := planning.NewGenerator(cfg.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("init slot generator: %w", err)
	}

	// Outbound
	chatwootClient, err := chatwoot.NewClient(cfg.ChatwootBaseURL, cfg.ChatwootAccountID, cfg.ChatwootAPIToken,
		chatwoot.WithHandoffAgent(cfg.HandoffAgentID),
		chatwoot.WithLogger(logger.Named("chatwoot")))
	if err != nil {
		return nil, nil, err
	}
	notifiers := []intake.HandoffNotifier{chatwootClient}
	if cfg.SlackBotToken != "" {
		notifiers = append(notifiers, slackclient.NewClient(cfg.SlackBotToken, cfg.SlackChannelID,
			cfg.ChatwootBaseURL+"/app/accounts/"+cfg.ChatwootAccountID, recent, logger.Named("slack")))
	}

	var booker intake.Booker
	if cfg.BookingStateMachineArn != "" {
		booker = stepfunctions.NewClient(awsCfg, cfg.BookingStateMachineArn)
	} else {
		logger.Warn("BOOKING_STATE_MACHINE_ARN not set, slot selection hands off to a human")
	}

	var payments intake.PaymentLinker
	if cfg.StripeSecretKey != "" {
		payments = stripe.NewClient(cfg.StripeSecretKey, cfg.PaymentSuccessURL, cfg.PaymentCancelURL,
			cfg.PaymentCurrency, logger.Named("stripe"))
	}

	machine := intake.New(intake.Deps{
		Store:     store,
		Segments:  segment.NewClassifier(store, logger.Named("segment")),
		Extractor: prefill.NewExtractor(understanding, cfg.LLMTimeout, logger.Named("prefill")),
		Profiles:  profiles,
		Generator: generator,
		Booker:    booker,
		Payments:  payments,
		Messenger: chatwootClient,
		Notifiers: notifiers,
		Logger:    logger.Named("intake"),
	})

	h := handler.NewWebhookHandler(
		handler.Secrets{Chatwoot: cfg.ChatwootWebhookSecret, Stripe: cfg.StripeWebhookSecret},
		dedup.New(cache, logger.Named("dedup")),
		machine,
		appender,
		logger.Named("webhook"),
	)

	logger.Info("webhook handler ready",
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Bool("shared_dedup", cfg.DedupTable != ""),
		zap.Bool("transcripts", transcripts != nil),
		zap.Bool("payment_links", payments != nil),
		zap.Int("handoff_notifiers", len(notifiers)))
	return h, logger, nil
}

func newUnderstanding(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config) (prefill.TextUnderstanding, error) {
	switch cfg.LLMProvider {
	case appconfig.ProviderBedrock:
		client := bedrock.NewClient(awsCfg)
		client.SetModel(cfg.BedrockModelID)
		return client, nil
	case appconfig.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, nil
}

func loadProfiles(path string) (*planning.Profiles, error) {
	if path != "" {
		profiles, err := planning.LoadProfiles(path)
		if err != nil {
			return nil, fmt.Errorf("load planning profiles: %w", err)
		}
		return profiles, nil
	}
	profiles, err := planning.DefaultProfiles()
	if err != nil {
		return nil, fmt.Errorf("load default planning profiles: %w", err)
	}
	return profiles, nil
}

func main() {
	h, logger, err := buildHandler(context.Background())
	if err != nil {
		log.Fatalf("Failed to start webhook handler: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	lambda.Start(h.Handle)
}
