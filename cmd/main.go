package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"formula-agent/handler"
	"formula-agent/internal/catalog"
	"formula-agent/internal/integrations/checkout"
	"formula-agent/internal/integrations/openai"
	"formula-agent/internal/integrations/paramstore"
	"formula-agent/internal/integrations/tools"
	"formula-agent/internal/repository"
	"formula-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// A missing .env is normal in Lambda.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "err", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))})))

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxContextItems := envInt("MAX_CONTEXT_ITEMS", 20)
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 500)
	cooldown := time.Duration(envInt("COOLDOWN_MS", 4000)) * time.Millisecond
	catalogTTL := time.Duration(envInt("CATALOG_TTL_SECONDS", 300)) * time.Second
	checkoutURL := os.Getenv("CHECKOUT_URL")
	searchURL := os.Getenv("SEARCH_URL")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg), paramPrefix)
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}
	catalogStore, err := catalog.NewStore(ssmClient, ssmClient.Name(catalog.ParameterName), catalogTTL)
	if err != nil {
		slog.Error("failed to create catalog store", "err", err)
		os.Exit(1)
	}

	var toolOpts []tools.Option
	if searchURL != "" {
		toolOpts = append(toolOpts, tools.WithSearchURL(searchURL))
	}
	opts := []usecase.Option{usecase.WithTools(tools.NewRegistry(toolOpts...))}

	if checkoutURL != "" {
		checkoutClient, err := checkout.NewClient(checkoutURL, checkout.WithToken(ssmClient, ssmClient.Name("checkout-token")))
		if err != nil {
			slog.Error("failed to create checkout client", "err", err)
			os.Exit(1)
		}
		opts = append(opts, usecase.WithCheckout(checkoutClient))
	} else {
		slog.Warn("CHECKOUT_URL not set, completed formulas will not get a checkout link")
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(ssmClient, openaiClient, stateClient, catalogStore, usecase.Config{
		ParamPrefix:      paramPrefix,
		MaxContextItems:  maxContextItems,
		MaxMessageLength: maxMessageLen,
		Cooldown:         cooldown,
	}, opts...)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func logLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
