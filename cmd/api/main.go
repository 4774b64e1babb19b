package main

import (
	"context"
	"net/http"
	"os"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	internalaws "github.com/thebabesclub/commerce/internal/aws"
	"github.com/thebabesclub/commerce/internal/config"
	"github.com/thebabesclub/commerce/internal/events"
	"github.com/thebabesclub/commerce/internal/handlers"
	"github.com/thebabesclub/commerce/internal/orders"
	"github.com/thebabesclub/commerce/internal/processor"
	"github.com/thebabesclub/commerce/internal/quotes"
	"github.com/thebabesclub/commerce/internal/ratelimit"
	"github.com/thebabesclub/commerce/internal/sessions"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	handlers.Register(r, cfg)

	return r
}

func buildHandlerConfig(ctx context.Context) (handlers.HandlerConfig, error) {
	clients, err := internalaws.NewAWSClients(ctx)
	if err != nil {
		return handlers.HandlerConfig{}, err
	}

	cfg, err := config.Load()
	if err != nil {
		return handlers.HandlerConfig{}, err
	}

	secrets := config.NewSecrets(cfg, clients.SSM)
	proc := processor.NewClient(secrets)

	quoteStore := quotes.NewStore(clients.DynamoDB, cfg.CommerceTable, secrets, proc, cfg.QuoteTTL())
	sessionStore := sessions.NewStore(clients.DynamoDB, cfg.CommerceTable)
	linker := sessions.NewLinker(quoteStore, sessionStore, proc, sessions.Defaults{
		SuccessURL:          cfg.CheckoutSuccessURL,
		CancelURL:           cfg.CheckoutCancelURL,
		Mode:                cfg.CheckoutMode,
		AllowPromotionCodes: cfg.CheckoutAllowPromos,
		AutomaticTax:        cfg.CheckoutAutomaticTax,
		SessionTTL:          cfg.SessionTTL(),
	})

	orderStore := orders.NewStore(clients.DynamoDB, cfg.CommerceTable)
	notifier := internalaws.NewOrderNotifier(clients.SQS, cfg.OrderEventsQueueURL)
	materializer := orders.NewMaterializer(orderStore, quoteStore, proc, notifier, cfg.OrderNumberPrefix, cfg.OrderTTL())

	eventStore := events.NewStore(clients.DynamoDB, cfg.CommerceTable)
	ingestor := events.NewIngestor(eventStore, sessionStore, materializer, proc, cfg.EventTTL())

	return handlers.HandlerConfig{
		Quotes:       quoteStore,
		Linker:       linker,
		Verifier:     processor.NewWebhookVerifier(secrets, cfg.WebhookTolerance()),
		Ingestor:     ingestor,
		Orders:       orderStore,
		Materializer: materializer,
		Processor:    proc,
		Limiter:      ratelimit.NewLimiter(clients.DynamoDB, cfg.RateLimitTable, cfg.RateLimitMaxPerMin),
	}, nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := buildHandlerConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init api")
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run a local HTTP
	// server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Info().Str("addr", addr).Msg("running local server")
		if err := http.ListenAndServe(addr, r); err != nil {
			log.Fatal().Err(err).Msg("local server failed")
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req lambdaevents.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
