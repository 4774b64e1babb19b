// The sync command runs the nightly reconciliation sweep. It is normally
// invoked on a schedule, but a direct invocation can override the lookback
// window, the session cap, or request a dry run.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	internalaws "github.com/thebabesclub/commerce/internal/aws"
	"github.com/thebabesclub/commerce/internal/config"
	"github.com/thebabesclub/commerce/internal/metrics"
	"github.com/thebabesclub/commerce/internal/orders"
	"github.com/thebabesclub/commerce/internal/processor"
	"github.com/thebabesclub/commerce/internal/quotes"
	"github.com/thebabesclub/commerce/internal/reconcile"
)

func buildSweeper(ctx context.Context) (*reconcile.Sweeper, *config.Config, error) {
	clients, err := internalaws.NewAWSClients(ctx)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	secrets := config.NewSecrets(cfg, clients.SSM)
	proc := processor.NewClient(secrets)

	quoteStore := quotes.NewStore(clients.DynamoDB, cfg.CommerceTable, secrets, nil, cfg.QuoteTTL())
	orderStore := orders.NewStore(clients.DynamoDB, cfg.CommerceTable)
	notifier := internalaws.NewOrderNotifier(clients.SQS, cfg.OrderEventsQueueURL)
	materializer := orders.NewMaterializer(orderStore, quoteStore, proc, notifier, cfg.OrderNumberPrefix, cfg.OrderTTL())

	sweeper := reconcile.NewSweeper(
		proc,
		materializer,
		reconcile.NewStateStore(clients.DynamoDB, cfg.CommerceTable),
		metrics.NewPublisher(clients.CloudWatch, cfg.MetricsNamespace),
		cfg.SyncLookbackHours,
		cfg.SyncMaxSessions,
	)
	return sweeper, cfg, nil
}

// parseParams accepts either a scheduled-event payload (ignored) or a direct
// invocation carrying overrides.
func parseParams(raw json.RawMessage, cfg *config.Config) reconcile.Params {
	params := reconcile.Params{DryRun: cfg.SyncDryRun}
	if len(raw) == 0 {
		return params
	}

	var overrides reconcile.Params
	if err := json.Unmarshal(raw, &overrides); err != nil {
		log.Warn().Err(err).Msg("unparseable invocation payload, using defaults")
		return params
	}
	if overrides.LookbackHours > 0 {
		params.LookbackHours = overrides.LookbackHours
	}
	if overrides.MaxSessions > 0 {
		params.MaxSessions = overrides.MaxSessions
	}
	if overrides.DryRun {
		params.DryRun = true
	}
	return params
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	ctx := context.Background()
	sweeper, cfg, err := buildSweeper(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init sweeper")
	}

	if os.Getenv("RUN_LOCAL") == "true" {
		result, err := sweeper.Run(ctx, reconcile.Params{DryRun: cfg.SyncDryRun})
		if err != nil {
			log.Fatal().Err(err).Msg("sweep failed")
		}
		out, _ := json.MarshalIndent(result, "", "  ")
		os.Stdout.Write(out)
		return
	}

	lambda.Start(func(ctx context.Context, raw json.RawMessage) (*reconcile.Result, error) {
		return sweeper.Run(ctx, parseParams(raw, cfg))
	})
}
