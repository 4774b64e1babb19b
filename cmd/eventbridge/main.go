// The eventbridge command ingests processor events delivered through an
// EventBridge partner source instead of the signed webhook endpoint.
// Authentication happened at the bus boundary, so there is no signature to
// verify here; the rest of the pipeline is identical.
package main

import (
	"context"
	"encoding/json"
	"fmt"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	internalaws "github.com/thebabesclub/commerce/internal/aws"
	"github.com/thebabesclub/commerce/internal/config"
	"github.com/thebabesclub/commerce/internal/events"
	"github.com/thebabesclub/commerce/internal/orders"
	"github.com/thebabesclub/commerce/internal/processor"
	"github.com/thebabesclub/commerce/internal/quotes"
	"github.com/thebabesclub/commerce/internal/sessions"
)

// busEvent is the processor event shape as it appears in the EventBridge
// detail field.
type busEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func buildIngestor(ctx context.Context) (*events.Ingestor, error) {
	clients, err := internalaws.NewAWSClients(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	secrets := config.NewSecrets(cfg, clients.SSM)
	proc := processor.NewClient(secrets)

	quoteStore := quotes.NewStore(clients.DynamoDB, cfg.CommerceTable, secrets, nil, cfg.QuoteTTL())
	sessionStore := sessions.NewStore(clients.DynamoDB, cfg.CommerceTable)
	orderStore := orders.NewStore(clients.DynamoDB, cfg.CommerceTable)
	notifier := internalaws.NewOrderNotifier(clients.SQS, cfg.OrderEventsQueueURL)
	materializer := orders.NewMaterializer(orderStore, quoteStore, proc, notifier, cfg.OrderNumberPrefix, cfg.OrderTTL())
	eventStore := events.NewStore(clients.DynamoDB, cfg.CommerceTable)

	return events.NewIngestor(eventStore, sessionStore, materializer, proc, cfg.EventTTL()), nil
}

func toProcessorEvent(detail json.RawMessage) (*processor.Event, error) {
	var ev busEvent
	if err := json.Unmarshal(detail, &ev); err != nil {
		return nil, fmt.Errorf("decode bus event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("bus event missing id or type")
	}

	data, err := processor.ParseSessionJSON(ev.Data.Object)
	if err != nil {
		return nil, err
	}
	return &processor.Event{
		ID:   ev.ID,
		Type: ev.Type,
		Data: data,
		Raw:  ev.Data.Object,
	}, nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	ingestor, err := buildIngestor(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init ingestor")
	}

	lambda.Start(func(ctx context.Context, bus lambdaevents.CloudWatchEvent) (*events.Result, error) {
		ev, err := toProcessorEvent(bus.Detail)
		if err != nil {
			// A malformed bus event will never become parseable; surface
			// the error so it lands in the DLQ instead of retrying forever.
			return nil, err
		}
		return ingestor.Process(ctx, ev), nil
	})
}
