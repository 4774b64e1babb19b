package events

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebabesclub/commerce/internal/orders"
	"github.com/thebabesclub/commerce/internal/processor"
	"github.com/thebabesclub/commerce/internal/sessions"
)

// statusByEventType maps processor event types to session statuses.
var statusByEventType = map[string]string{
	"checkout.session.completed":               sessions.StatusCompleted,
	"checkout.session.expired":                 sessions.StatusExpired,
	"checkout.session.async_payment_failed":    sessions.StatusFailed,
	"checkout.session.async_payment_succeeded": sessions.StatusCompleted,
	"checkout.session.async_payment_pending":   sessions.StatusPending,
	"checkout.session.canceled":                sessions.StatusCanceled,
}

// completionEvents are the types that materialize an order.
var completionEvents = map[string]bool{
	"checkout.session.completed":               true,
	"checkout.session.async_payment_succeeded": true,
}

// Result is what the webhook endpoint reports back to the processor.
type Result struct {
	Status         string `json:"status"`
	EventID        string `json:"eventId"`
	SessionID      string `json:"sessionId,omitempty"`
	QuoteSignature string `json:"quoteSignature,omitempty"`
	OrderCreated   bool   `json:"orderCreated,omitempty"`
	OrderNumber    string `json:"orderNumber,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

// Ingestor processes authenticated processor events exactly once. After
// authentication, every internal failure is absorbed: the processor gets a
// success either way, and the nightly sweep covers whatever was dropped.
type Ingestor struct {
	events    *Store
	sessions  *sessions.Store
	orders    *orders.Materializer
	processor processor.API

	eventTTL time.Duration
	nowFunc  func() time.Time
}

// NewIngestor wires an Ingestor. processor may be nil; session lookups are
// then limited to local records and event metadata.
func NewIngestor(eventStore *Store, sessionStore *sessions.Store, materializer *orders.Materializer, proc processor.API, eventTTL time.Duration) *Ingestor {
	return &Ingestor{
		events:    eventStore,
		sessions:  sessionStore,
		orders:    materializer,
		processor: proc,
		eventTTL:  eventTTL,
		nowFunc:   time.Now,
	}
}

// Process handles one verified event. A previously seen event id returns
// the recorded outcome without touching anything else.
func (i *Ingestor) Process(ctx context.Context, ev *processor.Event) *Result {
	existing, err := i.events.Get(ctx, ev.ID)
	if err != nil {
		log.Warn().Err(err).Str("eventId", ev.ID).Msg("event dedupe read failed")
	}
	if existing != nil {
		return &Result{
			Status:         existing.Status,
			EventID:        ev.ID,
			SessionID:      existing.SessionID,
			QuoteSignature: existing.QuoteSignature,
			OrderCreated:   existing.OrderCreated,
			OrderNumber:    existing.OrderNumber,
			Duplicate:      true,
		}
	}

	status := deriveStatus(ev.Type)
	sessionID := i.resolveSessionID(ev)
	quoteSignature := i.resolveQuoteSignature(ctx, ev, sessionID)

	result := &Result{
		Status:         status,
		EventID:        ev.ID,
		SessionID:      sessionID,
		QuoteSignature: quoteSignature,
	}

	if quoteSignature != "" && sessionID != "" && status != sessions.StatusReceived {
		i.updateSessionStatus(ctx, quoteSignature, sessionID, status, ev)
	}

	if completionEvents[ev.Type] && sessionID != "" {
		outcome, snap, err := i.orders.Materialize(ctx, orders.Input{
			SessionID:      sessionID,
			Data:           ev.Data,
			QuoteSignature: quoteSignature,
			Source:         orders.SourceWebhook,
		})
		if err != nil {
			log.Error().Err(err).Str("sessionId", sessionID).Msg("order materialization failed")
		}
		if outcome == orders.OutcomeCreated && snap != nil {
			result.OrderCreated = true
			result.OrderNumber = snap.OrderNumber
			result.OrderID = snap.OrderID
		}
	}

	i.record(ctx, ev, result)
	return result
}

func deriveStatus(eventType string) string {
	if status, ok := statusByEventType[eventType]; ok {
		return status
	}
	return sessions.StatusReceived
}

// resolveSessionID prefers the session id we issued (stashed in metadata)
// over the processor's own id, so records land under the keys checkout wrote.
func (i *Ingestor) resolveSessionID(ev *processor.Event) string {
	for _, k := range []string{"sessionId", "session_id"} {
		if v := ev.Data.Metadata[k]; v != "" {
			return v
		}
	}
	return ev.Data.ID
}

// resolveQuoteSignature walks the lookup chain: session pointer, event
// metadata, then a session fetch from the processor.
func (i *Ingestor) resolveQuoteSignature(ctx context.Context, ev *processor.Event, sessionID string) string {
	if sessionID != "" {
		ptr, err := i.sessions.GetPointer(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("sessionId", sessionID).Msg("session pointer read failed")
		}
		if ptr != nil && ptr.QuoteSignature != "" {
			return ptr.QuoteSignature
		}
	}

	for _, k := range []string{"quoteSignature", "quote_signature"} {
		if v := ev.Data.Metadata[k]; v != "" {
			return v
		}
	}

	if i.processor != nil && ev.Data.ID != "" {
		remote, err := i.processor.GetSession(ctx, ev.Data.ID, false)
		if err != nil {
			log.Warn().Err(err).Str("sessionId", ev.Data.ID).Msg("session fetch for signature failed")
			return ""
		}
		for _, k := range []string{"quoteSignature", "quote_signature"} {
			if v := remote.Metadata[k]; v != "" {
				return v
			}
		}
	}
	return ""
}

func (i *Ingestor) updateSessionStatus(ctx context.Context, quoteSignature, sessionID, status string, ev *processor.Event) {
	extra := map[string]string{}
	if ev.Data.Status != "" {
		extra["processorStatus"] = ev.Data.Status
	}
	if ev.Data.PaymentStatus != "" {
		extra["paymentStatus"] = ev.Data.PaymentStatus
	}
	updatedAt := i.nowFunc().UTC().Format(time.RFC3339)
	if err := i.sessions.UpdateStatus(ctx, quoteSignature, sessionID, status, updatedAt, extra); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Str("status", status).Msg("session status update failed")
	}
}

// record writes the dedupe marker last, after all side effects. A failed
// write here means the event may be redelivered and reprocessed; every
// downstream write is idempotent, so that is safe, only noisy.
func (i *Ingestor) record(ctx context.Context, ev *processor.Event, result *Result) {
	now := i.nowFunc().UTC()
	rec := &Record{
		PK:             "EVENT#" + ev.ID,
		SK:             "METADATA",
		EventID:        ev.ID,
		EventType:      ev.Type,
		ProcessedAt:    now.Format(time.RFC3339),
		SessionID:      result.SessionID,
		Status:         result.Status,
		QuoteSignature: result.QuoteSignature,
		OrderCreated:   result.OrderCreated,
		OrderNumber:    result.OrderNumber,
		ExpiresAt:      now.Add(i.eventTTL).Unix(),
		Summary: &Summary{
			Status:         ev.Data.Status,
			PaymentStatus:  ev.Data.PaymentStatus,
			AmountTotal:    ev.Data.AmountTotal,
			AmountSubtotal: ev.Data.AmountSubtotal,
			Currency:       ev.Data.Currency,
			CustomerRef:    string(ev.Data.Customer),
			CustomerEmail:  ev.Data.Email(),
			PaymentIntent:  string(ev.Data.PaymentIntent),
			Metadata:       ev.Data.Metadata,
		},
	}
	if _, err := i.events.CreateIfNotExists(ctx, rec); err != nil {
		log.Error().Err(err).Str("eventId", ev.ID).Msg("event record write failed")
	}
}
