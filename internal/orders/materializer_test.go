package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thebabesclub/commerce/internal/dynamotest"
	"github.com/thebabesclub/commerce/internal/processor"
)

// fakeLineItems serves line items for any session.
type fakeLineItems struct {
	items    []processor.LineItemData
	listErr  error
	listHits int
}

func (f *fakeLineItems) CreateCheckoutSession(context.Context, processor.CreateSessionParams) (*processor.SessionData, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLineItems) GetSession(context.Context, string, bool) (*processor.SessionData, error) {
	return nil, processor.ErrSessionNotFound
}

func (f *fakeLineItems) ListLineItems(context.Context, string) ([]processor.LineItemData, error) {
	f.listHits++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeLineItems) ListCompletedSessions(context.Context, time.Time, time.Time, int, func(*processor.SessionData) error) error {
	return nil
}

func (f *fakeLineItems) GetPrice(context.Context, string) (*processor.PriceData, error) {
	return nil, errors.New("not implemented")
}

func completedSession(sessionID, email string) processor.SessionData {
	return processor.SessionData{
		ID:             sessionID,
		Status:         "complete",
		PaymentStatus:  "paid",
		Created:        1756000000,
		AmountTotal:    5998,
		AmountSubtotal: 5998,
		Currency:       "usd",
		CustomerDetails: &processor.CustomerDetails{
			Email: email,
		},
		Metadata: map[string]string{},
	}
}

func newTestMaterializer(table *dynamotest.Table, proc processor.API) (*Materializer, *Store) {
	store := NewStore(table, testTable)
	m := NewMaterializer(store, nil, proc, nil, "BC", 0)
	return m, store
}

func TestMaterialize_CreatesOnce(t *testing.T) {
	table := dynamotest.New()
	proc := &fakeLineItems{items: []processor.LineItemData{
		{
			Description:    "Limited Tee",
			Quantity:       2,
			Currency:       "usd",
			AmountTotal:    5998,
			AmountSubtotal: 5998,
			Price:          &processor.PriceData{ID: "price_123", UnitAmount: 2999},
		},
	}}
	m, store := newTestMaterializer(table, proc)
	ctx := context.Background()

	in := Input{
		SessionID:      "sess_abc12345",
		Data:           completedSession("sess_abc12345", "buyer@example.com"),
		QuoteSignature: "sig-1",
		Source:         SourceWebhook,
	}

	outcome, snap, err := m.Materialize(ctx, in)
	if err != nil {
		t.Fatalf("Materialize error: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Fatalf("expected created, got %s", outcome)
	}
	if snap.OwnerID != "buyer@example.com" {
		t.Fatalf("owner mismatch: %s", snap.OwnerID)
	}
	if snap.OrderNumber != "BCABC12345" {
		t.Fatalf("unexpected order number: %s", snap.OrderNumber)
	}
	if len(snap.Items) != 1 || snap.Items[0].UnitPrice != 2999 {
		t.Fatalf("items not normalized: %+v", snap.Items)
	}
	if snap.Source != SourceWebhook {
		t.Fatalf("source not recorded")
	}

	// second delivery of the same session is a no-op
	outcome, _, err = m.Materialize(ctx, in)
	if err != nil {
		t.Fatalf("second Materialize error: %v", err)
	}
	if outcome != OutcomeAlreadyExists {
		t.Fatalf("expected already_exists, got %s", outcome)
	}

	exists, err := store.ExistsForSession(ctx, "buyer@example.com", "sess_abc12345")
	if err != nil || !exists {
		t.Fatalf("snapshot missing after materialization: %v", err)
	}
}

func TestMaterialize_MetadataOwnerWins(t *testing.T) {
	m, _ := newTestMaterializer(dynamotest.New(), &fakeLineItems{})

	data := completedSession("sess_1", "buyer@example.com")
	data.Metadata["userId"] = "user-42"

	_, snap, err := m.Materialize(context.Background(), Input{
		SessionID: "sess_1",
		Data:      data,
		Source:    SourceWebhook,
	})
	if err != nil {
		t.Fatalf("Materialize error: %v", err)
	}
	if snap.OwnerID != "user-42" {
		t.Fatalf("metadata owner not preferred: %s", snap.OwnerID)
	}
}

func TestMaterialize_NoOwnerSkips(t *testing.T) {
	m, _ := newTestMaterializer(dynamotest.New(), &fakeLineItems{})

	data := completedSession("sess_1", "")
	data.CustomerDetails = nil

	outcome, snap, err := m.Materialize(context.Background(), Input{
		SessionID: "sess_1",
		Data:      data,
		Source:    SourceReconciliation,
	})
	if err != nil {
		t.Fatalf("Materialize error: %v", err)
	}
	if outcome != OutcomeSkipped || snap != nil {
		t.Fatalf("expected skip for ownerless session, got %s", outcome)
	}
}

func TestMaterialize_OwnerSanitized(t *testing.T) {
	m, _ := newTestMaterializer(dynamotest.New(), &fakeLineItems{})

	data := completedSession("sess_1", "")
	data.Metadata["userId"] = "user 42<script>"

	_, snap, err := m.Materialize(context.Background(), Input{
		SessionID: "sess_1",
		Data:      data,
		Source:    SourceWebhook,
	})
	if err != nil {
		t.Fatalf("Materialize error: %v", err)
	}
	if snap.OwnerID != "user42script" {
		t.Fatalf("owner not sanitized: %q", snap.OwnerID)
	}
}

func TestMaterialize_LineItemFetchFailureTolerated(t *testing.T) {
	proc := &fakeLineItems{listErr: errors.New("processor down")}
	m, _ := newTestMaterializer(dynamotest.New(), proc)

	outcome, snap, err := m.Materialize(context.Background(), Input{
		SessionID: "sess_1",
		Data:      completedSession("sess_1", "buyer@example.com"),
		Source:    SourceWebhook,
	})
	if err != nil {
		t.Fatalf("Materialize error: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Fatalf("expected created despite line item failure, got %s", outcome)
	}
	if len(snap.Items) != 0 {
		t.Fatalf("expected empty items")
	}
}

func TestMaterialize_EmbeddedLineItemsSkipFetch(t *testing.T) {
	proc := &fakeLineItems{}
	m, _ := newTestMaterializer(dynamotest.New(), proc)

	data := completedSession("sess_1", "buyer@example.com")
	data.LineItems = &processor.LineItemList{Data: []processor.LineItemData{
		{Description: "Cap", Quantity: 1, AmountTotal: 1500},
	}}

	_, snap, err := m.Materialize(context.Background(), Input{
		SessionID: "sess_1",
		Data:      data,
		Source:    SourceReconciliation,
	})
	if err != nil {
		t.Fatalf("Materialize error: %v", err)
	}
	if proc.listHits != 0 {
		t.Fatalf("fetched line items despite embedded ones")
	}
	if len(snap.Items) != 1 || snap.Items[0].Name != "Cap" {
		t.Fatalf("embedded items not used: %+v", snap.Items)
	}
}

func TestMaterialize_DryRun(t *testing.T) {
	table := dynamotest.New()
	m, store := newTestMaterializer(table, &fakeLineItems{})
	ctx := context.Background()

	outcome, snap, err := m.Materialize(ctx, Input{
		SessionID: "sess_1",
		Data:      completedSession("sess_1", "buyer@example.com"),
		Source:    SourceReconciliation,
		DryRun:    true,
	})
	if err != nil {
		t.Fatalf("Materialize error: %v", err)
	}
	if outcome != OutcomeCreated || snap == nil {
		t.Fatalf("dry run should report what it would create")
	}

	exists, _ := store.ExistsForSession(ctx, "buyer@example.com", "sess_1")
	if exists {
		t.Fatalf("dry run wrote a snapshot")
	}
}

func TestOrderNumber(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	got := OrderNumber("BC", "cs_test_a1B2c3D4e5", now)
	if got != "BCB2C3D4E5" {
		t.Fatalf("unexpected order number: %s", got)
	}

	// too few alphanumerics falls back to a timestamp suffix
	short := OrderNumber("BC", "x-1", now)
	if len(short) != 10 || short[:2] != "BC" {
		t.Fatalf("unexpected fallback number: %s", short)
	}
}
