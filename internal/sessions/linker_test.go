package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thebabesclub/commerce/internal/config"
	"github.com/thebabesclub/commerce/internal/dynamotest"
	"github.com/thebabesclub/commerce/internal/processor"
	"github.com/thebabesclub/commerce/internal/quotes"
)

// fakeProcessor records the params of the last created session.
type fakeProcessor struct {
	lastParams processor.CreateSessionParams
	createErr  error
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, params processor.CreateSessionParams) (*processor.SessionData, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.lastParams = params
	return &processor.SessionData{
		ID:        "cs_test_123",
		URL:       "https://checkout.example/pay/cs_test_123",
		Status:    "open",
		ExpiresAt: params.ExpiresAt,
	}, nil
}

func (f *fakeProcessor) GetSession(context.Context, string, bool) (*processor.SessionData, error) {
	return nil, processor.ErrSessionNotFound
}

func (f *fakeProcessor) ListLineItems(context.Context, string) ([]processor.LineItemData, error) {
	return nil, nil
}

func (f *fakeProcessor) ListCompletedSessions(context.Context, time.Time, time.Time, int, func(*processor.SessionData) error) error {
	return nil
}

func (f *fakeProcessor) GetPrice(context.Context, string) (*processor.PriceData, error) {
	return nil, errors.New("not implemented")
}

func newTestLinker(t *testing.T, table *dynamotest.Table, proc processor.API) (*Linker, *quotes.Store) {
	t.Helper()
	quoteStore := quotes.NewStore(table, testTable, config.StaticSecrets{QuoteSecret: "unit-test-secret"}, nil, 30*time.Minute)
	sessionStore := NewStore(table, testTable)
	linker := NewLinker(quoteStore, sessionStore, proc, Defaults{
		SuccessURL: "https://shop.example/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example/cancel",
		Mode:       "payment",
		SessionTTL: 2 * time.Hour,
	})
	return linker, quoteStore
}

func TestLinkerCreate_LinksQuoteAndSession(t *testing.T) {
	table := dynamotest.New()
	proc := &fakeProcessor{}
	linker, quoteStore := newTestLinker(t, table, proc)
	ctx := context.Background()

	quote, err := quoteStore.CreateQuote(ctx, []map[string]interface{}{
		{"sku": "TEE-BLK-M", "quantity": float64(2), "stripePriceId": "price_123"},
	}, 59.98, "usd")
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}

	result, err := linker.Create(ctx, quote.QuoteSignature, Options{
		Metadata: map[string]string{"campaign": "launch"},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if result.CheckoutURL == "" || result.SessionID == "" {
		t.Fatalf("incomplete result: %+v", result)
	}
	if result.ProcessorSessionID != "cs_test_123" {
		t.Fatalf("processor session id missing")
	}

	// quote signature and our session id travel in the processor metadata
	md := proc.lastParams.Metadata
	if md["quoteSignature"] != quote.QuoteSignature {
		t.Fatalf("quoteSignature not in metadata: %+v", md)
	}
	if md["sessionId"] != result.SessionID {
		t.Fatalf("sessionId not in metadata: %+v", md)
	}
	if md["campaign"] != "launch" {
		t.Fatalf("caller metadata dropped: %+v", md)
	}
	if proc.lastParams.ClientReferenceID != quote.QuoteSignature {
		t.Fatalf("client reference id mismatch")
	}
	if len(proc.lastParams.LineItems) != 1 || proc.lastParams.LineItems[0].PriceID != "price_123" {
		t.Fatalf("line items not built from catalog ref: %+v", proc.lastParams.LineItems)
	}

	// both linkage records resolvable by session id
	ptr, err := NewStore(table, testTable).GetPointer(ctx, result.SessionID)
	if err != nil || ptr == nil {
		t.Fatalf("session pointer missing: %v", err)
	}
	if ptr.QuoteSignature != quote.QuoteSignature {
		t.Fatalf("pointer signature mismatch")
	}
	if ptr.Status != StatusCreated {
		t.Fatalf("expected created status, got %s", ptr.Status)
	}

	// processor's own id is aliased too
	alias, err := NewStore(table, testTable).GetPointer(ctx, "cs_test_123")
	if err != nil || alias == nil {
		t.Fatalf("processor id alias missing: %v", err)
	}
}

func TestLinkerCreate_UnknownQuote(t *testing.T) {
	linker, _ := newTestLinker(t, dynamotest.New(), &fakeProcessor{})

	_, err := linker.Create(context.Background(), "deadbeef", Options{})
	if !errors.Is(err, quotes.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLinkerCreate_NoPriceableItems(t *testing.T) {
	table := dynamotest.New()
	linker, quoteStore := newTestLinker(t, table, &fakeProcessor{})
	ctx := context.Background()

	// items without price refs, names, or amounts cannot become lines
	quote, err := quoteStore.CreateQuote(ctx, []map[string]interface{}{
		{"sku": "MYSTERY"},
	}, 0, "usd")
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}

	_, err = linker.Create(ctx, quote.QuoteSignature, Options{})
	if !errors.Is(err, ErrNoPriceableItems) {
		t.Fatalf("expected ErrNoPriceableItems, got %v", err)
	}
}

func TestLinkerCreate_AdHocPricing(t *testing.T) {
	table := dynamotest.New()
	proc := &fakeProcessor{}
	linker, quoteStore := newTestLinker(t, table, proc)
	ctx := context.Background()

	quote, err := quoteStore.CreateQuote(ctx, []map[string]interface{}{
		{"name": "Limited Tee", "unitAmount": float64(2999), "quantity": float64(3)},
	}, 89.97, "usd")
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}

	if _, err := linker.Create(ctx, quote.QuoteSignature, Options{}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	li := proc.lastParams.LineItems
	if len(li) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(li))
	}
	if li[0].UnitAmount != 2999 || li[0].Quantity != 3 || li[0].Name != "Limited Tee" {
		t.Fatalf("ad-hoc line mismatch: %+v", li[0])
	}
}

func TestSanitizeMetadata_Caps(t *testing.T) {
	in := map[string]string{}
	for i := 0; i < 30; i++ {
		in[string(rune('a'+i))] = "v"
	}
	out := sanitizeMetadata(in)
	if len(out) > maxMetadataKeys-3 {
		t.Fatalf("metadata not capped: %d keys", len(out))
	}

	long := sanitizeMetadata(map[string]string{
		"this-key-is-much-longer-than-forty-characters-total": "v",
	})
	for k := range long {
		if len(k) > maxMetadataKeyLen {
			t.Fatalf("key not truncated: %q", k)
		}
	}
}

func TestSessionExpiry_Clamped(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	if got := sessionExpiry(now, time.Minute); got != now.Add(minSessionLifetime).Unix() {
		t.Fatalf("short ttl not raised to minimum")
	}
	if got := sessionExpiry(now, 48*time.Hour); got != now.Add(maxSessionLifetime).Unix() {
		t.Fatalf("long ttl not capped at maximum")
	}
}
