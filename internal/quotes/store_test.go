package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/thebabesclub/commerce/internal/config"
	"github.com/thebabesclub/commerce/internal/dynamotest"
	"github.com/thebabesclub/commerce/internal/processor"
)

const testTable = "commerce-test"

func testSecrets() config.StaticSecrets {
	return config.StaticSecrets{QuoteSecret: "unit-test-secret"}
}

func testItems() []map[string]interface{} {
	return []map[string]interface{}{
		{"sku": "TEE-BLK-M", "quantity": float64(2), "stripePriceId": "price_123"},
		{"sku": "CAP-RED", "quantity": float64(1)},
	}
}

func TestCreateQuote_And_GetBySignature(t *testing.T) {
	table := dynamotest.New()
	s := NewStore(table, testTable, testSecrets(), nil, 30*time.Minute)
	ctx := context.Background()

	quote, err := s.CreateQuote(ctx, testItems(), 59.97, "USD")
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}
	if quote.QuoteSignature == "" || quote.NormalizedHash == "" {
		t.Fatalf("quote missing signature or hash: %+v", quote)
	}
	if quote.PricingSummary.Items != 2 {
		t.Fatalf("expected 2 items in summary, got %d", quote.PricingSummary.Items)
	}
	if quote.PricingSummary.Currency != "usd" {
		t.Fatalf("currency not lowercased: %s", quote.PricingSummary.Currency)
	}
	// quote record and pointer written together
	if table.Len(testTable) != 2 {
		t.Fatalf("expected 2 records, got %d", table.Len(testTable))
	}

	got, err := s.GetBySignature(ctx, quote.QuoteSignature)
	if err != nil {
		t.Fatalf("GetBySignature error: %v", err)
	}
	if got.NormalizedHash != quote.NormalizedHash {
		t.Fatalf("hash mismatch on read")
	}
	if len(got.RequestItems) != 2 {
		t.Fatalf("items not round-tripped, got %d", len(got.RequestItems))
	}
}

func TestGetBySignature_Unknown(t *testing.T) {
	s := NewStore(dynamotest.New(), testTable, testSecrets(), nil, 30*time.Minute)

	_, err := s.GetBySignature(context.Background(), "deadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetBySignature_Expired(t *testing.T) {
	table := dynamotest.New()
	s := NewStore(table, testTable, testSecrets(), nil, 30*time.Minute)
	ctx := context.Background()

	quote, err := s.CreateQuote(ctx, testItems(), 59.97, "usd")
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}

	s.nowFunc = func() time.Time { return time.Now().Add(31 * time.Minute) }
	_, err = s.GetBySignature(ctx, quote.QuoteSignature)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestGetBySignature_TamperedItems(t *testing.T) {
	table := dynamotest.New()
	s := NewStore(table, testTable, testSecrets(), nil, 30*time.Minute)
	ctx := context.Background()

	quote, err := s.CreateQuote(ctx, testItems(), 59.97, "usd")
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}

	// rewrite the stored items so they no longer hash to the signed value
	item := table.Item(testTable, quote.PK, quote.SK)
	if item == nil {
		t.Fatalf("quote record missing from table")
	}
	item["requestItems"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{
		&types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"sku":      &types.AttributeValueMemberS{Value: "TEE-BLK-M"},
			"quantity": &types.AttributeValueMemberN{Value: "99"},
		}},
	}}
	table.Seed(testTable, item)

	_, err = s.GetBySignature(ctx, quote.QuoteSignature)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for tampered quote, got %v", err)
	}
}

func TestGetBySignature_LatestQuoteWins(t *testing.T) {
	table := dynamotest.New()
	s := NewStore(table, testTable, testSecrets(), nil, 30*time.Minute)
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return base }
	first, err := s.CreateQuote(ctx, testItems(), 59.97, "usd")
	if err != nil {
		t.Fatalf("first CreateQuote: %v", err)
	}

	// same cart quoted again later: same hash partition, newer SK
	s.nowFunc = func() time.Time { return base.Add(5 * time.Minute) }
	second, err := s.CreateQuote(ctx, testItems(), 59.97, "usd")
	if err != nil {
		t.Fatalf("second CreateQuote: %v", err)
	}
	if first.NormalizedHash != second.NormalizedHash {
		t.Fatalf("same cart produced different hashes")
	}
	if first.QuoteSignature == second.QuoteSignature {
		t.Fatalf("re-quote reused the signature")
	}

	got, err := s.GetBySignature(ctx, first.QuoteSignature)
	if err != nil {
		t.Fatalf("GetBySignature error: %v", err)
	}
	if got.CreatedAt != second.CreatedAt {
		t.Fatalf("expected newest quote instance, got createdAt %s", got.CreatedAt)
	}
}

type fakePrices struct {
	prices map[string]*processor.PriceData
}

func (f *fakePrices) GetPrice(_ context.Context, id string) (*processor.PriceData, error) {
	p, ok := f.prices[id]
	if !ok {
		return nil, errors.New("no such price")
	}
	return p, nil
}

func TestCreateQuote_PriceValidation(t *testing.T) {
	prices := &fakePrices{prices: map[string]*processor.PriceData{
		"price_123": {ID: "price_123", UnitAmount: 2999, Currency: "usd"},
	}}
	s := NewStore(dynamotest.New(), testTable, testSecrets(), prices, 30*time.Minute)

	quote, err := s.CreateQuote(context.Background(), testItems(), 59.97, "usd")
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}
	if quote.ProcessorPricing == nil {
		t.Fatalf("expected processor pricing")
	}
	if quote.ProcessorPricing.ValidatedItems != 1 {
		t.Fatalf("expected 1 validated item, got %d", quote.ProcessorPricing.ValidatedItems)
	}
	// quantity 2 at 2999
	if quote.ProcessorPricing.Subtotal != 5998 {
		t.Fatalf("expected subtotal 5998, got %d", quote.ProcessorPricing.Subtotal)
	}
}
