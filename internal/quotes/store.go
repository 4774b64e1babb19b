package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebabesclub/commerce/internal/processor"
)

var (
	// ErrNotFound covers unknown signatures and signatures whose backing
	// quote record is gone or was tampered with.
	ErrNotFound = errors.New("quote not found")
	// ErrExpired marks a signature past its TTL.
	ErrExpired = errors.New("quote expired")
)

// SecretSource is the subset of the config secret resolver the store needs.
type SecretSource interface {
	QuoteSignatureSecret(ctx context.Context) (string, error)
}

// PriceValidator resolves catalog prices so quotes can carry
// processor-verified pricing alongside the client-supplied summary.
type PriceValidator interface {
	GetPrice(ctx context.Context, priceID string) (*processor.PriceData, error)
}

// Store persists quotes and signature pointers in the commerce table.
type Store struct {
	client    DynamoAPI
	tableName string
	secrets   SecretSource
	prices    PriceValidator
	ttl       time.Duration
	nowFunc   func() time.Time
}

// DynamoAPI is the narrow DynamoDB surface the quote store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// NewStore returns a quote store. prices may be nil to skip catalog
// validation.
func NewStore(client DynamoAPI, tableName string, secrets SecretSource, prices PriceValidator, ttl time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		secrets:   secrets,
		prices:    prices,
		ttl:       ttl,
		nowFunc:   time.Now,
	}
}

// CreateQuote normalizes the cart, signs it, and writes the quote record and
// its signature pointer in one transaction.
func (s *Store) CreateQuote(ctx context.Context, items []map[string]interface{}, subtotal float64, currency string) (*Quote, error) {
	secret, err := s.secrets.QuoteSignatureSecret(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve signing secret: %w", err)
	}

	normalized, err := NormalizeItems(items)
	if err != nil {
		return nil, err
	}
	hash := HashCart(normalized)

	now := s.nowFunc().UTC()
	createdAt := now.Format(time.RFC3339)
	signature := Sign(hash, createdAt, secret)
	expiresAt := now.Add(s.ttl).Unix()

	if currency == "" {
		currency = "usd"
	}
	quote := &Quote{
		PK:             "CART#" + hash,
		SK:             fmt.Sprintf("QUOTE#%s#%s", createdAt, uuid.NewString()),
		QuoteSignature: signature,
		NormalizedHash: hash,
		CreatedAt:      createdAt,
		RequestItems:   items,
		PricingSummary: PricingSummary{
			Items:    len(items),
			Subtotal: subtotal,
			Currency: strings.ToLower(currency),
		},
		ExpiresAt: expiresAt,
	}

	if s.prices != nil {
		quote.ProcessorPricing = s.validatePricing(ctx, items)
	}

	pointer := Pointer{
		PK:             "QUOTE#" + signature,
		SK:             "METADATA",
		NormalizedHash: hash,
		QuoteCreatedAt: createdAt,
		ExpiresAt:      expiresAt,
	}

	quoteItem, err := attributevalue.MarshalMap(quote)
	if err != nil {
		return nil, fmt.Errorf("marshal quote: %w", err)
	}
	pointerItem, err := attributevalue.MarshalMap(pointer)
	if err != nil {
		return nil, fmt.Errorf("marshal quote pointer: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: &s.tableName, Item: quoteItem}},
			{Put: &types.Put{TableName: &s.tableName, Item: pointerItem}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("persist quote: %w", err)
	}

	return quote, nil
}

// GetBySignature resolves a signature to its quote. The pointer record is
// read first, the signature is recomputed against the pointer's hash and
// timestamp, and finally the newest quote instance for the cart hash is
// loaded and its items re-hashed. Any mismatch surfaces as ErrNotFound so
// callers cannot distinguish tampering from absence.
func (s *Store) GetBySignature(ctx context.Context, signature string) (*Quote, error) {
	secret, err := s.secrets.QuoteSignatureSecret(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve signing secret: %w", err)
	}

	pointer, err := s.getPointer(ctx, signature)
	if err != nil {
		return nil, err
	}
	if pointer == nil {
		return nil, ErrNotFound
	}

	if !VerifySignature(signature, pointer.NormalizedHash, pointer.QuoteCreatedAt, secret) {
		return nil, ErrNotFound
	}

	if pointer.ExpiresAt > 0 && s.nowFunc().Unix() > pointer.ExpiresAt {
		return nil, ErrExpired
	}

	quote, err := s.latestForHash(ctx, pointer.NormalizedHash)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, ErrNotFound
	}

	// Re-derive the hash from the stored items. A stored record that no
	// longer hashes to the signed value is treated as missing.
	normalized, err := NormalizeItems(quote.RequestItems)
	if err != nil || HashCart(normalized) != pointer.NormalizedHash {
		return nil, ErrNotFound
	}

	return quote, nil
}

func (s *Store) getPointer(ctx context.Context, signature string) (*Pointer, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": "QUOTE#" + signature,
		"SK": "METADATA",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal pointer key: %w", err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get quote pointer: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var pointer Pointer
	if err := attributevalue.UnmarshalMap(out.Item, &pointer); err != nil {
		return nil, fmt.Errorf("unmarshal quote pointer: %w", err)
	}
	return &pointer, nil
}

func (s *Store) latestForHash(ctx context.Context, hash string) (*Quote, error) {
	forward := false
	limit := int32(1)
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: strPtr("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "CART#" + hash},
			":sk": &types.AttributeValueMemberS{Value: "QUOTE#"},
		},
		ScanIndexForward: &forward,
		Limit:            &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query quotes for cart: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	var quote Quote
	if err := attributevalue.UnmarshalMap(out.Items[0], &quote); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	return &quote, nil
}

// validatePricing looks up each item's price ref in the processor catalog.
// Lookup failures only reduce the validated count; quote creation never
// fails on catalog reads.
func (s *Store) validatePricing(ctx context.Context, items []map[string]interface{}) *ProcessorPricing {
	pricing := &ProcessorPricing{}
	for _, item := range items {
		priceID := itemPriceRef(item)
		if priceID == "" {
			continue
		}
		price, err := s.prices.GetPrice(ctx, priceID)
		if err != nil {
			log.Warn().Err(err).Str("priceId", priceID).Msg("price validation lookup failed")
			continue
		}
		qty := itemQuantity(item)
		pricing.ValidatedItems++
		pricing.Subtotal += price.UnitAmount * qty
		if pricing.Currency == "" {
			pricing.Currency = price.Currency
		}
	}
	if pricing.ValidatedItems == 0 {
		return nil
	}
	return pricing
}

func itemPriceRef(item map[string]interface{}) string {
	for _, k := range []string{"stripePriceId", "priceId", "stripe_price_id"} {
		if v, ok := item[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func itemQuantity(item map[string]interface{}) int64 {
	switch v := item["quantity"].(type) {
	case float64:
		if v >= 1 {
			return int64(v)
		}
	case int:
		if v >= 1 {
			return int64(v)
		}
	case int64:
		if v >= 1 {
			return v
		}
	}
	return 1
}

func strPtr(s string) *string { return &s }
