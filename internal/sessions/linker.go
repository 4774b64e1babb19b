package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebabesclub/commerce/internal/processor"
	"github.com/thebabesclub/commerce/internal/quotes"
)

// ErrNoPriceableItems means no quote item carried a catalog price ref or
// enough ad-hoc pricing to build a checkout line.
var ErrNoPriceableItems = errors.New("quote has no priceable items")

const (
	maxMetadataKeys     = 20
	maxMetadataKeyLen   = 40
	maxMetadataValueLen = 500

	minSessionLifetime = 30 * time.Minute
	maxSessionLifetime = 24 * time.Hour
)

// QuoteReader resolves signed quotes.
type QuoteReader interface {
	GetBySignature(ctx context.Context, signature string) (*quotes.Quote, error)
}

// Defaults carries checkout behavior that requests may override per call.
type Defaults struct {
	SuccessURL          string
	CancelURL           string
	Mode                string
	AllowPromotionCodes bool
	AutomaticTax        bool
	SessionTTL          time.Duration
}

// Options are the per-request checkout overrides.
type Options struct {
	SuccessURL          string
	CancelURL           string
	Mode                string
	AllowPromotionCodes *bool
	AutomaticTax        *bool
	CustomerEmail       string
	CustomerID          string
	Metadata            map[string]string
	PaymentMethodTypes  []string
	CollectPhoneNumber  bool
	ShippingCountries   []string
}

// Result is what the checkout endpoint returns to the caller.
type Result struct {
	SessionID          string `json:"sessionId"`
	CheckoutURL        string `json:"checkoutUrl"`
	ProcessorSessionID string `json:"processorSessionId"`
	ProcessorStatus    string `json:"processorStatus,omitempty"`
	ExpiresAt          int64  `json:"expiresAt"`
	QuoteSignature     string `json:"quoteSignature"`
}

// Linker turns a signed quote into a live checkout session and records the
// linkage. It owns the quote verification step: a session is only ever
// opened for a quote whose signature still checks out.
type Linker struct {
	quotes    QuoteReader
	sessions  *Store
	processor processor.API
	defaults  Defaults
	nowFunc   func() time.Time
	idFunc    func() string
}

// NewLinker wires a Linker.
func NewLinker(quoteReader QuoteReader, sessionStore *Store, proc processor.API, defaults Defaults) *Linker {
	return &Linker{
		quotes:    quoteReader,
		sessions:  sessionStore,
		processor: proc,
		defaults:  defaults,
		nowFunc:   time.Now,
		idFunc: func() string {
			return "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// Create resolves and verifies the quote, opens a processor checkout
// session, and persists the session record plus pointer atomically.
func (l *Linker) Create(ctx context.Context, quoteSignature string, opts Options) (*Result, error) {
	quote, err := l.quotes.GetBySignature(ctx, quoteSignature)
	if err != nil {
		return nil, err
	}

	lineItems, err := buildLineItems(quote)
	if err != nil {
		return nil, err
	}

	sessionID := l.idFunc()
	now := l.nowFunc().UTC()

	metadata := sanitizeMetadata(opts.Metadata)
	metadata["quoteSignature"] = quoteSignature
	metadata["normalizedHash"] = quote.NormalizedHash
	metadata["sessionId"] = sessionID

	params := processor.CreateSessionParams{
		Mode:                orDefault(opts.Mode, l.defaults.Mode),
		LineItems:           lineItems,
		SuccessURL:          orDefault(opts.SuccessURL, l.defaults.SuccessURL),
		CancelURL:           orDefault(opts.CancelURL, l.defaults.CancelURL),
		ClientReferenceID:   quoteSignature,
		Metadata:            metadata,
		CustomerEmail:       opts.CustomerEmail,
		CustomerID:          opts.CustomerID,
		AllowPromotionCodes: orDefaultBool(opts.AllowPromotionCodes, l.defaults.AllowPromotionCodes),
		AutomaticTax:        orDefaultBool(opts.AutomaticTax, l.defaults.AutomaticTax),
		PaymentMethodTypes:  opts.PaymentMethodTypes,
		CollectPhoneNumber:  opts.CollectPhoneNumber,
		ShippingCountries:   opts.ShippingCountries,
		ExpiresAt:           sessionExpiry(now, l.defaults.SessionTTL),
	}

	sess, err := l.processor.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("open processor session: %w", err)
	}

	nowStr := now.Format(time.RFC3339)
	ttlExpiry := now.Add(l.defaults.SessionTTL).Unix()
	rec := Record{
		PK:                 "QUOTE#" + quoteSignature,
		SK:                 "SESSION#" + sessionID,
		SessionID:          sessionID,
		Status:             StatusCreated,
		CreatedAt:          nowStr,
		UpdatedAt:          nowStr,
		CheckoutURL:        sess.URL,
		ProcessorSessionID: sess.ID,
		ProcessorStatus:    sess.Status,
		PaymentStatus:      sess.PaymentStatus,
		ExpiresAt:          ttlExpiry,
	}
	ptr := Pointer{
		PK:                 "SESSION#" + sessionID,
		SK:                 "METADATA",
		SessionID:          sessionID,
		QuoteSignature:     quoteSignature,
		Status:             StatusCreated,
		CreatedAt:          nowStr,
		UpdatedAt:          nowStr,
		CheckoutURL:        sess.URL,
		ProcessorSessionID: sess.ID,
		ProcessorStatus:    sess.Status,
		PaymentStatus:      sess.PaymentStatus,
		ExpiresAt:          ttlExpiry,
	}
	if err := l.sessions.PutLinked(ctx, rec, ptr); err != nil {
		// The processor session exists but the linkage write failed; the
		// nightly sweep will still materialize a completed payment.
		log.Error().Err(err).Str("sessionId", sessionID).Msg("session link write failed")
		return nil, err
	}

	// Index the processor's own session id too, so webhook deliveries that
	// carry it instead of ours still resolve.
	if sess.ID != "" && sess.ID != sessionID {
		alias := ptr
		alias.PK = "SESSION#" + sess.ID
		if err := l.sessions.PutLinked(ctx, rec, alias); err != nil {
			log.Warn().Err(err).Str("processorSessionId", sess.ID).Msg("processor session alias write failed")
		}
	}

	return &Result{
		SessionID:          sessionID,
		CheckoutURL:        sess.URL,
		ProcessorSessionID: sess.ID,
		ProcessorStatus:    sess.Status,
		ExpiresAt:          sess.ExpiresAt,
		QuoteSignature:     quoteSignature,
	}, nil
}

// buildLineItems maps quote items to checkout lines. Catalog price refs win;
// items without one need a name and a positive unit amount to become an
// inline price. Items with neither are skipped.
func buildLineItems(quote *quotes.Quote) ([]processor.SessionLineItem, error) {
	var lines []processor.SessionLineItem
	for _, item := range quote.RequestItems {
		qty := itemInt(item, "quantity")
		if qty < 1 {
			qty = 1
		}

		if priceID := itemString(item, "stripePriceId", "priceId", "stripe_price_id"); priceID != "" {
			lines = append(lines, processor.SessionLineItem{
				PriceID:  priceID,
				Quantity: qty,
			})
			continue
		}

		name := itemString(item, "name", "title", "description")
		unitAmount := itemInt(item, "unitAmount", "unit_amount", "priceCents")
		if name == "" || unitAmount <= 0 {
			continue
		}
		currency := itemString(item, "currency")
		if currency == "" {
			currency = quote.PricingSummary.Currency
		}
		if currency == "" {
			currency = "usd"
		}
		lines = append(lines, processor.SessionLineItem{
			UnitAmount:  unitAmount,
			Currency:    strings.ToLower(currency),
			Name:        name,
			Description: itemString(item, "variantName", "color"),
			ImageURL:    itemString(item, "imageUrl", "image"),
			Quantity:    qty,
		})
	}
	if len(lines) == 0 {
		return nil, ErrNoPriceableItems
	}
	return lines, nil
}

// sanitizeMetadata enforces the processor's metadata limits before the
// reserved keys are added on top.
func sanitizeMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+3)
	count := 0
	for k, v := range in {
		if count >= maxMetadataKeys-3 {
			break
		}
		if k == "" || v == "" {
			continue
		}
		if len(k) > maxMetadataKeyLen {
			k = k[:maxMetadataKeyLen]
		}
		if len(v) > maxMetadataValueLen {
			v = v[:maxMetadataValueLen]
		}
		out[k] = v
		count++
	}
	return out
}

// sessionExpiry clamps the processor-side expiry into the window the
// checkout API accepts.
func sessionExpiry(now time.Time, ttl time.Duration) int64 {
	if ttl < minSessionLifetime {
		ttl = minSessionLifetime
	}
	if ttl > maxSessionLifetime {
		ttl = maxSessionLifetime
	}
	return now.Add(ttl).Unix()
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orDefaultBool(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func itemString(item map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := item[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func itemInt(item map[string]interface{}, keys ...string) int64 {
	for _, k := range keys {
		switch v := item[k].(type) {
		case float64:
			return int64(v)
		case int:
			return int64(v)
		case int64:
			return v
		}
	}
	return 0
}
