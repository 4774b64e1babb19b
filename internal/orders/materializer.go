package orders

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	internalaws "github.com/thebabesclub/commerce/internal/aws"
	"github.com/thebabesclub/commerce/internal/processor"
	"github.com/thebabesclub/commerce/internal/quotes"
	"github.com/thebabesclub/commerce/internal/sessions"
)

const maxOwnerIDLen = 256

var ownerIDStrip = regexp.MustCompile(`[^a-zA-Z0-9@.\-_]`)

// QuoteReader resolves quote signatures for snapshot enrichment.
type QuoteReader interface {
	GetBySignature(ctx context.Context, signature string) (*quotes.Quote, error)
}

// Input describes one completed session to materialize.
type Input struct {
	SessionID      string
	Data           processor.SessionData
	QuoteSignature string
	Source         string
	// DryRun performs every read and the existence check but suppresses
	// the snapshot write and the notification.
	DryRun bool
}

// Materializer turns completed checkout sessions into order snapshots,
// writing at most one snapshot per owner and session.
type Materializer struct {
	store     *Store
	quotes    QuoteReader
	processor processor.API
	notifier  *internalaws.OrderNotifier

	numberPrefix string
	orderTTL     time.Duration
	nowFunc      func() time.Time
}

// NewMaterializer wires a Materializer. quotes and notifier may be nil.
func NewMaterializer(store *Store, quoteReader QuoteReader, proc processor.API, notifier *internalaws.OrderNotifier, numberPrefix string, orderTTL time.Duration) *Materializer {
	return &Materializer{
		store:        store,
		quotes:       quoteReader,
		processor:    proc,
		notifier:     notifier,
		numberPrefix: numberPrefix,
		orderTTL:     orderTTL,
		nowFunc:      time.Now,
	}
}

// Materialize resolves the owner, checks for an existing snapshot, and
// writes a new one. A session with no resolvable owner is skipped, never
// failed: the payment happened, there is just nowhere to file it.
func (m *Materializer) Materialize(ctx context.Context, in Input) (Outcome, *Snapshot, error) {
	ownerID := resolveOwner(in.Data)
	if ownerID == "" {
		log.Warn().Str("sessionId", in.SessionID).Msg("no resolvable owner for completed session")
		return OutcomeSkipped, nil, nil
	}

	exists, err := m.store.ExistsForSession(ctx, ownerID, in.SessionID)
	if err != nil {
		// Treat an unreadable partition as already-written rather than
		// risking a duplicate snapshot.
		log.Error().Err(err).Str("sessionId", in.SessionID).Msg("order existence check failed")
		return OutcomeSkipped, nil, err
	}
	if exists {
		return OutcomeAlreadyExists, nil, nil
	}

	items := m.collectItems(ctx, in)

	now := m.nowFunc().UTC()
	completed := now
	if in.Data.Created > 0 {
		completed = time.Unix(in.Data.Created, 0).UTC()
	}

	orderID := in.SessionID
	snap := &Snapshot{
		PK:          "USER#" + ownerID,
		SK:          fmt.Sprintf("ORDER#%d#%s", completed.Unix(), orderID),
		OrderID:     orderID,
		OrderNumber: OrderNumber(m.numberPrefix, in.SessionID, now),
		OwnerID:     ownerID,
		Status:      sessions.StatusCompleted,

		Amount:         in.Data.AmountTotal,
		AmountSubtotal: in.Data.AmountSubtotal,
		Currency:       in.Data.Currency,
		Items:          items,
		ItemCount:      len(items),

		CreatedAt:   now.Format(time.RFC3339),
		UpdatedAt:   now.Format(time.RFC3339),
		CompletedAt: completed.Format(time.RFC3339),

		CustomerEmail: in.Data.Email(),

		SessionRef:       in.SessionID,
		PaymentIntentRef: string(in.Data.PaymentIntent),
		CustomerRef:      string(in.Data.Customer),
		PaymentStatus:    in.Data.PaymentStatus,
		QuoteSignature:   in.QuoteSignature,
		Source:           in.Source,
		Metadata:         in.Data.Metadata,
	}
	if in.Data.CustomerDetails != nil {
		snap.CustomerPhone = in.Data.CustomerDetails.Phone
	}
	if shipping := in.Data.Shipping(); shipping != nil {
		snap.ShippingAddress = shippingAddress(shipping)
	}
	if m.orderTTL > 0 {
		snap.ExpiresAt = now.Add(m.orderTTL).Unix()
	}

	m.enrichFromQuote(ctx, snap, in.QuoteSignature)

	if in.DryRun {
		return OutcomeCreated, snap, nil
	}

	if err := m.store.Put(ctx, snap); err != nil {
		return OutcomeSkipped, nil, err
	}

	m.notify(ctx, snap)
	return OutcomeCreated, snap, nil
}

// collectItems prefers line items already embedded in the session payload
// and falls back to fetching them. An empty item list is acceptable.
func (m *Materializer) collectItems(ctx context.Context, in Input) []Item {
	var lines []processor.LineItemData
	if in.Data.LineItems != nil && len(in.Data.LineItems.Data) > 0 {
		lines = in.Data.LineItems.Data
	} else if m.processor != nil {
		fetched, err := m.processor.ListLineItems(ctx, in.SessionID)
		if err != nil {
			log.Warn().Err(err).Str("sessionId", in.SessionID).Msg("line item fetch failed")
		} else {
			lines = fetched
		}
	}

	items := make([]Item, 0, len(lines))
	for _, li := range lines {
		items = append(items, itemFromLine(li))
	}
	return items
}

func itemFromLine(li processor.LineItemData) Item {
	item := Item{
		Name:           li.Description,
		Quantity:       li.Quantity,
		Currency:       li.Currency,
		AmountTotal:    li.AmountTotal,
		AmountSubtotal: li.AmountSubtotal,
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if li.Price != nil {
		item.UnitPrice = li.Price.UnitAmount
		item.PriceRef = li.Price.ID
		if p := li.Price.Product; p != nil {
			item.ProductRef = p.ID
			if p.Name != "" {
				item.Name = p.Name
			}
			item.SKU = p.Metadata["sku"]
			item.CollectionID = p.Metadata["collectionId"]
			item.VariantID = p.Metadata["variantId"]
			item.Color = p.Metadata["color"]
		}
	}
	return item
}

// enrichFromQuote copies the quote's pricing summary onto the snapshot.
// Failures only log; the snapshot stands on session data alone.
func (m *Materializer) enrichFromQuote(ctx context.Context, snap *Snapshot, signature string) {
	if m.quotes == nil || signature == "" {
		return
	}
	quote, err := m.quotes.GetBySignature(ctx, signature)
	if err != nil {
		log.Debug().Err(err).Str("orderId", snap.OrderID).Msg("quote enrichment unavailable")
		return
	}
	summary := quote.PricingSummary
	snap.PricingSummary = &summary
}

func (m *Materializer) notify(ctx context.Context, snap *Snapshot) {
	if !m.notifier.Enabled() {
		return
	}
	err := m.notifier.NotifyOrderCreated(ctx, internalaws.OrderCreatedMessage{
		OrderID:     snap.OrderID,
		OrderNumber: snap.OrderNumber,
		OwnerID:     snap.OwnerID,
		Amount:      snap.Amount,
		Currency:    snap.Currency,
		Source:      snap.Source,
	})
	if err != nil {
		log.Warn().Err(err).Str("orderId", snap.OrderID).Msg("order notification failed")
	}
}

// resolveOwner picks the owner id from session metadata, falling back to the
// customer email, and sanitizes it for use in a partition key.
func resolveOwner(data processor.SessionData) string {
	owner := ""
	for _, k := range []string{"userId", "user_id", "ownerId"} {
		if v := data.Metadata[k]; v != "" {
			owner = v
			break
		}
	}
	if owner == "" {
		owner = data.Email()
	}
	owner = ownerIDStrip.ReplaceAllString(owner, "")
	if len(owner) > maxOwnerIDLen {
		owner = owner[:maxOwnerIDLen]
	}
	return owner
}

// OrderNumber derives a human-facing order number from the session id: the
// prefix plus the last eight alphanumerics, uppercased. Sessions with too
// few usable characters fall back to a timestamp suffix.
func OrderNumber(prefix, sessionID string, now time.Time) string {
	var alnum []rune
	for _, r := range sessionID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			alnum = append(alnum, r)
		}
	}
	if len(alnum) >= 8 {
		tail := string(alnum[len(alnum)-8:])
		return prefix + strings.ToUpper(tail)
	}
	ts := fmt.Sprintf("%d", now.Unix())
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	return prefix + ts
}

func shippingAddress(s *processor.ShippingDetails) *Address {
	addr := &Address{Name: s.Name}
	if s.Address != nil {
		addr.Line1 = s.Address.Line1
		addr.Line2 = s.Address.Line2
		addr.City = s.Address.City
		addr.State = s.Address.State
		addr.PostalCode = s.Address.PostalCode
		addr.Country = s.Address.Country
	}
	return addr
}
