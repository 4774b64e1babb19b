package orders

import (
	"github.com/thebabesclub/commerce/internal/quotes"
)

// Outcome reports what Materialize did for a session. Only Created means a
// new snapshot was written.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeAlreadyExists
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already_exists"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Snapshot sources. Every snapshot records which path wrote it.
const (
	SourceWebhook        = "webhook"
	SourceReconciliation = "reconciliation"
	SourceOnDemand       = "on_demand_fallback"
)

// Item is one normalized order line.
type Item struct {
	Name           string `dynamodbav:"name" json:"name"`
	Quantity       int64  `dynamodbav:"quantity" json:"quantity"`
	UnitPrice      int64  `dynamodbav:"unitPrice" json:"unitPrice"`
	Currency       string `dynamodbav:"currency" json:"currency"`
	AmountTotal    int64  `dynamodbav:"amountTotal" json:"amountTotal"`
	AmountSubtotal int64  `dynamodbav:"amountSubtotal" json:"amountSubtotal"`
	PriceRef       string `dynamodbav:"priceRef,omitempty" json:"priceRef,omitempty"`
	ProductRef     string `dynamodbav:"productRef,omitempty" json:"productRef,omitempty"`
	SKU            string `dynamodbav:"sku,omitempty" json:"sku,omitempty"`
	CollectionID   string `dynamodbav:"collectionId,omitempty" json:"collectionId,omitempty"`
	VariantID      string `dynamodbav:"variantId,omitempty" json:"variantId,omitempty"`
	Color          string `dynamodbav:"color,omitempty" json:"color,omitempty"`
}

// Address is the shipping destination captured at checkout.
type Address struct {
	Name       string `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Line1      string `dynamodbav:"line1,omitempty" json:"line1,omitempty"`
	Line2      string `dynamodbav:"line2,omitempty" json:"line2,omitempty"`
	City       string `dynamodbav:"city,omitempty" json:"city,omitempty"`
	State      string `dynamodbav:"state,omitempty" json:"state,omitempty"`
	PostalCode string `dynamodbav:"postalCode,omitempty" json:"postalCode,omitempty"`
	Country    string `dynamodbav:"country,omitempty" json:"country,omitempty"`
}

// Snapshot is the immutable order record stored under the owner partition.
// The SK embeds the completion timestamp so a partition query returns the
// owner's orders in chronological order.
type Snapshot struct {
	PK string `dynamodbav:"PK"` // USER#<ownerId>
	SK string `dynamodbav:"SK"` // ORDER#<unix>#<orderId>

	OrderID     string `dynamodbav:"orderId"`
	OrderNumber string `dynamodbav:"orderNumber"`
	OwnerID     string `dynamodbav:"ownerId"`
	Status      string `dynamodbav:"status"`

	Amount         int64  `dynamodbav:"amount"`
	AmountSubtotal int64  `dynamodbav:"amountSubtotal"`
	Currency       string `dynamodbav:"currency"`
	Items          []Item `dynamodbav:"items"`
	ItemCount      int    `dynamodbav:"itemCount"`

	CreatedAt   string `dynamodbav:"createdAt"`
	UpdatedAt   string `dynamodbav:"updatedAt"`
	CompletedAt string `dynamodbav:"completedAt,omitempty"`

	CustomerEmail   string   `dynamodbav:"customerEmail,omitempty"`
	CustomerPhone   string   `dynamodbav:"customerPhone,omitempty"`
	ShippingAddress *Address `dynamodbav:"shippingAddress,omitempty"`

	SessionRef       string                 `dynamodbav:"sessionRef"`
	PaymentIntentRef string                 `dynamodbav:"paymentIntentRef,omitempty"`
	CustomerRef      string                 `dynamodbav:"customerRef,omitempty"`
	PaymentStatus    string                 `dynamodbav:"paymentStatus,omitempty"`
	QuoteSignature   string                 `dynamodbav:"quoteSignature,omitempty"`
	PricingSummary   *quotes.PricingSummary `dynamodbav:"pricingSummary,omitempty"`
	Source           string                 `dynamodbav:"source"`
	Metadata         map[string]string      `dynamodbav:"metadata,omitempty"`
	ExpiresAt        int64                  `dynamodbav:"expiresAt,omitempty"`
}
