package processor

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when the processor does not know a session.
var ErrSessionNotFound = errors.New("checkout session not found")

// SessionLineItem describes one line to charge. Either PriceID references a
// catalog price, or the ad-hoc fields (UnitAmount, Currency, Name) describe
// an inline price.
type SessionLineItem struct {
	PriceID     string
	UnitAmount  int64
	Currency    string
	Name        string
	Description string
	ImageURL    string
	Quantity    int64
}

// CreateSessionParams carries everything needed to open a checkout session.
type CreateSessionParams struct {
	Mode                string
	LineItems           []SessionLineItem
	SuccessURL          string
	CancelURL           string
	ClientReferenceID   string
	Metadata            map[string]string
	CustomerEmail       string
	CustomerID          string
	AllowPromotionCodes bool
	AutomaticTax        bool
	PaymentMethodTypes  []string
	CollectPhoneNumber  bool
	ShippingCountries   []string
	ExpiresAt           int64
}

// API is the processor surface the pipeline depends on. The production
// implementation is Client; tests substitute fakes.
type API interface {
	CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*SessionData, error)
	GetSession(ctx context.Context, sessionID string, expandLineItems bool) (*SessionData, error)
	ListLineItems(ctx context.Context, sessionID string) ([]LineItemData, error)
	// ListCompletedSessions walks sessions with status "complete" created
	// inside [from, to], newest pages first from the API's perspective,
	// invoking fn for each until fn errors, maxSessions is reached, or the
	// window is exhausted.
	ListCompletedSessions(ctx context.Context, from, to time.Time, maxSessions int, fn func(*SessionData) error) error
	GetPrice(ctx context.Context, priceID string) (*PriceData, error)
}
