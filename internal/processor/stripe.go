package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/price"
)

// SecretSource supplies the API key for lazy client initialization.
type SecretSource interface {
	StripeSecret(ctx context.Context) (string, error)
}

// Client is the Stripe-backed implementation of API. The API key is
// resolved once, on first use, so cold starts without processor traffic
// never touch the secret store.
type Client struct {
	secrets SecretSource

	initOnce sync.Once
	initErr  error
}

// NewClient returns an uninitialized Client; the first call resolves the key.
func NewClient(secrets SecretSource) *Client {
	return &Client{secrets: secrets}
}

func (c *Client) init(ctx context.Context) error {
	c.initOnce.Do(func() {
		key, err := c.secrets.StripeSecret(ctx)
		if err != nil {
			c.initErr = fmt.Errorf("resolve processor secret: %w", err)
			return
		}
		stripe.Key = key
	})
	return c.initErr
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*SessionData, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}

	p := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(params.Mode),
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		ClientReferenceID: stripe.String(params.ClientReferenceID),
	}
	p.Context = ctx

	for _, li := range params.LineItems {
		item := &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(li.Quantity),
		}
		if li.PriceID != "" {
			item.Price = stripe.String(li.PriceID)
		} else {
			productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(li.Name),
			}
			if li.Description != "" {
				productData.Description = stripe.String(li.Description)
			}
			if li.ImageURL != "" {
				productData.Images = stripe.StringSlice([]string{li.ImageURL})
			}
			item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(li.Currency),
				UnitAmount:  stripe.Int64(li.UnitAmount),
				ProductData: productData,
			}
		}
		p.LineItems = append(p.LineItems, item)
	}

	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.CustomerEmail != "" {
		p.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	if params.CustomerID != "" {
		p.Customer = stripe.String(params.CustomerID)
	}
	if params.AllowPromotionCodes {
		p.AllowPromotionCodes = stripe.Bool(true)
	}
	if params.AutomaticTax {
		p.AutomaticTax = &stripe.CheckoutSessionAutomaticTaxParams{
			Enabled: stripe.Bool(true),
		}
	}
	if len(params.PaymentMethodTypes) > 0 {
		p.PaymentMethodTypes = stripe.StringSlice(params.PaymentMethodTypes)
	}
	if params.CollectPhoneNumber {
		p.PhoneNumberCollection = &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		}
	}
	if len(params.ShippingCountries) > 0 {
		p.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(params.ShippingCountries),
		}
	}
	if params.ExpiresAt > 0 {
		p.ExpiresAt = stripe.Int64(params.ExpiresAt)
	}

	sess, err := checkoutsession.New(p)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return toSessionData(sess)
}

func (c *Client) GetSession(ctx context.Context, sessionID string, expandLineItems bool) (*SessionData, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}

	p := &stripe.CheckoutSessionParams{}
	p.Context = ctx
	if expandLineItems {
		p.AddExpand("line_items")
	}

	sess, err := checkoutsession.Get(sessionID, p)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return toSessionData(sess)
}

func (c *Client) ListLineItems(ctx context.Context, sessionID string) ([]LineItemData, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}

	p := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	p.Context = ctx

	var items []LineItemData
	iter := checkoutsession.ListLineItems(p)
	for iter.Next() {
		li, err := toLineItemData(iter.LineItem())
		if err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	return items, nil
}

func (c *Client) ListCompletedSessions(ctx context.Context, from, to time.Time, maxSessions int, fn func(*SessionData) error) error {
	if err := c.init(ctx); err != nil {
		return err
	}

	p := &stripe.CheckoutSessionListParams{
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: from.Unix(),
			LesserThanOrEqual:  to.Unix(),
		},
		Status: stripe.String("complete"),
	}
	p.Context = ctx
	p.Limit = stripe.Int64(100)

	seen := 0
	iter := checkoutsession.List(p)
	for iter.Next() {
		if maxSessions > 0 && seen >= maxSessions {
			return nil
		}
		seen++

		data, err := toSessionData(iter.CheckoutSession())
		if err != nil {
			return err
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("list completed sessions: %w", err)
	}
	return nil
}

func (c *Client) GetPrice(ctx context.Context, priceID string) (*PriceData, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}

	p := &stripe.PriceParams{}
	p.Context = ctx

	pr, err := price.Get(priceID, p)
	if err != nil {
		return nil, fmt.Errorf("retrieve price %s: %w", priceID, err)
	}

	b, err := json.Marshal(pr)
	if err != nil {
		return nil, fmt.Errorf("encode price: %w", err)
	}
	var data PriceData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	return &data, nil
}

// toSessionData converts an SDK session through its JSON form so the pipeline
// reads the same shapes whether a session arrived via webhook or API call.
func toSessionData(sess *stripe.CheckoutSession) (*SessionData, error) {
	b, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	data, err := ParseSessionJSON(b)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func toLineItemData(li *stripe.LineItem) (LineItemData, error) {
	b, err := json.Marshal(li)
	if err != nil {
		return LineItemData{}, fmt.Errorf("encode line item: %w", err)
	}
	var data LineItemData
	if err := json.Unmarshal(b, &data); err != nil {
		return LineItemData{}, fmt.Errorf("decode line item: %w", err)
	}
	return data, nil
}

func isNotFound(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == 404 || stripeErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}
