package validation

// CreateQuoteRequest is the payload for POST /quotes. Items are free-form
// maps so the catalog can evolve without API changes; normalization and
// signing only care about their canonical JSON form.
type CreateQuoteRequest struct {
	Items    []map[string]interface{} `json:"items" validate:"required,min=1"` // at least one item
	Subtotal float64                  `json:"subtotal,omitempty"`              // client-claimed subtotal
	Currency string                   `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// CreateCheckoutSessionRequest is the payload for POST /checkout-sessions.
type CreateCheckoutSessionRequest struct {
	QuoteSignature      string            `json:"quoteSignature" validate:"required"`
	SuccessURL          string            `json:"successUrl,omitempty" validate:"omitempty,url"`
	CancelURL           string            `json:"cancelUrl,omitempty" validate:"omitempty,url"`
	Mode                string            `json:"mode,omitempty" validate:"omitempty,oneof=payment subscription setup"`
	AllowPromotionCodes *bool             `json:"allowPromotionCodes,omitempty"`
	AutomaticTax        *bool             `json:"automaticTax,omitempty"`
	CustomerEmail       string            `json:"customerEmail,omitempty" validate:"omitempty,email"`
	CustomerID          string            `json:"customerId,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	PaymentMethodTypes  []string          `json:"paymentMethodTypes,omitempty"`
	CollectPhoneNumber  bool              `json:"collectPhoneNumber,omitempty"`
	ShippingCountries   []string          `json:"shippingCountries,omitempty" validate:"omitempty,dive,len=2"`
}
