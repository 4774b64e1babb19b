// Package processor wraps the payment processor (Stripe) behind a narrow
// client interface and data shapes owned by this module. API payloads are
// decoded into these shapes rather than the SDK's structs so that the rest
// of the pipeline only depends on the fields it actually reads.
package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RefID decodes a field that the API returns either as a bare ID string or
// as an expanded object carrying an "id" key.
type RefID string

func (r *RefID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RefID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode ref: %w", err)
	}
	*r = RefID(obj.ID)
	return nil
}

// SessionData is the slice of a checkout session the pipeline consumes.
type SessionData struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	Mode              string            `json:"mode"`
	Created           int64             `json:"created"`
	ExpiresAt         int64             `json:"expires_at"`
	AmountTotal       int64             `json:"amount_total"`
	AmountSubtotal    int64             `json:"amount_subtotal"`
	Currency          string            `json:"currency"`
	Customer          RefID             `json:"customer"`
	CustomerEmail     string            `json:"customer_email"`
	CustomerDetails   *CustomerDetails  `json:"customer_details"`
	PaymentIntent     RefID             `json:"payment_intent"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	ShippingDetails   *ShippingDetails  `json:"shipping_details"`
	CollectedInfo     *CollectedInfo    `json:"collected_information"`
	LineItems         *LineItemList     `json:"line_items"`
}

// Shipping returns the shipping details regardless of which API field
// carried them. Newer API versions moved them under collected_information.
func (s *SessionData) Shipping() *ShippingDetails {
	if s.ShippingDetails != nil {
		return s.ShippingDetails
	}
	if s.CollectedInfo != nil {
		return s.CollectedInfo.ShippingDetails
	}
	return nil
}

// Email returns the best available customer email.
func (s *SessionData) Email() string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	return s.CustomerEmail
}

type CollectedInfo struct {
	ShippingDetails *ShippingDetails `json:"shipping_details"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ShippingDetails struct {
	Name    string   `json:"name"`
	Address *Address `json:"address"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type LineItemList struct {
	Data []LineItemData `json:"data"`
}

// LineItemData mirrors one checkout line item.
type LineItemData struct {
	ID             string     `json:"id"`
	Description    string     `json:"description"`
	Quantity       int64      `json:"quantity"`
	Currency       string     `json:"currency"`
	AmountTotal    int64      `json:"amount_total"`
	AmountSubtotal int64      `json:"amount_subtotal"`
	Price          *PriceData `json:"price"`
}

// PriceData mirrors a catalog price, with the product either expanded or
// as a bare reference.
type PriceData struct {
	ID         string       `json:"id"`
	UnitAmount int64        `json:"unit_amount"`
	Currency   string       `json:"currency"`
	Product    *ProductData `json:"product"`
}

type ProductData struct {
	ID       string
	Name     string
	Metadata map[string]string
}

func (p *ProductData) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		p.ID = s
		return nil
	}
	var obj struct {
		ID       string            `json:"id"`
		Name     string            `json:"name"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode product: %w", err)
	}
	p.ID = obj.ID
	p.Name = obj.Name
	p.Metadata = obj.Metadata
	return nil
}

// Event is a verified processor event with its session payload decoded.
type Event struct {
	ID   string
	Type string
	Data SessionData
	Raw  json.RawMessage
}

// ParseSessionJSON decodes a raw session object.
func ParseSessionJSON(raw []byte) (SessionData, error) {
	var data SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return SessionData{}, fmt.Errorf("decode session payload: %w", err)
	}
	return data, nil
}
