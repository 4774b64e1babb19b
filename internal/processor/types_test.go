package processor

import (
	"encoding/json"
	"testing"
)

func TestParseSessionJSON_RefFields(t *testing.T) {
	// customer as bare id, payment_intent expanded
	raw := []byte(`{
		"id": "cs_123",
		"status": "complete",
		"payment_status": "paid",
		"amount_total": 5998,
		"currency": "usd",
		"customer": "cus_abc",
		"payment_intent": {"id": "pi_xyz", "status": "succeeded"},
		"metadata": {"quoteSignature": "sig-1"}
	}`)

	data, err := ParseSessionJSON(raw)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if data.Customer != "cus_abc" {
		t.Fatalf("bare customer ref mangled: %q", data.Customer)
	}
	if data.PaymentIntent != "pi_xyz" {
		t.Fatalf("expanded payment intent mangled: %q", data.PaymentIntent)
	}
	if data.Metadata["quoteSignature"] != "sig-1" {
		t.Fatalf("metadata lost")
	}
}

func TestParseSessionJSON_NullRefs(t *testing.T) {
	raw := []byte(`{"id": "cs_123", "customer": null, "payment_intent": null}`)
	data, err := ParseSessionJSON(raw)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if data.Customer != "" || data.PaymentIntent != "" {
		t.Fatalf("null refs should decode empty")
	}
}

func TestSessionData_ShippingFallback(t *testing.T) {
	legacy := []byte(`{
		"id": "cs_1",
		"shipping_details": {"name": "A", "address": {"city": "Austin"}}
	}`)
	data, err := ParseSessionJSON(legacy)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if s := data.Shipping(); s == nil || s.Address.City != "Austin" {
		t.Fatalf("legacy shipping field not read")
	}

	current := []byte(`{
		"id": "cs_1",
		"collected_information": {"shipping_details": {"name": "B", "address": {"city": "Denver"}}}
	}`)
	data, err = ParseSessionJSON(current)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if s := data.Shipping(); s == nil || s.Address.City != "Denver" {
		t.Fatalf("collected_information shipping not read")
	}
}

func TestSessionData_EmailFallback(t *testing.T) {
	data := SessionData{CustomerEmail: "fallback@example.com"}
	if data.Email() != "fallback@example.com" {
		t.Fatalf("customer_email fallback broken")
	}
	data.CustomerDetails = &CustomerDetails{Email: "primary@example.com"}
	if data.Email() != "primary@example.com" {
		t.Fatalf("customer_details email should win")
	}
}

func TestLineItemData_ProductShapes(t *testing.T) {
	expanded := []byte(`{
		"id": "li_1",
		"description": "Limited Tee",
		"quantity": 2,
		"amount_total": 5998,
		"price": {
			"id": "price_1",
			"unit_amount": 2999,
			"currency": "usd",
			"product": {"id": "prod_1", "name": "Tee", "metadata": {"sku": "TEE-BLK-M"}}
		}
	}`)
	var li LineItemData
	if err := json.Unmarshal(expanded, &li); err != nil {
		t.Fatalf("unmarshal expanded: %v", err)
	}
	if li.Price.Product.ID != "prod_1" || li.Price.Product.Metadata["sku"] != "TEE-BLK-M" {
		t.Fatalf("expanded product mangled: %+v", li.Price.Product)
	}

	bare := []byte(`{"id": "li_2", "price": {"id": "price_2", "product": "prod_2"}}`)
	var li2 LineItemData
	if err := json.Unmarshal(bare, &li2); err != nil {
		t.Fatalf("unmarshal bare: %v", err)
	}
	if li2.Price.Product.ID != "prod_2" {
		t.Fatalf("bare product ref mangled: %+v", li2.Price.Product)
	}
}
