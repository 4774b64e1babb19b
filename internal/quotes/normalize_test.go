package quotes

import (
	"testing"
)

func TestNormalizeItems_PermutationAndNulls(t *testing.T) {
	a := []map[string]interface{}{
		{"sku": "A-1", "quantity": float64(2), "color": nil},
		{"sku": "B-2", "quantity": float64(1)},
	}
	b := []map[string]interface{}{
		{"quantity": float64(1), "sku": "B-2"},
		{"quantity": float64(2), "sku": "A-1"},
	}

	na, err := NormalizeItems(a)
	if err != nil {
		t.Fatalf("normalize a: %v", err)
	}
	nb, err := NormalizeItems(b)
	if err != nil {
		t.Fatalf("normalize b: %v", err)
	}
	if na != nb {
		t.Fatalf("permuted carts normalized differently:\n%s\n%s", na, nb)
	}
	if HashCart(na) != HashCart(nb) {
		t.Fatalf("hash mismatch for identical normalization")
	}
}

func TestNormalizeItems_NestedNulls(t *testing.T) {
	items := []map[string]interface{}{
		{
			"sku": "A-1",
			"attrs": map[string]interface{}{
				"size":  "M",
				"notes": nil,
			},
			"tags": []interface{}{"new", nil},
		},
	}
	got, err := NormalizeItems(items)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := `[{"attrs":{"size":"M"},"sku":"A-1","tags":["new"]}]`
	if got != want {
		t.Fatalf("normalized form mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestNormalizeItems_DifferentCartsDiffer(t *testing.T) {
	a := []map[string]interface{}{{"sku": "A-1", "quantity": float64(1)}}
	b := []map[string]interface{}{{"sku": "A-1", "quantity": float64(2)}}

	na, _ := NormalizeItems(a)
	nb, _ := NormalizeItems(b)
	if HashCart(na) == HashCart(nb) {
		t.Fatalf("different carts hashed equal")
	}
}

func TestSignAndVerify(t *testing.T) {
	hash := HashCart("[]")
	createdAt := "2026-08-24T00:00:00Z"
	secret := "test-secret"

	sig := Sign(hash, createdAt, secret)
	if sig == "" {
		t.Fatalf("empty signature")
	}
	if !VerifySignature(sig, hash, createdAt, secret) {
		t.Fatalf("signature did not verify")
	}
	if VerifySignature(sig, hash, createdAt, "other-secret") {
		t.Fatalf("signature verified under wrong secret")
	}
	if VerifySignature(sig, hash, "2026-08-24T00:00:01Z", secret) {
		t.Fatalf("signature verified for different timestamp")
	}
	if Sign(hash, createdAt, secret) != sig {
		t.Fatalf("signing is not deterministic")
	}
}
