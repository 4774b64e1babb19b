package quotes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// NormalizeItems produces the canonical JSON form of a cart. Null-valued
// fields are dropped recursively, object keys are emitted sorted, and items
// are ordered by their canonical encoding so that permutations of the same
// cart normalize identically.
func NormalizeItems(items []map[string]interface{}) (string, error) {
	encoded := make([]string, 0, len(items))
	for _, item := range items {
		cleaned := dropNulls(item)
		b, err := json.Marshal(cleaned)
		if err != nil {
			return "", fmt.Errorf("normalize item: %w", err)
		}
		encoded = append(encoded, string(b))
	}
	sort.Strings(encoded)

	out := "["
	for i, e := range encoded {
		if i > 0 {
			out += ","
		}
		out += e
	}
	return out + "]", nil
}

func dropNulls(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		switch vv := v.(type) {
		case map[string]interface{}:
			out[k] = dropNulls(vv)
		case []interface{}:
			cleaned := make([]interface{}, 0, len(vv))
			for _, e := range vv {
				if e == nil {
					continue
				}
				if em, ok := e.(map[string]interface{}); ok {
					cleaned = append(cleaned, dropNulls(em))
					continue
				}
				cleaned = append(cleaned, e)
			}
			out[k] = cleaned
		default:
			out[k] = v
		}
	}
	return out
}

// HashCart returns the hex SHA-256 digest of a normalized cart.
func HashCart(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Sign computes the quote signature: an HMAC-SHA256 over the normalized hash
// and the quote creation timestamp, keyed by the signing secret. Binding the
// timestamp means re-quoting the same cart yields a fresh signature.
func Sign(normalizedHash, createdAt, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(normalizedHash + "|" + createdAt))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the given hash and
// timestamp under the secret, in constant time.
func VerifySignature(signature, normalizedHash, createdAt, secret string) bool {
	expected := Sign(normalizedHash, createdAt, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}
