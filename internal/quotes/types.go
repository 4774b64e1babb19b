package quotes

// PricingSummary is the server-computed pricing attached to a quote.
type PricingSummary struct {
	Items    int     `dynamodbav:"items" json:"items"`
	Subtotal float64 `dynamodbav:"subtotal" json:"subtotal"`
	Currency string  `dynamodbav:"currency" json:"currency"`
}

// ProcessorPricing captures the result of validating cart prices against the
// payment processor's catalog. ValidatedItems counts items whose price ref
// resolved; Subtotal is in the currency's smallest unit.
type ProcessorPricing struct {
	ValidatedItems int    `dynamodbav:"validatedItems" json:"validatedItems"`
	Subtotal       int64  `dynamodbav:"subtotal" json:"subtotal"`
	Currency       string `dynamodbav:"currency" json:"currency"`
}

// Quote is the immutable cart snapshot stored under the cart hash partition.
// SK orders instances by creation time so the newest sorts last.
type Quote struct {
	PK string `dynamodbav:"PK"` // CART#<normalizedHash>
	SK string `dynamodbav:"SK"` // QUOTE#<createdAt>#<uuid>

	QuoteSignature   string                   `dynamodbav:"quoteSignature"`
	NormalizedHash   string                   `dynamodbav:"normalizedHash"`
	CreatedAt        string                   `dynamodbav:"createdAt"`
	RequestItems     []map[string]interface{} `dynamodbav:"requestItems"`
	PricingSummary   PricingSummary           `dynamodbav:"pricingSummary"`
	ProcessorPricing *ProcessorPricing        `dynamodbav:"processorPricing,omitempty"`
	ExpiresAt        int64                    `dynamodbav:"expiresAt"`
}

// Pointer maps a quote signature back to the cart hash and the timestamp the
// signature was computed over. It is the record checkout resolves first.
type Pointer struct {
	PK string `dynamodbav:"PK"` // QUOTE#<signature>
	SK string `dynamodbav:"SK"` // METADATA

	NormalizedHash string `dynamodbav:"normalizedHash"`
	QuoteCreatedAt string `dynamodbav:"quoteCreatedAt"`
	ExpiresAt      int64  `dynamodbav:"expiresAt"`
}
