package events

// Summary captures the session fields worth keeping on the event record for
// audit without re-fetching the session.
type Summary struct {
	Status         string            `dynamodbav:"status,omitempty"`
	PaymentStatus  string            `dynamodbav:"paymentStatus,omitempty"`
	AmountTotal    int64             `dynamodbav:"amountTotal,omitempty"`
	AmountSubtotal int64             `dynamodbav:"amountSubtotal,omitempty"`
	Currency       string            `dynamodbav:"currency,omitempty"`
	CustomerRef    string            `dynamodbav:"customerRef,omitempty"`
	CustomerEmail  string            `dynamodbav:"customerEmail,omitempty"`
	PaymentIntent  string            `dynamodbav:"paymentIntent,omitempty"`
	Metadata       map[string]string `dynamodbav:"metadata,omitempty"`
}

// Record is the dedupe marker for one processor event delivery. Its
// existence is what makes redelivery a no-op.
type Record struct {
	PK string `dynamodbav:"PK"` // EVENT#<eventId>
	SK string `dynamodbav:"SK"` // METADATA

	EventID        string   `dynamodbav:"eventId"`
	EventType      string   `dynamodbav:"eventType"`
	ProcessedAt    string   `dynamodbav:"processedAt"`
	SessionID      string   `dynamodbav:"sessionId,omitempty"`
	Status         string   `dynamodbav:"status"`
	QuoteSignature string   `dynamodbav:"quoteSignature,omitempty"`
	Summary        *Summary `dynamodbav:"summary,omitempty"`
	OrderCreated   bool     `dynamodbav:"orderCreated,omitempty"`
	OrderNumber    string   `dynamodbav:"orderNumber,omitempty"`
	ExpiresAt      int64    `dynamodbav:"expiresAt"`
}
