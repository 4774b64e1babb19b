package sessions

// Session lifecycle statuses. A session starts as created and moves to a
// terminal or intermediate status as processor events arrive.
const (
	StatusCreated   = "created"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
	StatusFailed    = "failed"
	StatusPending   = "pending"
	StatusCanceled  = "canceled"
	StatusReceived  = "received"
)

// Record lives under the quote signature partition so all sessions opened
// from one quote can be listed together.
type Record struct {
	PK string `dynamodbav:"PK"` // QUOTE#<signature>
	SK string `dynamodbav:"SK"` // SESSION#<sessionId>

	SessionID          string `dynamodbav:"sessionId"`
	Status             string `dynamodbav:"status"`
	CreatedAt          string `dynamodbav:"createdAt"`
	UpdatedAt          string `dynamodbav:"updatedAt"`
	CheckoutURL        string `dynamodbav:"checkoutUrl,omitempty"`
	ProcessorSessionID string `dynamodbav:"processorSessionId,omitempty"`
	ProcessorStatus    string `dynamodbav:"processorStatus,omitempty"`
	PaymentStatus      string `dynamodbav:"paymentStatus,omitempty"`
	ExpiresAt          int64  `dynamodbav:"expiresAt"`
}

// Pointer is the direct sessionId lookup record. Webhook handling resolves
// it first to recover the quote signature without scanning.
type Pointer struct {
	PK string `dynamodbav:"PK"` // SESSION#<sessionId>
	SK string `dynamodbav:"SK"` // METADATA

	SessionID          string `dynamodbav:"sessionId"`
	QuoteSignature     string `dynamodbav:"quoteSignature"`
	Status             string `dynamodbav:"status"`
	CreatedAt          string `dynamodbav:"createdAt"`
	UpdatedAt          string `dynamodbav:"updatedAt"`
	CheckoutURL        string `dynamodbav:"checkoutUrl,omitempty"`
	ProcessorSessionID string `dynamodbav:"processorSessionId,omitempty"`
	ProcessorStatus    string `dynamodbav:"processorStatus,omitempty"`
	PaymentStatus      string `dynamodbav:"paymentStatus,omitempty"`
	ExpiresAt          int64  `dynamodbav:"expiresAt"`
}
