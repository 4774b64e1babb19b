package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrInvalidSignature covers missing, malformed, stale, or forged webhook
// signatures. Handlers map it to a 400 before any processing happens.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// WebhookSecretSource supplies the endpoint signing secret.
type WebhookSecretSource interface {
	StripeWebhookSecret(ctx context.Context) (string, error)
}

// WebhookVerifier authenticates incoming webhook payloads and decodes the
// embedded session object.
type WebhookVerifier struct {
	secrets   WebhookSecretSource
	tolerance time.Duration
}

// NewWebhookVerifier returns a verifier with the given clock-skew tolerance.
func NewWebhookVerifier(secrets WebhookSecretSource, tolerance time.Duration) *WebhookVerifier {
	return &WebhookVerifier{secrets: secrets, tolerance: tolerance}
}

// Verify checks the signature header against the payload and returns the
// decoded event. Signature failures return ErrInvalidSignature; nothing in
// the payload is trusted before this succeeds.
func (v *WebhookVerifier) Verify(ctx context.Context, payload []byte, sigHeader string) (*Event, error) {
	secret, err := v.secrets.StripeWebhookSecret(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve webhook secret: %w", err)
	}
	if sigHeader == "" {
		return nil, ErrInvalidSignature
	}

	ev, err := webhook.ConstructEventWithTolerance(payload, sigHeader, secret, v.tolerance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	data, err := ParseSessionJSON(ev.Data.Raw)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:   ev.ID,
		Type: string(ev.Type),
		Data: data,
		Raw:  ev.Data.Raw,
	}, nil
}
