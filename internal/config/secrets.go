package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"

	internalaws "github.com/thebabesclub/commerce/internal/aws"
)

// ErrSecretNotConfigured is returned when neither a direct value nor an SSM
// parameter name is configured for a secret.
var ErrSecretNotConfigured = errors.New("secret not configured")

// SecretSource resolves named secrets. Implementations must be safe for
// concurrent use; callers treat resolution as cheap after the first hit.
type SecretSource interface {
	QuoteSignatureSecret(ctx context.Context) (string, error)
	StripeSecret(ctx context.Context) (string, error)
	StripeWebhookSecret(ctx context.Context) (string, error)
}

// Secrets resolves secrets from the Config, preferring direct env values and
// falling back to SSM SecureString parameters. Each parameter is fetched at
// most once per process.
type Secrets struct {
	cfg *Config
	ssm internalaws.SSMAPI

	mu    sync.Mutex
	cache map[string]string
}

// NewSecrets returns a SecretSource backed by the given config and SSM client.
func NewSecrets(cfg *Config, ssmClient internalaws.SSMAPI) *Secrets {
	return &Secrets{
		cfg:   cfg,
		ssm:   ssmClient,
		cache: map[string]string{},
	}
}

func (s *Secrets) QuoteSignatureSecret(ctx context.Context) (string, error) {
	return s.resolve(ctx, s.cfg.QuoteSignatureSecret, s.cfg.QuoteSignatureSecretParameter)
}

func (s *Secrets) StripeSecret(ctx context.Context) (string, error) {
	return s.resolve(ctx, s.cfg.StripeSecret, s.cfg.StripeSecretParameter)
}

func (s *Secrets) StripeWebhookSecret(ctx context.Context) (string, error) {
	return s.resolve(ctx, s.cfg.StripeWebhookSecret, s.cfg.StripeWebhookSecretParameter)
}

func (s *Secrets) resolve(ctx context.Context, direct, parameter string) (string, error) {
	if direct != "" {
		return direct, nil
	}
	if parameter == "" {
		return "", ErrSecretNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache[parameter]; ok {
		return v, nil
	}

	if s.ssm == nil {
		return "", fmt.Errorf("resolve parameter %q: no SSM client", parameter)
	}

	withDecryption := true
	out, err := s.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &parameter,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("fetch SSM parameter %q: %w", parameter, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("SSM parameter %q returned no value", parameter)
	}

	s.cache[parameter] = *out.Parameter.Value
	return *out.Parameter.Value, nil
}

// StaticSecrets is a SecretSource with fixed values, for tests and local runs.
type StaticSecrets struct {
	QuoteSecret   string
	APISecret     string
	WebhookSecret string
}

func (s StaticSecrets) QuoteSignatureSecret(context.Context) (string, error) {
	if s.QuoteSecret == "" {
		return "", ErrSecretNotConfigured
	}
	return s.QuoteSecret, nil
}

func (s StaticSecrets) StripeSecret(context.Context) (string, error) {
	if s.APISecret == "" {
		return "", ErrSecretNotConfigured
	}
	return s.APISecret, nil
}

func (s StaticSecrets) StripeWebhookSecret(context.Context) (string, error) {
	if s.WebhookSecret == "" {
		return "", ErrSecretNotConfigured
	}
	return s.WebhookSecret, nil
}
