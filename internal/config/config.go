package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries every tunable the pipeline reads from the environment.
// Secrets may be supplied directly or as SSM SecureString parameter names;
// see Secrets for resolution order.
type Config struct {
	CommerceTable  string `envconfig:"COMMERCE_TABLE" default:"commerce"`
	RateLimitTable string `envconfig:"COMMERCE_RATE_LIMIT_TABLE"`

	QuoteTTLMinutes   int `envconfig:"QUOTE_TTL_MINUTES" default:"30"`
	SessionTTLMinutes int `envconfig:"SESSION_TTL_MINUTES" default:"1440"`
	EventTTLDays      int `envconfig:"EVENT_TTL_DAYS" default:"90"`
	OrderTTLDays      int `envconfig:"ORDER_TTL_DAYS" default:"0"`

	QuoteSignatureSecret          string `envconfig:"QUOTE_SIGNATURE_SECRET"`
	QuoteSignatureSecretParameter string `envconfig:"QUOTE_SIGNATURE_SECRET_PARAMETER"`
	StripeSecret                  string `envconfig:"STRIPE_SECRET"`
	StripeSecretParameter         string `envconfig:"STRIPE_SECRET_PARAMETER"`
	StripeWebhookSecret           string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeWebhookSecretParameter  string `envconfig:"STRIPE_WEBHOOK_SECRET_PARAMETER"`

	WebhookToleranceSeconds int `envconfig:"STRIPE_WEBHOOK_TOLERANCE" default:"300"`

	CheckoutSuccessURL    string `envconfig:"CHECKOUT_SUCCESS_URL" default:"https://thebabesclub.com/checkout/success?session_id={CHECKOUT_SESSION_ID}"`
	CheckoutCancelURL     string `envconfig:"CHECKOUT_CANCEL_URL" default:"https://thebabesclub.com/checkout/cancel"`
	CheckoutMode          string `envconfig:"CHECKOUT_MODE" default:"payment"`
	CheckoutAllowPromos   bool   `envconfig:"CHECKOUT_ALLOW_PROMOTION_CODES" default:"false"`
	CheckoutAutomaticTax  bool   `envconfig:"CHECKOUT_AUTOMATIC_TAX" default:"false"`
	CheckoutReturnURLBase string `envconfig:"CHECKOUT_RETURN_URL_BASE" default:"https://thebabesclub.com/checkout"`

	OrderNumberPrefix string `envconfig:"ORDER_NUMBER_PREFIX" default:"BC"`

	SyncLookbackHours int  `envconfig:"SYNC_LOOKBACK_HOURS" default:"25"`
	SyncMaxSessions   int  `envconfig:"SYNC_MAX_SESSIONS" default:"500"`
	SyncDryRun        bool `envconfig:"SYNC_DRY_RUN" default:"false"`

	RateLimitMaxPerMin int `envconfig:"COMMERCE_RATE_LIMIT_MAX_PER_MIN" default:"120"`

	OrderEventsQueueURL string `envconfig:"ORDER_EVENTS_QUEUE_URL"`
	MetricsNamespace    string `envconfig:"METRICS_NAMESPACE"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// QuoteTTL returns the quote lifetime as a duration.
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLMinutes) * time.Minute
}

// SessionTTL returns the checkout session pointer lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// EventTTL returns the event record retention as a duration.
func (c *Config) EventTTL() time.Duration {
	return time.Duration(c.EventTTLDays) * 24 * time.Hour
}

// OrderTTL returns the order snapshot retention, zero meaning no expiry.
func (c *Config) OrderTTL() time.Duration {
	return time.Duration(c.OrderTTLDays) * 24 * time.Hour
}

// WebhookTolerance returns the allowed webhook signature clock skew.
func (c *Config) WebhookTolerance() time.Duration {
	return time.Duration(c.WebhookToleranceSeconds) * time.Second
}
