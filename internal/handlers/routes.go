// Package handlers wires the HTTP surface: quote creation, checkout session
// linkage, webhook ingestion, and the on-demand order lookup.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/thebabesclub/commerce/internal/events"
	"github.com/thebabesclub/commerce/internal/orders"
	"github.com/thebabesclub/commerce/internal/processor"
	"github.com/thebabesclub/commerce/internal/quotes"
	"github.com/thebabesclub/commerce/internal/ratelimit"
	"github.com/thebabesclub/commerce/internal/sessions"
	"github.com/thebabesclub/commerce/internal/validation"
)

// HandlerConfig groups the components the routes depend on.
type HandlerConfig struct {
	Quotes       *quotes.Store
	Linker       *sessions.Linker
	Verifier     *processor.WebhookVerifier
	Ingestor     *events.Ingestor
	Orders       *orders.Store
	Materializer *orders.Materializer
	Processor    processor.API
	Limiter      *ratelimit.Limiter
}

type handler struct {
	cfg      HandlerConfig
	validate *validatorv10.Validate
}

// Register mounts every route on the engine.
func Register(r *gin.Engine, cfg HandlerConfig) {
	h := &handler{cfg: cfg, validate: validation.New()}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/quotes", h.createQuote)
	r.POST("/checkout-sessions", h.createCheckoutSession)
	r.POST("/webhooks/payment", h.handleWebhook)
	r.GET("/orders/:orderId", h.getOrder)
}

// rateLimitKey identifies the caller for the fixed-window counter. The
// client IP is what API Gateway forwards; an empty IP degrades to a shared
// bucket rather than unlimited traffic.
func rateLimitKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "anonymous"
}
