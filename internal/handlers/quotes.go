package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thebabesclub/commerce/internal/validation"
)

// createQuote handles POST /quotes: normalize, sign, persist, and return
// the signature the client presents at checkout.
func (h *handler) createQuote(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CreateQuoteRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	if !h.cfg.Limiter.Allow(ctx, rateLimitKey(c)) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}

	quote, err := h.cfg.Quotes.CreateQuote(ctx, req.Items, req.Subtotal, req.Currency)
	if err != nil {
		log.Error().Err(err).Msg("quote creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote_creation_failed"})
		return
	}

	resp := gin.H{
		"quoteSignature": quote.QuoteSignature,
		"quoteCreatedAt": quote.CreatedAt,
		"normalizedHash": quote.NormalizedHash,
		"pricingSummary": quote.PricingSummary,
		"expiresAt":      quote.ExpiresAt,
	}
	if quote.ProcessorPricing != nil {
		resp["processorPricing"] = quote.ProcessorPricing
	}
	c.JSON(http.StatusCreated, resp)
}
