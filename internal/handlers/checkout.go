package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thebabesclub/commerce/internal/quotes"
	"github.com/thebabesclub/commerce/internal/sessions"
	"github.com/thebabesclub/commerce/internal/validation"
)

// createCheckoutSession handles POST /checkout-sessions: verify the quote
// signature, open a processor session, and link the two.
func (h *handler) createCheckoutSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CreateCheckoutSessionRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	if !h.cfg.Limiter.Allow(ctx, rateLimitKey(c)) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}

	opts := sessions.Options{
		SuccessURL:          req.SuccessURL,
		CancelURL:           req.CancelURL,
		Mode:                req.Mode,
		AllowPromotionCodes: req.AllowPromotionCodes,
		AutomaticTax:        req.AutomaticTax,
		CustomerEmail:       req.CustomerEmail,
		CustomerID:          req.CustomerID,
		Metadata:            req.Metadata,
		PaymentMethodTypes:  req.PaymentMethodTypes,
		CollectPhoneNumber:  req.CollectPhoneNumber,
		ShippingCountries:   req.ShippingCountries,
	}

	result, err := h.cfg.Linker.Create(ctx, req.QuoteSignature, opts)
	if err != nil {
		switch {
		case errors.Is(err, quotes.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quote_not_found"})
		case errors.Is(err, quotes.ErrExpired):
			c.JSON(http.StatusNotFound, gin.H{"error": "quote_expired"})
		case errors.Is(err, sessions.ErrNoPriceableItems):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no_priceable_items"})
		default:
			log.Error().Err(err).Msg("checkout session creation failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "checkout_session_failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}
