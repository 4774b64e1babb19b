package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// handleWebhook handles POST /webhooks/payment. Signature failure is the
// only 4xx: once the payload is authenticated, the response is 200 no
// matter what happens internally, so the processor never retries an event
// we have already absorbed.
func (h *handler) handleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_payload"})
		return
	}

	ev, err := h.cfg.Verifier.Verify(ctx, payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("webhook rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
		return
	}

	result := h.cfg.Ingestor.Process(ctx, ev)
	c.JSON(http.StatusOK, result)
}
