package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thebabesclub/commerce/internal/orders"
	"github.com/thebabesclub/commerce/internal/processor"
)

// getOrder handles GET /orders/:orderId. The owner id arrives resolved from
// the upstream authorizer. When the snapshot is missing, the session is
// fetched from the processor and, if it completed and belongs to the caller,
// materialized on the spot.
func (h *handler) getOrder(c *gin.Context) {
	ctx := c.Request.Context()

	ownerID := c.GetHeader("X-User-Id")
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_user"})
		return
	}
	orderID := c.Param("orderId")

	snap, err := h.cfg.Orders.GetByOrderID(ctx, ownerID, orderID)
	if err != nil {
		log.Error().Err(err).Str("orderId", orderID).Msg("order lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_lookup_failed"})
		return
	}
	if snap != nil {
		c.JSON(http.StatusOK, orderResponse(snap))
		return
	}

	// The orderId doubles as the session id, so a cache miss can still be
	// resolved against the processor.
	sess, err := h.cfg.Processor.GetSession(ctx, orderID, true)
	if err != nil {
		if errors.Is(err, processor.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		log.Error().Err(err).Str("orderId", orderID).Msg("session fallback fetch failed")
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
		return
	}
	if sess.Status != "complete" || !ownsSession(ownerID, sess) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
		return
	}

	quoteSignature := sess.Metadata["quoteSignature"]
	if quoteSignature == "" {
		quoteSignature = sess.Metadata["quote_signature"]
	}
	outcome, created, err := h.cfg.Materializer.Materialize(ctx, orders.Input{
		SessionID:      orderID,
		Data:           *sess,
		QuoteSignature: quoteSignature,
		Source:         orders.SourceOnDemand,
	})
	if err != nil || outcome == orders.OutcomeSkipped {
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
		return
	}
	if outcome == orders.OutcomeAlreadyExists {
		// Raced with a webhook or sweep; read back what won.
		snap, err = h.cfg.Orders.GetByOrderID(ctx, ownerID, orderID)
		if err != nil || snap == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		c.JSON(http.StatusOK, orderResponse(snap))
		return
	}

	c.JSON(http.StatusOK, orderResponse(created))
}

// ownsSession checks the session against the caller: either the metadata
// owner matches, or the customer email does.
func ownsSession(ownerID string, sess *processor.SessionData) bool {
	for _, k := range []string{"userId", "user_id", "ownerId"} {
		if v := sess.Metadata[k]; v != "" {
			return v == ownerID
		}
	}
	return sess.Email() != "" && sess.Email() == ownerID
}

func orderResponse(snap *orders.Snapshot) gin.H {
	resp := gin.H{
		"orderId":        snap.OrderID,
		"orderNumber":    snap.OrderNumber,
		"status":         snap.Status,
		"amount":         snap.Amount,
		"amountSubtotal": snap.AmountSubtotal,
		"currency":       snap.Currency,
		"items":          snap.Items,
		"itemCount":      snap.ItemCount,
		"createdAt":      snap.CreatedAt,
		"completedAt":    snap.CompletedAt,
		"paymentStatus":  snap.PaymentStatus,
		"source":         snap.Source,
	}
	if snap.CustomerEmail != "" {
		resp["customerEmail"] = snap.CustomerEmail
	}
	if snap.ShippingAddress != nil {
		resp["shippingAddress"] = snap.ShippingAddress
	}
	if snap.PricingSummary != nil {
		resp["pricingSummary"] = snap.PricingSummary
	}
	return resp
}
