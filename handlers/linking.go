// File: trustpay/handlers/linking.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trustpay/services/linking"
)

type LinkHandler struct {
	Linking *linking.Service
}

func NewLinkHandler(svc *linking.Service) *LinkHandler {
	return &LinkHandler{Linking: svc}
}

// IssueLinkHandler produces a hand-off payload vouching for this device,
// typically rendered as a QR code by the caller.
func (h *LinkHandler) IssueLinkHandler(c *gin.Context) {
	payload, err := h.Linking.Issue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue link payload"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": payload, "expiresIn": int(linking.PayloadTTL.Seconds())})
}

// RedeemLinkHandler consumes a hand-off payload presented by a trusted
// device and adds the new device to the trust store.
func (h *LinkHandler) RedeemLinkHandler(c *gin.Context) {
	var req struct {
		Payload string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.Linking.Redeem(c.Request.Context(), req.Payload)
	switch {
	case errors.Is(err, linking.ErrMalformedPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed link payload"})
	case errors.Is(err, linking.ErrExpiredLink):
		c.JSON(http.StatusGone, gin.H{"error": "Link payload has expired"})
	case errors.Is(err, linking.ErrLinkAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "Link payload already redeemed"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to redeem link payload"})
	default:
		c.JSON(http.StatusOK, gin.H{"device": record})
	}
}
