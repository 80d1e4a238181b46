// File: trustpay/handlers/biometric.go
package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustpay/models"
	"trustpay/services/biometric"
	"trustpay/services/identity"
	"trustpay/services/trust"
	"trustpay/utils"
)

type BiometricHandler struct {
	Matcher  biometric.Matcher
	Trust    *trust.Store
	Identity *identity.Service
}

func NewBiometricHandler(matcher biometric.Matcher, store *trust.Store, ident *identity.Service) *BiometricHandler {
	return &BiometricHandler{Matcher: matcher, Trust: store, Identity: ident}
}

// EnrollHandler enrolls a captured sample for the current device and records
// the template reference in the trust store.
func (h *BiometricHandler) EnrollHandler(c *gin.Context) {
	var req struct {
		Type   models.BiometricType `json:"type" binding:"required"`
		Sample string               `json:"sample" binding:"required"` // base64
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != models.BiometricFace && req.Type != models.BiometricFingerprint {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type must be face or fingerprint"})
		return
	}
	sample, err := base64.StdEncoding.DecodeString(req.Sample)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sample must be base64 encoded"})
		return
	}

	deviceID, err := h.Identity.EnsureDeviceID(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve device identity"})
		return
	}

	templateRef, err := h.Matcher.Enroll(c.Request.Context(), sample)
	if err != nil {
		utils.GetLogger().Warn("Biometric enrollment rejected", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	record, err := h.Trust.Upsert(c.Request.Context(), deviceID, trust.Partial{
		BiometricType:     &req.Type,
		BiometricTemplate: &templateRef,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": record})
}
