// File: trustpay/handlers/risk.go
package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustpay/models"
	"trustpay/services/risk"
	"trustpay/services/trust"
	"trustpay/services/verification"
	"trustpay/utils"
)

type RiskHandler struct {
	Engine *risk.Engine
	Codes  *verification.Service
	Trust  *trust.Store
}

func NewRiskHandler(engine *risk.Engine, codes *verification.Service, store *trust.Store) *RiskHandler {
	return &RiskHandler{Engine: engine, Codes: codes, Trust: store}
}

// EvaluateHandler runs a transaction through the risk engine. Callers
// resubmit the same transaction id after completing any requested step-up.
func (h *RiskHandler) EvaluateHandler(c *gin.Context) {
	var req struct {
		ID        string  `json:"id" binding:"required"`
		Amount    float64 `json:"amount"`
		Currency  string  `json:"currency" binding:"required"`
		Recipient string  `json:"recipient"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx := models.Transaction{
		ID:        req.ID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Recipient: req.Recipient,
		Timestamp: time.Now(),
	}
	result, err := h.Engine.Evaluate(c.Request.Context(), tx)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		utils.GetLogger().Error("Risk evaluation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Evaluation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// IssueCodeHandler issues a verification code for phone step-up and hands it
// to the delivery channel. The current device must have a phone number.
func (h *RiskHandler) IssueCodeHandler(c *gin.Context) {
	device, err := h.Trust.CurrentDevice(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if device == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current device is not registered"})
		return
	}
	if device.PhoneNumber == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "No phone number registered for this device"})
		return
	}

	if _, err := h.Codes.Issue(c.Request.Context(), device.PhoneNumber); err != nil {
		utils.GetLogger().Error("Failed to issue verification code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue verification code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}

// SubmitCallCodeHandler checks a phone verification code against the
// outstanding one. The code is consumed regardless of outcome.
func (h *RiskHandler) SubmitCallCodeHandler(c *gin.Context) {
	var req struct {
		TransactionID string `json:"transactionId" binding:"required"`
		Code          string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	verified, err := h.Engine.SubmitCallCode(c.Request.Context(), req.TransactionID, req.Code)
	if errors.Is(err, risk.ErrNoPendingEvaluation) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}
	if !verified {
		c.JSON(http.StatusUnauthorized, gin.H{"verified": false, "error": "Code did not match"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true, "message": "Resubmit the transaction to complete evaluation"})
}

// SubmitBiometricHandler feeds a captured biometric sample back into a
// pending evaluation.
func (h *RiskHandler) SubmitBiometricHandler(c *gin.Context) {
	var req struct {
		TransactionID string `json:"transactionId" binding:"required"`
		Sample        string `json:"sample" binding:"required"` // base64
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sample, err := base64.StdEncoding.DecodeString(req.Sample)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sample must be base64 encoded"})
		return
	}

	verified, err := h.Engine.SubmitBiometric(c.Request.Context(), req.TransactionID, sample)
	if errors.Is(err, risk.ErrNoPendingEvaluation) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"verified": false, "error": err.Error()})
		return
	}
	if !verified {
		c.JSON(http.StatusUnauthorized, gin.H{"verified": false, "error": "Biometric sample did not match"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true, "message": "Resubmit the transaction to complete evaluation"})
}
