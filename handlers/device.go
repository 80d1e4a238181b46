// File: trustpay/handlers/device.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustpay/models"
	"trustpay/services/identity"
	"trustpay/services/trust"
	"trustpay/utils"
)

type DeviceHandler struct {
	Trust    *trust.Store
	Identity *identity.Service
}

func NewDeviceHandler(store *trust.Store, ident *identity.Service) *DeviceHandler {
	return &DeviceHandler{Trust: store, Identity: ident}
}

// RegisterDeviceHandler registers the running instance as a trusted device
// and returns an auth token for subsequent calls.
func (h *DeviceHandler) RegisterDeviceHandler(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deviceID, err := h.Identity.EnsureDeviceID(c.Request.Context())
	if err != nil {
		utils.GetLogger().Error("Failed to resolve device identity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve device identity"})
		return
	}

	record, err := h.Trust.Register(c.Request.Context(), deviceID, req.Name, req.PhoneNumber)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		utils.GetLogger().Error("Failed to register device", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed, please try again"})
		return
	}

	token, err := utils.GenerateToken(deviceID, 24*time.Hour)
	if err != nil {
		utils.GetLogger().Error("Failed to generate auth token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"device": record, "token": token})
}

// ListDevicesHandler returns all trusted devices in insertion order.
func (h *DeviceHandler) ListDevicesHandler(c *gin.Context) {
	devices, err := h.Trust.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if devices == nil {
		devices = []models.DeviceRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// CurrentDeviceHandler returns the record for the running instance.
func (h *DeviceHandler) CurrentDeviceHandler(c *gin.Context) {
	record, err := h.Trust.CurrentDevice(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Current device is not registered"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": record, "trusted": true})
}

// RemoveDeviceHandler deletes a device from the trust store. Removing an
// unknown id is not an error.
func (h *DeviceHandler) RemoveDeviceHandler(c *gin.Context) {
	deviceID := c.Param("id")
	removed, err := h.Trust.Remove(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// UpdateDeviceHandler merges caller-supplied fields into a device record.
func (h *DeviceHandler) UpdateDeviceHandler(c *gin.Context) {
	deviceID := c.Param("id")
	var req struct {
		FriendlyName *string `json:"friendlyName"`
		PhoneNumber  *string `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.Trust.Upsert(c.Request.Context(), deviceID, trust.Partial{
		FriendlyName: req.FriendlyName,
		PhoneNumber:  req.PhoneNumber,
	})
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": record})
}
