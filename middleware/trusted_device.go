// File: trustpay/middleware/trusted_device.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustpay/services/trust"
)

// TrustedDeviceMiddleware rejects requests whose device header does not
// match a record in the trust store.
func TrustedDeviceMiddleware(store *trust.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawDeviceID, exists := c.Get("deviceID")
		if !exists || rawDeviceID == nil {
			zap.L().Error("TrustedDeviceMiddleware: missing deviceID in context")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing device details"})
			return
		}
		deviceID, ok := rawDeviceID.(string)
		if !ok || deviceID == "" {
			zap.L().Error("TrustedDeviceMiddleware: invalid deviceID", zap.Any("deviceID", rawDeviceID))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid device ID"})
			return
		}

		record, err := store.Get(c.Request.Context(), deviceID)
		if err != nil {
			zap.L().Error("TrustedDeviceMiddleware: trust store lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if record == nil {
			zap.L().Warn("TrustedDeviceMiddleware: device not recognized", zap.String("deviceID", deviceID))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Device not recognized"})
			return
		}
		c.Next()
	}
}
