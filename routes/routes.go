// File: trustpay/routes/routes.go
package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"trustpay/handlers"
	"trustpay/middleware"
	"trustpay/services/trust"
)

// Handlers bundles everything route registration needs.
type Handlers struct {
	Device    *handlers.DeviceHandler
	Link      *handlers.LinkHandler
	Risk      *handlers.RiskHandler
	Biometric *handlers.BiometricHandler
	Trust     *trust.Store
}

// RegisterDeviceRoutes registers trust-store device endpoints.
func RegisterDeviceRoutes(r *gin.Engine, hb *Handlers) {
	api := r.Group("/api/devices")
	{
		api.POST("/register", hb.Device.RegisterDeviceHandler)

		// Protected routes (Require Authentication)
		api.Use(middleware.JWTAuthMiddleware())
		api.GET("", hb.Device.ListDevicesHandler)
		api.GET("/current", hb.Device.CurrentDeviceHandler)
		api.PATCH("/:id", hb.Device.UpdateDeviceHandler)
		api.DELETE("/:id", hb.Device.RemoveDeviceHandler)
	}
}

// RegisterLinkRoutes registers device-linking endpoints. Issuing requires an
// authenticated trusted device; redeeming is presented by the new device.
func RegisterLinkRoutes(r *gin.Engine, hb *Handlers) {
	api := r.Group("/api/link")
	{
		api.POST("/redeem", hb.Link.RedeemLinkHandler)

		protected := api.Group("")
		protected.Use(middleware.JWTAuthMiddleware())
		protected.Use(middleware.DeviceDetailsMiddleware())
		protected.Use(middleware.TrustedDeviceMiddleware(hb.Trust))
		protected.POST("/issue", hb.Link.IssueLinkHandler)
	}
}

// RegisterRiskRoutes registers transaction evaluation and step-up endpoints.
func RegisterRiskRoutes(r *gin.Engine, hb *Handlers) {
	api := r.Group("/api/risk")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.POST("/evaluate", hb.Risk.EvaluateHandler)
		api.POST("/verify/biometric", hb.Risk.SubmitBiometricHandler)
		api.POST("/verify/call", hb.Risk.IssueCodeHandler)
		api.POST("/verify/call/check", hb.Risk.SubmitCallCodeHandler)
	}
}

// RegisterBiometricRoutes registers enrollment endpoints.
func RegisterBiometricRoutes(r *gin.Engine, hb *Handlers) {
	api := r.Group("/api/biometric")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.POST("/enroll", hb.Biometric.EnrollHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm Trustpay"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *Handlers) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Device-ID", "X-Device-Name"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterDeviceRoutes(r, hb)
	RegisterLinkRoutes(r, hb)
	RegisterRiskRoutes(r, hb)
	RegisterBiometricRoutes(r, hb)
	RegisterHealthRoute(r)
}
