// File: trustpay/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"trustpay/config"
	"trustpay/cron"
	"trustpay/database"
	"trustpay/handlers"
	"trustpay/middleware"
	"trustpay/routes"
	"trustpay/services/biometric"
	"trustpay/services/identity"
	"trustpay/services/linking"
	"trustpay/services/notification"
	"trustpay/services/risk"
	"trustpay/services/trust"
	"trustpay/services/verification"
	"trustpay/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	var store database.KVStore
	switch config.AppConfig.StoreBackend {
	case "redis":
		redisStore, err := database.NewRedisStore()
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize redis store: %v", err)
		}
		store = redisStore
	case "mongo":
		mongoStore, err := database.NewMongoStore()
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize mongo store: %v", err)
		}
		store = mongoStore
	default:
		store = database.NewMemoryStore()
	}

	// Out-of-band delivery channel for verification codes.
	var notifier notification.Notifier
	if config.AppConfig.SMSDelivery == "asynq" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     config.AppConfig.RedisAddr,
			Password: config.AppConfig.RedisPassword,
			DB:       config.AppConfig.RedisQueueDB,
		})
		defer client.Close()
		notifier = notification.NewAsynqNotifier(client)
		cron.InitSMSWorker(notification.LogNotifier{})
	} else {
		notifier = notification.LogNotifier{}
	}

	// Services.
	identityService := identity.NewService(store)
	trustStore := trust.NewStore(store, identityService)
	linkingService := linking.NewService(store, identityService, trustStore)
	codeService := verification.NewService(store, notifier)
	matcher := biometric.AcceptAllMatcher{}
	riskEngine := risk.NewEngine(trustStore, codeService, matcher, config.AppConfig.HighValueThreshold)

	// Surface trust-store changes in the log.
	go func() {
		for event := range trustStore.Subscribe() {
			logger.Sugar().Infof("Trust store changed: %s %s", event.Op, event.DeviceID)
		}
	}()

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	handlerBundle := &routes.Handlers{
		Device:    handlers.NewDeviceHandler(trustStore, identityService),
		Link:      handlers.NewLinkHandler(linkingService),
		Risk:      handlers.NewRiskHandler(riskEngine, codeService, trustStore),
		Biometric: handlers.NewBiometricHandler(matcher, trustStore, identityService),
		Trust:     trustStore,
	}
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
