// File: slotwise/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"slotwise/config"
	"slotwise/cron"
	"slotwise/database"
	bookingRepo "slotwise/database/repository/booking"
	ruleRepoPkg "slotwise/database/repository/rule"
	"slotwise/handlers"
	"slotwise/middleware"
	"slotwise/routes"
	"slotwise/services/reservation"
	"slotwise/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	mongoRules := ruleRepoPkg.NewMongoRuleRepo()
	if err := mongoRules.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure rule indexes: %v", err)
	}
	ruleCacheTTL := time.Duration(config.AppConfig.RuleCacheTTLSeconds) * time.Second
	rules := ruleRepoPkg.NewCachedRuleRepo(mongoRules, utils.GetCacheClient(), ruleCacheTTL)

	bookings := bookingRepo.NewMongoBookingRepo()
	if err := bookings.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure booking indexes: %v", err)
	}

	// services.
	pendingTTL := time.Duration(config.AppConfig.PendingTTLMin) * time.Minute
	engine := &reservation.DefaultReservationEngine{
		Rules:       rules,
		Bookings:    bookings,
		Expiry:      cron.NewAsynqExpiryScheduler(),
		MaxAttempts: config.AppConfig.ReserveMaxAttempts,
		BackoffBase: time.Duration(config.AppConfig.ReserveBackoffMs) * time.Millisecond,
		PendingTTL:  pendingTTL,
		CancelLead:  time.Duration(config.AppConfig.CancelMinLeadHours) * time.Hour,
	}

	cron.InitExpiryWorker(bookings, pendingTTL)

	reservationHandler := handlers.NewReservationHandler(engine, bookings)
	ruleHandler := handlers.NewRuleHandler(rules)

	routes.RegisterRoutes(router, reservationHandler, ruleHandler)

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
