package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"projector-maintenance-api/internal/aggregator"
	"projector-maintenance-api/internal/clock"
	"projector-maintenance-api/internal/config"
	"projector-maintenance-api/internal/database"
	"projector-maintenance-api/internal/handler"
	"projector-maintenance-api/internal/middleware"
	"projector-maintenance-api/internal/notification"
	"projector-maintenance-api/internal/reconciler"
	"projector-maintenance-api/internal/repository"
	"projector-maintenance-api/internal/router"
	"projector-maintenance-api/internal/service"
	svcnotification "projector-maintenance-api/internal/service/notification"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize repositories
	visitRepo := repository.NewVisitRepository(db)
	projectorRepo := repository.NewProjectorRepository(db)
	siteRepo := repository.NewSiteRepository(db)
	workerRepo := repository.NewWorkerRepository(db)

	// Initialize notification client with enhanced configuration
	notificationConfig := notification.NotificationConfig{
		URL:            cfg.NotificationService.URL,
		Timeout:        cfg.NotificationService.Timeout,
		RetryAttempts:  cfg.NotificationService.RetryAttempts,
		RetryDelay:     cfg.NotificationService.RetryDelay,
		MaxPayloadSize: cfg.NotificationService.MaxPayloadSize,
	}
	notifier := notification.NewNotifierWithConfig(notificationConfig)

	logger := log.Default()
	clk := clock.System{}

	// Initialize services
	visitService := service.NewVisitService(
		visitRepo,
		projectorRepo,
		siteRepo,
		workerRepo,
		svcnotification.NewServiceAdapter(notifier),
		clk,
		logger,
	)
	catalogService := service.NewCatalogService(siteRepo, projectorRepo, logger)
	agg := aggregator.New(visitRepo, projectorRepo, siteRepo, workerRepo, clk, logger)
	sweeper := reconciler.New(
		projectorRepo,
		visitRepo,
		clk,
		cfg.Reconciler.MaintenanceInterval,
		cfg.Reconciler.ItemTimeout,
		logger,
	)

	// Initialize handlers
	visitHandler := handler.NewVisitHandler(visitService, logger)
	catalogHandler := handler.NewCatalogHandler(catalogService, logger)
	statsHandler := handler.NewStatsHandler(agg, sweeper, notifier, logger)

	// Setup router with security configuration
	r := router.NewRouter(visitHandler, catalogHandler, statsHandler, cfg)

	// Initialize logging middleware
	loggingMW := middleware.NewLoggingMiddleware(logger)

	// Wrap router with logging middleware
	finalHandler := loggingMW.LogRequests(r)

	// Configure server with security settings
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        finalHandler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Background context tied to process lifetime for the reconciler loop
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()

	if cfg.Reconciler.Enabled {
		go sweeper.RunLoop(sweepCtx, cfg.Reconciler.SweepInterval)
		log.Printf("Reconciler enabled: sweep every %v, maintenance interval %v",
			cfg.Reconciler.SweepInterval, cfg.Reconciler.MaintenanceInterval)
	} else {
		log.Println("Reconciler disabled; sweeps run only via POST /api/v1/reconcile")
	}

	// Channel to listen for interrupt signal to gracefully shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %d with security features enabled", cfg.Port)
		log.Printf("Security: Rate limit=%d RPS, Burst=%d, CORS=%v, Timeout=%v",
			cfg.Security.RateLimitRPS,
			cfg.Security.RateLimitBurst,
			cfg.Security.EnableCORS,
			cfg.Security.RequestTimeout,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Block until we receive a signal
	<-done
	log.Println("Server is shutting down...")

	// Stop the sweep loop before draining requests
	stopSweeps()

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Security.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	} else {
		log.Println("Server exited gracefully")
	}
}
