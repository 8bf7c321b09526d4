package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"rydz/internal/app"
	"rydz/internal/config"
	"rydz/internal/handler"
	"rydz/internal/middleware"
	internalredis "rydz/internal/redis"
	"rydz/internal/repository"
	"rydz/internal/service"
	"rydz/internal/store"
	"rydz/internal/store/postgres"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server, err := wireServer(ctx, db, redisClient, nrApp, cfg)
	if err != nil {
		log.Fatalf("failed to wire server: %v", err)
	}

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(ctx context.Context, db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, error) {
	// Initialize the document store.
	pgStore := postgres.New(db)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	docStore := store.WithTimeout(pgStore, cfg.Core.StoreTimeout)

	// Initialize Redis stores.
	lockStore := internalredis.NewLockStore(redisClient)
	cacheStore := internalredis.NewCacheStore(redisClient)

	// Initialize repositories.
	profileRepo := repository.NewProfiles(docStore)
	rydRepo := repository.NewRydz(docStore)
	eventRepo := repository.NewEvents(docStore)
	familyRepo := repository.NewFamilies(docStore)

	// Initialize services.
	notificationService := service.NewNotificationService()
	policy := service.Policy{DriverOfferNeedsParentApproval: cfg.Core.DriverOfferNeedsParentApproval}
	rydService := service.NewRydService(rydRepo, profileRepo, eventRepo, notificationService, policy)
	aggregatorService := service.NewAggregatorService(rydRepo, profileRepo, eventRepo, cacheStore)
	associationService := service.NewAssociationService(profileRepo)
	profileService := service.NewProfileService(profileRepo, cacheStore)
	eventService := service.NewEventService(eventRepo, profileRepo)
	familyService := service.NewFamilyService(familyRepo, profileRepo)
	sweeper := service.NewSweeper(rydRepo, eventRepo, lockStore, cfg.Core.SweepInterval)

	// The assist endpoints report themselves unconfigured until a real
	// generator is plugged in.
	var generator service.TextGenerator
	assistService := service.NewAssistService(aggregatorService, profileRepo, generator)

	// Initialize handlers.
	rydHandler := handler.NewRydHandler(rydService)
	dashboardHandler := handler.NewDashboardHandler(aggregatorService, cfg.Core.ScheduleHorizonDays)
	associationHandler := handler.NewAssociationHandler(associationService)
	profileHandler := handler.NewProfileHandler(profileService)
	eventHandler := handler.NewEventHandler(eventService)
	familyHandler := handler.NewFamilyHandler(familyService)
	assistHandler := handler.NewAssistHandler(assistService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RydHandler:         rydHandler,
		DashboardHandler:   dashboardHandler,
		AssociationHandler: associationHandler,
		ProfileHandler:     profileHandler,
		EventHandler:       eventHandler,
		FamilyHandler:      familyHandler,
		AssistHandler:      assistHandler,
		Verifier:           middleware.NewStaticVerifier(cfg.Auth.StaticTokens),
		Cache:              cacheStore,
		Sweeper:            sweeper,
		NewRelicApp:        nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}
