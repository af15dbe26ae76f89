package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/dmonterroso/budgetsync/internal/config"
	"github.com/dmonterroso/budgetsync/internal/database"
	"github.com/dmonterroso/budgetsync/internal/handlers"
	"github.com/dmonterroso/budgetsync/internal/repositories"
	"github.com/dmonterroso/budgetsync/internal/services"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Wire the sync engine: queue store, one store per entity type, and
	// the per-user lock serializing processing passes.
	queueRepo := repositories.NewPostgresSyncQueueRepository(postgresPool, cfg.SyncMaxRetries)
	appliers := services.NewApplierRegistry(
		repositories.NewPostgresBudgetStore(postgresPool),
		repositories.NewPostgresExpenseStore(postgresPool),
		repositories.NewPostgresCreditCardStore(postgresPool),
		repositories.NewPostgresCategoryStore(postgresPool),
		repositories.NewPostgresBudgetPeriodStore(postgresPool),
	)
	locker := services.NewRedisUserLocker(redisClient, cfg.SyncLockTTL)
	syncService := services.NewSyncService(queueRepo, appliers, locker)
	syncHandler := handlers.NewSyncHandler(syncService, cfg.SyncCleanupDays)

	// Initialize HTTP Server
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// Health check endpoints
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Route("/sync", func(r chi.Router) {
		r.Use(handlers.Authenticator(cfg.JWTSecret))
		r.Mount("/", syncHandler.Routes())
	})

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
