// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/config"
	"github.com/your-org/storefront-sync/internal/feed"
	"github.com/your-org/storefront-sync/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront-sync/internal/infrastructure/database/redis"
	"github.com/your-org/storefront-sync/internal/infrastructure/memory"
	"github.com/your-org/storefront-sync/internal/interfaces/http"
	"github.com/your-org/storefront-sync/internal/pkg/logger"
	"github.com/your-org/storefront-sync/internal/session"
)

// backend is the remote store the sessions synchronize against
type backend struct {
	stores       session.Stores
	redis        *goredis.Client
	healthChecks map[string]http.HealthCheck
	closers      []func() error
}

func (b *backend) close(log *logrus.Entry) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.WithError(err).Warn("Failed to close connection")
		}
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)
	mainLog := logger.Component(log, "main")

	mainLog.Infof("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	var b *backend
	if cfg.UsesMemoryStore() {
		b = newMemoryBackend(log)
	} else {
		b, err = newPostgresBackend(cfg, log)
		if err != nil {
			mainLog.WithError(err).Fatal("Failed to initialise the remote store")
		}
	}
	defer b.close(mainLog)

	manager := session.NewManager(b.stores, session.Options{
		DebounceWindow: cfg.Sync.DebounceWindow,
		WriteTimeout:   cfg.Sync.WriteTimeout,
		Logger:         logger.Component(log, "session"),
	})

	mainLog.WithField("store", cfg.Sync.StoreDriver).Info("✅ All systems operational!")

	// Create and start HTTP server
	server := http.NewServer(cfg, http.Dependencies{
		Manager:      manager,
		Redis:        b.redis,
		HealthChecks: b.healthChecks,
		Logger:       log,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			mainLog.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	mainLog.Info("👋 Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		mainLog.WithError(err).Warn("Failed to shutdown HTTP server gracefully")
	}

	// sessions flush queued quantity writes before the store goes away
	manager.Close()

	mainLog.Info("✅ Server shutdown completed")
}

// newMemoryBackend serves a seeded in-process store, for development
func newMemoryBackend(log *logrus.Logger) *backend {
	hub := feed.NewHub()
	st := memory.NewStore(hub, logger.Component(log, "memory"))

	ctx := context.Background()
	for _, u := range postgres.DemoUsers() {
		st.PutUser(ctx, u)
	}
	for _, p := range postgres.DemoProducts() {
		st.PutProduct(ctx, p)
	}

	return &backend{
		stores: session.Stores{
			Products: st.Products(),
			Cart:     st.Cart(),
			Wishlist: st.Wishlist(),
			Users:    st.Users(),
			Feed:     hub,
		},
	}
}

// newPostgresBackend connects to Postgres for rows and Redis for the change feed
func newPostgresBackend(cfg *config.Config, log *logrus.Logger) (*backend, error) {
	b := &backend{}

	// Connect to database
	db, err := postgres.NewConnection(cfg, logger.Component(log, "postgres"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	b.closers = append(b.closers, db.Close)

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg, logger.Component(log, "redis"))
	if err != nil {
		b.close(logger.Component(log, "main"))
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	b.closers = append(b.closers, redisClient.Close)

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB(), logger.Component(log, "migration"))

	if err := migration.RunAutoMigrations(); err != nil {
		b.close(logger.Component(log, "main"))
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	if err := migration.CreateIndexes(); err != nil {
		log.WithError(err).Warn("Index creation failed")
	}

	// Seed initial data in development
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			log.WithError(err).Warn("Data seeding failed")
		}
		migration.GetTableInfo()
	}

	changes := redis.NewFeed(redisClient.GetClient(), cfg.Sync.FeedPrefix, logger.Component(log, "feed"))
	repos := postgres.NewRepositories(db.GetDB(), changes, logger.Component(log, "repository"))

	b.stores = session.Stores{
		Products: repos.Products,
		Cart:     repos.Cart,
		Wishlist: repos.Wishlist,
		Users:    repos.Users,
		Feed:     changes,
	}
	b.redis = redisClient.GetClient()
	b.healthChecks = map[string]http.HealthCheck{
		"database": db.Health,
		"redis":    redisClient.Health,
	}
	return b, nil
}
