package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"track-enricher/internal/cache"
	"track-enricher/internal/catalog"
	"track-enricher/internal/common/logging"
	"track-enricher/internal/config"
	"track-enricher/internal/enrich"
	"track-enricher/internal/handlers"
	"track-enricher/internal/middleware"
	"track-enricher/internal/ratelimit"
	"track-enricher/internal/server"
)

func main() {
	_ = godotenv.Load()
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()

	store, purger := buildStore(cfg)
	defer store.Close()

	scheduler := startPurgeSchedule(purger)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	coordinator := ratelimit.NewCoordinator(store, cfg.CooldownWindow)

	client := catalog.New(catalog.Config{
		BaseURL:      cfg.CatalogBaseURL,
		TokenURL:     cfg.CatalogTokenURL,
		ClientID:     cfg.CatalogClientID,
		ClientSecret: cfg.CatalogClientSecret,
		Timeout:      cfg.CatalogTimeout,
	}, coordinator)

	enricher := enrich.New(store, client, coordinator, enrich.Options{
		GroupSize:    cfg.GroupSize,
		PaceDelay:    cfg.PaceDelay,
		CandidateCap: cfg.CandidateCap,
		SearchCap:    cfg.SearchCap,
	})

	h := handlers.New(enricher, storeHealth(store))

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.HandleFunc("/api/enrich", h.HandleEnrich).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	srv := server.New(router, cfg.Port)
	if err := srv.Start(); err != nil {
		logging.Error("server failed to start", err)
		os.Exit(1)
	}
	logging.Info("server started", logging.Field{Key: "port", Value: cfg.Port})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("server forced to shutdown", err)
	}
	logging.Info("server exited")
}

// buildStore creates the cache store named by CACHE_BACKEND. A backend
// that fails to connect degrades to a no-op store instead of aborting
// startup: the service works without a cache, just slower.
func buildStore(cfg *config.Config) (cache.Store, *cache.SQLiteStore) {
	switch cfg.CacheBackend {
	case "redis":
		db, _ := strconv.Atoi(cfg.RedisDB)
		poolSize, _ := strconv.Atoi(cfg.RedisPoolSize)
		store, err := cache.NewRedisStore(&cache.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       db,
			PoolSize: poolSize,
		})
		if err != nil {
			logging.Warn("redis unavailable, running without cache", logging.Err(err))
			return &cache.NoopStore{}, nil
		}
		logging.Info("cache backend ready", logging.Field{Key: "backend", Value: "redis"})
		return store, nil
	case "sqlite":
		store, err := cache.NewSQLiteStore(cfg.CacheDBPath)
		if err != nil {
			logging.Warn("sqlite cache unavailable, running without cache", logging.Err(err))
			return &cache.NoopStore{}, nil
		}
		logging.Info("cache backend ready", logging.Field{Key: "backend", Value: "sqlite"})
		return store, store
	default:
		logging.Info("cache disabled")
		return &cache.NoopStore{}, nil
	}
}

// startPurgeSchedule runs an hourly sweep of expired rows for backends
// that do not expire entries on their own.
func startPurgeSchedule(purger *cache.SQLiteStore) *cron.Cron {
	if purger == nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc("@hourly", func() {
		n, err := purger.PurgeExpired(context.Background())
		if err != nil {
			logging.Warn("cache purge failed", logging.Err(err))
			return
		}
		if n > 0 {
			logging.Debug("purged expired cache entries", logging.Field{Key: "count", Value: n})
		}
	})
	if err != nil {
		logging.Warn("failed to schedule cache purge", logging.Err(err))
		return nil
	}
	c.Start()
	return c
}

// storeHealth returns a health probe when the backend exposes one.
func storeHealth(store cache.Store) func() error {
	type healther interface{ Health() error }
	if h, ok := store.(healther); ok {
		return h.Health
	}
	return nil
}
