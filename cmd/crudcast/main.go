// crudcast serves generic CRUD routers for the configured entities over a
// document or relational store, with role-based security, validation,
// pagination headers and a change event feed.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"go.crudcast.dev/internal/api"
	"go.crudcast.dev/internal/app"
	"go.crudcast.dev/internal/auth"
	"go.crudcast.dev/internal/changefeed"
	"go.crudcast.dev/internal/common/health"
	"go.crudcast.dev/internal/common/lifecycle"
	commonmongo "go.crudcast.dev/internal/common/mongo"
	"go.crudcast.dev/internal/common/secrets"
	"go.crudcast.dev/internal/config"
	"go.crudcast.dev/internal/crud"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Configure logging
	logLevel := slog.LevelInfo
	if os.Getenv("CRUDCAST_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting crudcast",
		"version", version,
		"build_time", buildTime)

	cfg, err := config.LoadWithFile()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := lifecycle.NewManager()
	healthChecker := health.NewChecker()

	// Resolve the JWT secret through the configured secrets provider when it
	// is not set inline.
	if cfg.Auth.Enabled && cfg.Auth.Secret == "" {
		provider, err := secrets.NewProvider(cfg.Secrets)
		if err != nil {
			slog.Error("Failed to create secrets provider", "error", err)
			os.Exit(1)
		}
		secret, err := provider.Get(ctx, "jwt-secret")
		if err != nil {
			slog.Error("JWT secret not configured and not found in secrets provider",
				"provider", provider.Name(), "error", err)
			os.Exit(1)
		}
		cfg.Auth.Secret = secret
	}

	// Storage backend
	var models map[string]crud.Model

	switch cfg.Store.Type {
	case "mongo":
		slog.Info("Connecting to MongoDB", "uri", maskURI(cfg.Store.MongoDB.URI))
		mongoClient, err := commonmongo.Connect(ctx, cfg.Store.MongoDB)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		shutdown.RegisterDatabaseShutdown("mongodb", mongoClient.Disconnect)
		healthChecker.AddReadinessCheck(health.PingCheck("MongoDB", func() error {
			return mongoClient.Ping(ctx)
		}))

		if err := commonmongo.NewIndexInitializer(mongoClient, app.MongoIndexes()).Initialize(ctx); err != nil {
			slog.Warn("Index initialization failed", "error", err)
		}

		models = app.MongoModels(mongoClient.Database(), cfg.Store.MongoDB.Transactions)

	case "mysql":
		slog.Info("Connecting to MySQL")
		if _, err := mysql.ParseDSN(cfg.Store.MySQL.DSN); err != nil {
			slog.Error("Invalid MySQL DSN", "error", err)
			os.Exit(1)
		}
		db, err := sql.Open("mysql", cfg.Store.MySQL.DSN)
		if err != nil {
			slog.Error("Failed to open MySQL connection", "error", err)
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.Store.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Store.MySQL.MaxIdleConns)
		if err := db.PingContext(ctx); err != nil {
			slog.Error("Failed to ping MySQL", "error", err)
			os.Exit(1)
		}
		shutdown.RegisterDatabaseShutdown("mysql", func(context.Context) error {
			return db.Close()
		})
		healthChecker.AddReadinessCheck(health.PingCheck("MySQL", func() error {
			return db.Ping()
		}))

		models = app.MySQLModels(db)

	default:
		slog.Error("Unknown store type", "type", cfg.Store.Type)
		os.Exit(1)
	}

	// Optional Redis cache
	modelOpts := app.ModelOptions{}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to ping Redis", "error", err)
			os.Exit(1)
		}
		shutdown.RegisterCacheShutdown("redis", func(context.Context) error {
			return rdb.Close()
		})
		healthChecker.AddReadinessCheck(health.PingCheck("Redis", func() error {
			return rdb.Ping(ctx).Err()
		}))
		modelOpts.Redis = rdb
		modelOpts.RedisTTL = cfg.Redis.TTL
		slog.Info("Model cache enabled", "ttl", cfg.Redis.TTL)
	}

	// Optional circuit breaker
	if cfg.Resilience.BreakerEnabled {
		breakerCfg := crud.DefaultBreakerConfig()
		if cfg.Resilience.BreakerMinRequests > 0 {
			breakerCfg.MinRequests = cfg.Resilience.BreakerMinRequests
		}
		if cfg.Resilience.BreakerRatio > 0 {
			breakerCfg.Ratio = cfg.Resilience.BreakerRatio
		}
		if cfg.Resilience.BreakerTimeout > 0 {
			breakerCfg.Timeout = cfg.Resilience.BreakerTimeout
		}
		modelOpts.Breaker = &breakerCfg
	}

	rawUsers := models[app.EntityUsers]
	models = app.Decorate(models, modelOpts)

	// Changefeed publisher
	feedCfg := changefeed.Config{
		Type: changefeed.FeedType(cfg.Changefeed.Type),
		NATS: changefeed.NATSConfig{
			URL:        cfg.Changefeed.NATS.URL,
			StreamName: cfg.Changefeed.NATS.StreamName,
			DataDir:    cfg.Changefeed.NATS.DataDir,
		},
		SQS: changefeed.SQSConfig{
			QueueURL:       cfg.Changefeed.SQS.QueueURL,
			Region:         cfg.Changefeed.SQS.Region,
			CustomEndpoint: cfg.Changefeed.SQS.CustomEndpoint,
		},
	}
	publisher, err := changefeed.New(ctx, feedCfg)
	if err != nil {
		slog.Error("Failed to create changefeed publisher", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		shutdown.RegisterFeedShutdown("changefeed", func(context.Context) error {
			return publisher.Close()
		})
		slog.Info("Changefeed enabled", "type", cfg.Changefeed.Type)
	}

	// HTTP router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(api.Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Total-Count", "Location", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.HTTP.RateLimitRPS > 0 {
		burst := cfg.HTTP.RateLimitBurst
		if burst == 0 {
			burst = cfg.HTTP.RateLimitRPS
		}
		r.Use(api.RateLimit(float64(cfg.HTTP.RateLimitRPS), burst))
	}

	// Health endpoints
	r.Get("/q/health", healthChecker.HandleHealth)
	r.Get("/q/health/live", healthChecker.HandleLive)
	r.Get("/q/health/ready", healthChecker.HandleReady)

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Entity routes, behind bearer authentication when enabled
	if cfg.Auth.Enabled {
		tokenService := auth.NewTokenService([]byte(cfg.Auth.Secret), cfg.Auth.Issuer, cfg.Auth.TokenExpiry)
		passwordService := auth.NewPasswordServiceWithCost(cfg.Auth.BcryptCost)
		loginHandler := auth.NewHandler(app.UserLookup(rawUsers), passwordService, tokenService)

		r.Mount("/auth", loginHandler.Routes())
		r.Route("/api", func(r chi.Router) {
			r.Use(auth.Middleware(tokenService))
			app.Mount(r, models, changefeedHook(publisher))
		})
	} else {
		r.Route("/api", func(r chi.Router) {
			app.Mount(r, models, changefeedHook(publisher))
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	shutdown.RegisterHTTPShutdown("http", server.Shutdown)

	go func() {
		slog.Info("HTTP server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	if err := shutdown.Run(); err != nil {
		slog.Error("Shutdown incomplete", "error", err)
		os.Exit(1)
	}
	slog.Info("crudcast stopped")
}

// changefeedHook builds the per-entity write hook factory fanning out change
// events. A nil publisher disables the feed.
func changefeedHook(publisher changefeed.Publisher) func(entity string) crud.WriteHook {
	if publisher == nil {
		return nil
	}
	return func(entity string) crud.WriteHook {
		return changefeed.Hook(publisher, entity)
	}
}

// maskURI masks sensitive parts of a MongoDB URI for logging
func maskURI(uri string) string {
	if len(uri) > 20 {
		return uri[:20] + "..."
	}
	return uri
}
