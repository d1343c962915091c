package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smilecloud/smilecloud/internal/adapter/auth"
	"github.com/smilecloud/smilecloud/internal/adapter/database"
	"github.com/smilecloud/smilecloud/internal/adapter/nexhealth"
	"github.com/smilecloud/smilecloud/internal/adapter/patient"
	"github.com/smilecloud/smilecloud/internal/adapter/voicecampaign"
	"github.com/smilecloud/smilecloud/internal/cache"
	"github.com/smilecloud/smilecloud/internal/config"
	"github.com/smilecloud/smilecloud/internal/gateway"
	"github.com/smilecloud/smilecloud/internal/platform/db"
	"github.com/smilecloud/smilecloud/internal/platform/middleware"
	"github.com/smilecloud/smilecloud/internal/transport"
)

const flushInterval = 5 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway-server",
		Short: "Dental practice API gateway",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the upstream response cache",
	}

	openCache := func() (*cache.PagedCache, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		return cache.New(cfg.CacheFile, cfg.CacheTTL(), logger), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache()
			if err != nil {
				return err
			}
			s := store.Snapshot()
			fmt.Printf("pages:     %d\n", s.Pages)
			fmt.Printf("entities:  %d\n", s.Entities)
			fmt.Printf("written:   %s\n", s.Timestamp.Format(time.RFC3339))
			fmt.Printf("valid:     %t\n", s.Valid)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop all cached pages and entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Println("Cache cleared.")
			return nil
		},
	})

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Degraded adapters stay unregistered so their routes answer 503 while
	// the rest of the gateway keeps serving.
	var degraded []string

	// Database (optional)
	var dbPool *pgxpool.Pool
	if cfg.HasDatabase() {
		dbPool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Error().Err(err).Msg("database unavailable, database-backed routes degraded")
			dbPool = nil
		} else {
			logger.Info().Msg("connected to database")
		}
	} else {
		logger.Warn().Msg("DATABASE_URL not set, database-backed routes degraded")
	}
	if dbPool == nil {
		degraded = append(degraded, "database", "voicecampaigns")
	}
	defer func() {
		if dbPool != nil {
			dbPool.Close()
		}
	}()

	// Upstream response cache
	store := cache.New(cfg.CacheFile, cfg.CacheTTL(), logger)
	flusherCtx, stopFlusher := context.WithCancel(ctx)
	defer stopFlusher()
	store.StartFlusher(flusherCtx, flushInterval)

	// Gateway and adapters
	gw := gateway.New(logger)

	if cfg.SupabaseJWTSecret != "" {
		gw.RegisterAdapter("auth", auth.NewAdapter(cfg.SupabaseJWTSecret, logger))
	} else {
		logger.Warn().Msg("SUPABASE_JWT_SECRET not set, auth routes degraded")
		degraded = append(degraded, "auth")
	}

	if cfg.HasNexHealth() {
		client := nexhealth.NewClient(nexhealth.Config{
			BaseURL:    cfg.NexHealthBaseURL,
			APIKey:     cfg.NexHealthAPIKey,
			Subdomain:  cfg.NexHealthSubdomain,
			LocationID: cfg.NexHealthLocation,
			Timeout:    cfg.UpstreamTimeout(),
		}, logger)
		gw.RegisterAdapter("nexhealth", nexhealth.NewAdapter(client, logger))
		gw.RegisterAdapter("patients", patient.NewAdapter(client, store, logger))
	} else {
		logger.Warn().Msg("NexHealth credentials not set, upstream routes degraded")
		degraded = append(degraded, "nexhealth", "patients")
	}

	if dbPool != nil {
		gw.RegisterAdapter("database", database.NewAdapter(database.NewPGStore(dbPool), logger))
		campaignSvc := voicecampaign.NewService(voicecampaign.NewRepoPG(dbPool), logger)
		gw.RegisterAdapter("voicecampaigns", voicecampaign.NewAdapter(campaignSvc, logger))
	}

	// Route table. Registration order matters: exact and specific routes
	// first, broad prefixes last.
	gw.RegisterRoute(gateway.Exact("/api/auth/session"), "auth", http.MethodPost)
	gw.RegisterRoute(gateway.Exact("/api/patients"), "patients", http.MethodGet)
	gw.RegisterRoute(gateway.Prefix("/api/patients/*"), "patients", http.MethodGet)
	gw.RegisterRoute(gateway.Exact("/api/voice-campaigns"), "voicecampaigns", "")
	gw.RegisterRoute(gateway.Prefix("/api/voice-campaigns/*"), "voicecampaigns", "")
	gw.RegisterRoute(gateway.Prefix("/api/database/*"), "database", "")
	gw.RegisterRoute(gateway.Prefix("/api/nexhealth/*"), "nexhealth", "")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	api := e.Group("")
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.RequestTimeout(cfg.UpstreamTimeout() + 5*time.Second))
	transport.NewHandler(gw, logger).Register(api)

	// Health checks
	e.GET("/health", healthHandler(degraded))
	if dbPool != nil {
		e.GET("/health/db", db.HealthHandler(dbPool))
	}

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Strs("degraded", degraded).Msg("gateway listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	stopFlusher()
	if err := store.Flush(); err != nil {
		logger.Error().Err(err).Msg("final cache flush failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func healthHandler(degraded []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := map[string]interface{}{
			"status":  "ok",
			"message": "gateway is running",
		}
		if len(degraded) > 0 {
			body["status"] = "degraded"
			body["degraded"] = degraded
		}
		return c.JSON(http.StatusOK, body)
	}
}
