package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/app"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/config"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/claiming"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/cache"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/metrics"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/middleware"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Dental clinic back-office API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// openMigrator connects to the configured database. An empty dir falls back
// to MIGRATIONS_DIR.
func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, nil, err
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	return db.NewMigrator(pool, dir), pool.Close, nil
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
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// smsSender picks the HTTP gateway when one is configured and otherwise
// logs messages instead of sending them.
func smsSender(cfg *config.Config, logger zerolog.Logger) (notification.SMSSender, error) {
	if !cfg.SMSEnabled() {
		logger.Warn().Msg("SMS_GATEWAY_URL not set, verification codes are logged instead of sent")
		return notification.NewLogSMSSender(logger), nil
	}
	return notification.NewHTTPSMSSender(notification.GatewayConfig{
		URL:      cfg.SMSGatewayURL,
		Token:    cfg.SMSGatewayToken,
		SenderID: cfg.SMSSenderID,
	}, logger)
}

// resendLimiter returns nil when throttling is disabled.
func resendLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (claiming.ResendLimiter, func()) {
	if cfg.RedisURL == "" || cfg.OTPResendCooldown <= 0 {
		return nil, func() {}
	}
	c, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, challenge resends are not throttled")
		return nil, func() {}
	}
	return cache.NewCooldown(c, "claim-resend", cfg.OTPResendCooldown), func() { _ = c.Close() }
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	sms, err := smsSender(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure sms gateway")
	}
	limiter, closeLimiter := resendLimiter(ctx, cfg, logger)
	defer closeLimiter()

	collector := metrics.NewCollector()
	a := app.New(app.Deps{
		Repos:      app.PostgresRepos(pool),
		Tx:         db.NewTransactor(pool),
		Verifier:   auth.NewBcryptVerifier(cfg.BcryptCost),
		Sessions:   auth.NewJWTSessionIssuer(cfg.JWTSecret, cfg.JWTIssuer),
		SMS:        sms,
		Limiter:    limiter,
		Metrics:    collector,
		Logger:     logger,
		SessionTTL: cfg.SessionTTL,
		OTPTTL:     cfg.OTPTTL,
		ClinicName: cfg.ClinicName,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics(collector))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	a.RegisterRoutes(e, apiV1)
	e.GET("/health/db", db.HealthHandler(pool))

	go a.RunPruner(ctx, cfg.ChallengePruneInterval)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
