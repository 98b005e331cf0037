package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medicore/medicore/internal/config"
	"github.com/medicore/medicore/internal/domain/account"
	"github.com/medicore/medicore/internal/domain/admission"
	"github.com/medicore/medicore/internal/domain/appointment"
	"github.com/medicore/medicore/internal/domain/audit"
	"github.com/medicore/medicore/internal/domain/invoice"
	"github.com/medicore/medicore/internal/domain/order"
	"github.com/medicore/medicore/internal/domain/patient"
	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/db"
	"github.com/medicore/medicore/internal/platform/kv"
	"github.com/medicore/medicore/internal/platform/middleware"
	"github.com/medicore/medicore/internal/platform/reporting"
	"github.com/medicore/medicore/internal/platform/sequence"
	"github.com/medicore/medicore/internal/platform/telemetry"
	"github.com/medicore/medicore/pkg/respond"
)

const serverVersion = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "medicore-server",
		Short: "MediCore hospital administration API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MediCore API server",
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

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Migrations directory (overrides MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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
	statusCmd.Flags().String("dir", "", "Migrations directory (overrides MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	// migrate down - keep as warning
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore the database from a backup to roll back.")
			return nil
		},
	})

	return cmd
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || name == "" {
				return fmt.Errorf("--email and --name are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			generated := false
			if password == "" {
				password, err = generatePassword()
				if err != nil {
					return fmt.Errorf("failed to generate password: %w", err)
				}
				generated = true
			}

			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			auditSvc := audit.NewService(audit.NewRepoPG(pool), logger)
			svc := account.NewService(account.NewRepoPG(pool), auth.NewPasswordHasher(cfg.BcryptCost), auditSvc)

			var acct *account.Account
			err = db.RunInTx(ctx, pool, func(ctx context.Context) error {
				created, err := svc.Create(ctx, account.CreateInput{
					Email:    email,
					FullName: name,
					Role:     account.RoleAdmin,
					Password: password,
				}, nil, account.Meta{RequestID: "cli"})
				if err != nil {
					return err
				}
				acct = created
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to create administrator: %w", err)
			}

			fmt.Printf("Administrator account created: %s (%s)\n", acct.Email, acct.ID)
			if generated {
				fmt.Printf("Generated password: %s\n", password)
				fmt.Println("Store it securely; it will not be shown again.")
			}
			return nil
		},
	}
	cmd.Flags().String("email", "", "Administrator email address")
	cmd.Flags().String("name", "", "Administrator full name")
	cmd.Flags().String("password", "", "Password (generated when omitted)")
	return cmd
}

// generatePassword produces a random password for create-admin. The fixed
// prefix covers the complexity policy; the hex tail carries the entropy.
func generatePassword() (string, error) {
	raw := make([]byte, 9)
	if _, err := crypto_rand.Read(raw); err != nil {
		return "", err
	}
	return "Aa1-" + hex.EncodeToString(raw), nil
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
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis backs revocation, lockout counters, rate limits and sequences.
	store, err := kv.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer store.Close()
	logger.Info().Msg("connected to redis")

	// Metrics
	metrics := telemetry.New(telemetry.Config{
		ServiceName:    "medicore-server",
		ServiceVersion: serverVersion,
		Environment:    cfg.Env,
	})

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = respond.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(metrics.MetricsMiddleware())

	// Credential and session plumbing
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	totp := auth.NewTOTP(cfg.TOTPIssuer)
	revoked := auth.NewStoreRevocationList(store)
	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL, revoked)
	policy := auth.LockoutPolicy{Threshold: cfg.LockoutThreshold, Duration: cfg.LockoutDuration}

	accountRepo := account.NewRepoPG(pool)
	auditSvc := audit.NewService(audit.NewRepoPG(pool), logger)
	guard := account.NewGuard(accountRepo, hasher, totp, issuer, policy, auditSvc, metrics)
	gate := account.NewGate(accountRepo, policy)
	rbac := auth.NewRBAC(audit.DenialRecorder(auditSvc))
	limiter := middleware.NewRateLimiter(store, logger)
	seq := sequence.New(store)

	// Login is throttled per source IP before any credential check; the
	// session-bound operations additionally require a valid token.
	authGroup := e.Group("/api/v1/auth")
	authGroup.Use(middleware.RateLimitByIP(limiter, middleware.RateLimitConfig{
		Limit:  cfg.AuthRateLimit,
		Window: cfg.AuthRateWindow,
	}))
	session := authGroup.Group("")
	session.Use(auth.Authenticate(issuer, gate, logger))
	session.Use(middleware.Audit(logger))
	account.NewAuthHandler(guard).RegisterRoutes(authGroup, session)

	// Everything else requires a session and is throttled per account.
	apiV1 := e.Group("/api/v1")
	apiV1.Use(auth.Authenticate(issuer, gate, logger))
	apiV1.Use(middleware.RateLimitByAccount(limiter, middleware.RateLimitConfig{
		Limit:  cfg.APIRateLimit,
		Window: cfg.APIRateWindow,
	}))
	apiV1.Use(middleware.Audit(logger))

	// Domain handlers
	accountSvc := account.NewService(accountRepo, hasher, auditSvc)
	account.NewHandler(accountSvc).RegisterRoutes(apiV1, rbac)

	patientSvc := patient.NewService(patient.NewRepoPG(pool), seq)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1, rbac)

	appointmentSvc := appointment.NewService(appointment.NewRepoPG(pool), seq)
	appointment.NewHandler(appointmentSvc, rbac).RegisterRoutes(apiV1)

	admissionSvc := admission.NewService(admission.NewRepoPG(pool))
	admission.NewHandler(admissionSvc).RegisterRoutes(apiV1, rbac)

	orderSvc := order.NewService(order.NewRepoPG(pool), seq)
	order.NewHandler(orderSvc, rbac).RegisterRoutes(apiV1)

	invoiceSvc := invoice.NewService(invoice.NewRepoPG(pool), seq)
	invoice.NewHandler(invoiceSvc).RegisterRoutes(apiV1, rbac)

	audit.NewHandler(auditSvc).RegisterRoutes(apiV1, rbac)

	reporting.NewHandler(reporting.NewService(pool)).RegisterRoutes(apiV1, rbac)

	// Health check
	health := metrics.HealthMetrics()
	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbState := "ok"
		if err := pool.Ping(ctx); err != nil {
			dbState = "unreachable"
			status = http.StatusServiceUnavailable
		}
		redisState := "ok"
		if err := store.Ping(ctx); err != nil {
			redisState = "unreachable"
			status = http.StatusServiceUnavailable
		}

		stats := db.Stats(pool)
		health.SetDBPoolActive(int64(stats.AcquiredConns))
		health.SetDBPoolIdle(int64(stats.IdleConns))

		body := map[string]interface{}{
			"status":   "ok",
			"version":  serverVersion,
			"database": dbState,
			"redis":    redisState,
			"pool":     stats,
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		return c.JSON(status, body)
	})

	// Metrics endpoint
	e.GET("/metrics", metrics.PrometheusHandler())

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
