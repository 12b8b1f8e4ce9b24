package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/domain/directory"
	"github.com/clinicore/clinicore/internal/domain/scheduling"
	"github.com/clinicore/clinicore/internal/platform/calendar"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/middleware"
	"github.com/clinicore/clinicore/internal/platform/notification"
)

const requestTimeout = 30 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic appointment scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(waitlistCmd())

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
			if cfg.InMemoryMode() {
				return fmt.Errorf("DATABASE_URL is not set; nothing to migrate")
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
			if cfg.InMemoryMode() {
				return fmt.Errorf("DATABASE_URL is not set")
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func waitlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waitlist",
		Short: "Manage the booking waitlist",
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one waitlist sweep and print placements",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.InMemoryMode() {
				return fmt.Errorf("DATABASE_URL is not set; the sweep needs a database")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			deps, err := buildServices(cfg, pool, logger)
			if err != nil {
				return err
			}
			deps.dispatcher.Start()
			defer deps.dispatcher.Stop()

			results, err := deps.scheduling.ProcessWaitlist(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			for _, r := range results {
				fmt.Printf("placed entry %s -> booking %s (doctor %d)\n", r.Entry.ID, r.Booking.ID, r.DoctorID)
			}
			fmt.Printf("Placed %d waitlist entr(ies).\n", len(results))
			return nil
		},
	}
	cmd.AddCommand(sweepCmd)

	return cmd
}

// services bundles the wired domain layer so serve and the sweep CLI share
// one construction path.
type services struct {
	directory  *directory.Service
	scheduling *scheduling.Service
	notifier   *notification.Manager
	dispatcher *calendar.Dispatcher
}

// buildServices wires repositories, the calendar dispatcher and the
// notification manager. A nil pool selects the in-memory backend, which is
// how development mode runs without Postgres.
func buildServices(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*services, error) {
	var (
		specialtyRepo directory.SpecialtyRepository
		doctorRepo    directory.DoctorRepository
		ruleRepo      directory.AvailabilityRuleRepository
		ledger        scheduling.BookingLedger
		waitlist      scheduling.WaitlistQueue
	)
	clock := scheduling.SystemClock{}

	if pool != nil {
		specialtyRepo = directory.NewSpecialtyRepoPG(pool)
		doctorRepo = directory.NewDoctorRepoPG(pool)
		ruleRepo = directory.NewAvailabilityRuleRepoPG(pool)
		ledger = scheduling.NewBookingLedgerPG(pool)
		waitlist = scheduling.NewWaitlistQueuePG(pool)
	} else {
		specialtyRepo = directory.NewMemorySpecialtyRepo()
		doctorRepo = directory.NewMemoryDoctorRepo()
		ruleRepo = directory.NewMemoryAvailabilityRuleRepo()
		ledger = scheduling.NewMemoryBookingLedger(clock)
		waitlist = scheduling.NewMemoryWaitlistQueue(clock)
	}

	var syncer calendar.Syncer = calendar.NoopSyncer{}
	if cfg.CalendarEndpoint != "" {
		s, err := calendar.NewHTTPSyncer(cfg.CalendarEndpoint, cfg.CalendarSecret)
		if err != nil {
			return nil, fmt.Errorf("calendar syncer: %w", err)
		}
		syncer = s
	}

	tpl := notification.NewTemplateEngine()
	notifier := notification.NewManager(
		notification.LogEmailSender{Log: logger},
		notification.LogSMSSender{Log: logger},
		tpl,
		logger,
	)

	avail := scheduling.NewRuleAvailabilityStore(doctorRepo, ruleRepo)

	deps := &services{
		directory: directory.NewService(specialtyRepo, doctorRepo, ruleRepo),
		notifier:  notifier,
	}

	// The dispatcher reports provider event ids back to the scheduling
	// service, which is built right after; the closure indirection breaks
	// the construction cycle.
	deps.dispatcher = calendar.NewDispatcher(syncer, logger, func(ctx context.Context, bookingID uuid.UUID, eventID string) {
		if err := deps.scheduling.AttachCalendarEvent(ctx, bookingID, eventID); err != nil {
			logger.Error().Err(err).Stringer("booking_id", bookingID).Msg("failed to store calendar event id")
		}
	})

	deps.scheduling = scheduling.NewService(
		doctorRepo,
		specialtyRepo,
		avail,
		ledger,
		waitlist,
		deps.dispatcher,
		notifier,
		cfg.DefaultSlotMinutes,
		clock,
		logger,
	)
	return deps, nil
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.InMemoryMode() {
		logger.Warn().Msg("DATABASE_URL not set; running with in-memory storage")
	} else {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
	}

	deps, err := buildServices(cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire services")
	}

	deps.dispatcher.Start()
	defer deps.dispatcher.Stop()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(requestTimeout))
	if pool != nil {
		e.Use(db.ConnMiddleware(pool))
	}

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// Domain handlers
	directory.NewHandler(deps.directory).RegisterRoutes(apiV1)
	scheduling.NewHandler(deps.scheduling).RegisterRoutes(apiV1)
	notification.NewHandler(deps.notifier).RegisterRoutes(apiV1)

	// Periodic waitlist sweep
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	if cfg.SweepInterval > 0 {
		go runSweepLoop(sweepCtx, deps.scheduling, cfg.SweepInterval, logger)
		logger.Info().Dur("interval", cfg.SweepInterval).Msg("waitlist sweep loop started")
	}

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	return nil
}

// runSweepLoop periodically books waitlisted patients as capacity opens up.
func runSweepLoop(ctx context.Context, svc *scheduling.Service, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ProcessWaitlist(ctx); err != nil {
				logger.Error().Err(err).Msg("waitlist sweep failed")
			}
		}
	}
}
