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
	"github.com/spf13/cobra"

	"github.com/inflammation/inflammation/internal/domain/patient"
	"github.com/inflammation/inflammation/internal/domain/stats"
	"github.com/inflammation/inflammation/internal/platform/auth"
	"github.com/inflammation/inflammation/internal/platform/db"
	"github.com/inflammation/inflammation/internal/platform/metrics"
	"github.com/inflammation/inflammation/internal/platform/middleware"
	"github.com/inflammation/inflammation/internal/platform/serializer"
	"github.com/inflammation/inflammation/internal/platform/validate"
)

const shutdownTimeout = 10 * time.Second

// serverDeps are the stores behind the API. pool is nil when no database
// is configured.
type serverDeps struct {
	table    *stats.Table
	patients patient.Repository
	pool     *pgxpool.Pool
}

func (a *app) serveCmd() *cobra.Command {
	var infile, records string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the inflammation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServer(cmd.Context(), infile, records)
		},
	}
	cmd.Flags().StringVar(&infile, "infile", "", "CSV table served by /api/v1/stats")
	cmd.Flags().StringVar(&records, "records", "", "Patient records file to preload")
	return cmd
}

func (a *app) runServer(ctx context.Context, infile, records string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps, cleanup, err := a.openStores(ctx, infile, records)
	if err != nil {
		return err
	}
	defer cleanup()

	e := a.newServer(deps)

	addr := ":" + a.cfg.Port
	go func() {
		a.logger.Info().Str("addr", addr).Bool("postgres", deps.pool != nil).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// openStores loads the stats table and picks the patient repository:
// Postgres when DATABASE_URL is set, otherwise memory seeded from the
// records file or, failing that, from the table rows.
func (a *app) openStores(ctx context.Context, infile, records string) (serverDeps, func(), error) {
	var deps serverDeps
	cleanup := func() {}

	if infile != "" {
		tbl, err := stats.LoadCSV(infile)
		if err != nil {
			return deps, cleanup, err
		}
		deps.table = tbl
		a.logger.Info().Str("file", infile).Int("patients", tbl.Rows()).Int("days", tbl.Cols()).Msg("loaded inflammation table")
	}

	var seed []*patient.Patient
	switch {
	case records != "":
		loaded, err := serializer.LoadFrom(records)
		if err != nil {
			return deps, cleanup, err
		}
		seed = loaded
	case deps.table != nil:
		seed = deps.table.Patients()
	}

	if !a.cfg.HasDatabase() {
		deps.patients = patient.NewMemoryRepo(seed...)
		metrics.SetPatients(len(seed))
		return deps, cleanup, nil
	}

	pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return deps, cleanup, err
	}
	a.logger.Info().Msg("connected to database")
	deps.pool = pool
	deps.patients = patient.NewPatientRepo(pool)
	cleanup = pool.Close

	if records != "" {
		res, err := patient.NewService(deps.patients).ImportPatients(ctx, seed)
		if err != nil {
			pool.Close()
			return deps, func() {}, err
		}
		a.logger.Info().Int("imported", res.Imported).Int("skipped", res.Skipped).Msg("preloaded patient records")
	}
	return deps, cleanup, nil
}

func (a *app) newServer(deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.pool != nil {
		e.GET("/health/db", db.HealthHandler(db.NewMigrator(deps.pool, a.cfg.MigrationsDir), db.DefaultSchema))
	}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	authMW := auth.DevAuthMiddleware()
	if a.cfg.AuthSigningKey != "" {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     a.cfg.AuthIssuer,
			SigningKey: []byte(a.cfg.AuthSigningKey),
		})
	} else {
		a.logger.Warn().Msg("AUTH_SIGNING_KEY not set, API is open to everyone as admin")
	}

	api := e.Group("/api/v1", authMW, middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
	}))

	stats.NewHandler(deps.table).RegisterRoutes(api)

	codecs := func(format string) (patient.Codec, error) {
		return serializer.LookupCodec(format)
	}
	patient.NewHandler(patient.NewService(deps.patients), codecs, a.cfg.DefaultFormat).RegisterRoutes(api)

	return e
}
