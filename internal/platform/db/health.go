package db

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// StoreCounts are the row counts of the patient store.
type StoreCounts struct {
	Patients     int64 `json:"patients"`
	Observations int64 `json:"observations"`
}

// StoreChecker is what /health/db asks of the patient store. *Migrator
// implements it against Postgres.
type StoreChecker interface {
	Ping(ctx context.Context) error
	Counts(ctx context.Context, schema string) (StoreCounts, error)
	Status(ctx context.Context, schema string) ([]MigrationStatus, error)
}

// StoreReport is the /health/db response body.
type StoreReport struct {
	Status  string       `json:"status"`
	Schema  string       `json:"schema"`
	Error   string       `json:"error,omitempty"`
	Pending []string     `json:"pending_migrations,omitempty"`
	Counts  *StoreCounts `json:"counts,omitempty"`
}

func (m *Migrator) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

func (m *Migrator) Counts(ctx context.Context, schema string) (StoreCounts, error) {
	var sc StoreCounts
	err := m.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT (SELECT count(*) FROM %[1]s.patient), (SELECT count(*) FROM %[1]s.observation)`, schema,
	)).Scan(&sc.Patients, &sc.Observations)
	if err != nil {
		return StoreCounts{}, fmt.Errorf("count patient rows in %s: %w", schema, err)
	}
	return sc, nil
}

// HealthHandler reports the patient store as healthy only when it answers a
// ping, every known migration has been applied and its tables can be counted.
// Anything else is a 503.
func HealthHandler(store StoreChecker, schema string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		report := StoreReport{Status: "healthy", Schema: schema}
		unavailable := func(status string, err error) error {
			report.Status = status
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}

		if err := store.Ping(ctx); err != nil {
			return unavailable("unreachable", err)
		}

		statuses, err := store.Status(ctx, schema)
		if err != nil {
			return unavailable("unmigrated", err)
		}
		for _, s := range statuses {
			if !s.Applied {
				report.Pending = append(report.Pending, s.Name)
			}
		}
		if len(report.Pending) > 0 {
			return unavailable("pending_migrations", fmt.Errorf("%d migrations not applied", len(report.Pending)))
		}

		counts, err := store.Counts(ctx, schema)
		if err != nil {
			return unavailable("unmigrated", err)
		}
		report.Counts = &counts
		return c.JSON(http.StatusOK, report)
	}
}
