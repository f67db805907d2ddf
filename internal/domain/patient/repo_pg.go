package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("patient create: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	id := uuid.New()
	_, err = tx.Exec(ctx, `INSERT INTO patient (id, name) VALUES ($1, $2)`, id, p.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", p.Name, ErrDuplicatePatient)
		}
		return fmt.Errorf("patient create: %w", err)
	}

	for seq, obs := range p.Observations {
		if err := insertObservation(ctx, tx, id, seq, obs); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertObservation(ctx context.Context, q querier, patientID uuid.UUID, seq int, obs Observation) error {
	_, err := q.Exec(ctx, `
		INSERT INTO observation (id, patient_id, seq, day, value)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), patientID, seq, obs.Day, obs.Value,
	)
	if err != nil {
		return fmt.Errorf("observation insert: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByName(ctx context.Context, name string) (*Patient, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM patient WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, ErrPatientNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("patient get: %w", err)
	}
	obs, err := r.observations(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewPatient(name, obs...), nil
}

func (r *patientRepoPG) observations(ctx context.Context, patientID uuid.UUID) ([]Observation, error) {
	rows, err := r.pool.Query(ctx, `SELECT day, value FROM observation WHERE patient_id = $1 ORDER BY seq`, patientID)
	if err != nil {
		return nil, fmt.Errorf("observation list: %w", err)
	}
	defer rows.Close()

	var obs []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.Day, &o.Value); err != nil {
			return nil, fmt.Errorf("observation scan: %w", err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM patient ORDER BY created_at, name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	type row struct {
		id   uuid.UUID
		name string
	}
	var found []row
	for rows.Next() {
		var rw row
		if err := rows.Scan(&rw.id, &rw.name); err != nil {
			rows.Close()
			return nil, 0, err
		}
		found = append(found, rw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	patients := make([]*Patient, 0, len(found))
	for _, rw := range found {
		obs, err := r.observations(ctx, rw.id)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, NewPatient(rw.name, obs...))
	}
	return patients, total, nil
}

func (r *patientRepoPG) AddObservation(ctx context.Context, name string, obs Observation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("observation add: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var id uuid.UUID
	var next int
	err = tx.QueryRow(ctx, `
		SELECT p.id, COALESCE(MAX(o.seq) + 1, 0)
		FROM patient p LEFT JOIN observation o ON o.patient_id = p.id
		WHERE p.name = $1
		GROUP BY p.id`, name).Scan(&id, &next)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", name, ErrPatientNotFound)
	}
	if err != nil {
		return fmt.Errorf("observation add: %w", err)
	}
	if err := insertObservation(ctx, tx, id, next, obs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *patientRepoPG) Delete(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patient WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("patient delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", name, ErrPatientNotFound)
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}
