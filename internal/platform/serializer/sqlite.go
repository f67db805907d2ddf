package serializer

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/inflammation/inflammation/internal/domain/patient"
)

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS patients (
	position INTEGER PRIMARY KEY,
	name     TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS observations (
	patient  INTEGER NOT NULL REFERENCES patients(position),
	seq      INTEGER NOT NULL,
	day      INTEGER NOT NULL,
	value    REAL NOT NULL,
	PRIMARY KEY (patient, seq)
)`}

// PatientSQLiteSerializer stores patients in a single-file SQLite database.
// Saving replaces whatever the file held before.
type PatientSQLiteSerializer struct {
	PatientSerializer
}

func (s PatientSQLiteSerializer) Save(instances []*patient.Patient, dest string) (err error) {
	records, err := s.Serialize(instances)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", dest)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dest, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sqlite %s: %w", dest, cerr)
		}
	}()

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM observations`); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM patients`); err != nil {
		return fmt.Errorf("clear patients: %w", err)
	}
	for pos, rec := range records {
		if _, err := tx.Exec(`INSERT INTO patients (position, name) VALUES (?, ?)`, pos, rec.Name); err != nil {
			return fmt.Errorf("insert patient %s: %w", rec.Name, err)
		}
		for seq, obs := range rec.Observations {
			if _, err := tx.Exec(`INSERT INTO observations (patient, seq, day, value) VALUES (?, ?, ?, ?)`,
				pos, seq, obs.Day, obs.Value); err != nil {
				return fmt.Errorf("insert observation %s/%d: %w", rec.Name, seq, err)
			}
		}
	}
	return tx.Commit()
}

func (s PatientSQLiteSerializer) Load(src string) ([]*patient.Patient, error) {
	// Opening a missing path would silently create an empty database.
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("open %s: %w", src, err)
	}
	db, err := sql.Open("sqlite", src)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", src, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT position, name FROM patients ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	var records []PatientRecord
	positions := make(map[int]int)
	for rows.Next() {
		var pos int
		var rec PatientRecord
		if err := rows.Scan(&pos, &rec.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		positions[pos] = len(records)
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	obsRows, err := db.Query(`SELECT patient, day, value FROM observations ORDER BY patient, seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer obsRows.Close()
	for obsRows.Next() {
		var pos int
		var obs ObservationRecord
		if err := obsRows.Scan(&pos, &obs.Day, &obs.Value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		i, ok := positions[pos]
		if !ok {
			return nil, fmt.Errorf("%w: observation for unknown patient %d", ErrMalformed, pos)
		}
		records[i].Observations = append(records[i].Observations, obs)
	}
	if err := obsRows.Err(); err != nil {
		return nil, err
	}
	return s.Deserialize(records)
}
