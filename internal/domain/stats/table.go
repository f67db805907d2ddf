// Package stats holds the inflammation table, a rows × columns grid with one
// row per patient and one column per day, and the reductions computed over it.
package stats

import (
	"errors"
	"fmt"

	"github.com/inflammation/inflammation/internal/domain/patient"
)

var (
	// ErrInvalidTable reports input that is not a rectangular 2D table.
	ErrInvalidTable = errors.New("inflammation data must be a 2D table")
	// ErrInvalidNames reports a missing list of names.
	ErrInvalidNames = errors.New("names must be provided as a list")
	// ErrNegativeValue reports a negative measurement.
	ErrNegativeValue = errors.New("inflammation values should not be negative")
	// ErrNameCount reports a name list whose length differs from the row count.
	ErrNameCount = errors.New("number of names must match number of rows")
	// ErrNonFinite reports a NaN or infinite cell in loaded data.
	ErrNonFinite = errors.New("inflammation values must be finite")
)

// Table is an immutable grid of float64 cells stored row-major.
type Table struct {
	rows, cols int
	cells      []float64
}

// NewTable copies rows into a Table. Every row must have the same, non-zero
// number of columns.
func NewTable(rows [][]float64) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidTable)
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidTable)
	}
	t := &Table{rows: len(rows), cols: cols, cells: make([]float64, 0, len(rows)*cols)}
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidTable, i, len(r), cols)
		}
		t.cells = append(t.cells, r...)
	}
	return t, nil
}

func (t *Table) Rows() int { return t.rows }

func (t *Table) Cols() int { return t.cols }

func (t *Table) At(r, c int) float64 { return t.cells[r*t.cols+c] }

// Row returns a copy of row r.
func (t *Table) Row(r int) []float64 {
	out := make([]float64, t.cols)
	copy(out, t.cells[r*t.cols:(r+1)*t.cols])
	return out
}

// Column returns a copy of column c.
func (t *Table) Column(c int) []float64 {
	out := make([]float64, t.rows)
	for r := 0; r < t.rows; r++ {
		out[r] = t.At(r, c)
	}
	return out
}

// Slice returns the table as a fresh [][]float64.
func (t *Table) Slice() [][]float64 {
	out := make([][]float64, t.rows)
	for r := range out {
		out[r] = t.Row(r)
	}
	return out
}

// Map returns a new table with fn applied to every cell.
func (t *Table) Map(fn func(r, c int, v float64) float64) *Table {
	out := &Table{rows: t.rows, cols: t.cols, cells: make([]float64, len(t.cells))}
	for i, v := range t.cells {
		out.cells[i] = fn(i/t.cols, i%t.cols, v)
	}
	return out
}

// PatientName is the name given to row i when a table is turned into
// patient records.
func PatientName(i int) string {
	return fmt.Sprintf("patient%03d", i)
}

// PatientNames returns the names of the first n rows.
func PatientNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = PatientName(i)
	}
	return names
}

// Patient builds the patient for row r, one observation per day.
func (t *Table) Patient(r int, name string) *patient.Patient {
	obs := make([]patient.Observation, t.cols)
	for c := range obs {
		obs[c] = patient.Observation{Day: c, Value: t.At(r, c)}
	}
	return patient.NewPatient(name, obs...)
}

// Patients builds one patient per row, named by PatientName.
func (t *Table) Patients() []*patient.Patient {
	out := make([]*patient.Patient, t.rows)
	for r := range out {
		out[r] = t.Patient(r, PatientName(r))
	}
	return out
}
