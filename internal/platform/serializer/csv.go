package serializer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inflammation/inflammation/internal/domain/patient"
)

var csvHeader = []string{"name", "day", "observation"}

// PatientCSVSerializer flattens patients to one row per observation under a
// name,day,observation header. Loading groups rows by name in the order the
// names first appear, so interleaved files reload in first-appearance order.
// Patients with no observations produce no rows and are not restored.
type PatientCSVSerializer struct {
	PatientSerializer
}

func (s PatientCSVSerializer) Save(instances []*patient.Patient, dest string) error {
	return saveFile(dest, func(w io.Writer) error { return s.Encode(w, instances) })
}

func (s PatientCSVSerializer) Load(src string) ([]*patient.Patient, error) {
	return loadFile(src, s.Decode)
}

func (s PatientCSVSerializer) Encode(w io.Writer, instances []*patient.Patient) error {
	rows, err := s.rows(instances)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func (s PatientCSVSerializer) rows(instances []*patient.Patient) ([][]string, error) {
	records, err := s.Serialize(instances)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, rec := range records {
		for _, obs := range rec.Observations {
			rows = append(rows, []string{
				rec.Name,
				strconv.Itoa(obs.Day),
				strconv.FormatFloat(obs.Value, 'g', -1, 64),
			})
		}
	}
	return rows, nil
}

func (s PatientCSVSerializer) Decode(r io.Reader) ([]*patient.Patient, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []*patient.Patient{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		rows = append(rows, row)
	}
	return s.fromRows(header, rows)
}

// fromRows rebuilds patients from a header row and data rows. It is shared
// by the spreadsheet encoding, which stores the same table.
func (s PatientCSVSerializer) fromRows(header []string, rows [][]string) ([]*patient.Patient, error) {
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var order []string
	grouped := make(map[string][]ObservationRecord)
	for i, row := range rows {
		line := i + 2
		if len(row) < len(header) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMalformed, line, len(row), len(header))
		}
		name := row[idx["name"]]
		day, err := strconv.Atoi(strings.TrimSpace(row[idx["day"]]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d day: %w", ErrMalformed, line, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[idx["observation"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d observation: %w", ErrMalformed, line, err)
		}
		if _, seen := grouped[name]; !seen {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], ObservationRecord{Day: day, Value: value})
	}

	records := make([]PatientRecord, 0, len(order))
	for _, name := range order {
		records = append(records, PatientRecord{Name: name, Observations: grouped[name]})
	}
	return s.Deserialize(records)
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	for _, want := range csvHeader {
		if _, ok := idx[want]; !ok {
			return nil, fmt.Errorf("%w: header missing %q column", ErrMalformed, want)
		}
	}
	return idx, nil
}

func (PatientCSVSerializer) ContentType() string { return "text/csv" }
