package serializer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/inflammation/inflammation/internal/domain/patient"
)

const xlsxSheet = "patients"

// PatientXLSXSerializer stores the CSV table layout in the "patients" sheet
// of a spreadsheet workbook.
type PatientXLSXSerializer struct {
	PatientSerializer
}

func (s PatientXLSXSerializer) Save(instances []*patient.Patient, dest string) error {
	return saveFile(dest, func(w io.Writer) error { return s.Encode(w, instances) })
}

func (s PatientXLSXSerializer) Load(src string) ([]*patient.Patient, error) {
	return loadFile(src, s.Decode)
}

func (s PatientXLSXSerializer) Encode(w io.Writer, instances []*patient.Patient) error {
	records, err := s.Serialize(instances)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &[]interface{}{"name", "day", "observation"}); err != nil {
		return err
	}

	row := 2
	for _, rec := range records {
		for _, obs := range rec.Observations {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(xlsxSheet, cell, &[]interface{}{rec.Name, obs.Day, obs.Value}); err != nil {
				return err
			}
			row++
		}
	}
	return f.Write(w)
}

func (s PatientXLSXSerializer) Decode(r io.Reader) ([]*patient.Patient, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(rows) == 0 {
		return []*patient.Patient{}, nil
	}
	return PatientCSVSerializer{PatientSerializer: s.PatientSerializer}.fromRows(rows[0], rows[1:])
}

func (PatientXLSXSerializer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
