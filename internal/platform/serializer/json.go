package serializer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/inflammation/inflammation/internal/domain/patient"
)

// PatientJSONSerializer stores patients as a single JSON array of
// {name, observations: [{day, value}]} objects.
type PatientJSONSerializer struct {
	PatientSerializer
}

func (s PatientJSONSerializer) Save(instances []*patient.Patient, dest string) error {
	return saveFile(dest, func(w io.Writer) error { return s.Encode(w, instances) })
}

func (s PatientJSONSerializer) Load(src string) ([]*patient.Patient, error) {
	return loadFile(src, s.Decode)
}

func (s PatientJSONSerializer) Encode(w io.Writer, instances []*patient.Patient) error {
	records, err := s.Serialize(instances)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(records)
}

func (s PatientJSONSerializer) Decode(r io.Reader) ([]*patient.Patient, error) {
	var records []PatientRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return s.Deserialize(records)
}

func (PatientJSONSerializer) ContentType() string { return "application/json" }
