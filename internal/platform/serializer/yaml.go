package serializer

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v2"

	"github.com/inflammation/inflammation/internal/domain/patient"
)

// PatientYAMLSerializer stores patients as a YAML sequence with the same
// shape as the JSON document.
type PatientYAMLSerializer struct {
	PatientSerializer
}

func (s PatientYAMLSerializer) Save(instances []*patient.Patient, dest string) error {
	return saveFile(dest, func(w io.Writer) error { return s.Encode(w, instances) })
}

func (s PatientYAMLSerializer) Load(src string) ([]*patient.Patient, error) {
	return loadFile(src, s.Decode)
}

func (s PatientYAMLSerializer) Encode(w io.Writer, instances []*patient.Patient) error {
	records, err := s.Serialize(instances)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(records); err != nil {
		return err
	}
	return enc.Close()
}

func (s PatientYAMLSerializer) Decode(r io.Reader) ([]*patient.Patient, error) {
	var records []PatientRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return s.Deserialize(records)
}

func (PatientYAMLSerializer) ContentType() string { return "application/yaml" }
