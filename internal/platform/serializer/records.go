package serializer

import (
	"fmt"
	"math"

	"github.com/inflammation/inflammation/internal/domain/patient"
)

// ObservationRecord is the plain form of an observation.
type ObservationRecord struct {
	Day   int     `json:"day" yaml:"day"`
	Value float64 `json:"value" yaml:"value"`
}

// PatientRecord is the plain form of a patient with nested observations.
type PatientRecord struct {
	Name         string              `json:"name" yaml:"name"`
	Observations []ObservationRecord `json:"observations" yaml:"observations"`
}

// ObservationSerializer converts observations to records. It has no file
// representation of its own.
type ObservationSerializer struct {
	Unimplemented[patient.Observation, ObservationRecord]
}

func (ObservationSerializer) Serialize(instances []patient.Observation) ([]ObservationRecord, error) {
	out := make([]ObservationRecord, 0, len(instances))
	for i, o := range instances {
		if !finite(o.Value) {
			return nil, fmt.Errorf("%w: observation %d has non-finite value %v", ErrInvalidRecord, i, o.Value)
		}
		out = append(out, ObservationRecord{Day: o.Day, Value: o.Value})
	}
	return out, nil
}

func (ObservationSerializer) Deserialize(data []ObservationRecord) ([]patient.Observation, error) {
	out := make([]patient.Observation, 0, len(data))
	for i, d := range data {
		if d.Day < 0 {
			return nil, fmt.Errorf("%w: observation %d has negative day %d", ErrInvalidRecord, i, d.Day)
		}
		if !finite(d.Value) {
			return nil, fmt.Errorf("%w: observation %d has non-finite value %v", ErrInvalidRecord, i, d.Value)
		}
		out = append(out, patient.Observation{Day: d.Day, Value: d.Value})
	}
	return out, nil
}

// PatientSerializer converts patients to records, nesting each patient's
// observations through ObservationSerializer.
type PatientSerializer struct {
	Unimplemented[*patient.Patient, PatientRecord]
	observations ObservationSerializer
}

func (s PatientSerializer) Serialize(instances []*patient.Patient) ([]PatientRecord, error) {
	out := make([]PatientRecord, 0, len(instances))
	for _, p := range instances {
		obs, err := s.observations.Serialize(p.Observations)
		if err != nil {
			return nil, fmt.Errorf("patient %s: %w", p.Name, err)
		}
		out = append(out, PatientRecord{Name: p.Name, Observations: obs})
	}
	return out, nil
}

func (s PatientSerializer) Deserialize(data []PatientRecord) ([]*patient.Patient, error) {
	out := make([]*patient.Patient, 0, len(data))
	for i, d := range data {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: patient %d has no name", ErrInvalidRecord, i)
		}
		obs, err := s.observations.Deserialize(d.Observations)
		if err != nil {
			return nil, fmt.Errorf("patient %s: %w", d.Name, err)
		}
		out = append(out, patient.NewPatient(d.Name, obs...))
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
