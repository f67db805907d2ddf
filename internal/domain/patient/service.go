package patient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// pageSize bounds each repository read made by AllPatients.
const pageSize = 100

// ErrInvalidInput marks a request the service refuses before touching the
// repository.
var ErrInvalidInput = errors.New("invalid input")

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

// CreatePatient stores a new patient with optional initial observations.
func (s *Service) CreatePatient(ctx context.Context, name string, observations ...Observation) (*Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	for _, o := range observations {
		if err := validateObservation(o.Value, o.Day); err != nil {
			return nil, err
		}
	}
	p := NewPatient(name, observations...)
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, name string) (*Patient, error) {
	return s.patients.GetByName(ctx, name)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) DeletePatient(ctx context.Context, name string) error {
	return s.patients.Delete(ctx, name)
}

// AllPatients pages through the repository and returns every patient.
func (s *Service) AllPatients(ctx context.Context) ([]*Patient, error) {
	var all []*Patient
	for offset := 0; ; offset += pageSize {
		page, total, err := s.patients.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || offset+len(page) >= total {
			return all, nil
		}
	}
}

// RecordObservation appends a measurement to a stored patient. A nil day
// follows the last observation, as Patient.AddObservation does.
func (s *Service) RecordObservation(ctx context.Context, name string, value float64, day *int) (Observation, error) {
	explicit := 0
	if day != nil {
		explicit = *day
	}
	if err := validateObservation(value, explicit); err != nil {
		return Observation{}, err
	}
	p, err := s.patients.GetByName(ctx, name)
	if err != nil {
		return Observation{}, err
	}

	var obs Observation
	if day == nil {
		obs = p.AddObservation(value)
	} else {
		obs = p.AddObservationOnDay(value, *day)
	}
	if err := s.patients.AddObservation(ctx, name, obs); err != nil {
		return Observation{}, err
	}
	return obs, nil
}

func validateObservation(value float64, day int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: observation value must be finite, got %v", ErrInvalidInput, value)
	}
	if value < 0 {
		return fmt.Errorf("%w: observation value must not be negative, got %v", ErrInvalidInput, value)
	}
	if day < 0 {
		return fmt.Errorf("%w: observation day must not be negative, got %d", ErrInvalidInput, day)
	}
	return nil
}

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportPatients stores every patient whose name is not already present.
// Existing names are skipped, like PatientGroup.AddPatient.
func (s *Service) ImportPatients(ctx context.Context, patients []*Patient) (ImportResult, error) {
	var res ImportResult
	for _, p := range patients {
		err := s.patients.Create(ctx, p)
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, ErrDuplicatePatient):
			res.Skipped++
		default:
			return res, fmt.Errorf("import %s: %w", p.Name, err)
		}
	}
	return res, nil
}
