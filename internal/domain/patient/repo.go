package patient

import (
	"context"
	"errors"
)

var (
	ErrPatientNotFound  = errors.New("patient not found")
	ErrDuplicatePatient = errors.New("patient already exists")
)

// Repository persists patients and their observations. Patients are keyed
// by name, matching the uniqueness rule of a PatientGroup.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByName(ctx context.Context, name string) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	AddObservation(ctx context.Context, name string, obs Observation) error
	Delete(ctx context.Context, name string) error
}
