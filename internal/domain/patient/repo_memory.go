package patient

import (
	"context"
	"fmt"
	"sync"
)

// memoryRepo keeps patients in a PatientGroup. It backs the API server when
// no database is configured.
type memoryRepo struct {
	mu    sync.RWMutex
	group *PatientGroup
}

// NewMemoryRepo returns a repository seeded with the given patients.
// Later patients sharing a name with an earlier one are dropped.
func NewMemoryRepo(seed ...*Patient) Repository {
	return &memoryRepo{group: NewPatientGroup("records", clonePatients(seed)...)}
}

func (r *memoryRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.group.Find(p.Name); ok {
		return fmt.Errorf("%s: %w", p.Name, ErrDuplicatePatient)
	}
	r.group.patients = append(r.group.patients, clonePatient(p))
	return nil
}

func (r *memoryRepo) GetByName(_ context.Context, name string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.group.Find(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrPatientNotFound)
	}
	return clonePatient(p), nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := r.group.Len()
	if offset >= total {
		return []*Patient{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return clonePatients(r.group.patients[offset:end]), total, nil
}

func (r *memoryRepo) AddObservation(_ context.Context, name string, obs Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.group.Find(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrPatientNotFound)
	}
	p.AddObservationOnDay(obs.Value, obs.Day)
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.group.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%s: %w", name, ErrPatientNotFound)
	}
	r.group.patients = append(r.group.patients[:i], r.group.patients[i+1:]...)
	return nil
}

func clonePatient(p *Patient) *Patient {
	obs := make([]Observation, len(p.Observations))
	copy(obs, p.Observations)
	return &Patient{Person: p.Person, Observations: obs}
}

func clonePatients(ps []*Patient) []*Patient {
	out := make([]*Patient, 0, len(ps))
	for _, p := range ps {
		out = append(out, clonePatient(p))
	}
	return out
}
