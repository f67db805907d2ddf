package patient

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNoObservations      = errors.New("patient has no observations")
	ErrIndexOutOfRange     = errors.New("patient index out of range")
	ErrTreatmentAlreadySet = errors.New("treatment already set for group")
)

// Observation is a single inflammation measurement taken on a given day.
type Observation struct {
	Day   int     `json:"day"`
	Value float64 `json:"value"`
}

func (o Observation) Equal(other Observation) bool {
	return o.Day == other.Day && o.Value == other.Value
}

func (o Observation) String() string {
	return strconv.FormatFloat(o.Value, 'g', -1, 64)
}

// Person is the identity record shared by patients and doctors. Two people
// are the same person when their names match.
type Person struct {
	Name string `json:"name"`
}

func (p Person) Identity() Person { return p }

func (p Person) Equal(other Person) bool {
	return p.Name == other.Name
}

func (p Person) String() string { return p.Name }

// Identified is implemented by every entity that embeds a Person.
type Identified interface {
	Identity() Person
}

// Patient is a person in the inflammation study together with their
// observations, ordered by day.
type Patient struct {
	Person
	Observations []Observation `json:"observations"`
}

// NewPatient creates a patient. The observations slice is owned by the
// returned patient.
func NewPatient(name string, observations ...Observation) *Patient {
	p := &Patient{Person: Person{Name: name}}
	if len(observations) > 0 {
		p.Observations = observations
	} else {
		p.Observations = []Observation{}
	}
	return p
}

// AddObservation appends a value on the day after the last observation, or
// on day 0 when the patient has none yet.
func (p *Patient) AddObservation(value float64) Observation {
	day := 0
	if n := len(p.Observations); n > 0 {
		day = p.Observations[n-1].Day + 1
	}
	return p.AddObservationOnDay(value, day)
}

// AddObservationOnDay appends a value recorded on an explicit day.
func (p *Patient) AddObservationOnDay(value float64, day int) Observation {
	obs := Observation{Day: day, Value: value}
	p.Observations = append(p.Observations, obs)
	return obs
}

func (p *Patient) LastObservation() (Observation, error) {
	if len(p.Observations) == 0 {
		return Observation{}, fmt.Errorf("%s: %w", p.Name, ErrNoObservations)
	}
	return p.Observations[len(p.Observations)-1], nil
}

// Equal reports whether both patients share a name and hold the same
// observations in the same order. Lengths are compared before elements so an
// empty list never matches a non-empty one.
func (p *Patient) Equal(other *Patient) bool {
	if p == nil || other == nil {
		return p == other
	}
	if !p.Person.Equal(other.Person) {
		return false
	}
	if len(p.Observations) != len(other.Observations) {
		return false
	}
	for i := range p.Observations {
		if !p.Observations[i].Equal(other.Observations[i]) {
			return false
		}
	}
	return true
}

// EqualPatients compares two patient lists element-wise with Patient.Equal.
func EqualPatients(a, b []*Patient) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Doctor owns exactly one patient group, created with the doctor.
type Doctor struct {
	Person
	Patients *PatientGroup
}

func NewDoctor(name string) *Doctor {
	return &Doctor{
		Person:   Person{Name: name},
		Patients: NewPatientGroup(name + " patients"),
	}
}

func (d *Doctor) AddPatient(name string) (*Patient, bool) {
	return d.Patients.AddPatient(name)
}

// Treatment is an amount of a named substance. Units may be empty.
type Treatment struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Units  string  `json:"units,omitempty"`
}

func (t *Treatment) String() string {
	amount := strconv.FormatFloat(t.Amount, 'g', -1, 64)
	if t.Units == "" {
		return amount + " of " + t.Name
	}
	return amount + " " + t.Units + " of " + t.Name
}

// PatientGroup is a named collection of patients with unique names.
type PatientGroup struct {
	Name     string
	patients []*Patient
}

// NewPatientGroup keeps the first patient of each name. Nil entries are
// skipped.
func NewPatientGroup(name string, patients ...*Patient) *PatientGroup {
	g := &PatientGroup{Name: name}
	for _, p := range patients {
		if p != nil && g.indexOf(p.Name) < 0 {
			g.patients = append(g.patients, p)
		}
	}
	return g
}

func (g *PatientGroup) indexOf(name string) int {
	for i, p := range g.patients {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// AddPatient creates a patient with no observations and appends it. When a
// patient with that name already exists the group is left untouched and
// AddPatient returns (nil, false).
func (g *PatientGroup) AddPatient(name string) (*Patient, bool) {
	if g.indexOf(name) >= 0 {
		return nil, false
	}
	p := NewPatient(name)
	g.patients = append(g.patients, p)
	return p, true
}

func (g *PatientGroup) At(i int) (*Patient, error) {
	if i < 0 || i >= len(g.patients) {
		return nil, fmt.Errorf("%w: %d (group has %d)", ErrIndexOutOfRange, i, len(g.patients))
	}
	return g.patients[i], nil
}

// Find returns the patient with the given name.
func (g *PatientGroup) Find(name string) (*Patient, bool) {
	if i := g.indexOf(name); i >= 0 {
		return g.patients[i], true
	}
	return nil, false
}

func (g *PatientGroup) Len() int { return len(g.patients) }

// Patients returns the members in insertion order.
func (g *PatientGroup) Patients() []*Patient {
	out := make([]*Patient, len(g.patients))
	copy(out, g.patients)
	return out
}

func (g *PatientGroup) String() string {
	return fmt.Sprintf("A group of %d patients called %s", g.Len(), g.Name)
}

// TreatmentGroup is a patient group that receives at most one treatment.
type TreatmentGroup struct {
	PatientGroup
	Treatment *Treatment
}

func NewTreatmentGroup(name string, patients ...*Patient) *TreatmentGroup {
	return &TreatmentGroup{PatientGroup: *NewPatientGroup(name, patients...)}
}

func (g *TreatmentGroup) SetTreatment(name string, amount float64, units string) (*Treatment, error) {
	if g.Treatment != nil {
		return nil, fmt.Errorf("%w as '%s'", ErrTreatmentAlreadySet, g.Treatment)
	}
	g.Treatment = &Treatment{Name: name, Amount: amount, Units: units}
	return g.Treatment, nil
}

func (g *TreatmentGroup) String() string {
	if g.Treatment == nil {
		return fmt.Sprintf("A group of %d untreated patients called %s", g.Len(), g.Name)
	}
	return fmt.Sprintf("A group of %d patients treated with %s", g.Len(), g.Treatment.Name)
}
