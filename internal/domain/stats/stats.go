package stats

import (
	"fmt"
	"math"
)

// DailyMean returns the mean of each day across all patients.
func DailyMean(t *Table) ([]float64, error) {
	return reduceColumns(t, func(col []float64) float64 {
		var sum float64
		for _, v := range col {
			sum += v
		}
		return sum / float64(len(col))
	})
}

// DailyMax returns the maximum of each day across all patients.
func DailyMax(t *Table) ([]float64, error) {
	return reduceColumns(t, func(col []float64) float64 {
		m := col[0]
		for _, v := range col[1:] {
			m = math.Max(m, v)
		}
		return m
	})
}

// DailyMin returns the minimum of each day across all patients.
func DailyMin(t *Table) ([]float64, error) {
	return reduceColumns(t, func(col []float64) float64 {
		m := col[0]
		for _, v := range col[1:] {
			m = math.Min(m, v)
		}
		return m
	})
}

func reduceColumns(t *Table, fn func([]float64) float64) ([]float64, error) {
	if t == nil {
		return nil, ErrInvalidTable
	}
	out := make([]float64, t.Cols())
	for c := range out {
		out[c] = fn(t.Column(c))
	}
	return out, nil
}

// PatientNormalise divides every value by the maximum of its row. NaN cells
// are ignored when finding the maximum. Results that come out NaN, such as
// those of an all-zero row, become 0, and negative results are clamped to 0.
func PatientNormalise(t *Table) (*Table, error) {
	if t == nil {
		return nil, ErrInvalidTable
	}
	for _, v := range t.cells {
		if v < 0 {
			return nil, ErrNegativeValue
		}
	}

	rowMax := make([]float64, t.Rows())
	for r := range rowMax {
		rowMax[r] = nanMax(t.Row(r))
	}
	return t.Map(func(r, _ int, v float64) float64 {
		n := v / rowMax[r]
		if math.IsNaN(n) || n < 0 {
			return 0
		}
		return n
	}), nil
}

func nanMax(values []float64) float64 {
	m := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v > m {
			m = v
		}
	}
	return m
}

// NamedRow pairs a patient name with that patient's row of data.
type NamedRow struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// AttachNames pairs each row of t with the name at the same position.
func AttachNames(t *Table, names []string) ([]NamedRow, error) {
	if t == nil {
		return nil, ErrInvalidTable
	}
	if names == nil {
		return nil, ErrInvalidNames
	}
	if len(names) != t.Rows() {
		return nil, fmt.Errorf("%w: you gave %d for %d rows", ErrNameCount, len(names), t.Rows())
	}
	out := make([]NamedRow, len(names))
	for i, name := range names {
		out[i] = NamedRow{Name: name, Data: t.Row(i)}
	}
	return out, nil
}

// Daily holds the three per-day aggregates shown by the visualise view.
type Daily struct {
	Mean []float64 `json:"average"`
	Max  []float64 `json:"max"`
	Min  []float64 `json:"min"`
}

func Summarise(t *Table) (*Daily, error) {
	mean, err := DailyMean(t)
	if err != nil {
		return nil, err
	}
	hi, err := DailyMax(t)
	if err != nil {
		return nil, err
	}
	lo, err := DailyMin(t)
	if err != nil {
		return nil, err
	}
	return &Daily{Mean: mean, Max: hi, Min: lo}, nil
}

// Series returns the aggregates keyed by their display label.
func (d *Daily) Series() map[string][]float64 {
	return map[string][]float64{
		"average": d.Mean,
		"max":     d.Max,
		"min":     d.Min,
	}
}
