// Package render writes patient records, daily aggregates and normalised
// tables as plain text for the command line.
package render

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/inflammation/inflammation/internal/domain/patient"
	"github.com/inflammation/inflammation/internal/domain/stats"
)

const barWidth = 40

// Series is one labelled line of a chart.
type Series struct {
	Label  string
	Values []float64
}

// SeriesFromMap orders a label → values mapping by label.
func SeriesFromMap(m map[string][]float64) []Series {
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	out := make([]Series, 0, len(labels))
	for _, l := range labels {
		out = append(out, Series{Label: l, Values: m[l]})
	}
	return out
}

// Record prints the patient's name followed by one "day value" line per
// observation.
func Record(w io.Writer, p *patient.Patient) error {
	if _, err := fmt.Fprintln(w, p.Name); err != nil {
		return err
	}
	for _, o := range p.Observations {
		if _, err := fmt.Fprintf(w, "%d %s\n", o.Day, o); err != nil {
			return err
		}
	}
	return nil
}

// Chart prints each series as a block of per-day bars scaled to the largest
// value in that series.
func Chart(w io.Writer, series ...Series) error {
	for i, s := range series {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, s.Label); err != nil {
			return err
		}
		peak := 0.0
		for _, v := range s.Values {
			if !math.IsNaN(v) && v > peak {
				peak = v
			}
		}
		tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
		for day, v := range s.Values {
			fmt.Fprintf(tw, "%d\t%s\t %s\n", day, formatValue(v), bar(v, peak))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func bar(v, peak float64) string {
	if peak <= 0 || math.IsNaN(v) || v <= 0 {
		return ""
	}
	return strings.Repeat("#", int(math.Round(v/peak*barWidth)))
}

// Aggregates prints the daily series side by side, one row per day.
func Aggregates(w io.Writer, series ...Series) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"day"}
	days := 0
	for _, s := range series {
		header = append(header, s.Label)
		if len(s.Values) > days {
			days = len(s.Values)
		}
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for d := 0; d < days; d++ {
		row := []string{strconv.Itoa(d)}
		for _, s := range series {
			cell := ""
			if d < len(s.Values) {
				cell = formatValue(s.Values[d])
			}
			row = append(row, cell)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// NamedRows prints one labelled row per patient.
func NamedRows(w io.Writer, rows []stats.NamedRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, r := range rows {
		cells := make([]string, len(r.Data))
		for i, v := range r.Data {
			cells[i] = strconv.FormatFloat(v, 'f', 3, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, strings.Join(cells, " "))
	}
	return tw.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
