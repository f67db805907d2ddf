package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inflammation/inflammation/internal/domain/patient"
	"github.com/inflammation/inflammation/internal/domain/stats"
	"github.com/inflammation/inflammation/internal/platform/render"
	"github.com/inflammation/inflammation/internal/platform/serializer"
)

func (a *app) visualiseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visualise FILE...",
		Short: "Chart the daily average, max and min of each CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				tbl, err := stats.LoadCSV(path)
				if err != nil {
					return err
				}
				d, err := stats.Summarise(tbl)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				a.logger.Debug().Str("file", path).Int("patients", tbl.Rows()).Int("days", tbl.Cols()).Msg("visualising")
				fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n", path)
				if err := render.Chart(cmd.OutOrStdout(), render.SeriesFromMap(d.Series())...); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) recordCmd() *cobra.Command {
	var (
		index    int
		jsonPath string
	)
	cmd := &cobra.Command{
		Use:   "record FILE...",
		Short: "Print one patient's observations",
		Long: "Print one patient's observations. With --json-path the patient is read from " +
			"a records file (format from its extension); otherwise row --patient of each CSV " +
			"is shown as patient UNKNOWN.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				p, err := a.selectPatient(path, jsonPath, index)
				if err != nil {
					return err
				}
				if err := render.Record(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "patient", 0, "Index of the patient to display")
	cmd.Flags().StringVar(&jsonPath, "json-path", "", "Records file to read the patient from")
	return cmd
}

func (a *app) selectPatient(csvPath, recordsPath string, index int) (*patient.Patient, error) {
	if recordsPath != "" {
		patients, err := serializer.LoadFrom(recordsPath)
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(patients) {
			return nil, fmt.Errorf("%s: %w: %d (file has %d patients)", recordsPath, patient.ErrIndexOutOfRange, index, len(patients))
		}
		return patients[index], nil
	}

	tbl, err := stats.LoadCSV(csvPath)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= tbl.Rows() {
		return nil, fmt.Errorf("%s: %w: %d (table has %d rows)", csvPath, patient.ErrIndexOutOfRange, index, tbl.Rows())
	}
	return tbl.Patient(index, "UNKNOWN"), nil
}

func (a *app) toJSONCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "to-json FILE",
		Short: "Convert a CSV into a JSON patient records file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.export(args[0], out, serializer.FormatJSON)
		},
	}
	cmd.Flags().StringVar(&out, "json-path", "", "Destination JSON file")
	_ = cmd.MarkFlagRequired("json-path")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var out, format string
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Convert a CSV into a patient records file in any format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.outputFormat(out, format)
			if err != nil {
				return err
			}
			return a.export(args[0], out, f)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Destination file")
	cmd.Flags().StringVar(&format, "format", "", "json, csv, yaml, xlsx or sqlite (default: from --out, then DEFAULT_FORMAT)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// outputFormat prefers an explicit flag, then the destination's extension,
// then the configured default.
func (a *app) outputFormat(dest, flag string) (serializer.Format, error) {
	if flag != "" {
		return serializer.ParseFormat(flag)
	}
	if f, err := serializer.FormatFromPath(dest); err == nil {
		return f, nil
	}
	return a.cfg.Format()
}

func (a *app) export(csvPath, dest string, f serializer.Format) error {
	tbl, err := stats.LoadCSV(csvPath)
	if err != nil {
		return err
	}
	patients := tbl.Patients()
	if err := serializer.SaveAs(f, patients, dest); err != nil {
		return err
	}
	a.logger.Info().Str("file", csvPath).Str("out", dest).Str("format", string(f)).Int("patients", len(patients)).Msg("exported patient records")
	return nil
}

func (a *app) normaliseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalise FILE...",
		Short: "Print each patient's observations scaled to their maximum",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				tbl, err := stats.LoadCSV(path)
				if err != nil {
					return err
				}
				norm, err := stats.PatientNormalise(tbl)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				rows, err := stats.AttachNames(norm, stats.PatientNames(norm.Rows()))
				if err != nil {
					return err
				}
				if err := render.NamedRows(cmd.OutOrStdout(), rows); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
