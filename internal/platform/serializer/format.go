package serializer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format tags a patient file encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatYAML   Format = "yaml"
	FormatXLSX   Format = "xlsx"
	FormatSQLite Format = "sqlite"
)

// Formats lists every supported encoding.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatYAML, FormatXLSX, FormatSQLite}
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatYAML, FormatXLSX, FormatSQLite:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath infers the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %q", ErrUnknownFormat, path)
	}
}

// ForFormat returns the patient file serializer for f.
func ForFormat(f Format) (PatientFileSerializer, error) {
	switch f {
	case FormatJSON:
		return PatientJSONSerializer{}, nil
	case FormatCSV:
		return PatientCSVSerializer{}, nil
	case FormatYAML:
		return PatientYAMLSerializer{}, nil
	case FormatXLSX:
		return PatientXLSXSerializer{}, nil
	case FormatSQLite:
		return PatientSQLiteSerializer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// CodecFor returns the streaming codec for f. SQLite has none.
func CodecFor(f Format) (Codec, error) {
	s, err := ForFormat(f)
	if err != nil {
		return nil, err
	}
	c, ok := s.(Codec)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be streamed", ErrUnknownFormat, f)
	}
	return c, nil
}
