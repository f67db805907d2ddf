// Package serializer converts patients and observations to plain records and
// persists them in interchangeable encodings. Every encoding shares the same
// record shape, so a file written in one format can be re-saved in another.
package serializer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/inflammation/inflammation/internal/domain/patient"
)

var (
	ErrNotImplemented = errors.New("serializer operation not implemented")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrMalformed      = errors.New("malformed document")
	ErrUnknownFormat  = errors.New("unknown format")
)

// Serializer converts instances of T to plain records R and back, and
// persists them at a destination path.
type Serializer[T, R any] interface {
	Serialize(instances []T) ([]R, error)
	Deserialize(data []R) ([]T, error)
	Save(instances []T, dest string) error
	Load(src string) ([]T, error)
}

// PatientFileSerializer is a serializer for whole patient record files.
type PatientFileSerializer = Serializer[*patient.Patient, PatientRecord]

// Codec is implemented by encodings that can stream to and from any reader
// or writer, not only files.
type Codec interface {
	Encode(w io.Writer, patients []*patient.Patient) error
	Decode(r io.Reader) ([]*patient.Patient, error)
	ContentType() string
}

// Unimplemented rejects every operation. Concrete serializers embed it and
// override the operations they support.
type Unimplemented[T, R any] struct{}

func (Unimplemented[T, R]) Serialize([]T) ([]R, error) { return nil, ErrNotImplemented }

func (Unimplemented[T, R]) Deserialize([]R) ([]T, error) { return nil, ErrNotImplemented }

func (Unimplemented[T, R]) Save([]T, string) error { return ErrNotImplemented }

func (Unimplemented[T, R]) Load(string) ([]T, error) { return nil, ErrNotImplemented }

// saveFile creates or truncates dest and hands it to encode.
func saveFile(dest string, encode func(io.Writer) error) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dest, cerr)
		}
	}()
	if err := encode(f); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func loadFile(src string, decode func(io.Reader) ([]*patient.Patient, error)) ([]*patient.Patient, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	patients, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return patients, nil
}
