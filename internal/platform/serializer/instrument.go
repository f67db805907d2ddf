package serializer

import (
	"io"
	"time"

	"github.com/inflammation/inflammation/internal/domain/patient"
	"github.com/inflammation/inflammation/internal/platform/metrics"
)

type instrumentedCodec struct {
	Codec
	format Format
}

func (c instrumentedCodec) Encode(w io.Writer, patients []*patient.Patient) (err error) {
	defer func(start time.Time) { metrics.ObserveSerializer(string(c.format), "encode", start, err) }(time.Now())
	return c.Codec.Encode(w, patients)
}

func (c instrumentedCodec) Decode(r io.Reader) (patients []*patient.Patient, err error) {
	defer func(start time.Time) { metrics.ObserveSerializer(string(c.format), "decode", start, err) }(time.Now())
	return c.Codec.Decode(r)
}

// LookupCodec parses a format name and returns its codec with operation
// metrics attached.
func LookupCodec(name string) (Codec, error) {
	f, err := ParseFormat(name)
	if err != nil {
		return nil, err
	}
	c, err := CodecFor(f)
	if err != nil {
		return nil, err
	}
	return instrumentedCodec{Codec: c, format: f}, nil
}

// SaveAs writes patients to dest in format f.
func SaveAs(f Format, patients []*patient.Patient, dest string) (err error) {
	defer func(start time.Time) { metrics.ObserveSerializer(string(f), "save", start, err) }(time.Now())
	s, err := ForFormat(f)
	if err != nil {
		return err
	}
	return s.Save(patients, dest)
}

// LoadFrom reads patients from src, inferring the format from its extension.
func LoadFrom(src string) (patients []*patient.Patient, err error) {
	f, err := FormatFromPath(src)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveSerializer(string(f), "load", start, err) }(time.Now())
	s, err := ForFormat(f)
	if err != nil {
		return nil, err
	}
	return s.Load(src)
}
