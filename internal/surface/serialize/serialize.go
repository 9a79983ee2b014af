// Package serialize owns the persisted form of fields and masks.
//
// Records are plain versioned structs with an explicit validation step,
// encoded as gzip-compressed gob blobs. The store keeps these blobs in
// SQLite and the CLI writes them to .surf files.
package serialize

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/mask"
)

// Version is the record schema version written by this package.
const Version = 1

// ErrUnsupportedVersion is returned for records of an unknown schema version.
var ErrUnsupportedVersion = errors.New("serialize: unsupported record version")

// DecodeError reports a record that decoded but is not a valid field or
// mask. Field names the offending record field.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("serialize: invalid %s: %s", e.Field, e.Reason)
}

// RecordV1 is the persisted form of a field.
type RecordV1 struct {
	Version      int
	XRes, YRes   int32
	XReal, YReal float64
	XOff, YOff   float64
	XYUnit       string
	ZUnit        string
	Data         []float64
}

// MaskRecordV1 is the persisted form of a mask.
type MaskRecordV1 struct {
	Version    int
	XRes, YRes int32
	Data       []bool
}

// FromField captures f in a record. The data are copied.
func FromField(f *field.Field) RecordV1 {
	return RecordV1{
		Version: Version,
		XRes:    int32(f.XRes()),
		YRes:    int32(f.YRes()),
		XReal:   f.XReal(),
		YReal:   f.YReal(),
		XOff:    f.XOffset(),
		YOff:    f.YOffset(),
		XYUnit:  f.XYUnit,
		ZUnit:   f.ZUnit,
		Data:    append([]float64(nil), f.Data()...),
	}
}

func checkVersion(v int) error {
	if v != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	return nil
}

func checkRes(xres, yres int32, n int) error {
	if xres <= 0 {
		return &DecodeError{Field: "xres", Reason: fmt.Sprintf("%d is not positive", xres)}
	}
	if yres <= 0 {
		return &DecodeError{Field: "yres", Reason: fmt.Sprintf("%d is not positive", yres)}
	}
	if int64(n) != int64(xres)*int64(yres) {
		return &DecodeError{Field: "data", Reason: fmt.Sprintf("%d samples for %dx%d", n, xres, yres)}
	}
	return nil
}

func checkFinite(name string, v float64, positive bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &DecodeError{Field: name, Reason: fmt.Sprintf("%v is not finite", v)}
	}
	if positive && v <= 0 {
		return &DecodeError{Field: name, Reason: fmt.Sprintf("%v is not positive", v)}
	}
	return nil
}

// Validate checks that r describes a valid field.
func (r *RecordV1) Validate() error {
	if err := checkVersion(r.Version); err != nil {
		return err
	}
	if err := checkRes(r.XRes, r.YRes, len(r.Data)); err != nil {
		return err
	}
	for _, c := range []struct {
		name     string
		v        float64
		positive bool
	}{
		{"xreal", r.XReal, true},
		{"yreal", r.YReal, true},
		{"xoff", r.XOff, false},
		{"yoff", r.YOff, false},
	} {
		if err := checkFinite(c.name, c.v, c.positive); err != nil {
			return err
		}
	}
	return nil
}

// Field validates r and builds the field it describes. The field takes
// ownership of r.Data.
func (r *RecordV1) Field() (*field.Field, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	f := field.FromData(int(r.XRes), int(r.YRes), r.XReal, r.YReal, r.Data)
	f.SetOffsets(r.XOff, r.YOff)
	f.XYUnit, f.ZUnit = r.XYUnit, r.ZUnit
	return f, nil
}

// FromMask captures m in a record. The data are copied.
func FromMask(m *mask.Field) MaskRecordV1 {
	return MaskRecordV1{
		Version: Version,
		XRes:    int32(m.XRes()),
		YRes:    int32(m.YRes()),
		Data:    append([]bool(nil), m.Data()...),
	}
}

// Validate checks that r describes a valid mask.
func (r *MaskRecordV1) Validate() error {
	if err := checkVersion(r.Version); err != nil {
		return err
	}
	return checkRes(r.XRes, r.YRes, len(r.Data))
}

// Mask validates r and builds the mask it describes.
func (r *MaskRecordV1) Mask() (*mask.Field, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return mask.FromData(int(r.XRes), int(r.YRes), r.Data), nil
}

// encode compresses v using gob encoding and gzip compression.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(v); err != nil {
		gz.Close()
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode decompresses and decodes a gob+gzip blob into v.
func decode(blob []byte, v any) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty record blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()
	if err := gob.NewDecoder(gz).Decode(v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// EncodeField serializes f.
func EncodeField(f *field.Field) ([]byte, error) {
	r := FromField(f)
	return encode(&r)
}

// DecodeField deserializes and validates a field blob. Invalid records
// yield a *DecodeError or ErrUnsupportedVersion.
func DecodeField(blob []byte) (*field.Field, error) {
	var r RecordV1
	if err := decode(blob, &r); err != nil {
		return nil, err
	}
	return r.Field()
}

// EncodeMask serializes m.
func EncodeMask(m *mask.Field) ([]byte, error) {
	r := FromMask(m)
	return encode(&r)
}

// DecodeMask deserializes and validates a mask blob.
func DecodeMask(blob []byte) (*mask.Field, error) {
	var r MaskRecordV1
	if err := decode(blob, &r); err != nil {
		return nil, err
	}
	return r.Mask()
}

// WriteFile stores f in a .surf file at path.
func WriteFile(path string, f *field.Field) error {
	blob, err := EncodeField(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a field from a .surf file.
func ReadFile(path string) (*field.Field, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, err := DecodeField(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
