// Package biometric stores and compares face templates. Computing an
// encoding from an image happens on the door and is out of scope here.
package biometric

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// TemplateVersion is the current template encoding.
//
// Layout: version (1 byte) | dims (uint16 LE) | dims x float64 LE.
const TemplateVersion byte = 1

const (
	headerLen = 3
	MaxDims   = 4096

	// DefaultThreshold is the largest distance still treated as the same face.
	DefaultThreshold = 0.6
)

var (
	ErrUnknownVersion    = errors.New("unknown template version")
	ErrTruncated         = errors.New("template truncated")
	ErrDimensionMismatch = errors.New("template dimensions differ")
	ErrInvalidTemplate   = errors.New("invalid template")
)

// Template is a face encoding: a fixed-length vector of finite values.
type Template []float64

func (t Template) validate() error {
	if len(t) == 0 || len(t) > MaxDims {
		return fmt.Errorf("%w: %d dimensions", ErrInvalidTemplate, len(t))
	}
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at %d", ErrInvalidTemplate, i)
		}
	}
	return nil
}

// Encode returns the tagged binary form of t.
func Encode(t Template) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, headerLen+8*len(t))
	buf[0] = TemplateVersion
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(t)))
	for i, v := range t {
		binary.LittleEndian.PutUint64(buf[headerLen+8*i:], math.Float64bits(v))
	}
	return buf, nil
}

// Decode parses a template produced by Encode. Unknown versions are
// rejected rather than guessed at.
func Decode(b []byte) (Template, error) {
	if len(b) < headerLen {
		return nil, ErrTruncated
	}
	if b[0] != TemplateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, b[0])
	}
	dims := int(binary.LittleEndian.Uint16(b[1:3]))
	if len(b) != headerLen+8*dims {
		return nil, fmt.Errorf("%w: want %d bytes for %d dims, have %d", ErrTruncated, headerLen+8*dims, dims, len(b))
	}
	t := make(Template, dims)
	for i := range t {
		t[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[headerLen+8*i:]))
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Distance is the Euclidean distance between two templates.
func Distance(a, b Template) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Match reports whether probe is within threshold of enrolled.
// A non-positive threshold uses DefaultThreshold.
func Match(enrolled, probe Template, threshold float64) (bool, float64, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if err := probe.validate(); err != nil {
		return false, 0, err
	}
	d, err := Distance(enrolled, probe)
	if err != nil {
		return false, 0, err
	}
	return d <= threshold, d, nil
}
