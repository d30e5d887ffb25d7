package biometric_test

import (
	"errors"
	"math"
	"testing"

	"github.com/BrandonDHaskell/janus/internal/janus/biometric"
)

func face(n int, v float64) biometric.Template {
	t := make(biometric.Template, n)
	for i := range t {
		t[i] = v
	}
	return t
}

func TestEncodeDecode(t *testing.T) {
	in := biometric.Template{0.1, -0.25, 3.5, 0}
	b, err := biometric.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) != 3+8*len(in) {
		t.Fatalf("unexpected encoded length %d", len(b))
	}
	if b[0] != biometric.TemplateVersion || b[1] != 4 || b[2] != 0 {
		t.Fatalf("unexpected header % x", b[:3])
	}
	out, err := biometric.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("dim %d: got %v want %v", i, out[i], in[i])
		}
	}
}

func TestDecode_Rejects(t *testing.T) {
	good, _ := biometric.Encode(face(128, 0.5))

	unknown := append([]byte(nil), good...)
	unknown[0] = 2
	if _, err := biometric.Decode(unknown); !errors.Is(err, biometric.ErrUnknownVersion) {
		t.Errorf("expected ErrUnknownVersion, got %v", err)
	}
	if _, err := biometric.Decode(good[:len(good)-1]); !errors.Is(err, biometric.ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
	if _, err := biometric.Decode([]byte{1}); !errors.Is(err, biometric.ErrTruncated) {
		t.Errorf("expected ErrTruncated for short header, got %v", err)
	}
	if _, err := biometric.Decode([]byte{1, 0, 0}); !errors.Is(err, biometric.ErrInvalidTemplate) {
		t.Errorf("expected ErrInvalidTemplate for zero dims, got %v", err)
	}
}

func TestEncode_RejectsNonFinite(t *testing.T) {
	if _, err := biometric.Encode(biometric.Template{1, math.NaN()}); !errors.Is(err, biometric.ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
}

func TestMatch(t *testing.T) {
	enrolled := face(128, 0.1)

	ok, d, err := biometric.Match(enrolled, face(128, 0.1), 0)
	if err != nil || !ok || d != 0 {
		t.Fatalf("identical face: ok=%v d=%v err=%v", ok, d, err)
	}

	// sqrt(128 * 0.1^2) ≈ 1.13, well past the default threshold.
	ok, d, err = biometric.Match(enrolled, face(128, 0.2), 0)
	if err != nil || ok {
		t.Fatalf("different face matched: d=%v err=%v", d, err)
	}

	// sqrt(4 * 0.25^2) = 0.5 sits exactly on the threshold and matches.
	ok, _, _ = biometric.Match(face(4, 0), face(4, 0.25), 0.5)
	if !ok {
		t.Error("expected distance equal to threshold to match")
	}

	if _, _, err := biometric.Match(enrolled, face(64, 0.1), 0); !errors.Is(err, biometric.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
