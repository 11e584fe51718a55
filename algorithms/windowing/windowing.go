package windowing

import (
	"fmt"
	"math"
	"strings"
)

// Type names a supported analysis window
type Type string

const (
	TypeHann        Type = "hann"
	TypeHamming     Type = "hamming"
	TypeBlackman    Type = "blackman"
	TypeRectangular Type = "rectangular"
)

// Window is a precomputed, read-only window. Safe for concurrent use.
type Window struct {
	kind         Type
	coefficients []float64
}

// New builds a periodic window of the given type and size
func New(kind Type, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}

	kind = Type(strings.ToLower(string(kind)))
	coeffs := make([]float64, size)
	denominator := float64(size)

	for i := range size {
		arg := 2 * math.Pi * float64(i) / denominator
		switch kind {
		case TypeHann:
			coeffs[i] = 0.5 * (1.0 - math.Cos(arg))
		case TypeHamming:
			coeffs[i] = 0.54 - 0.46*math.Cos(arg)
		case TypeBlackman:
			coeffs[i] = 0.42 - 0.5*math.Cos(arg) + 0.08*math.Cos(2*arg)
		case TypeRectangular:
			coeffs[i] = 1.0
		default:
			return nil, fmt.Errorf("unknown window type %q", kind)
		}
	}

	return &Window{kind: kind, coefficients: coeffs}, nil
}

// NewHann creates a periodic Hann window
func NewHann(size int) *Window {
	w, err := New(TypeHann, size)
	if err != nil {
		// only a non-positive size gets here
		return &Window{kind: TypeHann}
	}
	return w
}

// ApplyInPlace multiplies signal by the window coefficients
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}

	for i, c := range w.coefficients {
		signal[i] *= c
	}

	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (w *Window) GetCoefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// GetSize returns the window size
func (w *Window) GetSize() int {
	return len(w.coefficients)
}

// GetType returns the window type
func (w *Window) GetType() Type {
	return w.kind
}
