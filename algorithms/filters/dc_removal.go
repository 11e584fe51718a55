package filters

import (
	"fmt"
	"math"
)

// DefaultDCCutoff is the -3dB corner used for decoded audio, well below the
// lowest pitch folded into a chromagram
const DefaultDCCutoff = 20.0

// DCRemoval is a one-pole DC blocker:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// with R ≈ 1 - 2*pi*fc/fs. See J.O. Smith, "Introduction to Digital Filters",
// DC Blocker.
type DCRemoval struct {
	poleLocation float64

	x1 float64
	y1 float64
}

// NewDCRemoval creates a DC blocker with the given cutoff frequency
func NewDCRemoval(sampleRate int, cutoffFreq float64) (*DCRemoval, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if cutoffFreq <= 0 || cutoffFreq >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("cutoff %.2fHz outside (0, %d)", cutoffFreq, sampleRate/2)
	}

	pole := 1.0 - 2.0*math.Pi*cutoffFreq/float64(sampleRate)
	// clamp to a stable pole
	pole = math.Min(math.Max(pole, 0.001), 0.999)

	return &DCRemoval{poleLocation: pole}, nil
}

// Process filters a single sample
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessBuffer filters input into a new slice, continuing from the current state
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = dc.Process(sample)
	}
	return output
}

// Reset clears the filter state before an unrelated signal
func (dc *DCRemoval) Reset() {
	dc.x1 = 0
	dc.y1 = 0
}

// PoleLocation returns R
func (dc *DCRemoval) PoleLocation() float64 {
	return dc.poleLocation
}

// RemoveDC runs a fresh DC blocker at cutoffFreq over signal
func RemoveDC(signal []float64, sampleRate int, cutoffFreq float64) ([]float64, error) {
	dc, err := NewDCRemoval(sampleRate, cutoffFreq)
	if err != nil {
		return nil, err
	}
	return dc.ProcessBuffer(signal), nil
}
