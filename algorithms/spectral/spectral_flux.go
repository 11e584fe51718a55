package spectral

import (
	"math"
)

// SpectralFlux measures frame-to-frame spectral change
type SpectralFlux struct {
	// Rectify keeps only energy increases, which is what onset detection wants
	Rectify bool
}

// NewSpectralFlux creates a rectifying spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{Rectify: true}
}

// Compute returns one flux value per frame of spectrogram. The first frame has
// no predecessor and is assigned zero, so the output stays aligned with the
// input frame indices.
func (sf *SpectralFlux) Compute(spectrogram [][]float64) []float64 {
	flux := make([]float64, len(spectrogram))

	for t := 1; t < len(spectrogram); t++ {
		sum := 0.0
		prev := spectrogram[t-1]
		for f, mag := range spectrogram[t] {
			if f >= len(prev) {
				break
			}
			diff := mag - prev[f]
			if sf.Rectify && diff < 0 {
				continue
			}
			sum += diff * diff
		}
		flux[t] = math.Sqrt(sum)
	}

	return flux
}
