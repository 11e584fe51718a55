package temporal

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-tonal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tonal/algorithms/windowing"
	"github.com/RyanBlaney/sonido-tonal/logging"
)

// ErrEmptySignal is returned when there are no samples to analyze
var ErrEmptySignal = errors.New("empty signal")

// OnsetDetection computes onset strength envelopes from spectral flux
type OnsetDetection struct {
	windowSize   int
	hopSize      int
	window       *windowing.Window
	stft         *spectral.STFT
	spectralFlux *spectral.SpectralFlux
	logger       logging.Logger
}

// NewOnsetDetection creates an onset detector with a Hann-windowed STFT
func NewOnsetDetection(windowSize, hopSize int) (*OnsetDetection, error) {
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive: %d", hopSize)
	}

	window, err := windowing.New(windowing.TypeHann, windowSize)
	if err != nil {
		return nil, err
	}

	return &OnsetDetection{
		windowSize:   windowSize,
		hopSize:      hopSize,
		window:       window,
		stft:         spectral.NewSTFT(),
		spectralFlux: spectral.NewSpectralFlux(),
		logger: logging.WithFields(logging.Fields{
			"component": "onset_detection",
		}),
	}, nil
}

// HopSize returns the number of samples between envelope frames
func (od *OnsetDetection) HopSize() int {
	return od.hopSize
}

// Envelope returns one onset strength value per centered frame: the
// rectified spectral flux of the log-compressed magnitude spectrogram.
// Frame t is centered on sample t*hopSize.
func (od *OnsetDetection) Envelope(signal []float64, sampleRate int) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptySignal
	}

	padded := spectral.CenterPad(signal, od.windowSize)
	stftResult, err := od.stft.ComputeWithWindow(padded, od.windowSize, od.hopSize, sampleRate, od.window)
	if err != nil {
		return nil, fmt.Errorf("onset stft: %w", err)
	}

	// log compression keeps quiet attacks visible next to loud ones
	for _, frame := range stftResult.Magnitude {
		for f, mag := range frame {
			frame[f] = math.Log1p(mag)
		}
	}

	envelope := od.spectralFlux.Compute(stftResult.Magnitude)

	od.logger.Debug("Onset envelope computed", logging.Fields{
		"frames": len(envelope),
	})

	return envelope, nil
}

// FindPeaks returns local maxima of envelope at or above threshold that are
// at least minInterval frames apart
func FindPeaks(envelope []float64, threshold float64, minInterval int) []int {
	if len(envelope) < 3 {
		return []int{}
	}

	peaks := []int{}
	lastPeak := -minInterval

	for i := 1; i < len(envelope)-1; i++ {
		if envelope[i] > envelope[i-1] &&
			envelope[i] >= envelope[i+1] &&
			envelope[i] >= threshold &&
			i-lastPeak >= minInterval {
			peaks = append(peaks, i)
			lastPeak = i
		}
	}

	return peaks
}

// FramesToTime converts frame indices to seconds
func FramesToTime(frames []int, sampleRate, hopSize int) []float64 {
	times := make([]float64, len(frames))
	if sampleRate <= 0 {
		return times
	}
	for i, frame := range frames {
		times[i] = float64(frame*hopSize) / float64(sampleRate)
	}
	return times
}
