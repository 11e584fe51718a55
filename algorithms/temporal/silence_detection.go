package temporal

import (
	"fmt"
	"math"
)

const (
	// DefaultSilenceThresholdDB is the frame RMS level, in dBFS, below which audio counts as silent
	DefaultSilenceThresholdDB = -60.0

	// DefaultMinSilenceDuration is the shortest run reported as silence, in seconds
	DefaultMinSilenceDuration = 0.5
)

// SilenceRegion is a silent run of samples [Start, End)
type SilenceRegion struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SilenceDetection finds silent runs from frame RMS energy (25ms frames,
// 50% overlap)
type SilenceDetection struct {
	threshold   float64 // linear RMS
	minDuration float64
}

// NewSilenceDetection creates a silence detector
func NewSilenceDetection(thresholdDB, minDuration float64) (*SilenceDetection, error) {
	if thresholdDB >= 0 || math.IsNaN(thresholdDB) {
		return nil, fmt.Errorf("silence threshold must be below 0 dBFS, got %f", thresholdDB)
	}
	if minDuration < 0 {
		return nil, fmt.Errorf("minimum silence duration must not be negative, got %f", minDuration)
	}
	return &SilenceDetection{
		threshold:   math.Pow(10, thresholdDB/20),
		minDuration: minDuration,
	}, nil
}

// DetectSilence returns the silent regions of signal in time order
func (sd *SilenceDetection) DetectSilence(signal []float64, sampleRate int) []SilenceRegion {
	if len(signal) == 0 || sampleRate <= 0 {
		return nil
	}

	frameSize := max(int(0.025*float64(sampleRate)), 1)
	hopSize := max(frameSize/2, 1)
	energies := frameRMS(signal, frameSize, hopSize)
	minFrames := int(sd.minDuration * float64(sampleRate) / float64(hopSize))

	var regions []SilenceRegion
	start := -1
	closeRun := func(end, endSample int) {
		if start >= 0 && end-start >= minFrames {
			regions = append(regions, SilenceRegion{Start: start * hopSize, End: endSample})
		}
		start = -1
	}

	for i, energy := range energies {
		switch {
		case energy < sd.threshold && start < 0:
			start = i
		case energy >= sd.threshold && start >= 0:
			closeRun(i, i*hopSize)
		}
	}
	closeRun(len(energies), len(signal))

	return regions
}

// SoundEnd returns the sample index where trailing silence begins, or
// len(signal) when the signal does not end in silence
func (sd *SilenceDetection) SoundEnd(signal []float64, sampleRate int) int {
	regions := sd.DetectSilence(signal, sampleRate)
	if len(regions) == 0 {
		return len(signal)
	}

	last := regions[len(regions)-1]
	if last.End < len(signal) {
		return len(signal)
	}
	return last.Start
}

// frameRMS computes RMS over frames; a trailing partial frame is included
func frameRMS(signal []float64, frameSize, hopSize int) []float64 {
	var energies []float64
	for start := 0; start < len(signal); start += hopSize {
		end := min(start+frameSize, len(signal))

		sum := 0.0
		for _, v := range signal[start:end] {
			sum += v * v
		}
		energies = append(energies, math.Sqrt(sum/float64(end-start)))

		if end == len(signal) {
			break
		}
	}
	return energies
}
