package chroma

import (
	"errors"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-tonal/algorithms/stats"
)

// ErrEmptyMatrix is returned when an aggregate is requested over zero frames
var ErrEmptyMatrix = errors.New("chroma matrix has no frames")

// Matrix is a time-ordered sequence of 12-bin pitch-class vectors
type Matrix [][]float64

// Mean returns the element-wise mean across all frames
func Mean(m Matrix) ([]float64, error) {
	if len(m) == 0 {
		return nil, ErrEmptyMatrix
	}

	mean := make([]float64, NumPitchClasses)
	for _, frame := range m {
		floats.Add(mean, frame[:NumPitchClasses])
	}
	floats.Scale(1/float64(len(m)), mean)

	return mean, nil
}

// MedianVector returns the element-wise median across frames.
// The median resists percussive transients that would skew a mean.
func MedianVector(frames Matrix) []float64 {
	out := make([]float64, NumPitchClasses)
	if len(frames) == 0 {
		return out
	}

	column := make([]float64, len(frames))
	for pc := range NumPitchClasses {
		for t, frame := range frames {
			column[t] = frame[pc]
		}
		out[pc] = stats.Median(column)
	}

	return out
}

// ValidBeats returns the beat frames that index into a matrix of numFrames
// frames, sorted ascending with duplicates removed.
func ValidBeats(beatFrames []int, numFrames int) []int {
	valid := make([]int, 0, len(beatFrames))
	for _, b := range beatFrames {
		if b >= 0 && b < numFrames {
			valid = append(valid, b)
		}
	}
	slices.Sort(valid)
	return slices.Compact(valid)
}

// SyncToBeats aggregates frames into one vector per beat. Beat i covers frames
// [beat_i, beat_{i+1}); the last beat runs to the end of the matrix. Frames
// before the first beat belong to no beat. Beats are sanitized with ValidBeats,
// so pass the same sanitized list when mapping the result to times.
func SyncToBeats(m Matrix, beatFrames []int) Matrix {
	beats := ValidBeats(beatFrames, len(m))
	synced := make(Matrix, 0, len(beats))

	for i, start := range beats {
		end := len(m)
		if i+1 < len(beats) {
			end = beats[i+1]
		}
		synced = append(synced, MedianVector(m[start:end]))
	}

	return synced
}
