package temporal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clickTrack places a short decaying 2kHz burst every 60/bpm seconds,
// starting at offset seconds
func clickTrack(sampleRate int, seconds, bpm, offset float64) ([]float64, []float64) {
	signal := make([]float64, int(seconds*float64(sampleRate)))
	var clicks []float64

	for at := offset; at < seconds; at += 60.0 / bpm {
		clicks = append(clicks, at)
		start := int(at * float64(sampleRate))
		for i := 0; i < 441 && start+i < len(signal); i++ {
			signal[start+i] = math.Sin(2*math.Pi*2000*float64(i)/float64(sampleRate)) * math.Exp(-float64(i)/100)
		}
	}

	return signal, clicks
}

func nearest(times []float64, t float64) float64 {
	best := math.Inf(1)
	for _, x := range times {
		best = math.Min(best, math.Abs(x-t))
	}
	return best
}

func TestBeatTrackerFollowsClickTrack(t *testing.T) {
	const sampleRate = 22050
	signal, clicks := clickTrack(sampleRate, 8.0, 120, 0.25)

	tracker, err := NewBeatTracker(DefaultBeatTrackerConfig())
	require.NoError(t, err)

	result, err := tracker.Track(signal, sampleRate)
	require.NoError(t, err)

	assert.InDelta(t, 120.0, result.Tempo, 5.0)
	require.GreaterOrEqual(t, len(result.Frames), 12)

	times := FramesToTime(result.Frames, sampleRate, tracker.HopSize())
	for _, beat := range times {
		assert.Less(t, nearest(clicks, beat), 0.07, "beat at %.3fs", beat)
	}
	for i := 1; i < len(result.Frames); i++ {
		assert.Greater(t, result.Frames[i], result.Frames[i-1])
	}
}

func TestBeatTrackerSilenceHasNoBeats(t *testing.T) {
	tracker, err := NewBeatTracker(DefaultBeatTrackerConfig())
	require.NoError(t, err)

	result, err := tracker.Track(make([]float64, 22050*2), 22050)
	require.NoError(t, err)
	assert.Empty(t, result.Frames)
	assert.Zero(t, result.Tempo)
}

func TestBeatTrackerErrors(t *testing.T) {
	tracker, err := NewBeatTracker(DefaultBeatTrackerConfig())
	require.NoError(t, err)

	_, err = tracker.Track(nil, 22050)
	assert.ErrorIs(t, err, ErrEmptySignal)

	_, err = tracker.Track([]float64{1}, 0)
	assert.Error(t, err)

	cfg := DefaultBeatTrackerConfig()
	cfg.MaxTempo = cfg.MinTempo
	_, err = NewBeatTracker(cfg)
	assert.Error(t, err)
}

func TestFindPeaks(t *testing.T) {
	envelope := []float64{0, 3, 0, 1, 0, 0, 5, 5, 0}
	assert.Equal(t, []int{1, 6}, FindPeaks(envelope, 2, 1))
	assert.Equal(t, []int{1, 3, 6}, FindPeaks(envelope, 0, 1))
	assert.Equal(t, []int{1, 6}, FindPeaks(envelope, 0, 3))
}

func TestFramesToTime(t *testing.T) {
	times := FramesToTime([]int{0, 43, 86}, 22050, 512)
	assert.InDelta(t, 0.0, times[0], 1e-12)
	assert.InDelta(t, 0.99845, times[1], 1e-4)
	assert.InDelta(t, 1.99691, times[2], 1e-4)
}

func TestAutocorrelationPeriodic(t *testing.T) {
	signal := make([]float64, 200)
	for i := range signal {
		if i%10 == 0 {
			signal[i] = 1
		}
	}
	autocorr := autocorrelation(signal, 25)
	assert.InDelta(t, 1.0, autocorr[0], 1e-12)
	assert.Greater(t, autocorr[10], autocorr[5])
	assert.Greater(t, autocorr[20], autocorr[15])
}
