package temporal

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-tonal/algorithms/stats"
	"github.com/RyanBlaney/sonido-tonal/logging"
)

// BeatTrackerConfig holds onset and tempo search parameters
type BeatTrackerConfig struct {
	WindowSize int     `json:"window_size"` // onset STFT window
	HopSize    int     `json:"hop_size"`    // must match the chroma hop for beat sync
	MinTempo   float64 `json:"min_tempo"`
	MaxTempo   float64 `json:"max_tempo"`
	StartTempo float64 `json:"start_tempo"` // center of the log-tempo prior
	Tightness  float64 `json:"tightness"`   // penalty for beat gaps that stray from the period
}

// DefaultBeatTrackerConfig returns parameters tuned for popular music
func DefaultBeatTrackerConfig() BeatTrackerConfig {
	return BeatTrackerConfig{
		WindowSize: 2048,
		HopSize:    512,
		MinTempo:   60.0,
		MaxTempo:   200.0,
		StartTempo: 120.0,
		Tightness:  100.0,
	}
}

// BeatResult holds beat positions in hop-size frames and the global tempo
type BeatResult struct {
	Frames []int   `json:"frames"`
	Tempo  float64 `json:"tempo"` // BPM, zero when no beats were found
}

// BeatTracker estimates a global tempo from the onset envelope autocorrelation
// and then picks the beat sequence by dynamic programming: every frame's score
// is its onset strength plus the best score of a predecessor roughly one
// period earlier, minus a log-gap penalty.
type BeatTracker struct {
	config BeatTrackerConfig
	onsets *OnsetDetection
	logger logging.Logger
}

// NewBeatTracker validates config and creates a beat tracker
func NewBeatTracker(config BeatTrackerConfig) (*BeatTracker, error) {
	if config.MinTempo <= 0 || config.MaxTempo <= config.MinTempo {
		return nil, fmt.Errorf("invalid tempo range [%f, %f]", config.MinTempo, config.MaxTempo)
	}
	if config.StartTempo <= 0 {
		return nil, fmt.Errorf("start tempo must be positive: %f", config.StartTempo)
	}
	if config.Tightness < 0 {
		return nil, fmt.Errorf("tightness must not be negative: %f", config.Tightness)
	}

	onsets, err := NewOnsetDetection(config.WindowSize, config.HopSize)
	if err != nil {
		return nil, err
	}

	return &BeatTracker{
		config: config,
		onsets: onsets,
		logger: logging.WithFields(logging.Fields{
			"component": "beat_tracker",
		}),
	}, nil
}

// HopSize returns the frame hop that beat indices are expressed in
func (bt *BeatTracker) HopSize() int {
	return bt.config.HopSize
}

// Track finds beats in a mono signal. Signals without onsets, or too short
// to hold a single beat period, yield an empty result rather than an error.
func (bt *BeatTracker) Track(signal []float64, sampleRate int) (*BeatResult, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}

	envelope, err := bt.onsets.Envelope(signal, sampleRate)
	if err != nil {
		return nil, err
	}

	mean, std := stats.MeanStdDev(envelope)
	if std < 1e-10 {
		bt.logger.Debug("No onsets found")
		return &BeatResult{Frames: []int{}}, nil
	}

	local := make([]float64, len(envelope))
	for i, v := range envelope {
		local[i] = (v - mean) / std
	}

	framesPerSecond := float64(sampleRate) / float64(bt.config.HopSize)
	period, ok := bt.estimatePeriod(local, framesPerSecond)
	if !ok {
		bt.logger.Debug("Signal too short for tempo estimation", logging.Fields{
			"frames": len(local),
		})
		return &BeatResult{Frames: []int{}}, nil
	}

	beats := bt.trackBeats(local, period)
	tempo := 60.0 * framesPerSecond / period

	bt.logger.Debug("Beats tracked", logging.Fields{
		"tempo": tempo,
		"beats": len(beats),
	})

	return &BeatResult{Frames: beats, Tempo: tempo}, nil
}

// estimatePeriod returns the beat period in frames, refined to sub-frame
// precision by parabolic interpolation around the best autocorrelation lag
func (bt *BeatTracker) estimatePeriod(local []float64, framesPerSecond float64) (float64, bool) {
	minLag := max(1, int(math.Floor(60.0/bt.config.MaxTempo*framesPerSecond)))
	maxLag := min(int(math.Ceil(60.0/bt.config.MinTempo*framesPerSecond)), len(local)-2)
	if maxLag < minLag {
		return 0, false
	}

	autocorr := autocorrelation(local, maxLag+2)

	bestLag := 0
	bestScore := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		bpm := 60.0 * framesPerSecond / float64(lag)
		octaves := math.Log2(bpm / bt.config.StartTempo)
		score := autocorr[lag] * math.Exp(-0.5*octaves*octaves)
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, false
	}

	period := float64(bestLag)
	a, b, c := autocorr[bestLag-1], autocorr[bestLag], autocorr[bestLag+1]
	if denom := a - 2*b + c; denom < 0 {
		if delta := 0.5 * (a - c) / denom; math.Abs(delta) < 1 {
			period += delta
		}
	}

	return period, true
}

// trackBeats runs the dynamic program and backtracks from the last strong beat
func (bt *BeatTracker) trackBeats(local []float64, period float64) []int {
	n := len(local)
	cumscore := make([]float64, n)
	backlink := make([]int, n)

	minGap := max(1, int(math.Round(period/2)))
	maxGap := max(minGap, int(math.Round(2*period)))

	for t := range n {
		backlink[t] = -1
		best := math.Inf(-1)
		bestPrev := -1

		for prev := max(0, t-maxGap); prev <= t-minGap; prev++ {
			gap := math.Log(float64(t-prev) / period)
			if score := cumscore[prev] - bt.config.Tightness*gap*gap; score > best {
				best = score
				bestPrev = prev
			}
		}

		cumscore[t] = local[t]
		// a chain that has only accumulated weak frames is restarted here
		if bestPrev >= 0 && best > 0 {
			cumscore[t] += best
			backlink[t] = bestPrev
		}
	}

	last := lastBeat(cumscore)
	if last < 0 {
		return []int{}
	}

	beats := []int{}
	for t := last; t >= 0; t = backlink[t] {
		beats = append(beats, t)
	}
	slices.Reverse(beats)

	return trimWeakBeats(beats, local)
}

// lastBeat picks the final local maximum of cumscore that reaches half the
// median local-maximum score
func lastBeat(cumscore []float64) int {
	peaks := FindPeaks(cumscore, math.Inf(-1), 1)
	if len(peaks) == 0 {
		if len(cumscore) == 0 {
			return -1
		}
		return floats.MaxIdx(cumscore)
	}

	values := make([]float64, len(peaks))
	for i, p := range peaks {
		values[i] = cumscore[p]
	}
	threshold := 0.5 * stats.Median(values)

	for i := len(peaks) - 1; i >= 0; i-- {
		if cumscore[peaks[i]] >= threshold {
			return peaks[i]
		}
	}
	return peaks[len(peaks)-1]
}

// trimWeakBeats drops leading and trailing beats whose onset strength is at
// or below the envelope mean
func trimWeakBeats(beats []int, local []float64) []int {
	start, end := 0, len(beats)
	for start < end && local[beats[start]] <= 0 {
		start++
	}
	for end > start && local[beats[end-1]] <= 0 {
		end--
	}
	return beats[start:end]
}

// autocorrelation returns the count-normalized autocorrelation of signal for
// lags [0, maxLag), scaled so lag 0 is 1
func autocorrelation(signal []float64, maxLag int) []float64 {
	maxLag = min(maxLag, len(signal))
	autocorr := make([]float64, maxLag)

	for lag := range maxLag {
		sum := 0.0
		count := len(signal) - lag
		for i := range count {
			sum += signal[i] * signal[i+lag]
		}
		if count > 0 {
			autocorr[lag] = sum / float64(count)
		}
	}

	if len(autocorr) > 0 && autocorr[0] > 0 {
		scale := autocorr[0]
		for i := range autocorr {
			autocorr[i] /= scale
		}
	}

	return autocorr
}
