package detect

import (
	"github.com/RyanBlaney/sonido-tonal/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tonal/algorithms/filters"
	"github.com/RyanBlaney/sonido-tonal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tonal/config"
)

// FeatureExtractor is the DSP boundary the detector depends on. Frame
// indices returned by BeatTrack must index the matrix returned by Chroma.
type FeatureExtractor interface {
	Chroma(signal []float64, sampleRate int) (chroma.Matrix, error)
	BeatTrack(signal []float64, sampleRate int) (*temporal.BeatResult, error)
	FramesToTime(frames []int, sampleRate int) []float64
	SyncToBeats(m chroma.Matrix, beatFrames []int) chroma.Matrix
	// ActiveFrames returns how many of the first numFrames chroma frames
	// precede trailing silence
	ActiveFrames(signal []float64, sampleRate int, numFrames int) int
}

var _ FeatureExtractor = (*DSPExtractor)(nil)

// DSPExtractor implements FeatureExtractor with the STFT chromagram and the
// onset-based beat tracker, both framed on the same hop. Signals pass a DC
// blocker first.
type DSPExtractor struct {
	chromaConfig chroma.ExtractorConfig
	tracker      *temporal.BeatTracker
	silence      *temporal.SilenceDetection
}

// NewDSPExtractor builds the extractor described by cfg
func NewDSPExtractor(cfg *config.AnalysisConfig) (*DSPExtractor, error) {
	tracker, err := temporal.NewBeatTracker(cfg.BeatTrackerConfig())
	if err != nil {
		return nil, err
	}
	silence, err := temporal.NewSilenceDetection(cfg.SilenceThresholdDB, temporal.DefaultMinSilenceDuration)
	if err != nil {
		return nil, err
	}
	return &DSPExtractor{
		chromaConfig: cfg.ChromaConfig(),
		tracker:      tracker,
		silence:      silence,
	}, nil
}

func (e *DSPExtractor) Chroma(signal []float64, sampleRate int) (chroma.Matrix, error) {
	extractor, err := chroma.NewExtractor(sampleRate, e.chromaConfig)
	if err != nil {
		return nil, err
	}
	filtered, err := filters.RemoveDC(signal, sampleRate, filters.DefaultDCCutoff)
	if err != nil {
		return nil, err
	}
	return extractor.Compute(filtered)
}

func (e *DSPExtractor) BeatTrack(signal []float64, sampleRate int) (*temporal.BeatResult, error) {
	filtered, err := filters.RemoveDC(signal, sampleRate, filters.DefaultDCCutoff)
	if err != nil {
		return nil, err
	}
	return e.tracker.Track(filtered, sampleRate)
}

func (e *DSPExtractor) FramesToTime(frames []int, sampleRate int) []float64 {
	return temporal.FramesToTime(frames, sampleRate, e.chromaConfig.HopSize)
}

func (e *DSPExtractor) SyncToBeats(m chroma.Matrix, beatFrames []int) chroma.Matrix {
	return chroma.SyncToBeats(m, beatFrames)
}

// ActiveFrames drops the frames centered inside trailing silence
func (e *DSPExtractor) ActiveFrames(signal []float64, sampleRate int, numFrames int) int {
	filtered, err := filters.RemoveDC(signal, sampleRate, filters.DefaultDCCutoff)
	if err != nil {
		return numFrames
	}
	end := e.silence.SoundEnd(filtered, sampleRate)
	hop := e.chromaConfig.HopSize
	return min(numFrames, (end+hop-1)/hop)
}
