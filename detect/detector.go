package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-tonal/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tonal/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tonal/config"
	"github.com/RyanBlaney/sonido-tonal/logging"
	"github.com/RyanBlaney/sonido-tonal/transcode"
)

// Errors returned by the detector, re-exported for callers
var (
	ErrDecode               = transcode.ErrDecode
	ErrInsufficientSignal   = tonal.ErrInsufficientSignal
	ErrNumericInstability   = tonal.ErrNumericInstability
	ErrInvalidConfiguration = tonal.ErrInvalidConfiguration
)

// Result is the outcome of chord detection
type Result struct {
	Key      tonal.Key    `json:"key"`
	Tempo    float64      `json:"tempo"`    // BPM, zero when no beats were found
	Duration float64      `json:"duration"` // seconds
	Chords   []tonal.Span `json:"chords"`
}

// Detector estimates the key and chord progression of a recording. It holds
// no per-call state and is safe for concurrent use.
type Detector struct {
	config    *config.AnalysisConfig
	extractor FeatureExtractor
	segmenter *tonal.Segmenter
	decoder   *transcode.Decoder
	fetcher   *transcode.Fetcher
	logger    logging.Logger
}

// Option customizes a Detector
type Option func(*Detector)

// WithExtractor replaces the DSP feature extractor
func WithExtractor(extractor FeatureExtractor) Option {
	return func(d *Detector) {
		d.extractor = extractor
	}
}

// WithFetcher replaces the URL downloader
func WithFetcher(fetcher *transcode.Fetcher) Option {
	return func(d *Detector) {
		d.fetcher = fetcher
	}
}

// NewDetector validates cfg and builds a detector. A nil cfg uses defaults.
func NewDetector(cfg *config.AnalysisConfig, opts ...Option) (*Detector, error) {
	if cfg == nil {
		cfg = config.DefaultAnalysisConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		config:    cfg,
		segmenter: tonal.NewSegmenter(tonal.DefaultChordBank()),
		decoder:   transcode.NewDecoder(cfg.Decoder),
		fetcher:   transcode.NewFetcher(cfg.Fetcher),
		logger: logging.WithFields(logging.Fields{
			"component": "detector",
		}),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.extractor == nil {
		extractor, err := NewDSPExtractor(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		d.extractor = extractor
	}

	return d, nil
}

// DetectKey estimates the key from the mean of the frame-level chromagram
func (d *Detector) DetectKey(ctx context.Context, signal []float64, sampleRate int) (tonal.Key, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DetectKey",
		"run_id":   uuid.NewString(),
	})

	_, key, err := d.analyzeKey(ctx, signal, sampleRate, logger)
	return key, err
}

// DetectChords estimates the key, tracks beats, and segments the beat-synced
// chromagram into chord spans. A recording without beats yields its key and
// an empty chord list.
func (d *Detector) DetectChords(ctx context.Context, signal []float64, sampleRate int, opts tonal.SegmentOptions) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := d.logger.WithFields(logging.Fields{
		"function": "DetectChords",
		"run_id":   uuid.NewString(),
	})

	chromagram, key, err := d.analyzeKey(ctx, signal, sampleRate, logger)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	beats, err := d.extractor.BeatTrack(signal, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("beat tracking: %w", err)
	}

	duration := float64(len(signal)) / float64(sampleRate)

	// beats and the last beat interval stop where trailing silence begins
	active := d.extractor.ActiveFrames(signal, sampleRate, len(chromagram))
	valid := chroma.ValidBeats(beats.Frames, active)

	logger.Debug("Beats tracked", logging.Fields{
		"tempo":         beats.Tempo,
		"beats":         len(beats.Frames),
		"valid_beats":   len(valid),
		"active_frames": active,
	})

	beatChroma := d.extractor.SyncToBeats(chromagram[:active], valid)
	beatTimes := d.extractor.FramesToTime(valid, sampleRate)

	spans, err := d.segmenter.Segment(beatChroma, beatTimes, duration, key, opts)
	if err != nil {
		return nil, fmt.Errorf("segmenting chords: %w", err)
	}

	logger.Debug("Chords detected", logging.Fields{
		"key":    key.String(),
		"chords": len(spans),
	})

	return &Result{
		Key:      key,
		Tempo:    beats.Tempo,
		Duration: duration,
		Chords:   spans,
	}, nil
}

// analyzeKey computes the chromagram and the key estimated from its mean
func (d *Detector) analyzeKey(ctx context.Context, signal []float64, sampleRate int, logger logging.Logger) (chroma.Matrix, tonal.Key, error) {
	if sampleRate <= 0 {
		return nil, tonal.Key{}, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfiguration, sampleRate)
	}
	if len(signal) == 0 {
		return nil, tonal.Key{}, fmt.Errorf("%w: empty signal", ErrInsufficientSignal)
	}
	if err := ctx.Err(); err != nil {
		return nil, tonal.Key{}, err
	}

	chromagram, err := d.extractor.Chroma(signal, sampleRate)
	if err != nil {
		if errors.Is(err, chroma.ErrEmptySignal) {
			return nil, tonal.Key{}, fmt.Errorf("%w: %w", ErrInsufficientSignal, err)
		}
		return nil, tonal.Key{}, fmt.Errorf("chroma extraction: %w", err)
	}

	mean, err := chroma.Mean(chromagram)
	if err != nil {
		return nil, tonal.Key{}, fmt.Errorf("%w: %w", ErrInsufficientSignal, err)
	}
	if floats.Max(mean) <= 1e-10 {
		return nil, tonal.Key{}, fmt.Errorf("%w: no pitched content in %d frames", ErrInsufficientSignal, len(chromagram))
	}

	key, err := tonal.EstimateKey(mean)
	if err != nil {
		return nil, tonal.Key{}, err
	}

	logger.Debug("Key estimated", logging.Fields{
		"frames": len(chromagram),
		"key":    key.String(),
	})

	return chromagram, key, nil
}

// Load decodes source, downloading it first when it is an http(s) URL. The
// returned cleanup func is never nil.
func (d *Detector) Load(ctx context.Context, source string) (*transcode.AudioData, func(), error) {
	path := source
	cleanup := func() {}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		downloaded, remove, err := d.fetcher.Fetch(ctx, source)
		if err != nil {
			return nil, cleanup, err
		}
		path, cleanup = downloaded, remove
	}

	audio, err := d.decoder.DecodeFile(ctx, path)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return audio, cleanup, nil
}

// LoadReader decodes audio piped from r
func (d *Detector) LoadReader(ctx context.Context, r io.Reader) (*transcode.AudioData, error) {
	return d.decoder.DecodeReader(ctx, r)
}

// Probe reports the container and stream properties of a local file
func (d *Detector) Probe(ctx context.Context, path string) (*transcode.AudioMetadata, error) {
	return d.decoder.Probe(ctx, path)
}

// CheckDecoder verifies that the configured ffmpeg and ffprobe binaries run
func (d *Detector) CheckDecoder(ctx context.Context) error {
	return d.decoder.CheckAvailability(ctx)
}

// DetectFile decodes source (a path or URL) and runs DetectChords on it
func (d *Detector) DetectFile(ctx context.Context, source string, opts tonal.SegmentOptions) (*Result, error) {
	audio, cleanup, err := d.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return d.DetectChords(ctx, audio.PCM, audio.SampleRate, opts)
}

// DetectKeyFile decodes source (a path or URL) and runs DetectKey on it
func (d *Detector) DetectKeyFile(ctx context.Context, source string) (tonal.Key, error) {
	audio, cleanup, err := d.Load(ctx, source)
	if err != nil {
		return tonal.Key{}, err
	}
	defer cleanup()

	return d.DetectKey(ctx, audio.PCM, audio.SampleRate)
}
