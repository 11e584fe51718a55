package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/RyanBlaney/sonido-tonal/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tonal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tonal/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tonal/algorithms/windowing"
	"github.com/RyanBlaney/sonido-tonal/logging"
	"github.com/RyanBlaney/sonido-tonal/transcode"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "SONIDO_"

// AnalysisConfig holds every tunable of the key and chord pipeline
type AnalysisConfig struct {
	// Chord segmentation
	GroupSize     int  `json:"group_size"`
	RestrictToKey bool `json:"restrict_to_key"`

	// Chroma analysis
	ChromaKind chroma.Kind    `json:"chroma_kind"`
	Window     windowing.Type `json:"window"` // STFT frames and constant-Q kernels
	WindowSize int            `json:"window_size"`
	HopSize    int            `json:"hop_size"` // shared by chroma and onset frames
	TuningFreq float64        `json:"tuning_freq"`
	MinFreq    float64        `json:"min_freq"`
	MaxFreq    float64        `json:"max_freq"`

	// Beat tracking
	OnsetWindowSize int     `json:"onset_window_size"`
	MinTempo        float64 `json:"min_tempo"`
	MaxTempo        float64 `json:"max_tempo"`
	StartTempo      float64 `json:"start_tempo"`

	// Frame RMS in dBFS below which trailing audio is ignored for chords
	SilenceThresholdDB float64 `json:"silence_threshold_db"`

	Decoder *transcode.DecoderConfig `json:"decoder"`
	Fetcher *transcode.FetcherConfig `json:"fetcher"`

	LogLevel string `json:"log_level"`
}

// DefaultAnalysisConfig returns the defaults for popular music at 22.05kHz
func DefaultAnalysisConfig() *AnalysisConfig {
	extractor := chroma.DefaultExtractorConfig()
	tracker := temporal.DefaultBeatTrackerConfig()
	segment := tonal.DefaultSegmentOptions()

	return &AnalysisConfig{
		GroupSize:       segment.GroupSize,
		RestrictToKey:   segment.RestrictToKey,
		ChromaKind:      extractor.Kind,
		Window:          extractor.Window,
		WindowSize:      extractor.WindowSize,
		HopSize:         extractor.HopSize,
		TuningFreq:      extractor.TuningFreq,
		MinFreq:         extractor.MinFreq,
		MaxFreq:         extractor.MaxFreq,
		OnsetWindowSize: tracker.WindowSize,
		MinTempo:        tracker.MinTempo,
		MaxTempo:        tracker.MaxTempo,
		StartTempo:      tracker.StartTempo,

		SilenceThresholdDB: temporal.DefaultSilenceThresholdDB,

		Decoder:         transcode.DefaultDecoderConfig(),
		Fetcher:         transcode.DefaultFetcherConfig(),
		LogLevel:        "info",
	}
}

// Validate reports the first unusable setting, wrapped in
// tonal.ErrInvalidConfiguration
func (c *AnalysisConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", tonal.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}

	switch {
	case c.GroupSize <= 0:
		return invalid("group size must be positive, got %d", c.GroupSize)
	case c.WindowSize <= 0 || c.OnsetWindowSize <= 0:
		return invalid("window sizes must be positive, got %d and %d", c.WindowSize, c.OnsetWindowSize)
	case c.HopSize <= 0:
		return invalid("hop size must be positive, got %d", c.HopSize)
	case c.TuningFreq <= 0:
		return invalid("tuning frequency must be positive, got %f", c.TuningFreq)
	case c.MinFreq < 0 || c.MaxFreq <= c.MinFreq:
		return invalid("frequency range [%f, %f] is empty", c.MinFreq, c.MaxFreq)
	case c.MinTempo <= 0 || c.MaxTempo <= c.MinTempo:
		return invalid("tempo range [%f, %f] is empty", c.MinTempo, c.MaxTempo)
	case c.StartTempo <= 0:
		return invalid("start tempo must be positive, got %f", c.StartTempo)
	case c.SilenceThresholdDB >= 0:
		return invalid("silence threshold must be below 0 dBFS, got %f", c.SilenceThresholdDB)
	}

	if _, err := chroma.ParseKind(string(c.ChromaKind)); err != nil {
		return invalid("%v", err)
	}
	if _, err := windowing.New(c.Window, 1); err != nil {
		return invalid("%v", err)
	}

	if c.Decoder != nil {
		if err := transcode.NewDecoder(c.Decoder).ValidateConfig(); err != nil {
			return invalid("decoder: %v", err)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// ChromaConfig returns the chroma extractor settings
func (c *AnalysisConfig) ChromaConfig() chroma.ExtractorConfig {
	return chroma.ExtractorConfig{
		Kind:       c.ChromaKind,
		WindowSize: c.WindowSize,
		HopSize:    c.HopSize,
		TuningFreq: c.TuningFreq,
		MinFreq:    c.MinFreq,
		MaxFreq:    c.MaxFreq,
		Window:     c.Window,
	}
}

// BeatTrackerConfig returns the beat tracker settings. The hop is shared
// with the chroma extractor so beat frames index chroma frames.
func (c *AnalysisConfig) BeatTrackerConfig() temporal.BeatTrackerConfig {
	tracker := temporal.DefaultBeatTrackerConfig()
	tracker.WindowSize = c.OnsetWindowSize
	tracker.HopSize = c.HopSize
	tracker.MinTempo = c.MinTempo
	tracker.MaxTempo = c.MaxTempo
	tracker.StartTempo = c.StartTempo
	return tracker
}

// SegmentOptions returns the chord segmentation options
func (c *AnalysisConfig) SegmentOptions() tonal.SegmentOptions {
	return tonal.SegmentOptions{
		GroupSize:     c.GroupSize,
		RestrictToKey: c.RestrictToKey,
	}
}

// LoadFromEnv loads the given .env files (default ".env"; missing files are
// skipped) and overlays SONIDO_* variables on the defaults. Variables already
// set in the process environment take precedence over .env values.
func LoadFromEnv(files ...string) (*AnalysisConfig, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	c := DefaultAnalysisConfig()
	env := envReader{}

	c.GroupSize = env.getInt("GROUP_SIZE", c.GroupSize)
	c.RestrictToKey = env.getBool("RESTRICT_TO_KEY", c.RestrictToKey)
	c.ChromaKind = chroma.Kind(env.getString("CHROMA_KIND", string(c.ChromaKind)))
	c.Window = windowing.Type(env.getString("WINDOW", string(c.Window)))
	c.WindowSize = env.getInt("WINDOW_SIZE", c.WindowSize)
	c.HopSize = env.getInt("HOP_SIZE", c.HopSize)
	c.TuningFreq = env.getFloat("TUNING_FREQ", c.TuningFreq)
	c.MinFreq = env.getFloat("MIN_FREQ", c.MinFreq)
	c.MaxFreq = env.getFloat("MAX_FREQ", c.MaxFreq)
	c.OnsetWindowSize = env.getInt("ONSET_WINDOW_SIZE", c.OnsetWindowSize)
	c.MinTempo = env.getFloat("MIN_TEMPO", c.MinTempo)
	c.MaxTempo = env.getFloat("MAX_TEMPO", c.MaxTempo)
	c.StartTempo = env.getFloat("START_TEMPO", c.StartTempo)
	c.SilenceThresholdDB = env.getFloat("SILENCE_THRESHOLD_DB", c.SilenceThresholdDB)
	c.Decoder.TargetSampleRate = env.getInt("SAMPLE_RATE", c.Decoder.TargetSampleRate)
	c.Decoder.MaxDuration = env.getDuration("MAX_DURATION", c.Decoder.MaxDuration)
	c.Decoder.FFmpegPath = env.getString("FFMPEG_PATH", c.Decoder.FFmpegPath)
	c.Decoder.FFprobePath = env.getString("FFPROBE_PATH", c.Decoder.FFprobePath)
	c.Decoder.Timeout = env.getDuration("DECODE_TIMEOUT", c.Decoder.Timeout)
	c.Decoder.EnableNormalization = env.getBool("NORMALIZE", c.Decoder.EnableNormalization)
	c.Fetcher.DownloaderPath = env.getString("DOWNLOADER_PATH", c.Fetcher.DownloaderPath)
	c.Fetcher.Dir = env.getString("DOWNLOAD_DIR", c.Fetcher.Dir)
	c.LogLevel = env.getString("LOG_LEVEL", c.LogLevel)

	if env.err != nil {
		return nil, env.err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// envReader reads prefixed variables and keeps the first parse error
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	return value, ok && value != ""
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s%s=%q: %v", tonal.ErrInvalidConfiguration, EnvPrefix, key, value, err)
	}
}

func (e *envReader) getString(key, fallback string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return fallback
}

func (e *envReader) getInt(key string, fallback int) int {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (e *envReader) getFloat(key string, fallback float64) float64 {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (e *envReader) getBool(key string, fallback bool) bool {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (e *envReader) getDuration(key string, fallback time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return parsed
}
