package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-tonal/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tonal/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tonal/algorithms/windowing"
)

func TestDefaultAnalysisConfigIsValid(t *testing.T) {
	c := DefaultAnalysisConfig()
	require.NoError(t, c.Validate())

	assert.Equal(t, 4, c.GroupSize)
	assert.True(t, c.RestrictToKey)
	assert.Equal(t, 512, c.HopSize)
	assert.Equal(t, c.HopSize, c.BeatTrackerConfig().HopSize)
	assert.Equal(t, c.HopSize, c.ChromaConfig().HopSize)
	assert.Equal(t, tonal.SegmentOptions{GroupSize: 4, RestrictToKey: true}, c.SegmentOptions())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AnalysisConfig)
	}{
		{"zero group size", func(c *AnalysisConfig) { c.GroupSize = 0 }},
		{"negative group size", func(c *AnalysisConfig) { c.GroupSize = -2 }},
		{"zero hop", func(c *AnalysisConfig) { c.HopSize = 0 }},
		{"zero window", func(c *AnalysisConfig) { c.WindowSize = 0 }},
		{"zero tuning", func(c *AnalysisConfig) { c.TuningFreq = 0 }},
		{"inverted frequencies", func(c *AnalysisConfig) { c.MinFreq, c.MaxFreq = 2000, 100 }},
		{"inverted tempo", func(c *AnalysisConfig) { c.MinTempo, c.MaxTempo = 180, 90 }},
		{"bad sample rate", func(c *AnalysisConfig) { c.Decoder.TargetSampleRate = 0 }},
		{"bad log level", func(c *AnalysisConfig) { c.LogLevel = "verbose" }},
		{"unknown chroma kind", func(c *AnalysisConfig) { c.ChromaKind = "wavelet" }},
		{"unknown window", func(c *AnalysisConfig) { c.Window = "triangle" }},
		{"silence threshold at full scale", func(c *AnalysisConfig) { c.SilenceThresholdDB = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultAnalysisConfig()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), tonal.ErrInvalidConfiguration)
		})
	}
}

func TestLoadFromEnvOverlaysDefaults(t *testing.T) {
	t.Setenv("SONIDO_GROUP_SIZE", "8")
	t.Setenv("SONIDO_RESTRICT_TO_KEY", "false")
	t.Setenv("SONIDO_TUNING_FREQ", "432")
	t.Setenv("SONIDO_DECODE_TIMEOUT", "45s")
	t.Setenv("SONIDO_LOG_LEVEL", "debug")

	c, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8, c.GroupSize)
	assert.False(t, c.RestrictToKey)
	assert.Equal(t, 432.0, c.TuningFreq)
	assert.Equal(t, 45*time.Second, c.Decoder.Timeout)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 512, c.HopSize)
}

func TestLoadFromEnvSelectsChromaFrontEnd(t *testing.T) {
	t.Setenv("SONIDO_CHROMA_KIND", "cqt")
	t.Setenv("SONIDO_WINDOW", "hamming")
	t.Setenv("SONIDO_SILENCE_THRESHOLD_DB", "-72")

	c, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	extractor := c.ChromaConfig()
	assert.Equal(t, chroma.KindCQT, extractor.Kind)
	assert.Equal(t, windowing.TypeHamming, extractor.Window)
	assert.Equal(t, -72.0, c.SilenceThresholdDB)

	_, err = chroma.NewExtractor(c.Decoder.TargetSampleRate, extractor)
	assert.NoError(t, err)
}

func TestLoadFromEnvReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SONIDO_HOP_SIZE=1024\nSONIDO_FFMPEG_PATH=/opt/ffmpeg/bin/ffmpeg\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SONIDO_HOP_SIZE")
		os.Unsetenv("SONIDO_FFMPEG_PATH")
	})

	c, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, c.HopSize)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", c.Decoder.FFmpegPath)
}

func TestLoadFromEnvErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("unparsable", func(t *testing.T) {
		t.Setenv("SONIDO_GROUP_SIZE", "four")
		_, err := LoadFromEnv(missing)
		assert.ErrorIs(t, err, tonal.ErrInvalidConfiguration)
		assert.ErrorContains(t, err, "SONIDO_GROUP_SIZE")
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("SONIDO_GROUP_SIZE", "0")
		_, err := LoadFromEnv(missing)
		assert.ErrorIs(t, err, tonal.ErrInvalidConfiguration)
	})
}
