package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-tonal/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tonal/detect"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	templatesKey = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTemplatesListsWholeBank(t *testing.T) {
	out, err := run(t, "templates")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 37)
	assert.True(t, strings.HasPrefix(lines[1], "C "))
	assert.Contains(t, lines[1], "C-E-G")
	assert.Contains(t, lines[3], "Cdim")
}

func TestTemplatesForKey(t *testing.T) {
	out, err := run(t, "templates", "--key", "A Minor")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[1], "i "))
	assert.Contains(t, lines[1], "A-C-E")
	assert.True(t, strings.HasPrefix(lines[2], "ii°"))
	assert.Contains(t, lines[2], "Bdim")
}

func TestTemplatesRejectsBadKey(t *testing.T) {
	_, err := run(t, "templates", "--key", "H Dorian")
	assert.Error(t, err)
}

func TestKeyRequiresSource(t *testing.T) {
	_, err := run(t, "key")
	assert.Error(t, err)
}

func TestDecodingCommandsCheckTools(t *testing.T) {
	t.Setenv("SONIDO_FFMPEG_PATH", "/nonexistent/ffmpeg")
	t.Setenv("SONIDO_FFPROBE_PATH", "/nonexistent/ffprobe")

	for _, args := range [][]string{
		{"key", "song.mp3"},
		{"chords", "-"},
		{"info", "song.mp3"},
	} {
		_, err := run(t, args...)
		assert.ErrorIs(t, err, detect.ErrDecode, args)
	}
}

func TestErrorsAreNotPrintedByCobra(t *testing.T) {
	out, err := run(t, "templates", "--key", "H Dorian")
	require.Error(t, err)
	assert.NotContains(t, out, "Error:")
}

func TestRejectsUnknownLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "templates")
	assert.Error(t, err)
	logLevel = "info"
}

func TestPrintResult(t *testing.T) {
	key, err := tonal.ParseKey("C Major")
	require.NoError(t, err)
	g, err := tonal.ParseChord("G")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, &detect.Result{
		Key:      key,
		Tempo:    120,
		Duration: 4.5,
		Chords:   []tonal.Span{{Chord: g, StartTime: 0.5, EndTime: 4.5}},
	}))

	out := buf.String()
	assert.Contains(t, out, "Key:      C Major")
	assert.Contains(t, out, "Tempo:    120.0 BPM")
	assert.Regexp(t, `0\.50\s+4\.50\s+G\s+V`, out)
}
