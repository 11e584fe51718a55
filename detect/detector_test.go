package detect

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-tonal/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tonal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tonal/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tonal/config"
)

// fakeExtractor returns canned features. Frames map to time as frame*0.5s.
type fakeExtractor struct {
	frames chroma.Matrix
	beats  []int
	tempo  float64
	synced chroma.Matrix
	active int // zero keeps every frame

	syncedBeats  []int
	syncedFrames int
}

func (f *fakeExtractor) Chroma([]float64, int) (chroma.Matrix, error) {
	return f.frames, nil
}

func (f *fakeExtractor) BeatTrack([]float64, int) (*temporal.BeatResult, error) {
	return &temporal.BeatResult{Frames: f.beats, Tempo: f.tempo}, nil
}

func (f *fakeExtractor) FramesToTime(frames []int, _ int) []float64 {
	times := make([]float64, len(frames))
	for i, frame := range frames {
		times[i] = float64(frame) * 0.5
	}
	return times
}

func (f *fakeExtractor) SyncToBeats(m chroma.Matrix, beatFrames []int) chroma.Matrix {
	f.syncedBeats = beatFrames
	f.syncedFrames = len(m)
	return f.synced
}

func (f *fakeExtractor) ActiveFrames(_ []float64, _ int, numFrames int) int {
	if f.active == 0 {
		return numFrames
	}
	return min(f.active, numFrames)
}

func repeat(v []float64, n int) chroma.Matrix {
	m := make(chroma.Matrix, n)
	for i := range m {
		m[i] = v
	}
	return m
}

func template(t *testing.T, label string) []float64 {
	t.Helper()
	c, err := tonal.ParseChord(label)
	require.NoError(t, err)
	tmpl, ok := tonal.DefaultChordBank().Template(c)
	require.True(t, ok)
	return tmpl
}

// cMajorTrack is 8 beats of C then G over frame-level chroma shaped like
// the C major key profile
func cMajorTrack(t *testing.T, second string) *fakeExtractor {
	profile := tonal.MajorProfile
	return &fakeExtractor{
		frames: repeat(profile[:], 10),
		beats:  []int{1, 2, 3, 4, 5, 6, 7, 8},
		tempo:  120,
		synced: append(repeat(template(t, "C"), 4), repeat(template(t, second), 4)...),
	}
}

func newDetector(t *testing.T, extractor FeatureExtractor) *Detector {
	t.Helper()
	d, err := NewDetector(config.DefaultAnalysisConfig(), WithExtractor(extractor))
	require.NoError(t, err)
	return d
}

// 450 samples at 100Hz is a 4.5s track
var fourAndAHalfSeconds = make([]float64, 450)

func TestDetectChordsTwoChordTrack(t *testing.T) {
	extractor := cMajorTrack(t, "G")
	d := newDetector(t, extractor)

	result, err := d.DetectChords(context.Background(), fourAndAHalfSeconds, 100, tonal.SegmentOptions{GroupSize: 4})
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"key": "C Major",
		"tempo": 120,
		"duration": 4.5,
		"chords": [
			{"chord": "C", "start_time": 0.5, "end_time": 2.5},
			{"chord": "G", "start_time": 2.5, "end_time": 4.5}
		]
	}`, string(data))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, extractor.syncedBeats)
}

func TestDetectChordsRestrictsToKey(t *testing.T) {
	d := newDetector(t, cMajorTrack(t, "F#dim"))

	result, err := d.DetectChords(context.Background(), fourAndAHalfSeconds, 100, tonal.SegmentOptions{GroupSize: 4, RestrictToKey: true})
	require.NoError(t, err)
	require.Len(t, result.Chords, 2)
	assert.Equal(t, "F", result.Chords[1].Chord.String())

	result, err = d.DetectChords(context.Background(), fourAndAHalfSeconds, 100, tonal.SegmentOptions{GroupSize: 4})
	require.NoError(t, err)
	require.Len(t, result.Chords, 2)
	assert.Equal(t, "F#dim", result.Chords[1].Chord.String())
}

func TestDetectChordsWithoutBeats(t *testing.T) {
	extractor := cMajorTrack(t, "G")
	extractor.beats = nil
	extractor.tempo = 0
	extractor.synced = chroma.Matrix{}
	d := newDetector(t, extractor)

	result, err := d.DetectChords(context.Background(), fourAndAHalfSeconds, 100, tonal.DefaultSegmentOptions())
	require.NoError(t, err)
	assert.Equal(t, "C Major", result.Key.String())
	assert.NotNil(t, result.Chords)
	assert.Empty(t, result.Chords)
}

func TestDetectChordsDropsOutOfRangeBeats(t *testing.T) {
	extractor := cMajorTrack(t, "G")
	extractor.beats = []int{8, 1, 2, 3, 4, 5, 6, 7, 40}
	d := newDetector(t, extractor)

	_, err := d.DetectChords(context.Background(), fourAndAHalfSeconds, 100, tonal.DefaultSegmentOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, extractor.syncedBeats)
}

func TestDetectChordsStopsAtTrailingSilence(t *testing.T) {
	extractor := cMajorTrack(t, "G")
	extractor.active = 6
	d := newDetector(t, extractor)

	_, err := d.DetectChords(context.Background(), fourAndAHalfSeconds, 100, tonal.DefaultSegmentOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, extractor.syncedBeats)
	assert.Equal(t, 6, extractor.syncedFrames)
}

func TestDetectKeyErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty signal", func(t *testing.T) {
		_, err := newDetector(t, cMajorTrack(t, "G")).DetectKey(ctx, nil, 100)
		assert.ErrorIs(t, err, ErrInsufficientSignal)
	})

	t.Run("no frames", func(t *testing.T) {
		_, err := newDetector(t, &fakeExtractor{}).DetectKey(ctx, fourAndAHalfSeconds, 100)
		assert.ErrorIs(t, err, ErrInsufficientSignal)
	})

	t.Run("silent frames", func(t *testing.T) {
		silent := &fakeExtractor{frames: repeat(make([]float64, 12), 5)}
		_, err := newDetector(t, silent).DetectKey(ctx, fourAndAHalfSeconds, 100)
		assert.ErrorIs(t, err, ErrInsufficientSignal)
	})

	t.Run("flat frames", func(t *testing.T) {
		flat := make([]float64, 12)
		for i := range flat {
			flat[i] = 1
		}
		_, err := newDetector(t, &fakeExtractor{frames: repeat(flat, 5)}).DetectKey(ctx, fourAndAHalfSeconds, 100)
		assert.ErrorIs(t, err, ErrNumericInstability)
	})

	t.Run("bad sample rate", func(t *testing.T) {
		_, err := newDetector(t, cMajorTrack(t, "G")).DetectKey(ctx, fourAndAHalfSeconds, 0)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newDetector(t, cMajorTrack(t, "G")).DetectKey(canceled, fourAndAHalfSeconds, 100)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDetectChordsInvalidGroupSize(t *testing.T) {
	d := newDetector(t, cMajorTrack(t, "G"))
	_, err := d.DetectChords(context.Background(), fourAndAHalfSeconds, 100, tonal.SegmentOptions{GroupSize: 0})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestNewDetectorValidatesConfig(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	cfg.GroupSize = -1
	_, err := NewDetector(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestLoadRejectsMissingTools(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	cfg.Decoder.FFprobePath = "/nonexistent/ffprobe"
	d := newDetectorWithConfig(t, cfg)

	_, cleanup, err := d.Load(context.Background(), "song.mp3")
	require.NotNil(t, cleanup)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = d.DetectFile(context.Background(), "song.mp3", tonal.DefaultSegmentOptions())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecoderBoundaryReportsMissingTools(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	cfg.Decoder.FFmpegPath = "/nonexistent/ffmpeg"
	cfg.Decoder.FFprobePath = "/nonexistent/ffprobe"
	d := newDetectorWithConfig(t, cfg)
	ctx := context.Background()

	assert.ErrorIs(t, d.CheckDecoder(ctx), ErrDecode)

	_, err := d.Probe(ctx, "song.mp3")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = d.LoadReader(ctx, strings.NewReader("not audio"))
	assert.ErrorIs(t, err, ErrDecode)
}

func newDetectorWithConfig(t *testing.T, cfg *config.AnalysisConfig) *Detector {
	t.Helper()
	d, err := NewDetector(cfg)
	require.NoError(t, err)
	return d
}

// chordPulses plays one triad per beat at 120 BPM, 0.4s on and 0.1s off
func chordPulses(sampleRate int, offset float64, chords ...[]float64) []float64 {
	const beat = 0.5
	signal := make([]float64, int((offset+beat*float64(len(chords))+0.5)*float64(sampleRate)))

	for b, freqs := range chords {
		start := int((offset + beat*float64(b)) * float64(sampleRate))
		length := int(0.4 * float64(sampleRate))
		for i := range length {
			env := math.Min(1, float64(i)/(0.005*float64(sampleRate)))
			for _, f := range freqs {
				signal[start+i] += env * math.Sin(2*math.Pi*f*float64(i)/float64(sampleRate)) / 3
			}
		}
	}
	return signal
}

func TestDSPExtractorEndToEnd(t *testing.T) {
	const sampleRate = 22050
	cTriad := []float64{261.63, 329.63, 392.00}
	gTriad := []float64{196.00, 246.94, 293.66}

	var progression [][]float64
	for range 4 {
		progression = append(progression, cTriad)
	}
	for range 4 {
		progression = append(progression, gTriad)
	}
	signal := chordPulses(sampleRate, 0.25, progression...)

	for _, kind := range []chroma.Kind{chroma.KindSTFT, chroma.KindCQT} {
		t.Run(string(kind), func(t *testing.T) {
			cfg := config.DefaultAnalysisConfig()
			cfg.ChromaKind = kind
			d, err := NewDetector(cfg)
			require.NoError(t, err)

			result, err := d.DetectChords(context.Background(), signal, sampleRate, tonal.SegmentOptions{GroupSize: 4})
			require.NoError(t, err)

			labels := make([]string, len(result.Chords))
			for i, span := range result.Chords {
				labels[i] = span.Chord.String()
				assert.LessOrEqual(t, span.StartTime, span.EndTime)
			}
			assert.Equal(t, []string{"C", "G"}, labels)
			assert.InDelta(t, 120, result.Tempo, 10)
		})
	}
}

func TestDSPExtractorTrailingSilence(t *testing.T) {
	const sampleRate = 22050
	cTriad := []float64{261.63, 329.63, 392.00}
	gTriad := []float64{196.00, 246.94, 293.66}

	var progression [][]float64
	for range 4 {
		progression = append(progression, cTriad)
	}
	for range 4 {
		progression = append(progression, gTriad)
	}
	progression = append(progression, cTriad)

	signal := chordPulses(sampleRate, 0.25, progression...)
	signal = append(signal, make([]float64, 6*sampleRate)...)
	duration := float64(len(signal)) / sampleRate

	d, err := NewDetector(config.DefaultAnalysisConfig())
	require.NoError(t, err)

	for _, groupSize := range []int{1, 2, 4} {
		result, err := d.DetectChords(context.Background(), signal, sampleRate, tonal.SegmentOptions{GroupSize: groupSize})
		require.NoError(t, err, "group size %d", groupSize)
		require.NotEmpty(t, result.Chords, "group size %d", groupSize)

		last := result.Chords[len(result.Chords)-1]
		assert.Equal(t, "C", last.Chord.String(), "group size %d", groupSize)
		assert.InDelta(t, duration, last.EndTime, 0.01, "group size %d", groupSize)
	}
}
