package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-tonal/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tonal/algorithms/stats"
	"github.com/RyanBlaney/sonido-tonal/logging"
)

// Span is a chord held over a time range in seconds
type Span struct {
	Chord     Chord   `json:"chord"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// SegmentOptions controls beat grouping and the chord vocabulary
type SegmentOptions struct {
	GroupSize     int  `json:"group_size"`      // beats per chord decision
	RestrictToKey bool `json:"restrict_to_key"` // only consider the key's diatonic triads
}

// DefaultSegmentOptions groups beats by bar in 4/4 and restricts to the key
func DefaultSegmentOptions() SegmentOptions {
	return SegmentOptions{
		GroupSize:     4,
		RestrictToKey: true,
	}
}

// Validate checks that the options are usable
func (o SegmentOptions) Validate() error {
	if o.GroupSize <= 0 {
		return fmt.Errorf("%w: group size must be positive, got %d", ErrInvalidConfiguration, o.GroupSize)
	}
	return nil
}

// Segmenter turns beat-synchronous chroma into merged chord spans
type Segmenter struct {
	bank   *ChordTemplateBank
	logger logging.Logger
}

// NewSegmenter creates a segmenter over bank, or the default bank if nil
func NewSegmenter(bank *ChordTemplateBank) *Segmenter {
	if bank == nil {
		bank = DefaultChordBank()
	}
	return &Segmenter{
		bank: bank,
		logger: logging.WithFields(logging.Fields{
			"component": "segmenter",
		}),
	}
}

// Segment splits beatChroma into consecutive groups of opts.GroupSize beats,
// labels each group with the chord best correlated with its median vector,
// and merges neighbouring groups with the same chord. Group i spans
// beatTimes[i*g] to beatTimes[(i+1)*g]; indices past the end of beatTimes map
// to duration. Times are rounded to centiseconds. No beats yields no spans.
func (s *Segmenter) Segment(beatChroma chroma.Matrix, beatTimes []float64, duration float64, key Key, opts SegmentOptions) ([]Span, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if duration < 0 || math.IsNaN(duration) {
		return nil, fmt.Errorf("%w: negative duration %f", ErrInvalidConfiguration, duration)
	}
	if len(beatChroma) == 0 {
		return []Span{}, nil
	}

	candidates := s.bank.Chords()
	if opts.RestrictToKey {
		diatonic, err := DiatonicChords(key)
		if err != nil {
			return nil, err
		}
		candidates = diatonic
	}

	groups := GroupCount(len(beatChroma), opts.GroupSize)
	s.logger.Debug("Grouping beats", logging.Fields{
		"beats":      len(beatChroma),
		"groups":     groups,
		"candidates": len(candidates),
	})

	spans := make([]Span, 0, groups)
	for g := range groups {
		first := g * opts.GroupSize
		last := min(first+opts.GroupSize, len(beatChroma))

		median := chroma.MedianVector(beatChroma[first:last])
		chord, _, err := s.MatchChord(median, candidates)
		if err != nil {
			return nil, fmt.Errorf("beat group %d: %w", g, err)
		}

		start := roundTime(timeAt(beatTimes, first, duration))
		end := roundTime(timeAt(beatTimes, first+opts.GroupSize, duration))
		spans = append(spans, Span{
			Chord:     chord,
			StartTime: start,
			EndTime:   max(start, end),
		})
	}

	return MergeSpans(spans), nil
}

// MatchChord returns the candidate whose template correlates best with
// vector, and that correlation. Candidates missing from the bank are
// skipped. On equal scores the earliest candidate wins.
func (s *Segmenter) MatchChord(vector []float64, candidates []Chord) (Chord, float64, error) {
	if len(vector) != chroma.NumPitchClasses {
		return Chord{}, 0, fmt.Errorf("%w: chroma vector has %d bins, want %d",
			ErrInvalidConfiguration, len(vector), chroma.NumPitchClasses)
	}

	var best Chord
	bestScore := math.Inf(-1)
	found := false

	for _, candidate := range candidates {
		template, ok := s.bank.templates[candidate]
		if !ok {
			continue
		}

		r, err := stats.Pearson(vector, template)
		if err != nil {
			return Chord{}, 0, fmt.Errorf("%w: correlating with %s: %w", ErrNumericInstability, candidate, err)
		}

		if r > bestScore {
			best, bestScore, found = candidate, r, true
		}
	}

	if !found {
		return Chord{}, 0, fmt.Errorf("%w: no chord candidates in template bank", ErrInvalidConfiguration)
	}
	return best, bestScore, nil
}

// GroupCount returns ceil(numBeats/groupSize), or 0 when either is non-positive
func GroupCount(numBeats, groupSize int) int {
	if numBeats <= 0 || groupSize <= 0 {
		return 0
	}
	return (numBeats + groupSize - 1) / groupSize
}

// MergeSpans joins consecutive spans with the same chord in a single
// left-to-right pass. The input is not modified.
func MergeSpans(spans []Span) []Span {
	merged := make([]Span, 0, len(spans))
	for _, span := range spans {
		if n := len(merged); n > 0 && merged[n-1].Chord == span.Chord {
			merged[n-1].EndTime = span.EndTime
			continue
		}
		merged = append(merged, span)
	}
	return merged
}

func timeAt(beatTimes []float64, index int, duration float64) float64 {
	if index < len(beatTimes) {
		return beatTimes[index]
	}
	return duration
}

func roundTime(t float64) float64 {
	return math.Round(t*100) / 100
}
