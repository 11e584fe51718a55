package tonal

import (
	"fmt"
	"slices"
	"strings"

	"github.com/RyanBlaney/sonido-tonal/algorithms/chroma"
)

// ChordQuality represents the quality of a triad
type ChordQuality int

const (
	ChordMajor ChordQuality = iota
	ChordMinor
	ChordDiminished
)

// chordQualities is the per-root template order
var chordQualities = []ChordQuality{ChordMajor, ChordMinor, ChordDiminished}

// chordIntervals holds semitones above the root for each quality
var chordIntervals = map[ChordQuality][3]int{
	ChordMajor:      {0, 4, 7},
	ChordMinor:      {0, 3, 7},
	ChordDiminished: {0, 3, 6},
}

// Suffix returns the label suffix: "", "m" or "dim"
func (q ChordQuality) Suffix() string {
	switch q {
	case ChordMinor:
		return "m"
	case ChordDiminished:
		return "dim"
	default:
		return ""
	}
}

func (q ChordQuality) String() string {
	switch q {
	case ChordMajor:
		return "major"
	case ChordMinor:
		return "minor"
	case ChordDiminished:
		return "diminished"
	default:
		return fmt.Sprintf("ChordQuality(%d)", int(q))
	}
}

// Chord is a triad. It encodes as its label, e.g. "C", "Am" or "Bdim".
type Chord struct {
	Root    chroma.PitchClass
	Quality ChordQuality
}

func (c Chord) String() string {
	return c.Root.String() + c.Quality.Suffix()
}

// Intervals returns the semitones above the root of each triad note
func (c Chord) Intervals() [3]int {
	return chordIntervals[c.Quality]
}

// Notes returns the pitch classes of the triad, root first
func (c Chord) Notes() []chroma.PitchClass {
	intervals := c.Intervals()
	notes := make([]chroma.PitchClass, len(intervals))
	for i, interval := range intervals {
		notes[i] = c.Root.Transpose(interval)
	}
	return notes
}

// ParseChord parses a chord label such as "F#", "Ebm" or "Bdim"
func ParseChord(label string) (Chord, error) {
	label = strings.TrimSpace(label)
	quality := ChordMajor
	root := label

	switch {
	case strings.HasSuffix(label, "dim"):
		quality = ChordDiminished
		root = strings.TrimSuffix(label, "dim")
	case strings.HasSuffix(label, "m"):
		quality = ChordMinor
		root = strings.TrimSuffix(label, "m")
	}

	pc, err := chroma.ParsePitchClass(root)
	if err != nil {
		return Chord{}, fmt.Errorf("%w: malformed chord %q", ErrInvalidConfiguration, label)
	}
	return Chord{Root: pc, Quality: quality}, nil
}

func (c Chord) MarshalText() ([]byte, error) {
	if _, ok := chordIntervals[c.Quality]; !ok || !c.Root.Valid() {
		return nil, fmt.Errorf("%w: cannot encode chord %d/%d", ErrInvalidConfiguration, int(c.Root), int(c.Quality))
	}
	return []byte(c.String()), nil
}

func (c *Chord) UnmarshalText(text []byte) error {
	parsed, err := ParseChord(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ChordTemplateBank holds binary triad masks for every root and quality.
// It is immutable after construction and safe for concurrent use.
type ChordTemplateBank struct {
	chords    []Chord
	templates map[Chord][]float64
}

// NewChordTemplateBank builds the 36 triad templates in root order C..B,
// major, minor and diminished per root. That order is also the tie-break
// order for unrestricted matching.
func NewChordTemplateBank() *ChordTemplateBank {
	bank := &ChordTemplateBank{
		templates: make(map[Chord][]float64),
	}

	for root := range chroma.NumPitchClasses {
		for _, quality := range chordQualities {
			chord := Chord{Root: chroma.PitchClass(root), Quality: quality}
			template := make([]float64, chroma.NumPitchClasses)
			for _, note := range chord.Notes() {
				template[note] = 1.0
			}
			bank.chords = append(bank.chords, chord)
			bank.templates[chord] = template
		}
	}

	return bank
}

var defaultChordBank = NewChordTemplateBank()

// DefaultChordBank returns the shared chord template bank
func DefaultChordBank() *ChordTemplateBank {
	return defaultChordBank
}

// Chords returns every chord in the bank, in bank order
func (b *ChordTemplateBank) Chords() []Chord {
	return slices.Clone(b.chords)
}

// Len returns the number of templates
func (b *ChordTemplateBank) Len() int {
	return len(b.chords)
}

// Template returns a copy of the mask for chord c
func (b *ChordTemplateBank) Template(c Chord) ([]float64, bool) {
	template, ok := b.templates[c]
	if !ok {
		return nil, false
	}
	return slices.Clone(template), true
}

type scale struct {
	offsets   [7]int
	qualities [7]ChordQuality
}

// natural major and natural minor harmonized in triads
var diatonicScales = map[KeyMode]scale{
	KeyModeMajor: {
		offsets:   [7]int{0, 2, 4, 5, 7, 9, 11},
		qualities: [7]ChordQuality{ChordMajor, ChordMinor, ChordMinor, ChordMajor, ChordMajor, ChordMinor, ChordDiminished},
	},
	KeyModeMinor: {
		offsets:   [7]int{0, 2, 3, 5, 7, 8, 10},
		qualities: [7]ChordQuality{ChordMinor, ChordDiminished, ChordMajor, ChordMinor, ChordMinor, ChordMajor, ChordMajor},
	},
}

// DiatonicChords returns the seven triads of key in scale-degree order
func DiatonicChords(key Key) ([]Chord, error) {
	sc, ok := diatonicScales[key.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key mode %s", ErrInvalidConfiguration, key.Mode)
	}
	if !key.Root.Valid() {
		return nil, fmt.Errorf("%w: invalid key root %d", ErrInvalidConfiguration, int(key.Root))
	}

	chords := make([]Chord, len(sc.offsets))
	for degree, offset := range sc.offsets {
		chords[degree] = Chord{
			Root:    key.Root.Transpose(offset),
			Quality: sc.qualities[degree],
		}
	}
	return chords, nil
}

var romanNumerals = [7]string{"I", "II", "III", "IV", "V", "VI", "VII"}

// RomanNumeral labels chord by its function in key, e.g. "V", "ii" or
// "vii°". Non-diatonic chords get an empty string.
func RomanNumeral(key Key, chord Chord) string {
	chords, err := DiatonicChords(key)
	if err != nil {
		return ""
	}

	degree := slices.Index(chords, chord)
	if degree < 0 {
		return ""
	}

	switch chord.Quality {
	case ChordMinor:
		return strings.ToLower(romanNumerals[degree])
	case ChordDiminished:
		return strings.ToLower(romanNumerals[degree]) + "°"
	default:
		return romanNumerals[degree]
	}
}
