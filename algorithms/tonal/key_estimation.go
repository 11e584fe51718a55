package tonal

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-tonal/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tonal/algorithms/stats"
)

// KeyMode represents major or minor mode
type KeyMode int

const (
	KeyModeMajor KeyMode = iota
	KeyModeMinor
)

// String returns "Major" or "Minor"
func (m KeyMode) String() string {
	switch m {
	case KeyModeMajor:
		return "Major"
	case KeyModeMinor:
		return "Minor"
	default:
		return fmt.Sprintf("KeyMode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode
func (m KeyMode) Valid() bool {
	return m == KeyModeMajor || m == KeyModeMinor
}

// ParseKeyMode parses "major" or "minor", ignoring case
func ParseKeyMode(s string) (KeyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "major":
		return KeyModeMajor, nil
	case "minor":
		return KeyModeMinor, nil
	default:
		return 0, fmt.Errorf("%w: unknown key mode %q", ErrInvalidConfiguration, s)
	}
}

// Key is a tonic pitch class plus mode. It encodes as text like "C Major".
type Key struct {
	Root chroma.PitchClass
	Mode KeyMode
}

func (k Key) String() string {
	return k.Root.String() + " " + k.Mode.String()
}

// ParseKey parses the String form, e.g. "F# Minor" or "Bb major"
func ParseKey(s string) (Key, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Key{}, fmt.Errorf("%w: malformed key %q", ErrInvalidConfiguration, s)
	}

	root, err := chroma.ParsePitchClass(fields[0])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	mode, err := ParseKeyMode(fields[1])
	if err != nil {
		return Key{}, err
	}

	return Key{Root: root, Mode: mode}, nil
}

func (k Key) MarshalText() ([]byte, error) {
	if !k.Root.Valid() || !k.Mode.Valid() {
		return nil, fmt.Errorf("%w: cannot encode key %d/%d", ErrInvalidConfiguration, int(k.Root), int(k.Mode))
	}
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Krumhansl-Schmuckler probe-tone profiles, tonic at index 0
var (
	MajorProfile = [chroma.NumPitchClasses]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	MinorProfile = [chroma.NumPitchClasses]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// KeyScore is the correlation of a chroma vector with one key template
type KeyScore struct {
	Key   Key     `json:"key"`
	Score float64 `json:"score"`
}

// KeyTemplateBank holds the 24 rotated key profiles. It is immutable after
// construction and safe for concurrent use.
type KeyTemplateBank struct {
	keys      []Key
	templates [][]float64
}

// NewKeyTemplateBank builds templates for every major key (roots C..B)
// followed by every minor key. That order is also the tie-break order.
func NewKeyTemplateBank() *KeyTemplateBank {
	bank := &KeyTemplateBank{}
	for _, mode := range []KeyMode{KeyModeMajor, KeyModeMinor} {
		profile := MajorProfile
		if mode == KeyModeMinor {
			profile = MinorProfile
		}
		for root := range chroma.NumPitchClasses {
			bank.keys = append(bank.keys, Key{Root: chroma.PitchClass(root), Mode: mode})
			bank.templates = append(bank.templates, rotate(profile, root))
		}
	}
	return bank
}

var defaultKeyBank = NewKeyTemplateBank()

// DefaultKeyBank returns the shared key template bank
func DefaultKeyBank() *KeyTemplateBank {
	return defaultKeyBank
}

// Template returns a copy of the profile for key k
func (b *KeyTemplateBank) Template(k Key) ([]float64, bool) {
	for i, key := range b.keys {
		if key == k {
			out := make([]float64, chroma.NumPitchClasses)
			copy(out, b.templates[i])
			return out, true
		}
	}
	return nil, false
}

// Scores correlates mean against all 24 templates in bank order
func (b *KeyTemplateBank) Scores(mean []float64) ([]KeyScore, error) {
	if len(mean) != chroma.NumPitchClasses {
		return nil, fmt.Errorf("%w: chroma vector has %d bins, want %d",
			ErrInvalidConfiguration, len(mean), chroma.NumPitchClasses)
	}

	scores := make([]KeyScore, len(b.keys))
	for i, key := range b.keys {
		r, err := stats.Pearson(mean, b.templates[i])
		if err != nil {
			return nil, fmt.Errorf("%w: correlating with %s: %w", ErrNumericInstability, key, err)
		}
		scores[i] = KeyScore{Key: key, Score: r}
	}
	return scores, nil
}

// Estimate returns the best-correlated key. On equal scores the key
// earliest in bank order wins.
func (b *KeyTemplateBank) Estimate(mean []float64) (Key, error) {
	scores, err := b.Scores(mean)
	if err != nil {
		return Key{}, err
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best.Key, nil
}

// EstimateKey estimates the key of a mean chroma vector with the default bank
func EstimateKey(mean []float64) (Key, error) {
	return defaultKeyBank.Estimate(mean)
}

// EstimateKeyScores returns all 24 key correlations, majors first
func EstimateKeyScores(mean []float64) ([]KeyScore, error) {
	return defaultKeyBank.Scores(mean)
}

// rotate moves the tonic of template from index 0 to index root
func rotate(template [chroma.NumPitchClasses]float64, root int) []float64 {
	rotated := make([]float64, chroma.NumPitchClasses)
	for j := range rotated {
		rotated[j] = template[(j-root+chroma.NumPitchClasses)%chroma.NumPitchClasses]
	}
	return rotated
}
