package chroma

import (
	"fmt"
	"strings"
)

// NumPitchClasses is the number of semitone bins in an octave-folded vector
const NumPitchClasses = 12

// PitchClass is a semitone offset above C, in [0, 12)
type PitchClass int

const (
	C PitchClass = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var pitchClassNames = [NumPitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatSpellings = map[string]PitchClass{
	"DB": CSharp,
	"EB": DSharp,
	"GB": FSharp,
	"AB": GSharp,
	"BB": ASharp,
}

// Transpose returns the pitch class n semitones above pc, wrapping mod 12
func (pc PitchClass) Transpose(n int) PitchClass {
	return PitchClass(((int(pc)+n)%NumPitchClasses + NumPitchClasses) % NumPitchClasses)
}

// Valid reports whether pc is in [0, 12)
func (pc PitchClass) Valid() bool {
	return pc >= 0 && pc < NumPitchClasses
}

func (pc PitchClass) String() string {
	if !pc.Valid() {
		return fmt.Sprintf("PitchClass(%d)", int(pc))
	}
	return pitchClassNames[pc]
}

// Names returns the 12 pitch class names in index order, sharps only
func Names() []string {
	out := make([]string, NumPitchClasses)
	copy(out, pitchClassNames[:])
	return out
}

// ParsePitchClass accepts sharp names (C, C#, ...) and the common flat spellings (Db, Eb, Gb, Ab, Bb)
func ParsePitchClass(name string) (PitchClass, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range pitchClassNames {
		if upper == n {
			return PitchClass(i), nil
		}
	}
	if pc, ok := flatSpellings[upper]; ok {
		return pc, nil
	}
	return 0, fmt.Errorf("unknown pitch class %q", name)
}
