package export

import (
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-tonal/algorithms/tonal"
)

const (
	// TicksPerQuarter is the MIDI time resolution of exported files
	TicksPerQuarter = 480

	// DefaultTempo is used when no tempo was detected
	DefaultTempo = 120.0

	middleC  = 60
	velocity = 80
	channel  = 0
)

// WriteMIDI renders spans as a single-track Standard MIDI File: one block
// chord per span voiced from the root in the octave above middle C, and a
// marker meta event carrying the chord label. tempo is written as the file
// tempo and used to convert seconds to ticks.
func WriteMIDI(w io.Writer, spans []tonal.Span, tempo float64) error {
	if tempo <= 0 || math.IsNaN(tempo) || math.IsInf(tempo, 0) {
		tempo = DefaultTempo
	}

	ticksPerSecond := tempo / 60.0 * TicksPerQuarter
	toTicks := func(seconds float64) uint64 {
		return uint64(math.Round(math.Max(seconds, 0) * ticksPerSecond))
	}

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("chords"))
	track.Add(0, smf.MetaTempo(tempo))

	var now uint64
	for _, span := range spans {
		start, end := toTicks(span.StartTime), toTicks(span.EndTime)
		if end <= start || start < now {
			continue
		}

		keys := voicing(span.Chord)

		track.Add(uint32(start-now), smf.MetaMarker(span.Chord.String()))
		for _, key := range keys {
			track.Add(0, midi.NoteOn(channel, key, velocity))
		}

		for i, key := range keys {
			var delta uint32
			if i == 0 {
				delta = uint32(end - start)
			}
			track.Add(delta, midi.NoteOff(channel, key))
		}
		now = end
	}
	track.Close(0)

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	if err := file.Add(track); err != nil {
		return fmt.Errorf("adding chord track: %w", err)
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("writing midi: %w", err)
	}
	return nil
}

// voicing returns MIDI keys for chord in root position from C4 upwards
func voicing(chord tonal.Chord) []uint8 {
	root := middleC + int(chord.Root)
	intervals := chord.Intervals()

	keys := make([]uint8, len(intervals))
	for i, interval := range intervals {
		keys[i] = uint8(root + interval)
	}
	return keys
}
