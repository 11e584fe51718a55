package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-tonal/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tonal/detect"
	"github.com/RyanBlaney/sonido-tonal/export"
)

var (
	groupSize     int
	restrictToKey bool
	midiPath      string
	jsonOutput    bool
)

func init() {
	chordsCmd.Flags().IntVar(&groupSize, "group-size", 4, "beats per chord decision")
	chordsCmd.Flags().BoolVar(&restrictToKey, "restrict-to-key", true, "only consider the seven diatonic chords of the detected key")
	chordsCmd.Flags().StringVar(&midiPath, "midi", "", "also write the progression as a MIDI file")
	chordsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")

	rootCmd.AddCommand(chordsCmd)
}

var chordsCmd = &cobra.Command{
	Use:   "chords <file|url|->",
	Short: "Detects the chord progression of a recording",
	Long: `Detects the key, tracks beats, and labels every group of beats with the
best matching triad. Consecutive groups with the same chord are merged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := analysisConfig.SegmentOptions()
		if cmd.Flags().Changed("group-size") {
			opts.GroupSize = groupSize
		}
		if cmd.Flags().Changed("restrict-to-key") {
			opts.RestrictToKey = restrictToKey
		}

		detector, err := newDetector()
		if err != nil {
			return err
		}

		audio, cleanup, err := loadAudio(cmd, detector, args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := detector.DetectChords(cmd.Context(), audio.PCM, audio.SampleRate, opts)
		if err != nil {
			return err
		}

		if midiPath != "" {
			if err := writeMIDIFile(midiPath, result); err != nil {
				return err
			}
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

func writeMIDIFile(path string, result *detect.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating midi file: %w", err)
	}

	if err := export.WriteMIDI(f, result.Chords, result.Tempo); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printResult(w io.Writer, result *detect.Result) error {
	fmt.Fprintf(w, "Key:      %s\n", result.Key)
	fmt.Fprintf(w, "Tempo:    %.1f BPM\n", result.Tempo)
	fmt.Fprintf(w, "Duration: %.2fs\n\n", result.Duration)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tCHORD\tDEGREE")
	for _, span := range result.Chords {
		fmt.Fprintf(tw, "%.2f\t%.2f\t%s\t%s\n",
			span.StartTime, span.EndTime, span.Chord, tonal.RomanNumeral(result.Key, span.Chord))
	}
	return tw.Flush()
}
