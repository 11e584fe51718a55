package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-tonal/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tonal/algorithms/tonal"
)

var templatesKey string

func init() {
	templatesCmd.Flags().StringVar(&templatesKey, "key", "", `only list the diatonic chords of a key, e.g. "A Minor"`)
	rootCmd.AddCommand(templatesCmd)
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Lists the chord templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bank := tonal.DefaultChordBank()
		chords := bank.Chords()

		var key *tonal.Key
		if templatesKey != "" {
			k, err := tonal.ParseKey(templatesKey)
			if err != nil {
				return err
			}
			if chords, err = tonal.DiatonicChords(k); err != nil {
				return err
			}
			key = &k
		}

		return printTemplates(cmd.OutOrStdout(), bank, chords, key)
	},
}

func printTemplates(w io.Writer, bank *tonal.ChordTemplateBank, chords []tonal.Chord, key *tonal.Key) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := "CHORD\tNOTES\t" + strings.Join(chroma.Names(), " ")
	if key != nil {
		header = "DEGREE\t" + header
	}
	fmt.Fprintln(tw, header)

	for _, chord := range chords {
		template, ok := bank.Template(chord)
		if !ok {
			return fmt.Errorf("no template for %s", chord)
		}

		notes := make([]string, 0, 3)
		for _, pc := range chord.Notes() {
			notes = append(notes, pc.String())
		}

		bins := make([]string, len(template))
		for i, v := range template {
			bins[i] = fmt.Sprintf("%.0f", v)
		}

		row := fmt.Sprintf("%s\t%s\t%s", chord, strings.Join(notes, "-"), strings.Join(bins, " "))
		if key != nil {
			row = tonal.RomanNumeral(*key, chord) + "\t" + row
		}
		fmt.Fprintln(tw, row)
	}

	return tw.Flush()
}
