package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Prints the stream properties of an audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detector, err := newDetector()
		if err != nil {
			return err
		}
		if err := detector.CheckDecoder(cmd.Context()); err != nil {
			return err
		}

		meta, err := detector.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Format:      %s\n", meta.Format)
		fmt.Fprintf(w, "Codec:       %s\n", meta.Codec)
		fmt.Fprintf(w, "Sample rate: %d Hz\n", meta.SampleRate)
		fmt.Fprintf(w, "Channels:    %d\n", meta.Channels)
		fmt.Fprintf(w, "Duration:    %s\n", time.Duration(meta.Duration*float64(time.Second)).Round(time.Millisecond))
		if meta.Bitrate > 0 {
			fmt.Fprintf(w, "Bitrate:     %d kb/s\n", meta.Bitrate/1000)
		}
		return nil
	},
}
