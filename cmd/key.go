package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(keyCmd)
}

var keyCmd = &cobra.Command{
	Use:   "key <file|url|->",
	Short: "Estimates the key of a recording",
	Long:  `Estimates the key of a recording by correlating its mean chroma with the 24 Krumhansl key profiles.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detector, err := newDetector()
		if err != nil {
			return err
		}

		audio, cleanup, err := loadAudio(cmd, detector, args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		key, err := detector.DetectKey(cmd.Context(), audio.PCM, audio.SampleRate)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}
