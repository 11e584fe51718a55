package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-tonal/config"
	"github.com/RyanBlaney/sonido-tonal/detect"
	"github.com/RyanBlaney/sonido-tonal/logging"
	"github.com/RyanBlaney/sonido-tonal/transcode"
)

var (
	envFiles []string
	logLevel string

	analysisConfig *config.AnalysisConfig
)

var rootCmd = &cobra.Command{
	Use:   "sonido-tonal",
	Short: "Key and chord detection for audio recordings",
	Long: `sonido-tonal estimates the musical key of a recording and labels its
chord progression beat by beat. Inputs can be local audio files or http(s)
URLs, or "-" for standard input; decoding goes through ffmpeg and downloads through yt-dlp.

Settings are read from SONIDO_* environment variables and optional .env files.`,
	SilenceUsage:  true,
	SilenceErrors: true, // Execute reports the error once

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv(envFiles...)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logging.SetLevel(level)

		analysisConfig = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading SONIDO_* variables")
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}

func newDetector() (*detect.Detector, error) {
	return detect.NewDetector(analysisConfig)
}

// loadAudio checks the decoder and decodes source; "-" reads standard input
func loadAudio(cmd *cobra.Command, detector *detect.Detector, source string) (*transcode.AudioData, func(), error) {
	noop := func() {}
	if err := detector.CheckDecoder(cmd.Context()); err != nil {
		return nil, noop, err
	}

	if source == "-" {
		audio, err := detector.LoadReader(cmd.Context(), cmd.InOrStdin())
		return audio, noop, err
	}
	return detector.Load(cmd.Context(), source)
}
