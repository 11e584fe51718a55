package transcode

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-tonal/logging"
)

// FetcherConfig configures the external audio downloader
type FetcherConfig struct {
	DownloaderPath string        `json:"downloader_path"`
	AudioFormat    string        `json:"audio_format"`
	Dir            string        `json:"dir"` // empty uses os.TempDir
	Timeout        time.Duration `json:"timeout"`
}

// DefaultFetcherConfig uses yt-dlp from PATH and extracts mp3
func DefaultFetcherConfig() *FetcherConfig {
	return &FetcherConfig{
		DownloaderPath: "yt-dlp",
		AudioFormat:    "mp3",
		Timeout:        5 * time.Minute,
	}
}

// Fetcher downloads the audio track of a web video to a local file
type Fetcher struct {
	config *FetcherConfig
	logger logging.Logger
}

// NewFetcher creates a fetcher, using defaults when config is nil
func NewFetcher(config *FetcherConfig) *Fetcher {
	if config == nil {
		config = DefaultFetcherConfig()
	}
	return &Fetcher{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_fetcher",
		}),
	}
}

// Fetch downloads rawURL into a uniquely named file and returns its path and
// a cleanup func that removes it. cleanup is never nil.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, func(), error) {
	noop := func() {}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", noop, fmt.Errorf("%w: unsupported url %q", ErrDecode, rawURL)
	}

	dir := f.config.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	format := f.config.AudioFormat
	if format == "" {
		format = "mp3"
	}

	id := uuid.NewString()
	template := filepath.Join(dir, id+".%(ext)s")
	path := filepath.Join(dir, id+"."+format)
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("Failed to remove downloaded audio", logging.Fields{
				"path":  path,
				"error": err.Error(),
			})
		}
	}

	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	args := []string{"-x", "--audio-format", format, "--no-playlist", "-o", template, rawURL}
	f.logger.Debug("Downloading audio", logging.Fields{
		"url":  rawURL,
		"path": path,
	})

	cmd := exec.CommandContext(ctx, f.config.DownloaderPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("%w: %s: %w, stderr: %s",
			ErrDecode, f.config.DownloaderPath, err, strings.TrimSpace(stderr.String()))
	}

	if _, err := os.Stat(path); err != nil {
		return "", noop, fmt.Errorf("%w: downloader produced no file at %s: %w", ErrDecode, path, err)
	}

	return path, cleanup, nil
}
