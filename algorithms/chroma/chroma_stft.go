package chroma

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-tonal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tonal/algorithms/windowing"
	"github.com/RyanBlaney/sonido-tonal/logging"
)

// ErrEmptySignal is returned when there are no samples to analyze
var ErrEmptySignal = errors.New("empty signal")

// Kind selects the spectral front end of the chromagram
type Kind string

const (
	KindSTFT Kind = "stft"
	KindCQT  Kind = "cqt"
)

// ParseKind maps a case-insensitive name to a Kind; empty means STFT
func ParseKind(name string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case "", KindSTFT:
		return KindSTFT, nil
	case KindCQT:
		return KindCQT, nil
	default:
		return "", fmt.Errorf("unknown chroma kind %q", name)
	}
}

// ExtractorConfig holds chromagram parameters. WindowSize applies to the
// STFT front end; the CQT sizes its kernels from the frequency range.
type ExtractorConfig struct {
	Kind       Kind           `json:"kind"`
	WindowSize int            `json:"window_size"`
	HopSize    int            `json:"hop_size"`
	TuningFreq float64        `json:"tuning_freq"` // A4 frequency
	MinFreq    float64        `json:"min_freq"`    // lowest frequency folded into chroma
	MaxFreq    float64        `json:"max_freq"`    // highest frequency folded into chroma
	Window     windowing.Type `json:"window"`
}

// DefaultExtractorConfig covers C2..C7 with A4=440Hz tuning
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Kind:       KindSTFT,
		WindowSize: 4096,
		HopSize:    512,
		TuningFreq: 440.0,
		MinFreq:    65.4,   // C2
		MaxFreq:    2093.0, // C7
		Window:     windowing.TypeHann,
	}
}

// Extractor computes a chromagram from an STFT magnitude spectrogram or a
// constant-Q transform.
//
// Each bin inside [MinFreq, MaxFreq] is folded onto the nearest semitone
// pitch class (logarithmic mapping against the tuning frequency) and its
// energy accumulated. Frames are scaled so their strongest class is 1;
// silent frames stay all-zero. The Extractor is read-only after construction.
type Extractor struct {
	sampleRate int
	config     ExtractorConfig
	stft       *spectral.STFT
	window     *windowing.Window
	cqt        *cqtKernel
	logger     logging.Logger
}

// NewExtractor validates config and creates a chroma extractor for sampleRate
func NewExtractor(sampleRate int, config ExtractorConfig) (*Extractor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if config.HopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive: %d", config.HopSize)
	}
	if config.TuningFreq <= 0 {
		return nil, fmt.Errorf("tuning frequency must be positive: %f", config.TuningFreq)
	}
	if config.MinFreq < 0 || config.MaxFreq <= config.MinFreq {
		return nil, fmt.Errorf("invalid frequency range [%f, %f]", config.MinFreq, config.MaxFreq)
	}

	kind, err := ParseKind(string(config.Kind))
	if err != nil {
		return nil, err
	}
	config.Kind = kind

	e := &Extractor{
		sampleRate: sampleRate,
		config:     config,
		stft:       spectral.NewSTFT(),
		logger: logging.WithFields(logging.Fields{
			"component":   "chroma_extractor",
			"kind":        string(kind),
			"sample_rate": sampleRate,
		}),
	}

	switch kind {
	case KindCQT:
		if e.cqt, err = newCQTKernel(sampleRate, config); err != nil {
			return nil, err
		}
	default:
		if e.window, err = windowing.New(config.Window, config.WindowSize); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// HopSize returns the number of samples between consecutive frames
func (e *Extractor) HopSize() int {
	return e.config.HopSize
}

// Compute returns one 12-bin chroma vector per STFT frame. Frames are
// centered, so frame t describes the audio around t*HopSize samples and any
// non-empty signal yields at least one frame.
func (e *Extractor) Compute(signal []float64) (Matrix, error) {
	if len(signal) == 0 {
		return nil, ErrEmptySignal
	}
	if e.cqt != nil {
		return e.computeCQT(signal), nil
	}

	padded := spectral.CenterPad(signal, e.config.WindowSize)
	stftResult, err := e.stft.ComputeWithWindow(padded, e.config.WindowSize, e.config.HopSize, e.sampleRate, e.window)
	if err != nil {
		return nil, fmt.Errorf("chroma stft: %w", err)
	}

	chromagram := e.convertSTFTToChroma(stftResult)

	e.logger.Debug("Chromagram computed", logging.Fields{
		"frames": len(chromagram),
	})

	return chromagram, nil
}

// convertSTFTToChroma folds a magnitude spectrogram into pitch classes
func (e *Extractor) convertSTFTToChroma(stftResult *spectral.STFTResult) Matrix {
	chromagram := make(Matrix, stftResult.TimeFrames)
	mapping := e.chromaMapping(stftResult.FreqBins, stftResult.FreqResolution)

	for t := range stftResult.TimeFrames {
		frame := make([]float64, NumPitchClasses)

		for f, bin := range mapping {
			if bin < 0 {
				continue
			}
			magnitude := stftResult.Magnitude[t][f]
			frame[bin] += magnitude * magnitude
		}

		normalizeFrame(frame)
		chromagram[t] = frame
	}

	return chromagram
}

// chromaMapping maps FFT bins to pitch classes, -1 for bins outside the range
func (e *Extractor) chromaMapping(freqBins int, freqResolution float64) []int {
	mapping := make([]int, freqBins)

	for f := range freqBins {
		frequency := float64(f) * freqResolution
		if frequency < e.config.MinFreq || frequency > e.config.MaxFreq || frequency <= 0 {
			mapping[f] = -1
			continue
		}

		midiNote := e.frequencyToMIDI(frequency)
		mapping[f] = int(math.Round(midiNote)) % NumPitchClasses
	}

	return mapping
}

// frequencyToMIDI converts frequency to a fractional MIDI note number (A4 = 69)
func (e *Extractor) frequencyToMIDI(frequency float64) float64 {
	return 69.0 + 12.0*math.Log2(frequency/e.config.TuningFreq)
}

// pitchClassOf folds a fractional MIDI note onto the nearest pitch class
func pitchClassOf(midiNote float64) int {
	pc := int(math.Round(midiNote)) % NumPitchClasses
	if pc < 0 {
		pc += NumPitchClasses
	}
	return pc
}

// normalizeFrame scales a frame so its maximum is 1
func normalizeFrame(frame []float64) {
	peak := floats.Max(frame)
	if peak > 1e-10 {
		floats.Scale(1/peak, frame)
	}
}
