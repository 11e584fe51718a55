package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-tonal/logging"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft    *FFT
	logger logging.Logger
}

// STFTResult holds the magnitude spectrogram of an STFT analysis
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// FrameCount returns the number of full frames ComputeWithWindow will produce
func FrameCount(signalLen, windowSize, hopSize int) int {
	if windowSize <= 0 || hopSize <= 0 || signalLen < windowSize {
		return 0
	}
	return (signalLen-windowSize)/hopSize + 1
}

// ComputeWithWindow computes the magnitude STFT with parallel frame workers.
// Frame t covers samples [t*hopSize, t*hopSize+windowSize).
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := FrameCount(len(signal), windowSize, hopSize)
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	// positive frequencies only
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)

	type frameJob struct {
		frameIdx int
		startIdx int
	}

	jobs := make(chan frameJob, numFrames)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// each worker owns its frame buffer
			frameBuffer := make([]float64, windowSize)

			for job := range jobs {
				copy(frameBuffer, signal[job.startIdx:job.startIdx+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						// jobs is buffered for every frame, so leaving early never blocks the producer
						errs <- fmt.Errorf("frame %d: %w", job.frameIdx, err)
						return
					}
				}

				copy(magnitude[job.frameIdx], s.fft.Magnitudes(frameBuffer))
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameJob{
			frameIdx: frameIdx,
			startIdx: frameIdx * hopSize,
		}
	}
	close(jobs)

	wg.Wait()
	close(errs)

	if err, ok := <-errs; ok {
		s.logger.Error(err, "Window application failed")
		return nil, err
	}

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// getOptimalWorkerCount determines the number of workers for a workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	var workers int
	switch {
	case numFrames < 100:
		// don't over-parallelize small workloads
		workers = min(numCPU/2, numFrames)
	case numFrames < 1000:
		workers = min(numCPU, 8)
	default:
		workers = numCPU
	}

	return max(workers, 1)
}

// CenterPad surrounds signal with windowSize/2 zeros on each side so that
// frame t of a subsequent STFT is centered on sample t*hopSize
func CenterPad(signal []float64, windowSize int) []float64 {
	half := windowSize / 2
	padded := make([]float64, len(signal)+2*half)
	copy(padded[half:], signal)
	return padded
}
