package chroma

import (
	"fmt"
	"math"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-tonal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tonal/algorithms/windowing"
	"github.com/RyanBlaney/sonido-tonal/logging"
)

// kernelSparsity drops spectral kernel taps below this fraction of a bin's peak
const kernelSparsity = 0.01

// cqtKernel is a constant-Q transform with one bin per semitone, evaluated in
// the frequency domain (Brown & Puckette, "An efficient algorithm for the
// calculation of a constant Q transform", JASA 1992).
//
// Bin k analyses f_k = tuning * 2^((m_k-69)/12) with a windowed complex
// exponential of length Q*fs/f_k, Q = 1/(2^(1/12)-1). All kernels are centered
// in one fftSize frame so every bin describes the same instant.
type cqtKernel struct {
	fftSize int
	bins    []cqtBin
	fft     *spectral.FFT
}

type cqtBin struct {
	pitchClass int
	taps       []kernelTap
}

type kernelTap struct {
	index  int
	weight complex128
}

func newCQTKernel(sampleRate int, config ExtractorConfig) (*cqtKernel, error) {
	nyquist := float64(sampleRate) / 2
	toMIDI := func(f float64) float64 { return 69 + 12*math.Log2(f/config.TuningFreq) }

	lowest := math.Round(toMIDI(math.Max(config.MinFreq, 1)))
	highest := math.Round(toMIDI(math.Min(config.MaxFreq, nyquist)))

	var notes, lengths []int
	var freqs []float64
	q := 1 / (math.Pow(2, 1.0/12) - 1)
	for m := lowest; m <= highest; m++ {
		f := config.TuningFreq * math.Pow(2, (m-69)/12)
		if f <= 0 || f >= nyquist {
			continue
		}
		notes = append(notes, int(m))
		freqs = append(freqs, f)
		lengths = append(lengths, int(math.Ceil(q*float64(sampleRate)/f)))
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("no constant-Q bins in [%f, %f] at %dHz", config.MinFreq, config.MaxFreq, sampleRate)
	}

	// the lowest note has the longest kernel
	kernel := &cqtKernel{
		fftSize: nextPowerOfTwo(lengths[0]),
		bins:    make([]cqtBin, len(notes)),
		fft:     spectral.NewFFT(),
	}

	for k, f := range freqs {
		taps, err := kernel.spectralTaps(f, lengths[k], sampleRate, config.Window)
		if err != nil {
			return nil, err
		}
		kernel.bins[k] = cqtBin{pitchClass: pitchClassOf(float64(notes[k])), taps: taps}
	}

	return kernel, nil
}

// spectralTaps returns the significant conjugate FFT coefficients of the
// temporal kernel for frequency f, scaled so the transform is a plain
// inner product with the frame spectrum
func (c *cqtKernel) spectralTaps(f float64, length, sampleRate int, kind windowing.Type) ([]kernelTap, error) {
	window, err := windowing.New(kind, length)
	if err != nil {
		return nil, err
	}
	coeffs := window.GetCoefficients()

	temporal := make([]complex128, c.fftSize)
	offset := (c.fftSize - length) / 2
	for n, w := range coeffs {
		phase := 2 * math.Pi * f * float64(n-length/2) / float64(sampleRate)
		temporal[offset+n] = complex(w/float64(length), 0) * cmplx.Exp(complex(0, phase))
	}

	spectrum := c.fft.ComputeComplex(temporal)

	peak := 0.0
	for _, v := range spectrum {
		peak = math.Max(peak, cmplx.Abs(v))
	}

	var taps []kernelTap
	scale := complex(float64(c.fftSize), 0)
	for i, v := range spectrum {
		if cmplx.Abs(v) >= peak*kernelSparsity {
			taps = append(taps, kernelTap{index: i, weight: cmplx.Conj(v) / scale})
		}
	}
	return taps, nil
}

// transform returns the pitch-class energy of one fftSize frame
func (c *cqtKernel) transform(frame []float64) []float64 {
	spectrum := c.fft.Compute(frame)
	out := make([]float64, NumPitchClasses)

	for _, bin := range c.bins {
		var sum complex128
		for _, tap := range bin.taps {
			sum += spectrum[tap.index] * tap.weight
		}
		magnitude := cmplx.Abs(sum)
		out[bin.pitchClass] += magnitude * magnitude
	}
	return out
}

// computeCQT frames the centered signal on the extractor hop, so frame t
// describes the audio around t*HopSize exactly like the STFT front end
func (e *Extractor) computeCQT(signal []float64) Matrix {
	size := e.cqt.fftSize
	hop := e.config.HopSize
	padded := spectral.CenterPad(signal, size)
	numFrames := spectral.FrameCount(len(padded), size, hop)

	chromagram := make(Matrix, numFrames)
	jobs := make(chan int, numFrames)
	for t := range numFrames {
		jobs <- t
	}
	close(jobs)

	var wg sync.WaitGroup
	for range max(min(runtime.NumCPU(), numFrames), 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				frame := e.cqt.transform(padded[t*hop : t*hop+size])
				normalizeFrame(frame)
				chromagram[t] = frame
			}
		}()
	}
	wg.Wait()

	e.logger.Debug("Constant-Q chromagram computed", logging.Fields{
		"frames":   numFrames,
		"fft_size": size,
		"bins":     len(e.cqt.bins),
	})

	return chromagram
}

// nextPowerOfTwo finds the next power of 2 >= n
func nextPowerOfTwo(n int) int {
	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
