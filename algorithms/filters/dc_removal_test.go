package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveDCSettlesToZero(t *testing.T) {
	const sampleRate = 22050
	offset := make([]float64, sampleRate)
	for i := range offset {
		offset[i] = 0.5
	}

	out, err := RemoveDC(offset, sampleRate, DefaultDCCutoff)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, out[0], 1e-12)
	assert.InDelta(t, 0, out[len(out)-1], 1e-6)
}

func TestRemoveDCPassesTones(t *testing.T) {
	const sampleRate = 22050
	tone := make([]float64, sampleRate)
	for i := range tone {
		tone[i] = 0.25 + math.Sin(2*math.Pi*440*float64(i)/sampleRate)
	}

	out, err := RemoveDC(tone, sampleRate, DefaultDCCutoff)
	require.NoError(t, err)

	tail := out[sampleRate/2:]
	var peak, mean float64
	for _, v := range tail {
		peak = math.Max(peak, math.Abs(v))
		mean += v
	}
	mean /= float64(len(tail))

	assert.InDelta(t, 1.0, peak, 0.02)
	assert.InDelta(t, 0, mean, 0.01)
}

func TestNewDCRemovalValidates(t *testing.T) {
	_, err := NewDCRemoval(0, 20)
	assert.Error(t, err)
	_, err = NewDCRemoval(22050, 0)
	assert.Error(t, err)
	_, err = NewDCRemoval(22050, 11025)
	assert.Error(t, err)

	dc, err := NewDCRemoval(44100, 20)
	require.NoError(t, err)
	assert.InDelta(t, 1-2*math.Pi*20/44100, dc.PoleLocation(), 1e-12)

	dc.Process(1)
	dc.Reset()
	assert.Equal(t, 0.0, dc.Process(0))
}
