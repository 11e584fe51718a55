package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPearsonPerfectAndInverse(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	r, err := Pearson(x, []float64{2, 4, 6, 8, 10})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, err = Pearson(x, []float64{5, 4, 3, 2, 1})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r, 1e-12)
}

func TestPearsonZeroVarianceIsUndefined(t *testing.T) {
	_, err := Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.True(t, errors.Is(err, ErrUndefinedCorrelation))

	_, err = Pearson(make([]float64, 12), []float64{1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0})
	assert.True(t, errors.Is(err, ErrUndefinedCorrelation))
}

func TestPearsonRejectsShapeMismatch(t *testing.T) {
	_, err := Pearson([]float64{1, 2}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrUndefinedCorrelation)

	_, err = Pearson([]float64{1}, []float64{1})
	assert.ErrorIs(t, err, ErrUndefinedCorrelation)
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"odd", []float64{5, 1, 3}, 3},
		{"even averages middle pair", []float64{4, 1, 3, 2}, 2.5},
		{"outlier ignored", []float64{0.1, 0.2, 9.0}, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Median(tt.in), 1e-12)
		})
	}
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestMeanStdDev(t *testing.T) {
	mean, std := MeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.0, std, 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
}
