package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrUndefinedCorrelation is returned when a Pearson coefficient cannot be
// computed, e.g. when either input has zero variance.
var ErrUndefinedCorrelation = errors.New("correlation undefined")

// Pearson returns the Pearson correlation coefficient of x and y.
//
// A zero-variance input makes the coefficient 0/0; gonum reports that as NaN,
// which is surfaced here as ErrUndefinedCorrelation instead of a number.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: length mismatch %d != %d", ErrUndefinedCorrelation, len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 observations, got %d", ErrUndefinedCorrelation, len(x))
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, fmt.Errorf("%w: zero variance input", ErrUndefinedCorrelation)
	}

	return r, nil
}
