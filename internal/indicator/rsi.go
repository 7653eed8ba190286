// Package indicator computes the relative strength oscillator driving the
// trading engine's entry and exit signals.
package indicator

import (
	"errors"
	"math"
)

// epsilon keeps the relative strength finite when a window contains no losses.
const epsilon = 1e-10

// Series computes an RSI-style momentum oscillator over closes using a simple
// rolling mean of gains and losses. The result is index-aligned with the
// input and has the same length; entries with insufficient lookback (the
// first window values) are NaN. Defined values lie in [0,100].
func Series(closes []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}

	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}
	if len(closes) < window+1 {
		return series, nil
	}

	var sumGain, sumLoss float64
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			sumGain += delta
		} else {
			sumLoss -= delta
		}

		// Drop the delta that fell out of the trailing window.
		if i > window {
			old := closes[i-window] - closes[i-window-1]
			if old > 0 {
				sumGain -= old
			} else {
				sumLoss += old
			}
		}

		if i >= window {
			avgGain := sumGain / float64(window)
			avgLoss := sumLoss / float64(window)
			rs := avgGain / (avgLoss + epsilon)
			series[i] = 100 - 100/(1+rs)
		}
	}
	return series, nil
}

// Last returns the trailing value of a series and whether it is defined.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
