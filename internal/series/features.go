package series

import (
	"math"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// applyFeatures fills rolling, pct_change and lag columns. Undefined cells
// (pct_change of the first row, lags reaching before the first row) are
// back-filled, then forward-filled; a column with no defined value is zero.
// rolling_std of a single-value window is 0, not undefined.
func applyFeatures(periods []domain.PeriodAggregate, lagDepth int) {
	n := len(periods)
	net := make([]float64, n)
	for i, p := range periods {
		net[i] = p.NetQuantity
	}

	pct := make([]float64, n)
	lags := make([][]float64, lagDepth)
	for k := range lags {
		lags[k] = make([]float64, n)
	}

	for i := range periods {
		periods[i].RollingMean, periods[i].RollingStd = rollingStats(net[:i+1])
		if i == 0 {
			pct[i] = math.NaN()
		} else {
			pct[i] = PctChange(net[i-1], net[i])
		}
		for k := 0; k < lagDepth; k++ {
			if i-k-1 >= 0 {
				lags[k][i] = net[i-k-1]
			} else {
				lags[k][i] = math.NaN()
			}
		}
	}

	fillGaps(pct)
	for k := range lags {
		fillGaps(lags[k])
	}

	for i := range periods {
		periods[i].PctChange = pct[i]
		periods[i].Lags = make([]float64, lagDepth)
		for k := 0; k < lagDepth; k++ {
			periods[i].Lags[k] = lags[k][i]
		}
	}
}

// Extend derives the features of a period that follows history and has the
// given net quantity. Lags come from the preceding rows in order, so a
// forecast row built on predicted rows inherits their values.
func Extend(history []domain.PeriodAggregate, next domain.PeriodAggregate, lagDepth int) domain.PeriodAggregate {
	net := make([]float64, 0, len(history)+1)
	for _, p := range history {
		net = append(net, p.NetQuantity)
	}
	net = append(net, next.NetQuantity)
	i := len(net) - 1

	next.RollingMean, next.RollingStd = rollingStats(net)
	if i > 0 {
		next.PctChange = PctChange(net[i-1], net[i])
	}
	next.Lags = make([]float64, lagDepth)
	for k := 0; k < lagDepth; k++ {
		switch {
		case i-k-1 >= 0:
			next.Lags[k] = net[i-k-1]
		case len(history) > 0:
			next.Lags[k] = history[0].NetQuantity
		}
	}
	return next
}

// PctChange is (current - previous) / previous, and 0 when previous is 0.
func PctChange(previous, current float64) float64 {
	if previous == 0 {
		return 0
	}
	v := (current - previous) / previous
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// rollingStats returns mean and sample standard deviation over the trailing
// window ending at the last value, with a minimum window of one.
func rollingStats(values []float64) (float64, float64) {
	start := len(values) - RollingWindow
	if start < 0 {
		start = 0
	}
	window := values[start:]
	if len(window) == 0 {
		return 0, 0
	}
	if len(window) < 2 {
		return stat.Mean(window, nil), 0
	}
	return stat.MeanStdDev(window, nil)
}

func fillGaps(col []float64) {
	next := math.NaN()
	for i := len(col) - 1; i >= 0; i-- {
		if math.IsNaN(col[i]) {
			col[i] = next
		} else {
			next = col[i]
		}
	}
	prev := math.NaN()
	for i := range col {
		if math.IsNaN(col[i]) {
			col[i] = prev
		} else {
			prev = col[i]
		}
	}
	for i := range col {
		if math.IsNaN(col[i]) {
			col[i] = 0
		}
	}
}
