package decomp

import "gonum.org/v1/gonum/stat"

// ImbalanceReport summarizes how evenly io_count is spread across the
// ranks whose values were passed to Diagnostics.
type ImbalanceReport struct {
	Mean   float64
	StdDev float64
	Max    float64
	Min    float64
	// Ratio is Max/Mean: 1.0 means every value passed in is equal, larger
	// values mean the busiest rank carries disproportionately more of the
	// file. Ranks with io_count 0 that are passed in lower the mean.
	Ratio float64
}

// Diagnostics computes a load-imbalance summary over allIOCounts, the
// io_count every rank in the group was assigned. It is a pure function:
// CreateDecomp never calls it, since the core stays collective-only and
// allocation-bounded; a caller that separately gathers io_count across
// the group (its own AllReduce or Gather, outside this package) can pass
// the result here for a one-line summary worth logging.
func Diagnostics(allIOCounts []int64) ImbalanceReport {
	if len(allIOCounts) == 0 {
		return ImbalanceReport{}
	}

	values := make([]float64, len(allIOCounts))
	maxV, minV := allIOCounts[0], allIOCounts[0]
	for i, c := range allIOCounts {
		values[i] = float64(c)
		if c > maxV {
			maxV = c
		}
		if c < minV {
			minV = c
		}
	}

	mean := stat.Mean(values, nil)
	stdDev := stat.StdDev(values, nil)

	ratio := 0.0
	if mean != 0 {
		ratio = float64(maxV) / mean
	}

	return ImbalanceReport{
		Mean:   mean,
		StdDev: stdDev,
		Max:    float64(maxV),
		Min:    float64(minV),
		Ratio:  ratio,
	}
}
