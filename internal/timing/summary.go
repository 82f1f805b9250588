package timing

import (
	"math"
	"slices"
)

// Summary describes one pass of intervals.
type Summary struct {
	Count    int
	Mean     float64
	RMS      float64
	Min      float64
	Max      float64
	MaxIndex int
}

// Frequency returns the event rate implied by the mean interval.
func (s Summary) Frequency() float64 {
	if s.Mean <= 0 {
		return 0
	}

	return 1.0 / s.Mean
}

// RelativeRMS returns RMS as a percentage of the mean.
func (s Summary) RelativeRMS() float64 {
	if s.Mean <= 0 {
		return 0
	}

	return 100.0 * s.RMS / s.Mean
}

// Summarize sorts samples ascending in place and computes mean and RMS.
// RMS uses the population two-moment form sqrt(E[x²] - mean²), clamped at 0.
// MaxIndex is the position of the largest sample before sorting.
func Summarize(samples []float64) (Summary, error) {
	n := len(samples)
	if n == 0 {
		return Summary{}, ErrEmptySampleSet
	}

	var sum, sumSquares float64

	maxIndex := 0
	for i, v := range samples {
		if v > samples[maxIndex] {
			maxIndex = i
		}

		sum += v
		sumSquares += v * v
	}

	slices.Sort(samples)

	mean := sum / float64(n)
	variance := sumSquares/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	// Rounding can put the mean a hair outside the observed range.
	mean = math.Min(math.Max(mean, samples[0]), samples[n-1])

	return Summary{
		Count:    n,
		Mean:     mean,
		RMS:      math.Sqrt(variance),
		Min:      samples[0],
		Max:      samples[n-1],
		MaxIndex: maxIndex,
	}, nil
}
