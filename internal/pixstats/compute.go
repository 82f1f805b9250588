package pixstats

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

const (
	// DefaultBins is the histogram resolution used when none is requested.
	DefaultBins = 20
	// RawLimit is the largest element count shown element by element
	// instead of as a histogram.
	RawLimit = 25
)

// Stats is the reduction of one Buffer. NaN and infinite elements are skipped
// and counted apart; every finite element lands in exactly one bin.
type Stats struct {
	Count int
	NaN   int
	Inf   int
	Min   float64
	Max   float64
	Mean  float64
	Total float64
	RMS   float64
	// Median is the upper middle finite element.
	Median float64

	Bins []uint64
}

// BinRange returns the value range [lo, hi) covered by bin h.
func (s Stats) BinRange(h int) (lo, hi float64) {
	n := float64(len(s.Bins))
	span := s.Max - s.Min

	return s.Min + span*float64(h)/n, s.Min + span*float64(h+1)/n
}

// MaxBin returns the largest bin count.
func (s Stats) MaxBin() uint64 {
	var m uint64
	for _, c := range s.Bins {
		m = max(m, c)
	}

	return m
}

// Raw reports whether the buffer is small enough to be listed element by element.
func (s Stats) Raw() bool {
	return s.Count+s.Skipped() <= RawLimit
}

// Skipped returns the number of non-finite elements left out of the statistics.
func (s Stats) Skipped() int {
	return s.NaN + s.Inf
}

// Compute reduces buf into statistics and a histogram of bins equal-width
// bins spanning [min, max]. bins < 1 selects DefaultBins.
func Compute(buf Buffer, bins int) (Stats, error) {
	if bins < 1 {
		bins = DefaultBins
	}

	var s Stats

	switch d := buf.data.(type) {
	case []int8:
		s = reduce(d, bins)
	case []int16:
		s = reduce(d, bins)
	case []int32:
		s = reduce(d, bins)
	case []int64:
		s = reduce(d, bins)
	case []uint8:
		s = reduce(d, bins)
	case []uint16:
		s = reduce(d, bins)
	case []uint32:
		s = reduce(d, bins)
	case []uint64:
		s = reduce(d, bins)
	case []float32:
		s = reduce(d, bins)
	case []float64:
		s = reduce(d, bins)
	default:
		return Stats{}, errors.Wrapf(ErrInvalidBuffer, "%s: no data", buf.Name)
	}

	if s.Count == 0 {
		return Stats{}, errors.Wrapf(ErrInvalidBuffer, "%s: no finite element", buf.Name)
	}

	return s, nil
}

type class int

const (
	finite class = iota
	notANumber
	infinite
)

func classify[T Number](v T) class {
	if v != v {
		return notANumber
	}

	if math.IsInf(float64(v), 0) {
		return infinite
	}

	return finite
}

// reduce makes one pass for the moments and the range, then one for the bins.
func reduce[T Number](data []T, bins int) Stats {
	s := Stats{Bins: make([]uint64, bins)}

	var (
		lo, hi   T
		mean, m2 float64
	)

	for _, v := range data {
		switch classify(v) {
		case notANumber:
			s.NaN++
			continue
		case infinite:
			s.Inf++
			continue
		}

		if s.Count == 0 {
			lo, hi = v, v
		}
		lo = min(lo, v)
		hi = max(hi, v)

		// Welford
		x := float64(v)
		s.Count++
		d := x - mean
		mean += d / float64(s.Count)
		m2 += d * (x - mean)
		s.Total += x
	}

	if s.Count == 0 {
		return s
	}

	s.Min, s.Max = float64(lo), float64(hi)
	s.Mean = math.Min(math.Max(mean, s.Min), s.Max)
	s.RMS = math.Sqrt(math.Max(m2, 0) / float64(s.Count))
	s.Median = median(data, s.Count)

	span := s.Max - s.Min
	if span <= 0 {
		s.Bins[0] = uint64(s.Count)

		return s
	}

	scale := float64(bins) / span
	for _, v := range data {
		if classify(v) != finite {
			continue
		}

		h := int((float64(v) - s.Min) * scale)
		h = max(0, min(h, bins-1))
		s.Bins[h]++
	}

	return s
}

// median sorts a copy of the count finite elements of data.
func median[T Number](data []T, count int) float64 {
	sorted := make([]T, 0, count)
	for _, v := range data {
		if classify(v) == finite {
			sorted = append(sorted, v)
		}
	}

	if len(sorted) == 0 {
		return 0
	}

	slices.Sort(sorted)

	return float64(sorted[len(sorted)/2])
}
