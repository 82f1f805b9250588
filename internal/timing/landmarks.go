package timing

// DefaultMaxLandmarks is the landmark budget used when none is configured.
const DefaultMaxLandmarks = 1000

// Landmark is one displayed row of the interval distribution: the sample at
// Index of the sorted buffer, which sits at fractional Rank.
type Landmark struct {
	Rank   float64
	Index  int
	Median bool
}

// fraction is an exact rank num/den, so that index = floor(num*n/den) never
// suffers from binary rounding (0.3*10 must give 3, not 2).
type fraction struct {
	num, den int64
}

func (f fraction) index(n int) int {
	return int(f.num * int64(n) / f.den)
}

var (
	lowDecades = []fraction{{1, 10000}, {1, 1000}, {1, 100}}
	lowTenths  = []fraction{{1, 10}, {2, 10}, {3, 10}, {4, 10}}
	highTenths = []fraction{{6, 10}, {7, 10}, {8, 10}, {9, 10}}
	median     = fraction{1, 2}
)

// tailFractions returns 0.9, 0.95, 0.975, ... while below 0.999: every step
// halves the remaining distance to 1.
func tailFractions() []fraction {
	var out []fraction

	for den := int64(10); den < 1000; den *= 2 {
		out = append(out, fraction{den - 1, den})
	}

	return out
}

type landmarkBuilder struct {
	n         int
	budget    int
	landmarks []Landmark
	medianSet bool
}

func (b *landmarkBuilder) last() int {
	if len(b.landmarks) == 0 {
		return 0
	}

	return b.landmarks[len(b.landmarks)-1].Index
}

func (b *landmarkBuilder) room() bool {
	if b.medianSet {
		return len(b.landmarks) < b.budget
	}

	// One slot stays reserved for the median.
	return len(b.landmarks) < b.budget-1
}

func (b *landmarkBuilder) add(index int) {
	if index <= b.last() || index >= b.n || !b.room() {
		return
	}

	b.landmarks = append(b.landmarks, Landmark{Rank: float64(index) / float64(b.n), Index: index})
}

func (b *landmarkBuilder) addMedian(index int) {
	// Small sample counts can already hold ranks at or above the median.
	for len(b.landmarks) > 0 && b.last() >= index {
		b.landmarks = b.landmarks[:len(b.landmarks)-1]
	}

	b.landmarks = append(b.landmarks, Landmark{Rank: float64(index) / float64(b.n), Index: index, Median: true})
	b.medianSet = true
}

// BuildLandmarks selects the rows shown for n sorted samples: every one of
// the four lowest ranks, decades up to 1%, tenths, the median, a tail that
// halves its distance to 100% down to 99.9%, and the five highest ranks.
// Indices are strictly increasing, exactly one landmark is the median and at
// most maxLandmarks are returned. n < 1 yields no landmarks.
func BuildLandmarks(n, maxLandmarks int) []Landmark {
	if n < 1 {
		return nil
	}

	if maxLandmarks < 1 {
		maxLandmarks = 1
	}

	b := &landmarkBuilder{
		n:         n,
		budget:    maxLandmarks,
		landmarks: make([]Landmark, 0, min(maxLandmarks, 64)),
	}

	for rank := 1; rank < 5; rank++ {
		b.add(rank)
	}

	for _, f := range lowDecades {
		b.add(f.index(n))
	}

	for _, f := range lowTenths {
		b.add(f.index(n))
	}

	b.addMedian(median.index(n))

	for _, f := range highTenths {
		b.add(f.index(n))
	}

	for _, f := range tailFractions() {
		b.add(f.index(n))
	}

	for top := 5; top > 0; top-- {
		b.add(n - top)
	}

	return b.landmarks
}

// MedianIndex returns the position of the median landmark, or -1.
func MedianIndex(landmarks []Landmark) int {
	for i, l := range landmarks {
		if l.Median {
			return i
		}
	}

	return -1
}
