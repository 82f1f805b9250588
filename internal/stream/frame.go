package stream

import (
	"math/rand"

	"imgmon/internal/pixstats"
)

// frame is the typed pixel storage of a stream.
type frame interface {
	fill(rng *rand.Rand, cnt uint64)
	snapshot(name string, shape []int) (pixstats.Buffer, error)
}

type typedFrame[T pixstats.Number] struct {
	data []T
	// amplitude bounds the integer pattern so narrow kinds never wrap.
	amplitude int
	float     bool
}

func (f *typedFrame[T]) fill(rng *rand.Rand, cnt uint64) {
	if f.float {
		// gaussian speckle over a slow ramp
		drift := float64(cnt%100) / 10
		for i := range f.data {
			f.data[i] = T(100 + drift + float64(i%64)/8 + 10*rng.NormFloat64())
		}

		return
	}

	off := int(cnt % uint64(f.amplitude))
	for i := range f.data {
		f.data[i] = T((i+off)%f.amplitude + rng.Intn(3))
	}
}

func (f *typedFrame[T]) snapshot(name string, shape []int) (pixstats.Buffer, error) {
	data := make([]T, len(f.data))
	copy(data, f.data)

	return pixstats.NewBuffer(name, data, shape...)
}

func newTypedFrame[T pixstats.Number](n, amplitude int, float bool) frame {
	return &typedFrame[T]{data: make([]T, n), amplitude: amplitude, float: float}
}

func newFrame(kind pixstats.Kind, n int) (frame, bool) {
	switch kind {
	case pixstats.KindInt8:
		return newTypedFrame[int8](n, 100, false), true
	case pixstats.KindInt16:
		return newTypedFrame[int16](n, 1000, false), true
	case pixstats.KindInt32:
		return newTypedFrame[int32](n, 1000, false), true
	case pixstats.KindInt64:
		return newTypedFrame[int64](n, 1000, false), true
	case pixstats.KindUint8:
		return newTypedFrame[uint8](n, 200, false), true
	case pixstats.KindUint16:
		return newTypedFrame[uint16](n, 4000, false), true
	case pixstats.KindUint32:
		return newTypedFrame[uint32](n, 4000, false), true
	case pixstats.KindUint64:
		return newTypedFrame[uint64](n, 4000, false), true
	case pixstats.KindFloat32:
		return newTypedFrame[float32](n, 0, true), true
	case pixstats.KindFloat64:
		return newTypedFrame[float64](n, 0, true), true
	}

	return nil, false
}
