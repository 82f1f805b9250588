package pixstats

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// ErrInvalidBuffer is returned for buffers that hold no usable element.
var ErrInvalidBuffer = errors.New("invalid buffer")

// Number is any element type a Buffer can hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// Buffer is a read-only view over the elements of one frame. Name and Shape
// are labels; only the flat element slice is reduced.
type Buffer struct {
	Name  string
	Shape []int

	kind Kind
	data any
}

// NewBuffer wraps data without copying. The platform-sized int, uint and
// uintptr types are rejected.
func NewBuffer[T Number](name string, data []T, shape ...int) (Buffer, error) {
	b := Buffer{Name: name, Shape: shape, data: data}

	switch any(data).(type) {
	case []int8:
		b.kind = KindInt8
	case []int16:
		b.kind = KindInt16
	case []int32:
		b.kind = KindInt32
	case []int64:
		b.kind = KindInt64
	case []uint8:
		b.kind = KindUint8
	case []uint16:
		b.kind = KindUint16
	case []uint32:
		b.kind = KindUint32
	case []uint64:
		b.kind = KindUint64
	case []float32:
		b.kind = KindFloat32
	case []float64:
		b.kind = KindFloat64
	default:
		return Buffer{}, errors.Wrapf(ErrInvalidBuffer, "%s: unsupported element type %T", name, data)
	}

	if len(shape) == 0 {
		b.Shape = []int{len(data)}
	}

	return b, nil
}

func (b Buffer) Kind() Kind {
	return b.kind
}

// Len returns the number of elements.
func (b Buffer) Len() int {
	switch d := b.data.(type) {
	case []int8:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []uint8:
		return len(d)
	case []uint16:
		return len(d)
	case []uint32:
		return len(d)
	case []uint64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	}

	return 0
}

// ShapeLabel renders the shape as "512x512".
func (b Buffer) ShapeLabel() string {
	parts := make([]string, len(b.Shape))
	for i, s := range b.Shape {
		parts[i] = strconv.Itoa(s)
	}

	return strings.Join(parts, "x")
}

// AppendText appends element i in its natural notation: six decimals for
// floats, exact digits for integers.
func (b Buffer) AppendText(dst []byte, i int) []byte {
	switch d := b.data.(type) {
	case []int8:
		return strconv.AppendInt(dst, int64(d[i]), 10)
	case []int16:
		return strconv.AppendInt(dst, int64(d[i]), 10)
	case []int32:
		return strconv.AppendInt(dst, int64(d[i]), 10)
	case []int64:
		return strconv.AppendInt(dst, d[i], 10)
	case []uint8:
		return strconv.AppendUint(dst, uint64(d[i]), 10)
	case []uint16:
		return strconv.AppendUint(dst, uint64(d[i]), 10)
	case []uint32:
		return strconv.AppendUint(dst, uint64(d[i]), 10)
	case []uint64:
		return strconv.AppendUint(dst, d[i], 10)
	case []float32:
		return strconv.AppendFloat(dst, float64(d[i]), 'f', 6, 32)
	case []float64:
		return strconv.AppendFloat(dst, d[i], 'f', 6, 64)
	}

	return dst
}
