package pixstats

// Kind is the element type of a Buffer.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
}

var kindSizes = [...]int{
	KindInt8:    1,
	KindInt16:   2,
	KindInt32:   4,
	KindInt64:   8,
	KindUint8:   1,
	KindUint16:  2,
	KindUint32:  4,
	KindUint64:  8,
	KindFloat32: 4,
	KindFloat64: 8,
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return kindNames[KindInvalid]
}

// Size returns the element size in bytes, 0 for KindInvalid.
func (k Kind) Size() int {
	if int(k) < len(kindSizes) {
		return kindSizes[k]
	}

	return 0
}

func (k Kind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if k != int(KindInvalid) && n == name {
			return Kind(k), true
		}
	}

	return KindInvalid, false
}
