// Package dtype provides the runtime type descriptors used by the typed
// buffers of sightdata.
//
// A Type is a small value carrying an element kind and its size in bytes.
// Containers receive a Type explicitly from their caller; nothing in the
// core reaches into a process-wide registry. A Registry is available for
// the outer layers (configuration, codec) that need to map names to types.
package dtype

import (
	"fmt"
	"math"
	"strings"
	"unsafe"
)

// Kind enumerates the element kinds a buffer can hold.
type Kind uint8

const (
	None Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

var kindNames = [...]string{
	None:    "none",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

var kindSizes = [...]int{
	None:    0,
	Int8:    1,
	Int16:   2,
	Int32:   4,
	Int64:   8,
	Uint8:   1,
	Uint16:  2,
	Uint32:  4,
	Uint64:  8,
	Float32: 4,
	Float64: 8,
}

// String returns the canonical name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Type describes the element type of a buffer: its kind and size in bytes.
// The zero value is the "none" type of an empty buffer.
type Type struct {
	kind Kind
}

// Predefined types.
var (
	NoneType    = Type{None}
	Int8Type    = Type{Int8}
	Int16Type   = Type{Int16}
	Int32Type   = Type{Int32}
	Int64Type   = Type{Int64}
	Uint8Type   = Type{Uint8}
	Uint16Type  = Type{Uint16}
	Uint32Type  = Type{Uint32}
	Uint64Type  = Type{Uint64}
	Float32Type = Type{Float32}
	Float64Type = Type{Float64}
)

// New returns the Type of the given kind.
func New(k Kind) (Type, error) {
	if int(k) >= len(kindNames) {
		return NoneType, fmt.Errorf("unknown kind: %d", uint8(k))
	}
	return Type{k}, nil
}

// Kind returns the element kind.
func (t Type) Kind() Kind { return t.kind }

// Size returns the size of one element in bytes (0 for the none type).
func (t Type) Size() int {
	if int(t.kind) < len(kindSizes) {
		return kindSizes[t.kind]
	}
	return 0
}

// IsNone reports whether t is the none type.
func (t Type) IsNone() bool { return t.kind == None }

// IsFloat reports whether t is a floating point type.
func (t Type) IsFloat() bool { return t.kind == Float32 || t.kind == Float64 }

// IsSigned reports whether t is a signed integer or floating point type.
func (t Type) IsSigned() bool {
	switch t.kind {
	case Int8, Int16, Int32, Int64, Float32, Float64:
		return true
	}
	return false
}

// String returns the canonical name of the type.
func (t Type) String() string { return t.kind.String() }

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Parse returns the type with the given canonical name.
// A few common aliases ("double", "float", "uint8_t"...) are accepted.
func Parse(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, "_t")
	switch n {
	case "double":
		return Float64Type, nil
	case "float":
		return Float32Type, nil
	case "", "void":
		return NoneType, nil
	}
	for k, kn := range kindNames {
		if kn == n {
			return Type{Kind(k)}, nil
		}
	}
	return NoneType, fmt.Errorf("unknown type name: %q", name)
}

// Numeric is the set of Go types that map directly onto a Kind.
type Numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Of returns the Type corresponding to the Go type T.
func Of[T Numeric]() Type {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8Type
	case int16:
		return Int16Type
	case int32:
		return Int32Type
	case int64:
		return Int64Type
	case uint8:
		return Uint8Type
	case uint16:
		return Uint16Type
	case uint32:
		return Uint32Type
	case uint64:
		return Uint64Type
	case float32:
		return Float32Type
	case float64:
		return Float64Type
	}

	// Named types fall back on size and float-ness.
	size := int(unsafe.Sizeof(zero))
	isFloat := T(1)/T(2) != 0
	signed := T(0)-T(1) < 0
	switch {
	case isFloat && size == 4:
		return Float32Type
	case isFloat:
		return Float64Type
	}
	kinds := map[int][2]Kind{1: {Uint8, Int8}, 2: {Uint16, Int16}, 4: {Uint32, Int32}, 8: {Uint64, Int64}}
	pair := kinds[size]
	if signed {
		return Type{pair[1]}
	}
	return Type{pair[0]}
}

// ReadFloat decodes one element of type t stored at the start of b,
// in native byte order, and returns it as a float64.
// b must hold at least t.Size() bytes.
func (t Type) ReadFloat(b []byte) float64 {
	if len(b) < t.Size() || t.Size() == 0 {
		return 0
	}
	p := unsafe.Pointer(unsafe.SliceData(b))
	switch t.kind {
	case Int8:
		return float64(*(*int8)(p))
	case Int16:
		return float64(*(*int16)(p))
	case Int32:
		return float64(*(*int32)(p))
	case Int64:
		return float64(*(*int64)(p))
	case Uint8:
		return float64(*(*uint8)(p))
	case Uint16:
		return float64(*(*uint16)(p))
	case Uint32:
		return float64(*(*uint32)(p))
	case Uint64:
		return float64(*(*uint64)(p))
	case Float32:
		return float64(*(*float32)(p))
	case Float64:
		return *(*float64)(p)
	}
	return 0
}

// WriteFloat encodes v as one element of type t at the start of b,
// in native byte order. Integer types are rounded and clamped to their range.
func (t Type) WriteFloat(b []byte, v float64) {
	if len(b) < t.Size() || t.Size() == 0 {
		return
	}
	p := unsafe.Pointer(unsafe.SliceData(b))
	switch t.kind {
	case Int8:
		*(*int8)(p) = int8(clamp(v, math.MinInt8, math.MaxInt8))
	case Int16:
		*(*int16)(p) = int16(clamp(v, math.MinInt16, math.MaxInt16))
	case Int32:
		*(*int32)(p) = int32(clamp(v, math.MinInt32, math.MaxInt32))
	case Int64:
		*(*int64)(p) = int64(clamp(v, math.MinInt64, math.MaxInt64))
	case Uint8:
		*(*uint8)(p) = uint8(clamp(v, 0, math.MaxUint8))
	case Uint16:
		*(*uint16)(p) = uint16(clamp(v, 0, math.MaxUint16))
	case Uint32:
		*(*uint32)(p) = uint32(clamp(v, 0, math.MaxUint32))
	case Uint64:
		*(*uint64)(p) = uint64(clamp(v, 0, math.MaxUint64))
	case Float32:
		*(*float32)(p) = float32(v)
	case Float64:
		*(*float64)(p) = v
	}
}

// FormatElement returns the textual form of one element of type t stored
// at the start of b.
func (t Type) FormatElement(b []byte) string {
	if t.IsFloat() {
		return fmt.Sprintf("%g", t.ReadFloat(b))
	}
	if len(b) < t.Size() || t.Size() == 0 {
		return ""
	}
	p := unsafe.Pointer(unsafe.SliceData(b))
	switch t.kind {
	case Int64:
		return fmt.Sprintf("%d", *(*int64)(p))
	case Uint64:
		return fmt.Sprintf("%d", *(*uint64)(p))
	}
	return fmt.Sprintf("%d", int64(t.ReadFloat(b)))
}

func clamp(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
