package generic

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
)

// Separator joins the components of a formatted Vec.
const Separator = ";"

// Vec is a fixed-size numeric vector. Its length is set at construction.
type Vec[T dtype.Numeric] struct {
	data.Base

	values []T
	def    []T
}

// NewVec returns a vector holding values, which are also its default.
func NewVec[T dtype.Numeric](values ...T) *Vec[T] {
	return &Vec[T]{values: slices.Clone(values), def: slices.Clone(values)}
}

// NewVecN returns a zero vector of n components.
func NewVecN[T dtype.Numeric](n int) *Vec[T] {
	return &Vec[T]{values: make([]T, n), def: make([]T, n)}
}

// Len returns the number of components.
func (v *Vec[T]) Len() int { return len(v.values) }

// At returns component i.
func (v *Vec[T]) At(i int) T { return v.values[i] }

// Set replaces component i.
func (v *Vec[T]) Set(i int, x T) { v.values[i] = x }

// Values returns a copy of the components.
func (v *Vec[T]) Values() []T { return slices.Clone(v.values) }

// SetValues replaces every component. len(values) must match Len.
func (v *Vec[T]) SetValues(values ...T) error {
	if len(values) != len(v.values) {
		return fmt.Errorf("vector of %d components set with %d values: %w", len(v.values), len(values), data.ErrShape)
	}
	copy(v.values, values)
	return nil
}

// SetDefaultValue captures the current components as the default.
func (v *Vec[T]) SetDefaultValue() { v.def = slices.Clone(v.values) }

// Reset restores the components captured by the last SetDefaultValue.
func (v *Vec[T]) Reset() { copy(v.values, v.def) }

// String joins the formatted components with Separator.
func (v *Vec[T]) String() string { return format(v.values) }

// DefaultString formats the default components like String.
func (v *Vec[T]) DefaultString() string { return format(v.def) }

func format[T dtype.Numeric](values []T) string {
	typ := dtype.Of[T]()
	tokens := make([]string, len(values))
	for i, x := range values {
		switch {
		case typ.IsFloat():
			tokens[i] = strconv.FormatFloat(float64(x), 'g', -1, typ.Size()*8)
		case typ.IsSigned():
			tokens[i] = strconv.FormatInt(int64(x), 10)
		default:
			tokens[i] = strconv.FormatUint(uint64(x), 10)
		}
	}
	return strings.Join(tokens, Separator)
}

// FromString parses exactly Len components separated by Separator.
func (v *Vec[T]) FromString(s string) error {
	tokens := strings.Split(s, Separator)
	if len(tokens) != len(v.values) {
		return fmt.Errorf("expected %d components, got %d in %q: %w", len(v.values), len(tokens), s, data.ErrShape)
	}

	typ := dtype.Of[T]()
	bits := typ.Size() * 8
	parsed := make([]T, len(tokens))
	for i, token := range tokens {
		token = strings.TrimSpace(token)
		switch {
		case typ.IsFloat():
			f, err := strconv.ParseFloat(token, bits)
			if err != nil {
				return fmt.Errorf("component %d: %w", i, err)
			}
			parsed[i] = T(f)
		case typ.IsSigned():
			n, err := strconv.ParseInt(token, 10, bits)
			if err != nil {
				return fmt.Errorf("component %d: %w", i, err)
			}
			parsed[i] = T(n)
		default:
			n, err := strconv.ParseUint(token, 10, bits)
			if err != nil {
				return fmt.Errorf("component %d: %w", i, err)
			}
			parsed[i] = T(n)
		}
	}
	copy(v.values, parsed)
	return nil
}

// Equal compares the components.
func (v *Vec[T]) Equal(other *Vec[T]) bool {
	return other != nil && slices.Equal(v.values, other.values)
}

// Less orders vectors lexicographically.
func (v *Vec[T]) Less(other *Vec[T]) bool {
	return slices.Compare(v.values, other.values) < 0
}

// Classname implements data.Object.
func (v *Vec[T]) Classname() string {
	return fmt.Sprintf("sight::data::vec<%s,%d>", dtype.Of[T](), len(v.values))
}

// New implements data.Object.
func (v *Vec[T]) New() data.Object { return NewVecN[T](len(v.values)) }

// Meta implements data.Object.
func (v *Vec[T]) Meta() *data.Base { return &v.Base }

// ShallowCopy implements data.Object.
func (v *Vec[T]) ShallowCopy(src data.Object) error {
	other, ok := src.(*Vec[T])
	if !ok || len(other.values) != len(v.values) {
		return data.CheckClass(src, v)
	}
	copy(v.values, other.values)
	copy(v.def, other.def)
	v.ShallowCopyFields(&other.Base)
	return nil
}

// DeepCopy implements data.Object.
func (v *Vec[T]) DeepCopy(src data.Object, cache data.CopyCache) error {
	other, ok := src.(*Vec[T])
	if !ok || len(other.values) != len(v.values) {
		return data.CheckClass(src, v)
	}
	copy(v.values, other.values)
	copy(v.def, other.def)
	return v.DeepCopyFields(&other.Base, cache)
}

// EqualObject implements data.Equaler.
func (v *Vec[T]) EqualObject(other data.Object) bool {
	o, ok := other.(*Vec[T])
	return ok && v.Equal(o)
}
