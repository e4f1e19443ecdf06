// Package generic provides scalar and fixed-size vector values meant to be
// attached as fields to other data objects.
package generic

import (
	"fmt"
	"strconv"
	"strings"

	"sightdata/pkg/data"
)

// Scalar is the set of supported scalar types.
type Scalar interface {
	bool | int64 | float64 | string
}

// Generic holds one value and a remembered default.
type Generic[T Scalar] struct {
	data.Base

	value T
	def   T
}

// Boolean, Integer, Real and String are the supported scalars.
type (
	Boolean = Generic[bool]
	Integer = Generic[int64]
	Real    = Generic[float64]
	String  = Generic[string]
)

// New returns a value holding v, with v as its default.
func New[T Scalar](v T) *Generic[T] {
	return &Generic[T]{value: v, def: v}
}

// Value returns the current value.
func (g *Generic[T]) Value() T { return g.value }

// SetValue replaces the current value.
func (g *Generic[T]) SetValue(v T) { g.value = v }

// DefaultValue returns the value Reset restores.
func (g *Generic[T]) DefaultValue() T { return g.def }

// SetDefaultValue captures the current value as the default.
func (g *Generic[T]) SetDefaultValue() { g.def = g.value }

// Reset restores the value captured by the last SetDefaultValue.
func (g *Generic[T]) Reset() { g.value = g.def }

// String formats the value so that FromString restores it exactly.
func (g *Generic[T]) String() string {
	switch v := any(g.value).(type) {
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	}
	return fmt.Sprint(g.value)
}

// FromString parses s into the value. Booleans and numbers are trimmed;
// booleans only accept "true" and "false".
func (g *Generic[T]) FromString(s string) error {
	var parsed any
	switch any(g.value).(type) {
	case bool:
		switch strings.TrimSpace(s) {
		case "true":
			parsed = true
		case "false":
			parsed = false
		default:
			return fmt.Errorf("invalid boolean %q", s)
		}
	case int64:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", s, err)
		}
		parsed = v
	case float64:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid real %q: %w", s, err)
		}
		parsed = v
	case string:
		parsed = s
	}
	g.value = parsed.(T)
	return nil
}

// Equal compares the values.
func (g *Generic[T]) Equal(other *Generic[T]) bool {
	return other != nil && g.value == other.value
}

// Less orders values. false sorts before true.
func (g *Generic[T]) Less(other *Generic[T]) bool {
	switch a := any(g.value).(type) {
	case bool:
		return !a && any(other.value).(bool)
	case int64:
		return a < any(other.value).(int64)
	case float64:
		return a < any(other.value).(float64)
	case string:
		return a < any(other.value).(string)
	}
	return false
}

// Classname implements data.Object.
func (g *Generic[T]) Classname() string {
	switch any(g.value).(type) {
	case bool:
		return "sight::data::boolean"
	case int64:
		return "sight::data::integer"
	case float64:
		return "sight::data::real"
	default:
		return "sight::data::string"
	}
}

// New implements data.Object.
func (g *Generic[T]) New() data.Object { return &Generic[T]{} }

// Meta implements data.Object.
func (g *Generic[T]) Meta() *data.Base { return &g.Base }

// ShallowCopy implements data.Object.
func (g *Generic[T]) ShallowCopy(src data.Object) error {
	other, ok := src.(*Generic[T])
	if !ok {
		return data.CheckClass(src, g)
	}
	g.value, g.def = other.value, other.def
	g.ShallowCopyFields(&other.Base)
	return nil
}

// DeepCopy implements data.Object.
func (g *Generic[T]) DeepCopy(src data.Object, cache data.CopyCache) error {
	other, ok := src.(*Generic[T])
	if !ok {
		return data.CheckClass(src, g)
	}
	g.value, g.def = other.value, other.def
	return g.DeepCopyFields(&other.Base, cache)
}

// EqualObject implements data.Equaler.
func (g *Generic[T]) EqualObject(other data.Object) bool {
	o, ok := other.(*Generic[T])
	return ok && g.Equal(o)
}
