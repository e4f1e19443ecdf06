// Package data defines the contract shared by every sightdata container:
// identity, attached fields, shallow and deep copies.
package data

import (
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Object is implemented by every data container.
type Object interface {
	// Classname identifies the concrete type, e.g. "sight::data::mesh".
	Classname() string

	// New returns an empty object of the same class.
	New() Object

	// Meta returns the identity and attached fields of the object.
	Meta() *Base

	// ShallowCopy makes the receiver share the content of src.
	ShallowCopy(src Object) error

	// DeepCopy makes the receiver a duplicate of src. Shared sub-objects
	// are copied through cache so that aliasing is preserved.
	DeepCopy(src Object, cache CopyCache) error
}

// Equaler is implemented by objects that can be compared to another
// object of any class.
type Equaler interface {
	EqualObject(other Object) bool
}

// Base carries the identity of an object and its attached fields. The zero
// value is ready to use; the identity is generated on first access.
type Base struct {
	id     uuid.UUID
	fields map[string]Object
}

// ID returns the object identity.
func (b *Base) ID() uuid.UUID {
	if b.id == uuid.Nil {
		b.id = uuid.New()
	}
	return b.id
}

// SetID replaces the object identity, used when decoding.
func (b *Base) SetID(id uuid.UUID) { b.id = id }

// Field returns the field attached under name, or nil.
func (b *Base) Field(name string) Object {
	return b.fields[name]
}

// SetField attaches obj under name. A nil obj removes the field.
func (b *Base) SetField(name string, obj Object) {
	if obj == nil {
		delete(b.fields, name)
		return
	}
	if b.fields == nil {
		b.fields = make(map[string]Object)
	}
	b.fields[name] = obj
}

// RemoveField detaches the field name.
func (b *Base) RemoveField(name string) {
	delete(b.fields, name)
}

// FieldNames returns the attached field names, sorted.
func (b *Base) FieldNames() []string {
	return slices.Sorted(maps.Keys(b.fields))
}

// NumFields returns the number of attached fields.
func (b *Base) NumFields() int { return len(b.fields) }

// Swap exchanges identity and fields with other.
func (b *Base) Swap(other *Base) {
	b.id, other.id = other.id, b.id
	b.fields, other.fields = other.fields, b.fields
}

// ShallowCopyFields shares the fields of src.
func (b *Base) ShallowCopyFields(src *Base) {
	b.fields = maps.Clone(src.fields)
}

// DeepCopyFields duplicates the fields of src through cache.
func (b *Base) DeepCopyFields(src *Base, cache CopyCache) error {
	fields := make(map[string]Object, len(src.fields))
	for name, field := range src.fields {
		dup, err := Copy(field, cache)
		if err != nil {
			return err
		}
		fields[name] = dup
	}
	if len(fields) == 0 {
		fields = nil
	}
	b.fields = fields
	return nil
}

// FieldsEqual reports whether both objects carry equal fields under the
// same names. Fields that do not implement Equaler are compared by
// identity.
func (b *Base) FieldsEqual(other *Base) bool {
	if len(b.fields) != len(other.fields) {
		return false
	}
	for name, field := range b.fields {
		o, ok := other.fields[name]
		if !ok || !Equal(field, o) {
			return false
		}
	}
	return true
}

// Equal compares two objects through Equaler, falling back to identity.
func Equal(a, b Object) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(Equaler); ok {
		return eq.EqualObject(b)
	}
	return a.Meta().ID() == b.Meta().ID()
}
