package codec

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"sightdata/pkg/array"
	"sightdata/pkg/data"
	"sightdata/pkg/memory"
)

// ErrUnknownClass is returned when decoding an envelope of a class with
// no registered codec.
var ErrUnknownClass = errors.New("unknown class")

// ErrDanglingRef is returned when a reference names an object not yet
// decoded.
var ErrDanglingRef = errors.New("reference to an unknown object")

type envelope struct {
	Class  string               `cbor:"class"`
	ID     string               `cbor:"id"`
	Ref    bool                 `cbor:"ref,omitempty"`
	Fields map[string]*envelope `cbor:"fields,omitempty"`
	Body   cbor.RawMessage      `cbor:"body,omitempty"`
}

type encoder struct {
	seen map[uuid.UUID]bool
}

func (e *encoder) envelope(obj data.Object) (*envelope, error) {
	if obj == nil {
		return nil, nil
	}
	meta := obj.Meta()
	id := meta.ID()
	env := &envelope{Class: obj.Classname(), ID: id.String()}
	if e.seen[id] {
		env.Ref = true
		return env, nil
	}
	e.seen[id] = true

	c, err := lookup(env.Class)
	if err != nil {
		return nil, err
	}
	body, err := c.encode(e, obj)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", env.Class, env.ID, err)
	}
	if env.Body, err = encMode.Marshal(body); err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", env.Class, env.ID, err)
	}

	for _, name := range meta.FieldNames() {
		field, err := e.envelope(meta.Field(name))
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if env.Fields == nil {
			env.Fields = make(map[string]*envelope)
		}
		env.Fields[name] = field
	}
	return env, nil
}

// Option configures decoding.
type Option func(*decoder)

// WithManager registers the buffers of decoded objects with m.
func WithManager(m *memory.Manager) Option {
	return func(d *decoder) { d.manager = m }
}

type decoder struct {
	manager *memory.Manager
	objects map[uuid.UUID]data.Object
}

func newDecoder(opts []Option) *decoder {
	d := &decoder{objects: make(map[uuid.UUID]data.Object)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *decoder) arrayOptions() []array.Option {
	if d.manager == nil {
		return nil
	}
	return []array.Option{array.WithManager(d.manager)}
}

func (d *decoder) object(env *envelope) (data.Object, error) {
	if env == nil {
		return nil, nil
	}
	id, err := uuid.Parse(env.ID)
	if err != nil {
		return nil, fmt.Errorf("%s identity: %w", env.Class, err)
	}

	if env.Ref {
		obj, ok := d.objects[id]
		if !ok {
			return nil, fmt.Errorf("%s %s: %w", env.Class, id, ErrDanglingRef)
		}
		if obj.Classname() != env.Class {
			return nil, &data.CopyError{From: env.Class, To: obj.Classname()}
		}
		return obj, nil
	}

	c, err := lookup(env.Class)
	if err != nil {
		return nil, err
	}
	obj, err := c.create(d, env.Class)
	if err != nil {
		return nil, err
	}
	obj.Meta().SetID(id)
	d.objects[id] = obj

	if err := c.decode(d, obj, env.Body); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", env.Class, id, err)
	}
	// Same order as encoding so that references follow their target.
	for _, name := range slices.Sorted(maps.Keys(env.Fields)) {
		f, err := d.object(env.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		obj.Meta().SetField(name, f)
	}
	return obj, nil
}

// decodeAs decodes env and checks that the result is a T.
func decodeAs[T data.Object](d *decoder, env *envelope) (T, error) {
	var zero T
	obj, err := d.object(env)
	if err != nil || obj == nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, &data.CopyError{From: obj.Classname(), To: fmt.Sprintf("%T", zero)}
	}
	return t, nil
}

// Marshal encodes obj and every object reachable from it.
func Marshal(obj data.Object) ([]byte, error) {
	if obj == nil {
		return nil, errors.New("marshal a nil object")
	}
	env, err := (&encoder{seen: make(map[uuid.UUID]bool)}).envelope(obj)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(env)
}

// Unmarshal decodes an object encoded by Marshal. Decoded objects keep the
// identity they were encoded with.
func Unmarshal(b []byte, opts ...Option) (data.Object, error) {
	var env envelope
	if err := decMode.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Ref {
		return nil, fmt.Errorf("top level %s %s: %w", env.Class, env.ID, ErrDanglingRef)
	}
	return newDecoder(opts).object(&env)
}
