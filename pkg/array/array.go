// Package array implements a typed, strided, N-dimensional buffer.
//
// An Array describes a raw byte buffer with an element type, a shape and
// byte strides. The first dimension varies fastest: strides[0] is the
// element size and strides[i] == strides[i-1]*shape[i-1]. The buffer is
// either owned, in which case Resize may reallocate it, or borrowed from
// the caller, in which case any resize that changes the byte size fails.
//
// Element access requires a dump lock obtained with Lock.
package array

import (
	"bytes"
	"fmt"
	"math"
	"slices"

	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
	"sightdata/pkg/memory"
)

// Classname identifies arrays in copies and encoded streams.
const Classname = "sight::data::array"

// Array is a typed strided buffer.
type Array struct {
	data.Base

	typ     dtype.Type
	shape   []int
	strides []int
	buffer  *memory.BufferObject
	owner   bool
	policy  memory.Policy
}

type options struct {
	policy  memory.Policy
	manager *memory.Manager
}

// Option configures a new Array.
type Option func(*options)

// WithPolicy sets the allocation policy used for owned buffers.
func WithPolicy(p memory.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithManager registers the buffer with a memory manager.
func WithManager(m *memory.Manager) Option {
	return func(o *options) { o.manager = m }
}

// New returns an empty array: no type, no shape, no memory.
func New(opts ...Option) *Array {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.policy == nil {
		o.policy = memory.HeapPolicy{}
	}
	return &Array{
		typ:    dtype.NoneType,
		buffer: memory.NewBufferObject(o.manager),
		owner:  true,
		policy: o.policy,
	}
}

// ComputeStrides returns the byte strides of shape for elements of
// elementSize bytes.
func ComputeStrides(shape []int, elementSize int) []int {
	strides := make([]int, len(shape))
	stride := elementSize
	for i, extent := range shape {
		strides[i] = stride
		stride *= extent
	}
	return strides
}

func product(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, extent := range shape {
		n *= extent
	}
	return n
}

// ByteSize returns the number of bytes of shape for elements of typ. It
// fails with data.ErrShape on a negative extent or when the size does not
// fit in an int.
func ByteSize(shape []int, typ dtype.Type) (int, error) {
	for _, extent := range shape {
		if extent < 0 {
			return 0, fmt.Errorf("negative extent in shape %v: %w", shape, data.ErrShape)
		}
		if extent == 0 {
			return 0, nil
		}
	}
	if len(shape) == 0 {
		return 0, nil
	}

	count := 1
	for _, extent := range shape {
		if extent > math.MaxInt/count {
			return 0, fmt.Errorf("shape %v overflows: %w", shape, data.ErrShape)
		}
		count *= extent
	}
	if size := typ.Size(); size > 0 && count > math.MaxInt/size {
		return 0, fmt.Errorf("shape %v of %s overflows: %w", shape, typ, data.ErrShape)
	}
	return count * typ.Size(), nil
}

// Resize sets shape and type. When reallocate is true and the required
// byte size differs from the allocated one, the buffer is allocated (if
// empty) or reallocated keeping its leading bytes (if owned). A borrowed
// buffer cannot be reallocated: the call fails with data.ErrAllocationPolicy
// and the array is left unchanged. When reallocate is false only the
// metadata changes and the caller guarantees the capacity.
//
// Resize returns the number of bytes described by the new shape.
func (a *Array) Resize(shape []int, typ dtype.Type, reallocate bool) (int, error) {
	required, err := ByteSize(shape, typ)
	if err != nil {
		return 0, err
	}

	if reallocate && required != a.buffer.Size() {
		switch {
		case !a.owner && !a.buffer.IsEmpty():
			return 0, fmt.Errorf("cannot resize a borrowed buffer of %d bytes to %d bytes: %w",
				a.buffer.Size(), required, data.ErrAllocationPolicy)
		case a.buffer.IsEmpty():
			if required > 0 {
				if !a.owner {
					a.buffer = memory.NewBufferObject(a.buffer.Manager())
				}
				if err := a.buffer.Allocate(required, a.policy); err != nil {
					return 0, err
				}
				a.owner = true
			}
		case required == 0:
			a.buffer.Destroy()
		default:
			if err := a.buffer.Reallocate(required); err != nil {
				return 0, err
			}
		}
	}

	a.typ = typ
	a.shape = slices.Clone(shape)
	a.strides = ComputeStrides(a.shape, typ.Size())
	return required, nil
}

// SetShape resizes keeping the current element type.
func (a *Array) SetShape(shape []int, reallocate bool) (int, error) {
	return a.Resize(shape, a.typ, reallocate)
}

// Clear releases the buffer (if owned) and resets type, shape and strides.
func (a *Array) Clear() {
	if !a.Empty() {
		if a.owner {
			a.buffer.Destroy()
		} else {
			a.buffer = memory.NewBufferObject(a.buffer.Manager())
			a.owner = true
		}
	}
	a.typ = dtype.NoneType
	a.shape = nil
	a.strides = nil
}

// Empty reports whether no memory is attached.
func (a *Array) Empty() bool { return a.buffer.IsEmpty() }

// ElementCount returns the product of the shape, 0 for an empty shape.
func (a *Array) ElementCount() int { return product(a.shape) }

// ElementSize returns the size of one element in bytes.
func (a *Array) ElementSize() int { return a.typ.Size() }

// SizeInBytes returns the number of bytes described by shape and type.
func (a *Array) SizeInBytes() int { return a.ElementSize() * a.ElementCount() }

// AllocatedSizeInBytes returns the number of bytes held by the buffer.
func (a *Array) AllocatedSizeInBytes() int { return a.buffer.Size() }

// Shape returns a copy of the shape.
func (a *Array) Shape() []int { return slices.Clone(a.shape) }

// Strides returns a copy of the byte strides.
func (a *Array) Strides() []int { return slices.Clone(a.strides) }

// NumDimensions returns the number of dimensions.
func (a *Array) NumDimensions() int { return len(a.shape) }

// Type returns the element type.
func (a *Array) Type() dtype.Type { return a.typ }

// IsOwner reports whether the array owns its buffer.
func (a *Array) IsOwner() bool { return a.owner }

// Policy returns the allocation policy used for owned buffers.
func (a *Array) Policy() memory.Policy { return a.policy }

// BufferObject returns the underlying buffer object.
func (a *Array) BufferObject() *memory.BufferObject { return a.buffer }

// SetBuffer attaches external memory described by shape and typ. With
// takeOwnership the array releases buf through policy (HeapPolicy if nil)
// and may reallocate it; otherwise buf is a borrowed view whose lifetime is
// the caller's responsibility. An owned previous buffer is released.
func (a *Array) SetBuffer(buf []byte, takeOwnership bool, shape []int, typ dtype.Type, policy memory.Policy) error {
	required, err := ByteSize(shape, typ)
	if err != nil {
		return err
	}
	if len(buf) < required {
		return fmt.Errorf("buffer of %d bytes cannot hold shape %v of %s: %w", len(buf), shape, typ, data.ErrShape)
	}

	if a.owner {
		a.buffer.Destroy()
	} else {
		a.buffer = memory.NewBufferObject(a.buffer.Manager())
	}

	if takeOwnership {
		if policy == nil {
			policy = memory.HeapPolicy{}
		}
		a.policy = policy
		a.buffer.SetBuffer(buf, policy)
	} else {
		a.buffer.SetBuffer(buf, nil)
	}
	a.owner = takeOwnership

	_, err = a.Resize(shape, typ, false)
	return err
}

// Lock pins the buffer in memory until the lock is released.
func (a *Array) Lock() (*memory.Lock, error) {
	return a.buffer.Lock()
}

// Bytes returns the bytes described by shape and type, bounded by the
// allocated size. A lock must be held.
func (a *Array) Bytes() ([]byte, error) {
	buf, err := a.buffer.Buffer()
	if err != nil {
		return nil, err
	}
	return buf[:min(a.SizeInBytes(), len(buf))], nil
}

// Equal reports whether both arrays have the same type, shape, strides and
// byte content.
func (a *Array) Equal(other *Array) bool {
	if a == other {
		return true
	}
	if other == nil || a.typ != other.typ ||
		!slices.Equal(a.shape, other.shape) || !slices.Equal(a.strides, other.strides) {
		return false
	}

	lock, err := a.Lock()
	if err != nil {
		return false
	}
	defer lock.Release()
	otherLock, err := other.Lock()
	if err != nil {
		return false
	}
	defer otherLock.Release()

	mine, err := a.Bytes()
	if err != nil {
		return false
	}
	theirs, err := other.Bytes()
	if err != nil {
		return false
	}
	return bytes.Equal(mine, theirs)
}

// Swap exchanges buffer, shape, strides, type, ownership and fields with
// other. No content is copied.
func (a *Array) Swap(other *Array) {
	a.Base.Swap(&other.Base)
	a.typ, other.typ = other.typ, a.typ
	a.shape, other.shape = other.shape, a.shape
	a.strides, other.strides = other.strides, a.strides
	a.buffer, other.buffer = other.buffer, a.buffer
	a.owner, other.owner = other.owner, a.owner
	a.policy, other.policy = other.policy, a.policy
}

// String describes the array layout.
func (a *Array) String() string {
	return fmt.Sprintf("array{type: %s, shape: %v, strides: %v, owner: %t}", a.typ, a.shape, a.strides, a.owner)
}
