package array

import (
	"slices"

	"sightdata/pkg/data"
	"sightdata/pkg/memory"
)

// Classname implements data.Object.
func (a *Array) Classname() string { return Classname }

// New implements data.Object. The new array shares the allocation policy
// and memory manager of a.
func (a *Array) New() data.Object {
	return New(WithPolicy(a.policy), WithManager(a.buffer.Manager()))
}

// Meta implements data.Object.
func (a *Array) Meta() *data.Base { return &a.Base }

// EqualObject implements data.Equaler.
func (a *Array) EqualObject(other data.Object) bool {
	o, ok := other.(*Array)
	return ok && a.Equal(o)
}

// ShallowCopy makes a share the buffer of src. a does not own the shared
// buffer.
func (a *Array) ShallowCopy(src data.Object) error {
	other, ok := src.(*Array)
	if !ok {
		return data.CheckClass(src, a)
	}
	if a == other {
		return nil
	}
	if a.owner {
		a.buffer.Destroy()
	}

	a.buffer = other.buffer
	a.owner = false
	a.policy = other.policy
	a.typ = other.typ
	a.shape = slices.Clone(other.shape)
	a.strides = slices.Clone(other.strides)
	a.ShallowCopyFields(&other.Base)
	return nil
}

// DeepCopy duplicates the layout and content of src into a buffer owned
// by a.
func (a *Array) DeepCopy(src data.Object, cache data.CopyCache) error {
	other, ok := src.(*Array)
	if !ok {
		return data.CheckClass(src, a)
	}
	if a == other {
		return nil
	}

	if !a.owner {
		a.buffer = memory.NewBufferObject(a.buffer.Manager())
		a.owner = true
	}
	a.policy = other.policy

	if other.Empty() {
		a.buffer.Destroy()
		a.typ = other.typ
		a.shape = slices.Clone(other.shape)
		a.strides = slices.Clone(other.strides)
	} else {
		srcLock, err := other.Lock()
		if err != nil {
			return err
		}
		defer srcLock.Release()

		content, err := other.buffer.Buffer()
		if err != nil {
			return err
		}
		if err := a.buffer.Allocate(len(content), a.policy); err != nil {
			return err
		}
		dstLock, err := a.Lock()
		if err != nil {
			return err
		}
		defer dstLock.Release()
		dst, err := a.buffer.Buffer()
		if err != nil {
			return err
		}
		copy(dst, content)

		a.typ = other.typ
		a.shape = slices.Clone(other.shape)
		a.strides = slices.Clone(other.strides)
	}

	return a.DeepCopyFields(&other.Base, cache)
}
