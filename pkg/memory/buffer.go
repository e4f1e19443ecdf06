// Package memory manages the raw byte buffers behind sightdata containers.
//
// A BufferObject owns (or borrows) one buffer and counts the dump locks
// held on it. While no lock is held, a Manager may evict the buffer to a
// Store and transparently bring it back on the next Lock. Every direct
// access to the bytes goes through Buffer, which fails with ErrNotLocked
// when no lock is held.
package memory

import (
	"fmt"
)

// BufferObject holds one raw buffer, its allocation policy and its lock
// count. A BufferObject with a nil policy is a borrowed view: it never
// frees, reallocates or dumps its memory.
type BufferObject struct {
	buf     []byte
	size    int
	policy  Policy
	locks   int
	dumped  bool
	manager *Manager
}

// NewBufferObject returns an empty buffer registered with m (which may be
// nil for unmanaged buffers).
func NewBufferObject(m *Manager) *BufferObject {
	b := &BufferObject{manager: m}
	if m != nil {
		m.register(b)
	}
	return b
}

// Manager returns the manager this buffer is registered with.
func (b *BufferObject) Manager() *Manager { return b.manager }

// Size returns the allocated size in bytes, including while dumped.
func (b *BufferObject) Size() int { return b.size }

// IsEmpty reports whether no memory is attached.
func (b *BufferObject) IsEmpty() bool { return b.size == 0 }

// Policy returns the allocation policy, nil for a borrowed view.
func (b *BufferObject) Policy() Policy { return b.policy }

// IsOwned reports whether the buffer carries an allocation policy.
func (b *BufferObject) IsOwned() bool { return b.policy != nil }

// IsDumped reports whether the content currently lives in the dump store.
func (b *BufferObject) IsDumped() bool { return b.dumped }

// IsLocked reports whether at least one lock is held.
func (b *BufferObject) IsLocked() bool { return b.locks > 0 }

// LockCount returns the number of locks held.
func (b *BufferObject) LockCount() int { return b.locks }

// Allocate releases the current buffer and allocates size fresh bytes
// with p (HeapPolicy if nil).
func (b *BufferObject) Allocate(size int, p Policy) error {
	if p == nil {
		p = HeapPolicy{}
	}
	buf, err := p.Allocate(size)
	if err != nil {
		return fmt.Errorf("allocate %d bytes: %w", size, err)
	}

	b.Destroy()
	b.buf, b.size, b.policy = buf, size, p
	b.notifyResized()
	return nil
}

// Reallocate resizes the buffer to size bytes, keeping the leading content.
// A dumped buffer is restored first.
func (b *BufferObject) Reallocate(size int) error {
	if b.policy == nil {
		return fmt.Errorf("reallocate %d bytes: %w", size, ErrNoPolicy)
	}
	if err := b.restore(); err != nil {
		return err
	}

	buf, err := b.policy.Reallocate(b.buf, size)
	if err != nil {
		return fmt.Errorf("reallocate %d bytes: %w", size, err)
	}
	b.buf, b.size = buf, size
	b.notifyResized()
	return nil
}

// Destroy releases the memory through the allocation policy. A borrowed
// view is only forgotten.
func (b *BufferObject) Destroy() {
	if b.dumped && b.manager != nil {
		b.manager.discard(b)
	}
	if b.policy != nil && b.buf != nil {
		b.policy.Destroy(b.buf)
	}
	b.buf, b.size, b.policy, b.dumped = nil, 0, nil, false
	b.notifyResized()
}

// Detach forgets the memory without releasing it.
func (b *BufferObject) Detach() {
	if b.dumped && b.manager != nil {
		b.manager.discard(b)
	}
	b.buf, b.size, b.policy, b.dumped = nil, 0, nil, false
	b.notifyResized()
}

// SetBuffer attaches buf. With a nil policy the buffer is a borrowed
// view. The previous buffer is forgotten, not released: callers that own
// it call Destroy first.
func (b *BufferObject) SetBuffer(buf []byte, p Policy) {
	b.Detach()
	b.buf, b.size, b.policy = buf, len(buf), p
	b.notifyResized()
}

// Lock pins the buffer in memory until the returned lock is released,
// restoring it from the dump store if needed.
func (b *BufferObject) Lock() (*Lock, error) {
	if err := b.restore(); err != nil {
		return nil, err
	}
	b.locks++
	if b.manager != nil {
		b.manager.touch(b)
	}
	return &Lock{buffer: b}, nil
}

// Buffer returns the raw memory. A lock must be held.
func (b *BufferObject) Buffer() ([]byte, error) {
	if b.locks == 0 {
		return nil, ErrNotLocked
	}
	return b.buf, nil
}

func (b *BufferObject) restore() error {
	if !b.dumped {
		return nil
	}
	if b.manager == nil {
		return fmt.Errorf("restore dumped buffer: %w", ErrNoStore)
	}
	return b.manager.Restore(b)
}

func (b *BufferObject) notifyResized() {
	if b.manager != nil {
		b.manager.resized(b)
	}
}

// Lock is a dump lock on one buffer. Release is idempotent.
type Lock struct {
	buffer   *BufferObject
	released bool
}

// Buffer returns the locked buffer object.
func (l *Lock) Buffer() *BufferObject { return l.buffer }

// Release gives the lock back.
func (l *Lock) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	l.buffer.locks--
	if l.buffer.manager != nil {
		l.buffer.manager.unlocked(l.buffer)
	}
}

// Locks is a set of locks acquired together and released together.
type Locks []*Lock

// Release releases every lock of the set.
func (ls Locks) Release() {
	for _, l := range ls {
		l.Release()
	}
}
