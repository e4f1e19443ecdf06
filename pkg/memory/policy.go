package memory

import (
	"fmt"
	"unsafe"
)

// Policy allocates, grows and releases the raw memory behind a buffer.
type Policy interface {
	// Allocate returns a zeroed buffer of exactly size bytes.
	Allocate(size int) ([]byte, error)

	// Reallocate returns a buffer of size bytes holding the first
	// min(len(buf), size) bytes of buf. buf must not be used afterwards.
	Reallocate(buf []byte, size int) ([]byte, error)

	// Destroy releases buf.
	Destroy(buf []byte)
}

// HeapPolicy allocates from the Go heap. Buffers are backed by uint64
// words so that any numeric element type can be viewed in place.
type HeapPolicy struct{}

// Allocate implements Policy.
func (HeapPolicy) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid allocation size: %d", size)
	}
	if size == 0 {
		return nil, nil
	}
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size), nil
}

// Reallocate implements Policy.
func (p HeapPolicy) Reallocate(buf []byte, size int) ([]byte, error) {
	out, err := p.Allocate(size)
	if err != nil {
		return nil, err
	}
	copy(out, buf)
	return out, nil
}

// Destroy implements Policy. Heap memory is reclaimed by the collector.
func (HeapPolicy) Destroy([]byte) {}

// Counting wraps a Policy and counts the calls made to it.
type Counting struct {
	Policy Policy

	Allocations   int
	Reallocations int
	Destructions  int
	// Bytes is the total size requested by Allocate and Reallocate.
	Bytes int64
}

// NewCounting returns a Counting policy delegating to p (HeapPolicy if nil).
func NewCounting(p Policy) *Counting {
	if p == nil {
		p = HeapPolicy{}
	}
	return &Counting{Policy: p}
}

// Allocate implements Policy.
func (c *Counting) Allocate(size int) ([]byte, error) {
	c.Allocations++
	c.Bytes += int64(size)
	return c.Policy.Allocate(size)
}

// Reallocate implements Policy.
func (c *Counting) Reallocate(buf []byte, size int) ([]byte, error) {
	c.Reallocations++
	c.Bytes += int64(size)
	return c.Policy.Reallocate(buf, size)
}

// Destroy implements Policy.
func (c *Counting) Destroy(buf []byte) {
	c.Destructions++
	c.Policy.Destroy(buf)
}

// Calls returns the number of Allocate and Reallocate calls.
func (c *Counting) Calls() int {
	return c.Allocations + c.Reallocations
}

// Reset zeroes the counters.
func (c *Counting) Reset() {
	c.Allocations, c.Reallocations, c.Destructions, c.Bytes = 0, 0, 0, 0
}
