package array

import (
	"errors"
	"fmt"
	"iter"
	"unsafe"

	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
)

// ErrMisaligned is returned when a typed view would start at an address
// that is not aligned for its element type.
var ErrMisaligned = errors.New("misaligned typed access")

func sizeOf[T dtype.Numeric]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func pointerAt[T dtype.Numeric](buf []byte, offset int) (*T, error) {
	var zero T
	p := unsafe.Pointer(&buf[offset])
	if uintptr(p)%unsafe.Alignof(zero) != 0 {
		return nil, fmt.Errorf("%T at byte %d: %w", zero, offset, ErrMisaligned)
	}
	return (*T)(p), nil
}

// At returns a pointer to the element at index, one entry per dimension.
// The byte offset is the sum of index[i]*strides[i] and the element is read
// as T, whatever the stored type. A lock must be held.
func At[T dtype.Numeric](a *Array, index []int) (*T, error) {
	buf, err := a.buffer.Buffer()
	if err != nil {
		return nil, err
	}

	if len(index) != len(a.shape) {
		return nil, &data.BoundsError{Index: index, Limit: a.Shape()}
	}
	offset := 0
	for i, idx := range index {
		if idx < 0 || idx >= a.shape[i] {
			return nil, &data.BoundsError{Index: index, Limit: a.Shape()}
		}
		offset += idx * a.strides[i]
	}
	if offset+sizeOf[T]() > len(buf) {
		return nil, &data.BoundsError{Index: index, Limit: a.Shape()}
	}
	return pointerAt[T](buf, offset)
}

// AtOffset returns a pointer to the offset-th T of the buffer, at byte
// offset*sizeof(T). A lock must be held.
func AtOffset[T dtype.Numeric](a *Array, offset int) (*T, error) {
	buf, err := a.buffer.Buffer()
	if err != nil {
		return nil, err
	}

	size := sizeOf[T]()
	limit := min(a.SizeInBytes(), len(buf)) / size
	if offset < 0 || offset >= limit {
		return nil, &data.BoundsError{Index: []int{offset}, Limit: []int{limit}}
	}
	return pointerAt[T](buf, offset*size)
}

// AtByte returns a pointer to the T stored at byte offset. A lock must be
// held.
func AtByte[T dtype.Numeric](a *Array, offset int) (*T, error) {
	buf, err := a.buffer.Buffer()
	if err != nil {
		return nil, err
	}

	limit := min(a.SizeInBytes(), len(buf))
	if offset < 0 || offset+sizeOf[T]() > limit {
		return nil, &data.BoundsError{Index: []int{offset}, Limit: []int{limit}}
	}
	return pointerAt[T](buf, offset)
}

// Values returns the buffer as a slice of T covering SizeInBytes. The
// stored type is not checked against T. The slice is valid while the lock
// is held and until the next resize.
func Values[T dtype.Numeric](a *Array) ([]T, error) {
	buf, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	return view[T](buf)
}

func view[T dtype.Numeric](buf []byte) ([]T, error) {
	n := len(buf) / sizeOf[T]()
	if n == 0 {
		return nil, nil
	}
	first, err := pointerAt[T](buf, 0)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice(first, n), nil
}

// Iterator walks the elements of an array as T.
type Iterator[T dtype.Numeric] struct {
	values []T
	pos    int
}

// Iterate returns an iterator positioned before the first element. A lock
// must be held for the lifetime of the iterator.
func Iterate[T dtype.Numeric](a *Array) (*Iterator[T], error) {
	values, err := Values[T](a)
	if err != nil {
		return nil, err
	}
	return &Iterator[T]{values: values, pos: -1}, nil
}

// Next advances to the next element and reports whether there is one.
func (it *Iterator[T]) Next() bool {
	if it.pos < len(it.values) {
		it.pos++
	}
	return it.pos < len(it.values)
}

// Value returns a pointer to the current element.
func (it *Iterator[T]) Value() *T { return &it.values[it.pos] }

// Index returns the position of the current element.
func (it *Iterator[T]) Index() int { return it.pos }

// Len returns the number of elements.
func (it *Iterator[T]) Len() int { return len(it.values) }

// Seek positions the iterator on element i, so that Value returns it
// without calling Next.
func (it *Iterator[T]) Seek(i int) bool {
	if i < 0 || i >= len(it.values) {
		it.pos = len(it.values)
		return false
	}
	it.pos = i
	return true
}

// All returns a range-over-func sequence of (index, element) over the
// array as T. A lock must be held while ranging.
func All[T dtype.Numeric](a *Array) (iter.Seq2[int, *T], error) {
	values, err := Values[T](a)
	if err != nil {
		return nil, err
	}
	return func(yield func(int, *T) bool) {
		for i := range values {
			if !yield(i, &values[i]) {
				return
			}
		}
	}, nil
}
