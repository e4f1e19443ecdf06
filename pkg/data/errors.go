package data

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocationPolicy is returned when a borrowed view would have to be
	// reallocated.
	ErrAllocationPolicy = errors.New("allocation policy violation")

	// ErrOutOfBounds is returned by bounds-checked element access.
	ErrOutOfBounds = errors.New("index out of bounds")

	// ErrShape is returned on arity mismatches, zero count reservations,
	// truncation beyond capacity and malformed layouts.
	ErrShape = errors.New("shape mismatch")

	// ErrCopyType is returned when a copy source does not have the class
	// of its destination.
	ErrCopyType = errors.New("copy type mismatch")
)

// BoundsError describes an out of range access. It matches ErrOutOfBounds
// with errors.Is.
type BoundsError struct {
	// Index is the offending index, one entry per dimension.
	Index []int
	// Limit is the valid exclusive range, one entry per dimension.
	Limit []int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("index %v out of bounds %v", e.Index, e.Limit)
}

// Is reports whether target is ErrOutOfBounds.
func (e *BoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// CopyError names both classes of a failed copy. It matches ErrCopyType
// with errors.Is.
type CopyError struct {
	From string
	To   string
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("cannot copy %s into %s", e.From, e.To)
}

// Is reports whether target is ErrCopyType.
func (e *CopyError) Is(target error) bool { return target == ErrCopyType }

// CheckClass returns a *CopyError if src and dst are not of the same class.
func CheckClass(src, dst Object) error {
	if src == nil {
		return &CopyError{From: "<nil>", To: dst.Classname()}
	}
	if src.Classname() != dst.Classname() {
		return &CopyError{From: src.Classname(), To: dst.Classname()}
	}
	return nil
}
