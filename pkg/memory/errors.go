package memory

import "errors"

var (
	// ErrNotLocked is returned when a buffer is accessed without holding a
	// lock on it.
	ErrNotLocked = errors.New("buffer accessed without a dump lock")

	// ErrLocked is returned when a locked buffer is asked to leave memory.
	ErrLocked = errors.New("buffer is locked")

	// ErrNoPolicy is returned when a buffer that has no allocation policy
	// (a borrowed view) is asked to reallocate or dump.
	ErrNoPolicy = errors.New("buffer has no allocation policy")

	// ErrNoStore is returned by a manager asked to dump without a store.
	ErrNoStore = errors.New("manager has no dump store")

	// ErrChecksum is returned when a dumped buffer does not match the
	// digest recorded when it was written.
	ErrChecksum = errors.New("dump checksum mismatch")
)
