// Package buffer implements a pool of memory mapped capture buffers and the
// ownership handoff between the application and the kernel driver.
//
// Every buffer is in one of three states:
//   - Free: mapped, owned by the application, not queued
//   - Queued: owned by the driver, the application must not touch memory
//   - Dequeued: filled frame lent to the application for reading
//
// Transitions are checked, an illegal one returns ErrInvalidTransition and
// leaves the buffer untouched.
package buffer

import (
	"errors"
	"fmt"
)

type State byte

const (
	Free State = iota
	Queued
	Dequeued
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Queued:
		return "queued"
	case Dequeued:
		return "dequeued"
	}
	return fmt.Sprintf("state(%d)", s)
}

var (
	ErrInvalidTransition = errors.New("buffer: invalid state transition")
	ErrUnknownIndex      = errors.New("buffer: unknown index")
	ErrNotAllocated      = errors.New("buffer: pool is not allocated")
)

type Buffer struct {
	Index  uint32
	Length uint32

	state     State
	data      []byte
	bytesused uint32
}

func (b *Buffer) State() State {
	return b.state
}

// Bytes returns filled part of mapped memory without copy. Only a dequeued
// buffer can be read, for any other state it returns nil. The slice must not
// be used after the buffer is resubmitted.
func (b *Buffer) Bytes() []byte {
	if b.state != Dequeued || b.data == nil {
		return nil
	}
	return b.data[:b.bytesused]
}

func (b *Buffer) transition(from, to State) error {
	if b.state != from {
		return fmt.Errorf("%w: buffer %d is %s, want %s", ErrInvalidTransition, b.Index, b.state, from)
	}
	b.state = to
	return nil
}

// MapError reports the buffer that could not be mapped. All buffers mapped
// before it are already unmapped.
type MapError struct {
	Index uint32
	Err   error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("buffer: map index=%d: %v", e.Index, e.Err)
}

func (e *MapError) Unwrap() error {
	return e.Err
}
