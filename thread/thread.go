// Package thread is a POSIX-shaped facade over OS-thread creation: an entry
// function and opaque argument run on a dedicated OS thread, with an output
// handle for joining and an errno-style status return.
//
// Each created thread is a goroutine pinned to its own OS thread for its
// entire lifetime, so thread-locals (eg, the active tracing context) behave
// the way they do under a native threading API.
package thread

import (
	"runtime"
	"sync/atomic"
	"syscall"
)

// StartRoutine is the entry point executed on a newly created thread.
type StartRoutine func(arg any) any

// CreateFunc is the signature of a thread-creation primitive: output handle,
// creation attributes, entry point, entry argument, errno-style status.
//
// [Create] is the genuine primitive; interceptors substitute for it by
// matching this signature exactly.
type CreateFunc func(t *Thread, attr *Attr, fn StartRoutine, arg any) syscall.Errno

// DetachState controls whether a created thread can be joined.
type DetachState int

const (
	// Joinable threads must be [Thread.Join]ed to observe their result.
	Joinable DetachState = iota
	// Detached threads cannot be joined; their result is discarded.
	Detached
)

// Attr carries thread-creation attributes. The zero value (and a nil *Attr)
// requests a joinable thread.
type Attr struct {
	DetachState DetachState
}

// Thread is a handle to a created thread.
type Thread struct {
	done     chan any
	id       uint64
	detached bool
	joined   atomic.Bool
}

// ID returns an identifier unique among threads created by this process.
func (t *Thread) ID() uint64 { return t.id }

// Join blocks until the thread's entry function returns, and yields its
// return value. Joining a detached thread, a zero handle, or the same thread
// twice fails with EINVAL.
func (t *Thread) Join() (any, error) {
	if t == nil || t.done == nil || t.detached {
		return nil, syscall.EINVAL
	}
	if !t.joined.CompareAndSwap(false, true) {
		return nil, syscall.EINVAL
	}
	return <-t.done, nil
}

var nextID atomic.Uint64

// Create is the genuine thread-creation primitive: it runs fn(arg) on a
// goroutine locked to a fresh OS thread, populates *t, and returns 0.
//
// A nil handle or entry function fails with EINVAL; *t is not touched on
// failure. Create is a [CreateFunc].
func Create(t *Thread, attr *Attr, fn StartRoutine, arg any) syscall.Errno {
	if t == nil || fn == nil {
		return syscall.EINVAL
	}

	// assign fields individually: Thread holds an atomic and must not be copied.
	// done is buffered so a detached or never-joined thread does not leak
	t.done = make(chan any, 1)
	t.id = nextID.Add(1)
	t.detached = attr != nil && attr.DetachState == Detached
	t.joined.Store(false)

	done := t.done
	go func() {
		runtime.LockOSThread()
		// no UnlockOSThread: the thread is discarded when the goroutine
		// exits, matching one-thread-per-entry native semantics
		done <- fn(arg)
	}()

	return 0
}
