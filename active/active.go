// Package active maintains the "currently active" tracing context for the
// calling thread: the get current / set current / restore previous accessor
// that a native tracing SDK keeps in thread-local storage.
//
// The context representation is entirely OpenTelemetry's — a [context.Context]
// carrying the current span and baggage. This package only owns the slot.
//
// Slots follow the calling goroutine. Threads created through
// [github.com/helsaawy/threadtrace/thread] are pinned to a single goroutine
// for life, so there the slot is thread-local in the POSIX sense.
package active

import (
	"context"
	"sync"

	"github.com/petermattis/goid"
)

var slots = struct {
	sync.RWMutex
	m map[int64]context.Context
}{m: make(map[int64]context.Context)}

// Current returns the calling goroutine's active context, or
// [context.Background] if none has been installed. It never fails.
func Current() context.Context {
	gid := goid.Get()

	slots.RLock()
	ctx, ok := slots.m[gid]
	slots.RUnlock()

	if !ok || ctx == nil {
		return context.Background()
	}
	return ctx
}

// Install sets ctx as the calling goroutine's active context and returns a
// restore function that reinstates whatever was active before.
//
// Callers must arrange for restore to run on every exit path:
//
//	defer active.Install(ctx)()
//
// Install/restore pairs nest like a stack; restoring the outermost pair
// removes the goroutine's slot entirely.
func Install(ctx context.Context) (restore func()) {
	gid := goid.Get()

	slots.Lock()
	prev, hadPrev := slots.m[gid]
	slots.m[gid] = ctx
	slots.Unlock()

	return func() {
		slots.Lock()
		defer slots.Unlock()
		if hadPrev {
			slots.m[gid] = prev
			return
		}
		delete(slots.m, gid)
	}
}
