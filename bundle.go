package threadtrace

import (
	"context"
	"sync/atomic"

	"github.com/helsaawy/threadtrace/active"
	"github.com/helsaawy/threadtrace/thread"
)

// bundle carries the captured context, original entry point, and original
// argument from the creator thread to the thread it spawns. It has exactly
// one live owner at any time: the creator until the hand-off succeeds, the
// spawned thread afterward. It is torn down exactly once, by whichever side
// owns it when the outcome is known.
type bundle struct {
	entry    thread.StartRoutine
	arg      any
	ctx      context.Context
	released atomic.Bool
}

// alloc/free accounting, one increment per bundle lifetime
var (
	bundleAllocs atomic.Uint64
	bundleFrees  atomic.Uint64
)

func newBundle(entry thread.StartRoutine, arg any, ctx context.Context) *bundle {
	bundleAllocs.Add(1)
	return &bundle{
		entry: entry,
		arg:   arg,
		ctx:   ctx,
	}
}

// free releases the bundle's contents. Safe to call at most once per owner;
// the atomic guard makes a second call a no-op rather than a double free.
func (b *bundle) free() {
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	b.entry = nil
	b.arg = nil
	b.ctx = nil
	bundleFrees.Add(1)
}

// trampoline is the entry point handed to the genuine primitive. It runs on
// the newly created thread: it takes ownership of the bundle, installs the
// captured context, invokes the original entry function, and returns its
// result unchanged so join semantics match the unwrapped primitive.
//
// The restore guard and bundle teardown are deferred, so both run even if
// the entry function unwinds. A bundle with no captured context still runs
// the entry function, just untraced.
func trampoline(arg any) any {
	b := arg.(*bundle)
	entry, uarg, ctx := b.entry, b.arg, b.ctx
	defer b.free()

	if ctx != nil {
		defer active.Install(ctx)()
	}

	return entry(uarg)
}
