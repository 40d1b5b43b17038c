package threadtrace

import (
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/helsaawy/threadtrace/active"
	"github.com/helsaawy/threadtrace/thread"
)

// Create creates a thread the way [thread.Create] does, and additionally
// makes the creator's active context current on the new thread before its
// entry function runs.
//
// The observable contract is the genuine primitive's, unchanged: on failure
// the identical errno is returned and *t is untouched; on success the handle
// and the entry function's return value are what the unwrapped call would
// have produced. Create is a [thread.CreateFunc], so it link-substitutes for
// [thread.Create] anywhere the primitive is taken as a value.
func Create(t *thread.Thread, attr *thread.Attr, fn thread.StartRoutine, arg any) syscall.Errno {
	real, err := realCreate()
	if err != nil {
		// without a creation primitive no thread of any kind can be
		// created; there is no safe degradation
		logrus.WithError(err).Fatal("cannot locate thread-creation primitive")
	}

	if fn == nil {
		// substituting the trampoline would mask the primitive's argument
		// validation; let it reject the entry itself
		return real(t, attr, fn, arg)
	}

	ctx := active.Current()
	b := newBundle(fn, arg, ctx)

	if errno := real(t, attr, trampoline, b); errno != 0 {
		// the hand-off never happened; the creator still owns the bundle
		b.free()
		return errno
	}

	// ownership moved to the spawned thread with the successful hand-off;
	// the bundle must not be touched here again
	return 0
}
