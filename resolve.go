package threadtrace

import (
	"errors"
	"sync/atomic"

	hsync "github.com/helsaawy/threadtrace/internal/sync"
	"github.com/helsaawy/threadtrace/thread"
)

var errNoCreator = errors.New("no thread-creation primitive available")

// defaultCreator is the next definition of the creation primitive beyond
// this module: the genuine [thread.Create].
var defaultCreator thread.CreateFunc = thread.Create

// registeredCreator, if set before first use, takes precedence over
// defaultCreator during resolution.
var registeredCreator atomic.Value // thread.CreateFunc

// RegisterCreator supplies the thread-creation primitive [Create] should
// delegate to, overriding the default resolution target. It must be called
// before the first call to [Create]; once resolution has run, the cached
// result is immutable and further registrations have no effect.
//
// A nil fn is ignored.
func RegisterCreator(fn thread.CreateFunc) {
	if fn == nil {
		return
	}
	registeredCreator.Store(fn)
}

// resolutions counts how many times resolution actually ran.
var resolutions atomic.Uint64

// realCreate returns the genuine thread-creation primitive. Resolution runs
// exactly once per process: the first caller wins, concurrent first callers
// wait for and observe the same cached result, and the result never changes
// afterward.
var realCreate = hsync.OnceValue(func() (thread.CreateFunc, error) {
	resolutions.Add(1)
	if fn, ok := registeredCreator.Load().(thread.CreateFunc); ok && fn != nil {
		return fn, nil
	}
	if defaultCreator == nil {
		return nil, errNoCreator
	}
	return defaultCreator, nil
})
