package threadtrace

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/helsaawy/threadtrace/active"
	"github.com/helsaawy/threadtrace/internal/otelutil"
	"github.com/helsaawy/threadtrace/thread"
)

var _ thread.CreateFunc = Create

// testCreator lets individual tests substitute the resolved primitive, even
// though resolution itself runs only once per process.
var testCreator struct {
	sync.Mutex
	fn thread.CreateFunc
}

func dispatchCreate(t *thread.Thread, attr *thread.Attr, fn thread.StartRoutine, arg any) syscall.Errno {
	testCreator.Lock()
	create := testCreator.fn
	testCreator.Unlock()
	if create == nil {
		create = thread.Create
	}
	return create(t, attr, fn, arg)
}

func swapCreator(t *testing.T, fn thread.CreateFunc) {
	t.Helper()
	testCreator.Lock()
	testCreator.fn = fn
	testCreator.Unlock()
	t.Cleanup(func() {
		testCreator.Lock()
		testCreator.fn = nil
		testCreator.Unlock()
	})
}

func TestMain(m *testing.M) {
	RegisterCreator(dispatchCreate)

	// need a tracer so OTel creates recording spans and sets their trace/span ID
	if _, err := otelutil.InitializeProvider(
		tracesdk.WithSpanProcessor(tracesdk.NewSimpleSpanProcessor(nil)),
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
	); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

func mustCreate(t *testing.T, fn thread.StartRoutine, arg any) *thread.Thread {
	t.Helper()
	var th thread.Thread
	if errno := Create(&th, nil, fn, arg); errno != 0 {
		t.Fatalf("create failed: %v", errno)
	}
	return &th
}

func mustJoin(t *testing.T, th *thread.Thread) any {
	t.Helper()
	v, err := th.Join()
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	return v
}

func TestCreatePropagatesActiveContext(t *testing.T) {
	ctx, span := otelutil.StartSpan(active.Current(), "parent")
	defer otelutil.SetSpanStatusAndEnd(span, nil)
	defer active.Install(ctx)()

	want := span.SpanContext()
	if !want.IsValid() {
		t.Fatal("parent span context is not valid")
	}

	var observed trace.SpanContext
	th := mustCreate(t, func(any) any {
		observed = trace.SpanContextFromContext(active.Current())
		return nil
	}, nil)
	mustJoin(t, th)

	if observed.TraceID() != want.TraceID() {
		t.Errorf("trace id: got %s, wanted %s", observed.TraceID(), want.TraceID())
	}
	if observed.SpanID() != want.SpanID() {
		t.Errorf("span id: got %s, wanted %s", observed.SpanID(), want.SpanID())
	}
}

func TestCreateWithoutActiveContext(t *testing.T) {
	var observed trace.SpanContext
	th := mustCreate(t, func(any) any {
		observed = trace.SpanContextFromContext(active.Current())
		return nil
	}, nil)
	mustJoin(t, th)

	if observed.IsValid() {
		t.Fatalf("thread observed a span context (%s) its creator never had", observed.SpanID())
	}
}

func TestCreateNilEntry(t *testing.T) {
	allocs := bundleAllocs.Load()

	// the primitive's own argument validation must be observed, not the
	// trampoline's ability to carry a nil entry
	var raw thread.Thread
	want := thread.Create(&raw, nil, nil, nil)

	var th thread.Thread
	if errno := Create(&th, nil, nil, nil); errno != want {
		t.Fatalf("got %v, wanted %v", errno, want)
	}
	if _, err := th.Join(); !errors.Is(err, syscall.EINVAL) {
		t.Fatalf("join on unpopulated handle: got %v, wanted EINVAL", err)
	}

	// nothing was captured or bundled for a rejected creation
	if got := bundleAllocs.Load() - allocs; got != 0 {
		t.Errorf("got %d bundle allocations, wanted 0", got)
	}
}

func TestCreateDetachedPropagatesActiveContext(t *testing.T) {
	ctx, span := otelutil.StartSpan(active.Current(), "parent")
	defer otelutil.SetSpanStatusAndEnd(span, nil)
	defer active.Install(ctx)()

	observed := make(chan trace.SpanContext, 1)
	frees := bundleFrees.Load()

	var th thread.Thread
	attr := &thread.Attr{DetachState: thread.Detached}
	if errno := Create(&th, attr, func(any) any {
		observed <- trace.SpanContextFromContext(active.Current())
		return nil
	}, nil); errno != 0 {
		t.Fatalf("create failed: %v", errno)
	}

	// the attr passed through: the handle behaves detached
	if _, err := th.Join(); !errors.Is(err, syscall.EINVAL) {
		t.Fatalf("join on detached thread: got %v, wanted EINVAL", err)
	}

	select {
	case sc := <-observed:
		if sc.SpanID() != span.SpanContext().SpanID() {
			t.Errorf("span id: got %s, wanted %s", sc.SpanID(), span.SpanContext().SpanID())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("detached thread never ran")
	}

	// teardown runs on the detached thread shortly after its entry returns;
	// wait for it so the accounting holds without a join
	deadline := time.Now().Add(5 * time.Second)
	for bundleFrees.Load()-frees != 1 {
		if time.Now().After(deadline) {
			t.Fatal("bundle was never freed on the detached thread")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCreateReturnValuePassthrough(t *testing.T) {
	th := mustCreate(t, func(arg any) any { return arg }, 42)
	if v := mustJoin(t, th); v != 42 {
		t.Fatalf("got %v, wanted 42", v)
	}
}

func TestCreateFailurePassthrough(t *testing.T) {
	// simulated resource exhaustion from the genuine primitive
	swapCreator(t, func(*thread.Thread, *thread.Attr, thread.StartRoutine, any) syscall.Errno {
		return syscall.EAGAIN
	})

	allocs, frees := bundleAllocs.Load(), bundleFrees.Load()

	var th thread.Thread
	if errno := Create(&th, nil, func(any) any { return nil }, nil); errno != syscall.EAGAIN {
		t.Fatalf("got %v, wanted EAGAIN", errno)
	}

	// handle must not have been populated
	if _, err := th.Join(); !errors.Is(err, syscall.EINVAL) {
		t.Fatalf("join on unpopulated handle: got %v, wanted EINVAL", err)
	}

	// the bundle was freed synchronously, on the creator
	if got := bundleAllocs.Load() - allocs; got != 1 {
		t.Errorf("got %d bundle allocations, wanted 1", got)
	}
	if got := bundleFrees.Load() - frees; got != 1 {
		t.Errorf("got %d bundle frees, wanted 1", got)
	}
}

func TestBundleAccounting(t *testing.T) {
	const n = 24

	allocs, frees := bundleAllocs.Load(), bundleFrees.Load()

	for i := 0; i < n; i++ {
		th := mustCreate(t, func(arg any) any { return arg }, i)
		mustJoin(t, th)
	}

	if got := bundleAllocs.Load() - allocs; got != n {
		t.Errorf("got %d bundle allocations, wanted %d", got, n)
	}
	if got := bundleFrees.Load() - frees; got != n {
		t.Errorf("got %d bundle frees, wanted %d", got, n)
	}
}

func TestResolveOnce(t *testing.T) {
	const n = 64

	g := errgroup.Group{}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			var th thread.Thread
			if errno := Create(&th, nil, func(any) any { return nil }, nil); errno != 0 {
				return errno
			}
			_, err := th.Join()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("create/join failed: %v", err)
	}

	if got := resolutions.Load(); got != 1 {
		t.Fatalf("primitive resolved %d times, wanted once", got)
	}
}

func TestTeardownOnPanickingEntry(t *testing.T) {
	// wrap the entry so the unwind stops at the thread boundary instead of
	// taking down the test process
	swapCreator(t, func(th *thread.Thread, attr *thread.Attr, fn thread.StartRoutine, arg any) syscall.Errno {
		wrapped := func(a any) (ret any) {
			defer func() { _ = recover() }()
			return fn(a)
		}
		return thread.Create(th, attr, wrapped, arg)
	})

	ctx, span := otelutil.StartSpan(active.Current(), "parent")
	defer otelutil.SetSpanStatusAndEnd(span, nil)
	defer active.Install(ctx)()

	allocs, frees := bundleAllocs.Load(), bundleFrees.Load()

	var observed trace.SpanContext
	th := mustCreate(t, func(any) any {
		observed = trace.SpanContextFromContext(active.Current())
		panic("entry failed")
	}, nil)
	if v := mustJoin(t, th); v != nil {
		t.Fatalf("got %v from a panicking entry, wanted nil", v)
	}

	if observed.SpanID() != span.SpanContext().SpanID() {
		t.Errorf("span id: got %s, wanted %s", observed.SpanID(), span.SpanContext().SpanID())
	}

	// the deferred teardown ran despite the unwind
	if got := bundleFrees.Load() - frees; got != 1 {
		t.Errorf("got %d bundle frees, wanted 1", got)
	}
	if got := bundleAllocs.Load() - allocs; got != 1 {
		t.Errorf("got %d bundle allocations, wanted 1", got)
	}
}
