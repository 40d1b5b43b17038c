// Package threadtrace transparently propagates the OpenTelemetry active
// context across OS-thread creation. [Create] substitutes for the platform
// thread-creation primitive with an identical signature and an identical
// observable contract: status codes, handle population, and entry return
// values all match the unwrapped primitive bit for bit. The only added
// behavior is that every thread created through it inherits the tracing
// context active on its creator at the moment of spawning.
//
// The creator's context is captured, carried across the thread-start
// hand-off in a single-owner bundle, and installed on the new thread before
// the original entry function runs; the prior context is restored on every
// exit path, including unwinds. Tracing is best effort: a thread for which
// no context can be installed still runs its entry function, untraced.
//
// The genuine primitive is resolved once per process. [RegisterCreator]
// supplies an alternative resolution target before first use, which is also
// the seam for substituting a test double.
package threadtrace
