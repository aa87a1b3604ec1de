package caliper

import (
	"runtime"
	"sync/atomic"
)

// SigSafeRWLock is a reader/writer lock whose read side is safe to
// acquire from an asynchronous signal or interrupt handler running on
// an arbitrary thread's stack: RLock/RUnlock never allocate, never
// call into the Go runtime's blocking primitives, and make forward
// progress as long as the interrupted goroutine is not itself the
// writer.
//
// The implementation is a wait-free reader counter plus a writer flag
// polled with a short back-off, per the contract's suggested
// realization. A writer raises its flag first and then waits for the
// readers already inside to leave; readers arriving after the flag is
// raised back off until Unlock. A steady stream of writers can
// therefore delay readers, but readers cannot hold off a writer whose
// flag is already up.
//
// Write acquisition may block; it is never called from signal context.
type SigSafeRWLock struct {
	writer  atomic.Bool
	readers atomic.Int32
}

// RLock acquires the lock for reading. Safe to call from a signal
// handler.
func (l *SigSafeRWLock) RLock() {
	for {
		if l.writer.Load() {
			runtime.Gosched()
			continue
		}

		l.readers.Add(1)

		if l.writer.Load() {
			// A writer slipped in between our check and our
			// increment; back off and retry rather than block it.
			l.readers.Add(-1)
			runtime.Gosched()
			continue
		}

		return
	}
}

// RUnlock releases a read acquisition. Safe to call from a signal
// handler.
func (l *SigSafeRWLock) RUnlock() {
	l.readers.Add(-1)
}

// Lock acquires the lock for writing, excluding all readers. May
// block; must not be called from signal context.
func (l *SigSafeRWLock) Lock() {
	for !l.writer.CompareAndSwap(false, true) {
		runtime.Gosched()
	}

	for l.readers.Load() > 0 {
		runtime.Gosched()
	}
}

// Unlock releases a write acquisition.
func (l *SigSafeRWLock) Unlock() {
	l.writer.Store(false)
}
