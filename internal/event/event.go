// Package event implements the synchronous observer used to wire sources,
// digests, and indicators into a dependency graph. There is no concurrency
// here by design: trigger calls every registered callback in place, on the
// caller's goroutine, so that a push() cascades deterministically through
// the whole graph before returning.
package event

import "unsafe"

// Callback is a subscriber function taking the event's argument payload.
// Identity, not equality of closures, is what register/unregister key on:
// registering the same function value twice is a no-op, per Register.
type Callback[A any] func(A)

// Handle identifies one registered callback, returned by Register and
// consumed by Unregister.
type Handle int

// Event is a single-threaded publish point carrying payload type A. Zero
// value is ready to use.
type Event[A any] struct {
	callbacks map[Handle]Callback[A]
	identity  map[uintptr]Handle
	next      Handle
}

// Register adds callback and returns a handle for later unregistration. If
// cb is already registered — the same function value, i.e. the same closure
// instance — Register is a no-op and returns the existing handle. Distinct
// closures built from one function literal are distinct callbacks.
func (e *Event[A]) Register(cb Callback[A]) Handle {
	if e.callbacks == nil {
		e.callbacks = make(map[Handle]Callback[A])
		e.identity = make(map[uintptr]Handle)
	}
	// A func value is a pointer to its closure; reflect's Pointer would give
	// only the code address, which every closure of one literal shares.
	ptr := uintptr(*(*unsafe.Pointer)(unsafe.Pointer(&cb)))
	if h, ok := e.identity[ptr]; ok {
		return h
	}
	h := e.next
	e.next++
	e.callbacks[h] = cb
	e.identity[ptr] = h
	return h
}

// Unregister removes the callback for h. Unregistering an unknown or already
// removed handle is a no-op.
func (e *Event[A]) Unregister(h Handle) {
	if _, ok := e.callbacks[h]; !ok {
		return
	}
	delete(e.callbacks, h)
	for ptr, ph := range e.identity {
		if ph == h {
			delete(e.identity, ptr)
			break
		}
	}
}

// Trigger invokes every registered callback with arg. Iteration order
// follows Go map iteration, which is fine: callbacks must not depend on the
// order their siblings run in.
func (e *Event[A]) Trigger(arg A) {
	for _, cb := range e.callbacks {
		cb(arg)
	}
}

// Len reports the number of currently registered callbacks, mainly for
// tests and diagnostics.
func (e *Event[A]) Len() int { return len(e.callbacks) }
