// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import "sync"

// callbackQueue is the FIFO of deferred zero-arg closures. The normal path
// is a slice guarded by a mutex, swapped (not copied) at the start of each
// iteration, mirroring how a watcher's pending-ops buffer is drained under
// lock and handed off to the processing side in one swap. The
// signal-safe path is a separate lock-free stack (internal/mpscqueue),
// drained after the swapped slice so ScheduleFromSignal never needs the
// mutex.
type callbackQueue struct {
	mu      sync.Mutex
	pending []func()
}

func newCallbackQueue() *callbackQueue {
	return &callbackQueue{}
}

// append adds fn and reports whether the queue was empty beforehand (used
// by Schedule to decide whether a wake is needed).
func (q *callbackQueue) append(fn func()) (wasEmpty bool) {
	q.mu.Lock()
	wasEmpty = len(q.pending) == 0
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	return wasEmpty
}

// swap atomically takes the current queue and replaces it with a fresh
// empty one, so callbacks enqueued during this iteration's run defer to
// the next iteration.
func (q *callbackQueue) swap() []func() {
	q.mu.Lock()
	taken := q.pending
	q.pending = nil
	q.mu.Unlock()
	return taken
}

// Schedule appends cb to the callback queue for execution on the next
// iteration. Safe to call from any goroutine. If the queue was empty, the
// waker is woken unconditionally so the loop observes cb promptly rather
// than waiting out its current poll timeout. The wake is not skipped for
// an "owner thread" caller: Go has no way to tell, from inside Schedule,
// whether the calling goroutine is the one presently inside Start — the
// only thing Loop tracks is whether Start is running at all, which is
// also true for every other goroutine while it runs. Waking unconditionally
// costs one extra self-pipe round trip when a callback scheduled from
// within the loop's own dispatch happens to find the queue empty; skipping
// it would silently strand a cross-goroutine Schedule behind a long (up to
// the poll cap) blocking Wait.
func (l *Loop) Schedule(cb func()) error {
	if l.closing.Load() {
		return ErrLoopClosing
	}
	wasEmpty := l.callbacks.append(cb)
	if wasEmpty {
		Add(Wakes, 1)
		if err := l.wakerObj.Wake(); err != nil {
			l.cfg.logger.Debugf("evloop: wake failed: %v", err)
		}
	}
	return nil
}

// ScheduleFromSignal is like Schedule but safe to call from a signal
// handler: while the loop is running (onOwnerThread cannot tell which
// goroutine is calling, so this holds for every caller) it appends via a
// lock-free path instead of taking the callback queue mutex (which could
// deadlock if the signal interrupted the owner thread while it already
// held that mutex), then wakes the loop. When the loop is not running it
// behaves exactly like Schedule.
func (l *Loop) ScheduleFromSignal(cb func()) error {
	if l.closing.Load() {
		return ErrLoopClosing
	}
	if l.onOwnerThread() {
		l.signalSafeCallbacks.Push(cb)
		Add(Wakes, 1)
		if err := l.wakerObj.Wake(); err != nil {
			l.cfg.logger.Debugf("evloop: wake failed: %v", err)
		}
		return nil
	}
	return l.Schedule(cb)
}

// Spawn is a fire-and-forget variant of Schedule: it does not carry any
// caller diagnostic context (spec §9's "callback identity" is not modeled
// in this implementation, so Spawn and Schedule currently behave
// identically beyond naming; Spawn exists to make fire-and-forget call
// sites self-documenting).
func (l *Loop) Spawn(cb func()) error {
	return l.Schedule(cb)
}

// drainCallbacks pops both callback stores for one iteration: first the
// swapped slice (FIFO), then the signal-safe stack. Ordering is FIFO
// within each store; the two stores are not ordered relative to each
// other, since ScheduleFromSignal is a distinct, rarer path.
func (l *Loop) drainCallbacks() []func() {
	out := l.callbacks.swap()
	l.signalSafeCallbacks.DrainInto(func(fn func()) {
		out = append(out, fn)
	})
	return out
}
