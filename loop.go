// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package evloop provides a single-threaded, level-triggered I/O event
// loop: register fd readiness handlers, defer callbacks, schedule timers
// and periodic callbacks, and bridge completions from other goroutines
// back onto the loop's owner goroutine.
package evloop

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"

	"github.com/evloop-go/evloop/internal/backend"
	"github.com/evloop-go/evloop/internal/lifecycle"
	"github.com/evloop-go/evloop/internal/mpscqueue"
	"github.com/evloop-go/evloop/internal/waker"
)

// Loop is the single-threaded, level-triggered event loop: the owner
// goroutine that calls Start multiplexes fd readiness, runs deferred
// callbacks, and fires timers until Stop or the process exits.
type Loop struct {
	cfg config

	backend  backend.Backend
	wakerObj *waker.Waker
	handlers *handlerTable

	callbacks           *callbackQueue
	signalSafeCallbacks mpscqueue.Queue

	timers            timerHeap
	timerTiebreaker   uint64
	cancellationCount int

	pendingMu sync.Mutex
	pending   map[int]backend.Mask

	running lifecycle.RunGuard
	closed  lifecycle.CloseGuard
	closing atomic.Bool
	stopped atomic.Bool

	ownerID atomic.Uint64
	owning  atomic.Bool

	wg sync.WaitGroup

	antsOnce     sync.Once
	antsPoolInst *ants.Pool
	antsPoolErr  error

	lastWaitEnd time.Time
}

// New constructs a Loop. The returned Loop is not running; call Start to
// drive it.
func New(opts ...Option) (*Loop, error) {
	var cfg config
	cfg.setDefault()
	for _, o := range opts {
		o.f(&cfg)
	}

	be, err := backend.New(cfg.backendKind.toInternal())
	if err != nil {
		return nil, err
	}
	wk, err := waker.New()
	if err != nil {
		be.Close()
		return nil, err
	}

	l := &Loop{
		cfg:       cfg,
		backend:   be,
		wakerObj:  wk,
		handlers:  newHandlerTable(),
		callbacks: newCallbackQueue(),
		pending:   make(map[int]backend.Mask),
	}
	if err := l.backend.Register(wk.FD(), backend.Read); err != nil {
		wk.Close()
		be.Close()
		return nil, err
	}
	return l, nil
}

// Time returns the current time in seconds since the epoch, via the
// loop's configured time source (the wall clock by default, overridable
// with WithTimeSource).
func (l *Loop) Time() float64 {
	return l.cfg.timeSource()
}

// onOwnerThread reports whether this Loop's Start is currently running,
// NOT whether the calling goroutine is that owner: Go exposes no public
// goroutine-id API, so there is no way to compare "the calling goroutine"
// against "the goroutine inside Start" from arbitrary call sites. This
// makes onOwnerThread a conservative-in-the-wrong-direction signal for
// any caller that is itself a distinct goroutine — it must never be used
// to decide whether a wake is necessary (see Schedule, which always wakes
// instead). It remains valid for ScheduleFromSignal's narrower purpose:
// choosing the lock-free append path while the loop races its own
// dispatch, which is safe regardless of which goroutine is asking.
func (l *Loop) onOwnerThread() bool {
	return l.owning.Load()
}

// Start enters the loop: idle -> running -> stopped -> idle (on return).
// Returns ErrAlreadyRunning if another goroutine is already inside Start
// for this Loop. If Stop was called before Start, Start returns
// immediately, clearing the pending-stop flag.
func (l *Loop) Start() error {
	if !l.running.Begin() {
		if l.running.Closed() {
			return ErrLoopClosing
		}
		return ErrAlreadyRunning
	}
	defer l.running.End()

	if l.stopped.Swap(false) {
		// stop() was called before start(): honor it immediately.
		return nil
	}

	l.owning.Store(true)
	defer l.owning.Store(false)

	l.ownerID.Store(uint64(procPin()))
	l.lastWaitEnd = time.Now()

	for {
		if !l.runIteration() {
			l.stopped.Store(false)
			return nil
		}
	}
}

// runIteration executes one pass of the algorithm in spec §4.6 and reports
// whether the loop should continue.
func (l *Loop) runIteration() bool {
	// Step 1: snapshot callbacks.
	snapshot := l.drainCallbacks()

	// Step 2: collect due timers (and tombstones) at a single "now".
	now := l.Time()
	due := l.collectDueTimers(now)

	// Step 3: run snapshotted callbacks, then due timers, in that order.
	for _, cb := range snapshot {
		l.runGuarded(cb)
	}
	for _, cb := range due {
		l.runGuarded(cb)
		Add(TimersFired, 1)
	}

	// Step 4: compute poll timeout.
	var timeout time.Duration
	if !l.callbacks.empty() || !l.signalSafeCallbacks.Empty() {
		timeout = 0
	} else if deadline, ok := l.nextDeadline(); ok {
		remaining := deadline - l.Time()
		if remaining < 0 {
			remaining = 0
		}
		timeout = time.Duration(remaining * float64(time.Second))
		if timeout > l.cfg.pollTimeoutCap {
			timeout = l.cfg.pollTimeoutCap
		}
	} else {
		timeout = l.cfg.pollTimeoutCap
	}

	// Step 5: check running flag.
	if l.stopped.Load() {
		return false
	}

	// Step 6: wait on the backend, retrying transparently on interrupt.
	l.checkBlockingThreshold()
	var events []backend.Event
	for {
		Add(BackendWaits, 1)
		if timeout == 0 {
			Add(BackendWaitsNonBlocking, 1)
		}
		ev, err := l.backend.Wait(timeout)
		if err != nil {
			l.cfg.logger.Debugf("evloop: backend wait: %v", err)
			continue
		}
		events = ev
		break
	}
	l.lastWaitEnd = time.Now()

	// Step 7: dispatch events.
	l.dispatch(events)

	return true
}

// checkBlockingThreshold implements WithBlockingLogThreshold: if more real
// wall-clock time than the configured threshold has elapsed since the
// previous backend Wait returned — i.e. everything this iteration spent
// running callbacks, timers, and dispatch — onBlockingThreshold fires with
// the current stack. Uses time.Now directly rather than l.Time(), since
// this diagnoses actual wall-clock blocking regardless of any substituted
// time source.
func (l *Loop) checkBlockingThreshold() {
	if l.cfg.onBlockingThreshold == nil || l.cfg.blockingThreshold <= 0 {
		return
	}
	if elapsed := time.Since(l.lastWaitEnd); elapsed > l.cfg.blockingThreshold {
		l.cfg.onBlockingThreshold(debug.Stack())
	}
}

// dispatch merges ready events into the pending-events map so a
// remove_handler during dispatch can erase an entry before it is taken,
// then repeatedly takes and dispatches one entry at a time.
func (l *Loop) dispatch(events []backend.Event) {
	l.pendingMu.Lock()
	for _, e := range events {
		if e.FD == l.wakerObj.FD() {
			l.wakerObj.Consume()
			continue
		}
		l.pending[e.FD] |= e.Mask
	}
	l.pendingMu.Unlock()

	for {
		fd, mask, ok := l.takePending()
		if !ok {
			return
		}
		h, ok := l.handlers.get(fd)
		if !ok {
			// Removed mid-iteration; skip.
			continue
		}
		m := fromBackendMask(mask)
		l.runGuardedHandler(h, fd, m)
		Add(EventsDispatched, 1)
	}
}

func (l *Loop) takePending() (int, backend.Mask, bool) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	for fd, mask := range l.pending {
		delete(l.pending, fd)
		return fd, mask, true
	}
	return 0, 0, false
}

// dropPending removes fd's pending event, if any, called by RemoveHandler
// so a handler that is unregistered mid-dispatch is not invoked afterward.
func (l *Loop) dropPending(fd int) {
	l.pendingMu.Lock()
	delete(l.pending, fd)
	l.pendingMu.Unlock()
}

// runGuarded invokes a zero-arg callback (queued callback or timer) under
// the uniform error guard: a panic is recovered, logged at Error level
// through the configured logger and counted in CallbackPanics instead of
// crashing the loop. There is no separate overridable panic hook; the
// logger is replaced with WithLogger.
func (l *Loop) runGuarded(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			Add(CallbackPanics, 1)
			l.cfg.logger.Errorf("evloop: callback panic: %v", r)
		}
	}()
	cb()
	Add(CallbacksRun, 1)
}

// runGuardedHandler invokes a handler callback under the same guard.
// Broken-pipe errors get no special treatment: HandlerFunc has no error
// return, and every recovered panic, whatever its value, is logged and
// counted like any other. A handler's own I/O errors, broken pipe
// included, are handled inside the handler before it returns.
func (l *Loop) runGuardedHandler(h *handler, fd int, mask EventMask) {
	defer func() {
		if r := recover(); r != nil {
			Add(CallbackPanics, 1)
			l.cfg.logger.Errorf("evloop: handler panic fd=%d: %v", fd, r)
		}
	}()
	h.callback(fd, mask)
	Add(CallbacksRun, 1)
}

// Stop sets the running flag false and wakes the loop so it exits at the
// next safe point (the running-flag check or the return from Wait).
func (l *Loop) Stop() {
	l.stopped.Store(true)
	Add(Wakes, 1)
	if err := l.wakerObj.Wake(); err != nil {
		l.cfg.logger.Debugf("evloop: wake on stop: %v", err)
	}
}

// Close tears the loop down: must only be called when the loop is not
// running. Sets the closing flag, unregisters and closes the waker,
// optionally closes every handler's owning object or raw fd, then closes
// the backend. Idempotent.
func (l *Loop) Close(allFDs bool) error {
	if !l.closed.Begin() {
		return nil
	}
	l.closing.Store(true)
	l.running.Close()

	l.backend.Unregister(l.wakerObj.FD())
	if allFDs {
		l.handlers.forEach(func(h *handler) {
			if c, ok := h.owner.(closer); ok {
				c.Close()
			} else {
				closeFD(h.fd)
			}
		})
	}
	if err := l.wakerObj.Close(); err != nil {
		l.cfg.logger.Debugf("evloop: close waker: %v", err)
	}
	if err := l.backend.Close(); err != nil {
		return err
	}
	if l.antsPoolInst != nil {
		l.antsPoolInst.Release()
	}
	return nil
}

// procPin returns runtime.NumGoroutine(), the number of live goroutines
// when Start begins. The value does not identify the calling goroutine
// and is stored in ownerID for diagnostics only; ownership exclusivity is
// enforced by RunGuard, not by comparing this value.
func procPin() int {
	return runtime.NumGoroutine()
}

// empty reports whether the callback queue currently has nothing pending.
func (q *callbackQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}

// defaultInstance is the package-level default Loop instance, guarded by
// defaultMu, created on demand by Instance and usable for cross-thread
// discovery.
var (
	defaultMu       sync.Mutex
	defaultInstance *Loop
)

// Instance returns the process-wide default Loop, creating one on first
// call.
func Instance() (*Loop, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInstance == nil {
		l, err := New()
		if err != nil {
			return nil, err
		}
		defaultInstance = l
	}
	return defaultInstance, nil
}

// Install sets the process-wide default Loop. Fails if one already exists.
func Install(l *Loop) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInstance != nil {
		return ErrAlreadyRunning
	}
	defaultInstance = l
	return nil
}

// ClearInstance removes the process-wide default Loop, if any.
func ClearInstance() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultInstance = nil
}

// currentKey is the context.Context key MakeCurrent/Current/ClearCurrent
// use. Go has no public per-goroutine storage API (no faithful equivalent
// of a "per-thread slot"), so the ambient "current loop" is modeled as a
// value attached to an explicit context.Context instead — the idiomatic
// Go substitute for a scoped ambient value.
type currentKey struct{}
