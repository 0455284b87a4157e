// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import (
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Future is the capability the loop bridges into its callback world: it
// observes completion of an external promise and schedules a callback on
// the loop thread. No assumption is made about how the underlying promise
// primitive is built beyond this interface.
type Future interface {
	// OnComplete registers cb to run when the future completes. If the
	// future is already complete, cb runs (synchronously or not, at the
	// future's discretion) with no further guarantee beyond "eventually".
	OnComplete(cb func(Future))
	// Done reports whether the future has completed.
	Done() bool
	// Result returns the future's value and error once Done is true; the
	// zero value and nil before that.
	Result() (interface{}, error)
}

// basicFuture is a minimal Future implementation used by Go and by
// RunSync's result wrapper.
type basicFuture struct {
	mu       sync.Mutex
	done     bool
	value    interface{}
	err      error
	onComplete []func(Future)
}

func newBasicFuture() *basicFuture {
	return &basicFuture{}
}

func completedFuture(value interface{}, err error) *basicFuture {
	return &basicFuture{done: true, value: value, err: err}
}

func (f *basicFuture) complete(value interface{}, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.value, f.err = value, err
	callbacks := f.onComplete
	f.onComplete = nil
	f.mu.Unlock()
	for _, cb := range callbacks {
		cb(f)
	}
}

func (f *basicFuture) OnComplete(cb func(Future)) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		cb(f)
		return
	}
	f.onComplete = append(f.onComplete, cb)
	f.mu.Unlock()
}

func (f *basicFuture) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *basicFuture) Result() (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// AddFuture arranges that when future completes, the loop schedules
// cb(future). Because a future's completion notification may fire from
// any thread, the bridge always routes through Schedule so cb runs on the
// loop thread, never inline on whatever goroutine completed the future.
func (l *Loop) AddFuture(future Future, cb func(Future)) {
	future.OnComplete(func(f Future) {
		l.Schedule(func() { cb(f) })
	})
}

// antsPool lazily constructs the worker pool backing Go(fn), sized per
// WithAntsPoolSize (default: unbounded, ants' own convention for size<=0).
func (l *Loop) antsPool() (*ants.Pool, error) {
	l.antsOnce.Do(func() {
		l.antsPoolInst, l.antsPoolErr = ants.NewPool(l.cfg.antsPoolSize)
	})
	return l.antsPoolInst, l.antsPoolErr
}

// Go submits fn to the loop's ants worker pool (unbounded unless
// WithAntsPoolSize sets a positive size) and returns a Future that
// completes via Schedule once fn returns — the one sanctioned way work
// leaves the owner thread and rejoins it: the pool worker runs fn, never a
// registered callback, preserving the single-owner-thread dispatch
// guarantee for everything Start/Stop/handler dispatch touches.
func (l *Loop) Go(fn func() (interface{}, error)) (Future, error) {
	pool, err := l.antsPool()
	if err != nil {
		return nil, err
	}
	f := newBasicFuture()
	if err := pool.Submit(func() {
		value, err := fn()
		l.Schedule(func() { f.complete(value, err) })
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// RunSync invokes f on the calling goroutine and then starts the loop; f
// itself does not run on the loop, and an error from f is returned before
// the loop starts. If f returns a Future, RunSync waits for it to
// complete; a nil Future is replaced by an already-completed one.
// When the future completes, the loop is stopped. If timeout is positive,
// a stop-timer is armed and disarmed afterward. After the loop exits, if
// the future is still incomplete, RunSync returns ErrOperationTimedOut;
// otherwise it returns the future's stored result or error.
func (l *Loop) RunSync(f func() (Future, error), timeout time.Duration) (interface{}, error) {
	fut, ferr := f()
	if ferr != nil {
		return nil, ferr
	}
	if fut == nil {
		fut = completedFuture(nil, nil)
	}

	var timeoutHandle Timeout
	var timeoutArmed bool
	if timeout > 0 {
		timeoutHandle = l.CallLater(timeout.Seconds(), l.Stop)
		timeoutArmed = true
	}

	l.AddFuture(fut, func(Future) { l.Stop() })

	if err := l.Start(); err != nil {
		return nil, err
	}

	if timeoutArmed {
		l.RemoveTimeout(timeoutHandle)
	}

	if !fut.Done() {
		return nil, ErrOperationTimedOut
	}
	return fut.Result()
}
