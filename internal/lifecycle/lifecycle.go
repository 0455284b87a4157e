// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package lifecycle provides the concurrency guards the Loop driver uses
// to enforce its state machine: Start must fail fast rather than block if
// the loop is already running, and Close must be safe to call more than
// once or concurrently with Start/Stop.
package lifecycle

import (
	"runtime"
	"sync/atomic"

	goatomic "go.uber.org/atomic"
)

const (
	unlocked = 0
	locked   = 1
)

// spinlock is a CAS exclusion lock. The zero value is unlocked.
type spinlock uint32

func (l *spinlock) lock() {
	for !atomic.CompareAndSwapUint32((*uint32)(l), unlocked, locked) {
		runtime.Gosched()
	}
}

func (l *spinlock) unlock() {
	atomic.StoreUint32((*uint32)(l), unlocked)
}

func (l *spinlock) tryLock() bool {
	return atomic.CompareAndSwapUint32((*uint32)(l), unlocked, locked)
}

// RunGuard enforces "at most one active run at a time, and never again
// after Close": Begin fails immediately (not blocking) if a run is already
// in progress or the guard has been closed, matching Start's
// non-blocking AlreadyRunning contract.
type RunGuard struct {
	l      spinlock
	closed goatomic.Bool
}

// Begin reports whether the caller may proceed; on false, the caller must
// not call End.
func (g *RunGuard) Begin() bool {
	if !g.l.tryLock() {
		return false
	}
	if g.closed.Load() {
		g.l.unlock()
		return false
	}
	return true
}

// End releases the run acquired by a successful Begin.
func (g *RunGuard) End() {
	g.l.unlock()
}

// Close permanently prevents future Begin calls from succeeding. Safe to
// call even while a run is in progress; the in-progress run completes
// normally and its End still releases the lock.
func (g *RunGuard) Close() {
	g.l.lock()
	g.closed.Store(true)
	g.l.unlock()
}

// Closed reports whether Close has been called.
func (g *RunGuard) Closed() bool {
	return g.closed.Load()
}

// CloseGuard makes an idempotent teardown action run exactly once.
type CloseGuard struct {
	done goatomic.Bool
}

// Begin reports whether this call is the one that should run the teardown
// action. Only the first caller across all goroutines gets true.
func (g *CloseGuard) Begin() bool {
	return g.done.CAS(false, true)
}

// Done reports whether the teardown action has already run (or is
// running).
func (g *CloseGuard) Done() bool {
	return g.done.Load()
}
