// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package mpscqueue provides a lock-free, multi-producer single-consumer
// queue of callbacks, for the one path that must not take a mutex:
// ScheduleFromSignal. It is an intrusive singly-linked stack with CAS push
// and drain-by-reversal pop, so every pushed callback is eventually
// delivered exactly once and in the order it was pushed relative to other
// pushes observed by a single drain (no entry is ever silently dropped or
// overwritten, unlike an overwrite-on-full ring buffer).
package mpscqueue

import "sync/atomic"

type node struct {
	next *node
	fn   func()
}

// Queue is a lock-free stack of pending callbacks. The zero value is a
// valid empty queue.
type Queue struct {
	head atomic.Pointer[node]
}

// Push adds fn to the queue. Safe to call concurrently from any number of
// goroutines, including one invoked synchronously inside a signal handler
// registered via signal.Notify (Go delivers such notifications as regular
// goroutine execution, not as a reentrant interrupt, so this never runs
// inside an actual asynchronous signal frame the way a C signal handler
// would).
func (q *Queue) Push(fn func()) {
	n := &node{fn: fn}
	for {
		old := q.head.Load()
		n.next = old
		if q.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// DrainInto atomically takes the whole current queue and calls fn once per
// callback, in the order they were pushed (oldest first). Concurrent Push
// calls during DrainInto either land in this drain or the next one, never
// both and never neither.
func (q *Queue) DrainInto(fn func(func())) {
	var head *node
	for {
		old := q.head.Load()
		if old == nil {
			return
		}
		if q.head.CompareAndSwap(old, nil) {
			head = old
			break
		}
	}
	// head is a LIFO stack (most recent push first); reverse it so
	// DrainInto delivers in push order.
	var prev *node
	for n := head; n != nil; {
		next := n.next
		n.next = prev
		prev = n
		n = next
	}
	for n := prev; n != nil; n = n.next {
		fn(n.fn)
	}
}

// Empty reports whether the queue currently has no pending callbacks. The
// result can be stale the instant it is returned if producers are
// concurrently pushing; it exists for diagnostics, not synchronization.
func (q *Queue) Empty() bool {
	return q.head.Load() == nil
}
