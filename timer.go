// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import (
	"container/heap"
	"time"
)

// timerEntry is one heap slot. A nil cb marks a tombstone: the timer was
// cancelled and is collected lazily rather than removed from the heap
// immediately, keeping RemoveTimeout O(1).
type timerEntry struct {
	deadline   float64
	tiebreaker uint64
	cb         func()
	index      int // maintained by container/heap for O(log n) Remove, unused here
}

// Timeout is an opaque handle returned by timer-scheduling calls, passed
// to RemoveTimeout to cancel.
type Timeout struct {
	entry *timerEntry
}

// timerHeap is a container/heap min-heap ordered lexicographically on
// (deadline, tiebreaker), so timers with equal deadlines fire in insertion
// order.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].tiebreaker < h[j].tiebreaker
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// tombstoneGCThreshold and the half-the-heap ratio checked in
// gcTombstonesIfNeeded gate the heap rebuild: both conditions must hold,
// per spec, so a heap with only a handful of cancellations never pays a
// rebuild.
const tombstoneGCThreshold = 512

// CallAt schedules cb to run once the loop's time source reaches deadline
// (seconds since the epoch). Returns a handle for RemoveTimeout.
func (l *Loop) CallAt(deadline float64, cb func()) Timeout {
	l.timerTiebreaker++
	e := &timerEntry{deadline: deadline, tiebreaker: l.timerTiebreaker, cb: cb}
	heap.Push(&l.timers, e)
	return Timeout{entry: e}
}

// CallLater schedules cb to run after delaySeconds elapse from now.
func (l *Loop) CallLater(delaySeconds float64, cb func()) Timeout {
	return l.CallAt(l.Time()+delaySeconds, cb)
}

// AddTimeout schedules cb against whenOrDelta, which is either a float64
// absolute deadline (seconds since the epoch, as CallAt takes) or a
// time.Duration relative delay (as CallLater takes, resolved against
// l.Time() at the moment AddTimeout is called). Any other type returns
// ErrUnsupportedDeadline and a zero Timeout.
func (l *Loop) AddTimeout(whenOrDelta interface{}, cb func()) (Timeout, error) {
	switch v := whenOrDelta.(type) {
	case float64:
		return l.CallAt(v, cb), nil
	case time.Duration:
		return l.CallLater(v.Seconds(), cb), nil
	default:
		return Timeout{}, ErrUnsupportedDeadline
	}
}

// RemoveTimeout cancels a pending timer in O(1) by tombstoning its entry;
// the slot is physically removed from the heap later, either by GC or by
// naturally reaching the front and being skipped.
func (l *Loop) RemoveTimeout(t Timeout) {
	if t.entry == nil || t.entry.cb == nil {
		return
	}
	t.entry.cb = nil
	l.cancellationCount++
}

// gcTombstonesIfNeeded rebuilds the heap omitting tombstoned entries when
// cancellations are both more than tombstoneGCThreshold and more than half
// the heap, amortizing the cost of cleanup.
func (l *Loop) gcTombstonesIfNeeded() {
	if l.cancellationCount <= tombstoneGCThreshold {
		return
	}
	if l.cancellationCount <= len(l.timers)/2 {
		return
	}
	live := make(timerHeap, 0, len(l.timers))
	for _, e := range l.timers {
		if e.cb != nil {
			live = append(live, e)
		}
	}
	l.timers = live
	heap.Init(&l.timers)
	Add(TombstonesGCed, uint64(l.cancellationCount))
	l.cancellationCount = 0
}

// collectDueTimers pops tombstones (discarding them) and due entries
// (deadline <= now) off the heap top, in that mixed order, until the top
// is neither, then runs the tombstone-GC check.
func (l *Loop) collectDueTimers(now float64) []func() {
	var due []func()
	for l.timers.Len() > 0 {
		top := l.timers[0]
		if top.cb == nil {
			heap.Pop(&l.timers)
			l.cancellationCount--
			continue
		}
		if top.deadline > now {
			break
		}
		heap.Pop(&l.timers)
		due = append(due, top.cb)
	}
	l.gcTombstonesIfNeeded()
	return due
}

// nextDeadline reports the deadline at the heap top, if any.
// collectDueTimers pops tombstones off the top in step 2, but callbacks
// and timers run in step 3 can cancel the new top before nextDeadline is
// called in step 4; the deadline reported is then a tombstone's, and the
// loop only wakes earlier than needed.
func (l *Loop) nextDeadline() (float64, bool) {
	if l.timers.Len() == 0 {
		return 0, false
	}
	return l.timers[0].deadline, true
}
