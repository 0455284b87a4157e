// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import "math"

// Periodic repeatedly schedules cb on a fixed period against a loop's
// timer heap, catching up rather than bursting when the loop falls
// behind: if more than one period has elapsed since the last fire, the
// next fire time jumps forward to the next period boundary instead of
// replaying every missed tick back-to-back.
type Periodic struct {
	loop   *Loop
	cb     func()
	period float64

	running bool
	next    float64
	handle  Timeout
}

// NewPeriodic constructs a Periodic bound to loop, firing cb every period
// seconds once Start is called. period must be positive.
func NewPeriodic(loop *Loop, period float64, cb func()) *Periodic {
	return &Periodic{loop: loop, cb: cb, period: period}
}

// Start arms the first fire, one period from now. No-op if already
// running.
func (p *Periodic) Start() {
	if p.running {
		return
	}
	p.running = true
	p.scheduleNext(p.loop.Time() + p.period)
}

// Stop disarms the next scheduled fire, if any. Safe to call whether or
// not Start was ever called.
func (p *Periodic) Stop() {
	if !p.running {
		return
	}
	p.running = false
	p.loop.RemoveTimeout(p.handle)
}

// IsRunning reports whether the periodic callback is currently armed.
func (p *Periodic) IsRunning() bool {
	return p.running
}

func (p *Periodic) scheduleNext(deadline float64) {
	p.next = deadline
	p.handle = p.loop.CallAt(deadline, p.fire)
}

// fire runs cb once, then re-arms against the next period boundary at or
// after now, catching up in a single jump — per spec §4.7 — rather than
// firing once per missed period.
func (p *Periodic) fire() {
	if !p.running {
		return
	}
	p.cb()
	if !p.running {
		// cb called Stop.
		return
	}

	now := p.loop.Time()
	next := p.next + p.period
	if next <= now {
		missed := math.Floor((now-p.next)/p.period) + 1
		next = p.next + missed*p.period
	}
	p.scheduleNext(next)
}
