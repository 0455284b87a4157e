// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evloop-go/evloop"
)

// These tests run the loop against the real wall clock with short periods;
// the catch-up behavior depends on genuine elapsed time between iterations,
// which a substituted time source cannot simulate without also simulating
// backend.Wait's blocking.

func TestPeriodicFiresRepeatedly(t *testing.T) {
	l := newTestLoop(t)
	var ticks atomic.Int32

	p := evloop.NewPeriodic(l, 0.02, func() {
		if ticks.Add(1) >= 3 {
			l.Stop()
		}
	})
	p.Start()
	require.True(t, p.IsRunning())

	done := make(chan struct{})
	go func() {
		l.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("periodic callback did not fire enough times")
	}
	assert.GreaterOrEqual(t, ticks.Load(), int32(3))
}

func TestPeriodicCatchesUpWithoutBursting(t *testing.T) {
	l := newTestLoop(t)
	var ticks atomic.Int32

	p := evloop.NewPeriodic(l, 0.02, func() {
		n := ticks.Add(1)
		if n == 1 {
			// Block the owner thread well past several period boundaries;
			// the next fire must catch up in one jump, not fire once per
			// missed period.
			time.Sleep(150 * time.Millisecond)
			return
		}
		l.Stop()
	})
	p.Start()

	done := make(chan struct{})
	go func() {
		l.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, int32(2), ticks.Load())
}

func TestPeriodicStopPreventsFurtherFires(t *testing.T) {
	l := newTestLoop(t)
	var ticks atomic.Int32
	var p *evloop.Periodic
	p = evloop.NewPeriodic(l, 0.02, func() {
		ticks.Add(1)
		p.Stop()
		l.CallLater(0.02, l.Stop)
	})
	p.Start()

	done := make(chan struct{})
	go func() {
		l.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, int32(1), ticks.Load())
	assert.False(t, p.IsRunning())
}
