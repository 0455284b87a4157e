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

func TestScheduleRunsOnNextIteration(t *testing.T) {
	l := newTestLoop(t)
	var ran atomic.Bool
	require.NoError(t, l.Schedule(func() {
		ran.Store(true)
		l.Stop()
	}))
	require.NoError(t, l.Start())
	assert.True(t, ran.Load())
}

func TestScheduleFromSignalOffOwnerThread(t *testing.T) {
	l := newTestLoop(t)
	var ran atomic.Bool
	require.NoError(t, l.ScheduleFromSignal(func() {
		ran.Store(true)
		l.Stop()
	}))
	require.NoError(t, l.Start())
	assert.True(t, ran.Load())
}

func TestScheduleCrossGoroutineWakesLoop(t *testing.T) {
	l := newTestLoop(t)
	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Schedule(func() {
			close(done)
			l.Stop()
		})
	}()
	require.NoError(t, l.Start())
	select {
	case <-done:
	default:
		t.Fatal("schedule callback did not run before Start returned")
	}
}

func TestScheduleAfterCloseFails(t *testing.T) {
	l, err := evloop.New()
	require.NoError(t, err)
	require.NoError(t, l.Close(false))
	err = l.Schedule(func() {})
	assert.ErrorIs(t, err, evloop.ErrLoopClosing)
}
