// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evloop-go/evloop"
)

func TestStopBeforeStartReturnsImmediately(t *testing.T) {
	l := newTestLoop(t)
	l.Stop()

	done := make(chan struct{})
	go func() {
		l.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after a pre-emptive Stop")
	}
}

func TestConcurrentStartRejected(t *testing.T) {
	l := newTestLoop(t)
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Schedule(func() { close(started) })
		l.Start()
	}()
	<-started

	err := l.Start()
	assert.ErrorIs(t, err, evloop.ErrAlreadyRunning)

	l.Stop()
	wg.Wait()
}

func TestEchoHandlerDispatchesOnReadable(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	received := make(chan []byte, 1)
	require.NoError(t, l.AddHandler(r, func(fd int, mask evloop.EventMask) {
		defer r.Close()
		buf := make([]byte, 64)
		n, _ := r.Read(buf)
		received <- buf[:n]
		l.Stop()
	}, evloop.Read))

	_, err = w.Write([]byte("ping"))
	require.NoError(t, err)

	require.NoError(t, l.Start())
	select {
	case got := <-received:
		assert.Equal(t, "ping", string(got))
	default:
		t.Fatal("handler was not dispatched")
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	before := evloop.Get(evloop.CallbackPanics)
	require.NoError(t, l.AddHandler(r, func(fd int, mask evloop.EventMask) {
		l.RemoveHandler(fd)
		l.Stop()
		panic("boom")
	}, evloop.Read))

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	require.NoError(t, l.Start())
	after := evloop.Get(evloop.CallbackPanics)
	assert.Greater(t, after, before)
}

func TestCloseIsIdempotent(t *testing.T) {
	l, err := evloop.New()
	require.NoError(t, err)
	require.NoError(t, l.Close(false))
	require.NoError(t, l.Close(false))
}

func TestInstanceSingleton(t *testing.T) {
	evloop.ClearInstance()
	defer evloop.ClearInstance()

	a, err := evloop.Instance()
	require.NoError(t, err)
	b, err := evloop.Instance()
	require.NoError(t, err)
	assert.Same(t, a, b)
}
