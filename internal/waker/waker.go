// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package waker provides a self-pipe the loop driver registers with its
// readiness backend so that Schedule, ScheduleFromSignal and cross-thread
// Stop calls can interrupt a blocked Wait.
package waker

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Waker is a one-byte self-pipe. Wake is safe to call concurrently with
// itself and with Consume, any number of times; a pending unconsumed wake
// coalesces additional Wake calls into the same readiness event.
type Waker struct {
	r, w int

	mu     sync.Mutex
	closed bool
}

// New creates a Waker. FD() is the read end to register with a backend for
// Read interest.
func New() (*Waker, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, errors.Wrap(err, "waker: pipe2")
	}
	return &Waker{r: fds[0], w: fds[1]}, nil
}

// FD returns the read end of the pipe, for registration with a backend.
func (k *Waker) FD() int {
	return k.r
}

// Wake writes a single byte, coalescing with any already-pending wake.
// Safe to call from any goroutine, including one invoked from a signal
// handler registered via signal.Notify.
func (k *Waker) Wake() error {
	for {
		_, err := unix.Write(k.w, []byte{0})
		if err == nil {
			return nil
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			// Pipe buffer already holds an unconsumed wake byte; the
			// owner thread will observe it on its next Wait.
			return nil
		}
		return errors.Wrap(err, "waker: write")
	}
}

// Consume drains all pending wake bytes. Call after the backend reports
// the waker's fd as readable.
func (k *Waker) Consume() error {
	buf := make([]byte, 64)
	for {
		_, err := unix.Read(k.r, buf)
		if err == nil {
			continue
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return nil
		}
		return errors.Wrap(err, "waker: read")
	}
}

// Close releases the pipe's file descriptors. Idempotent.
func (k *Waker) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	if err := unix.Close(k.r); err != nil {
		return errors.Wrap(err, "waker: close read")
	}
	if err := unix.Close(k.w); err != nil {
		return errors.Wrap(err, "waker: close write")
	}
	return nil
}
