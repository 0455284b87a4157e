// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package backend provides the readiness-backend abstraction the loop
// driver polls: a pluggable, level-triggered multiplexer over file
// descriptors. Implementations never set edge-triggered or one-shot flags.
package backend

import (
	"runtime"
	"time"

	"github.com/pkg/errors"
)

// Mask is a bitset of the events a caller is interested in, or, on the
// return path from Wait, the events observed ready.
type Mask uint8

// Event bits. Error is only ever produced by Wait; it cannot be requested
// via Register/Modify.
const (
	Read Mask = 1 << iota
	Write
	Error
)

// Event reports the fd and the readiness bits observed for it.
type Event struct {
	FD   int
	Mask Mask
}

// Backend is the minimal contract a readiness multiplexer must satisfy.
// All methods are called from the loop's single owner goroutine except
// where noted.
type Backend interface {
	// Register begins monitoring fd for the given mask. It is an error to
	// register an fd twice without an intervening Unregister.
	Register(fd int, mask Mask) error
	// Modify changes the interest mask for an already-registered fd.
	Modify(fd int, mask Mask) error
	// Unregister stops monitoring fd. It is not an error to unregister an
	// fd that was never registered; implementations treat it as a no-op.
	Unregister(fd int) error
	// Wait blocks until at least one registered fd is ready, the timeout
	// elapses, or Close is called from another goroutine, whichever comes
	// first. timeout < 0 means block indefinitely. A returned empty slice
	// with a nil error means no registered fd was reported ready: the
	// timeout elapsed or the wait was interrupted (EINTR).
	Wait(timeout time.Duration) ([]Event, error)
	// Close releases the backend's kernel resources. Wait must return
	// promptly afterward.
	Close() error
}

// Kind selects which Backend implementation New constructs.
type Kind int

const (
	// Auto picks epoll on Linux, kqueue on the BSDs/Darwin, and select
	// everywhere else.
	Auto Kind = iota
	Epoll
	Kqueue
	Select
)

// ErrUnsupported is returned by New when the requested Kind has no
// implementation on the current platform.
var ErrUnsupported = errors.New("backend: unsupported on this platform")

// New constructs a Backend of the requested Kind.
func New(kind Kind) (Backend, error) {
	switch kind {
	case Auto:
		return newAuto()
	case Epoll:
		return newEpoll()
	case Kqueue:
		return newKqueue()
	case Select:
		return newSelect()
	default:
		return nil, errors.Errorf("backend: unknown kind %d", kind)
	}
}

// newAuto picks the native backend for the current platform, falling back
// to the portable select-based one.
func newAuto() (Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return newEpoll()
	case "darwin", "freebsd", "netbsd", "openbsd", "dragonfly":
		return newKqueue()
	default:
		return newSelect()
	}
}
