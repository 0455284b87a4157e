// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import "errors"

// Errors returned by the public API. Callers should compare against these
// with errors.Is; internal wrapping uses github.com/pkg/errors so the
// original call site survives in %+v output.
var (
	// ErrAlreadyRegistered is returned by AddHandler when the fd already
	// has a handler installed.
	ErrAlreadyRegistered = errors.New("evloop: fd already registered")

	// ErrNotRegistered is returned by UpdateHandler/RemoveHandler when the
	// fd has no handler installed.
	ErrNotRegistered = errors.New("evloop: fd not registered")

	// ErrAlreadyRunning is returned by Start when the loop is already
	// running on another goroutine.
	ErrAlreadyRunning = errors.New("evloop: loop already running")

	// ErrLoopClosing is returned by operations attempted after Close has
	// been called.
	ErrLoopClosing = errors.New("evloop: loop is closing")

	// ErrOperationTimedOut is returned by RunSync when the timeout elapses
	// before the future completes.
	ErrOperationTimedOut = errors.New("evloop: operation timed out")

	// ErrUnsupportedDeadline is returned by AddTimeout when its deadline
	// argument is neither a float64 nor a time.Duration. Float values are
	// not range-checked.
	ErrUnsupportedDeadline = errors.New("evloop: unsupported deadline")
)

// errNotAnFD is returned by AddHandler when given an owner object that is
// neither an int fd nor something exposing Fd() uintptr.
var errNotAnFD = errors.New("evloop: value has no file descriptor")
