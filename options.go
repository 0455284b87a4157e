// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import (
	"time"

	"github.com/mcuadros/go-defaults"

	"github.com/evloop-go/evloop/internal/backend"
	"github.com/evloop-go/evloop/log"
)

// BackendKind selects which readiness backend New constructs.
type BackendKind int

// Backend kinds. Auto picks epoll on Linux, kqueue on the BSDs/Darwin,
// select elsewhere.
const (
	BackendAuto BackendKind = iota
	BackendEpoll
	BackendKqueue
	BackendSelect
)

func (k BackendKind) toInternal() backend.Kind {
	switch k {
	case BackendEpoll:
		return backend.Epoll
	case BackendKqueue:
		return backend.Kqueue
	case BackendSelect:
		return backend.Select
	default:
		return backend.Auto
	}
}

// Option configures a Loop at construction time.
type Option struct {
	f func(*config)
}

const defaultPollTimeoutCap = 3600 * time.Second

type config struct {
	backendKind         BackendKind
	logger              log.Logger
	timeSource          func() float64
	pollTimeoutCap      time.Duration
	antsPoolSize        int `default:"-1"`
	blockingThreshold   time.Duration
	onBlockingThreshold func(stack []byte)
}

func (c *config) setDefault() {
	defaults.SetDefaults(c)
	c.logger = log.Default
	c.pollTimeoutCap = defaultPollTimeoutCap
	c.timeSource = func() float64 {
		return float64(time.Now().UnixNano()) / 1e9
	}
}

// WithBackend forces a specific readiness backend instead of Auto.
func WithBackend(kind BackendKind) Option {
	return Option{func(c *config) { c.backendKind = kind }}
}

// WithLogger overrides the logger used for handle_callback_exception
// reporting and other diagnostic output. Defaults to log.Default.
func WithLogger(l log.Logger) Option {
	return Option{func(c *config) { c.logger = l }}
}

// WithTimeSource overrides the function used for time(), in seconds since
// the epoch as a float64. Defaults to the wall clock. Tests substitute a
// controllable source here.
func WithTimeSource(f func() float64) Option {
	return Option{func(c *config) { c.timeSource = f }}
}

// WithPollTimeoutCap overrides the maximum time a single backend Wait call
// blocks when no timer is pending. Defaults to 3600s, matching Tornado's
// _POLL_TIMEOUT.
func WithPollTimeoutCap(d time.Duration) Option {
	return Option{func(c *config) { c.pollTimeoutCap = d }}
}

// WithAntsPoolSize bounds the worker pool backing Go(fn). A size <= 0
// means unbounded, matching ants.NewPool's own convention.
func WithAntsPoolSize(n int) Option {
	return Option{func(c *config) { c.antsPoolSize = n }}
}

// WithBlockingLogThreshold arms the optional watchdog: if more than d
// elapses between the end of one backend Wait and the start of the next
// (i.e. time spent running callbacks/timers/dispatch), cb is invoked with
// a stack trace. No timer is involved: the elapsed time is checked just
// before each Wait, an approximation of Tornado's
// set_blocking_signal_threshold/log_stack. It can only detect blocking
// between iterations, not blocking inside a single long-running user
// callback before that callback returns.
func WithBlockingLogThreshold(d time.Duration, cb func(stack []byte)) Option {
	return Option{func(c *config) {
		c.blockingThreshold = d
		c.onBlockingThreshold = cb
	}}
}
