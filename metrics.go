// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import "go.uber.org/atomic"

// Metric indices for Add/Get.
const (
	CallbacksRun = iota
	TimersFired
	TombstonesGCed
	EventsDispatched
	BackendWaits
	BackendWaitsNonBlocking
	Wakes
	CallbackPanics
	metricsMax
)

var globalMetrics [metricsMax]atomic.Uint64

// Add adds delta to the named metric counter.
func Add(name int, delta uint64) {
	if name < 0 || name >= metricsMax {
		return
	}
	globalMetrics[name].Add(delta)
}

// Get returns the current value of the named metric counter.
func Get(name int) uint64 {
	if name < 0 || name >= metricsMax {
		return 0
	}
	return globalMetrics[name].Load()
}

// GetAll returns a snapshot of every metric counter.
func GetAll() [metricsMax]uint64 {
	var out [metricsMax]uint64
	for i := range globalMetrics {
		out[i] = globalMetrics[i].Load()
	}
	return out
}
