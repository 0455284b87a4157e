// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package mpscqueue_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evloop-go/evloop/internal/mpscqueue"
)

func TestPushOrderPreserved(t *testing.T) {
	var q mpscqueue.Queue
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		q.Push(func() { got = append(got, i) })
	}
	q.DrainInto(func(fn func()) { fn() })
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestDrainEmptiesQueue(t *testing.T) {
	var q mpscqueue.Queue
	q.Push(func() {})
	require.False(t, q.Empty())
	q.DrainInto(func(fn func()) { fn() })
	require.True(t, q.Empty())

	var calls int
	q.DrainInto(func(fn func()) { calls++ })
	require.Zero(t, calls)
}

func TestConcurrentPushNoLoss(t *testing.T) {
	var q mpscqueue.Queue
	const producers = 16
	const perProducer = 200

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0

	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(func() {
					mu.Lock()
					count++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()

	q.DrainInto(func(fn func()) { fn() })
	require.Equal(t, producers*perProducer, count)
}
