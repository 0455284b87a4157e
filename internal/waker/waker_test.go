// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package waker_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/evloop-go/evloop/internal/waker"
)

func TestWakeConsume(t *testing.T) {
	k, err := waker.New()
	require.NoError(t, err)
	defer k.Close()

	require.NoError(t, k.Wake())
	require.NoError(t, k.Wake())
	require.NoError(t, k.Wake())

	require.NoError(t, k.Consume())

	// a second Consume with nothing pending must not block.
	require.NoError(t, k.Consume())
}

func TestWakeCoalesces(t *testing.T) {
	k, err := waker.New()
	require.NoError(t, err)
	defer k.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, k.Wake())
	}

	buf := make([]byte, 8)
	n, err := unix.Read(k.FD(), buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
}

func TestCloseIdempotent(t *testing.T) {
	k, err := waker.New()
	require.NoError(t, err)
	require.NoError(t, k.Close())
	require.NoError(t, k.Close())
}
