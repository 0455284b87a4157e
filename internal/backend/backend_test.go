// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package backend_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evloop-go/evloop/internal/backend"
)

func kinds(t *testing.T) []backend.Kind {
	t.Helper()
	ks := []backend.Kind{backend.Auto}
	if _, err := backend.New(backend.Epoll); err == nil {
		ks = append(ks, backend.Epoll)
	}
	if _, err := backend.New(backend.Select); err == nil {
		ks = append(ks, backend.Select)
	}
	return ks
}

func TestBackendReadReady(t *testing.T) {
	for _, kind := range kinds(t) {
		kind := kind
		t.Run("", func(t *testing.T) {
			b, err := backend.New(kind)
			require.NoError(t, err)
			defer b.Close()

			r, w, err := os.Pipe()
			require.NoError(t, err)
			defer r.Close()
			defer w.Close()

			rfd := int(r.Fd())
			require.NoError(t, b.Register(rfd, backend.Read))

			_, err = w.Write([]byte("x"))
			require.NoError(t, err)

			events, err := b.Wait(time.Second)
			require.NoError(t, err)
			require.NotEmpty(t, events)
			found := false
			for _, e := range events {
				if e.FD == rfd {
					found = true
					require.NotZero(t, e.Mask&backend.Read)
				}
			}
			require.True(t, found)
		})
	}
}

func TestBackendWaitTimeout(t *testing.T) {
	for _, kind := range kinds(t) {
		kind := kind
		t.Run("", func(t *testing.T) {
			b, err := backend.New(kind)
			require.NoError(t, err)
			defer b.Close()

			r, w, err := os.Pipe()
			require.NoError(t, err)
			defer r.Close()
			defer w.Close()

			require.NoError(t, b.Register(int(r.Fd()), backend.Read))

			start := time.Now()
			events, err := b.Wait(50 * time.Millisecond)
			require.NoError(t, err)
			require.Empty(t, events)
			require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
		})
	}
}

func TestBackendUnregister(t *testing.T) {
	for _, kind := range kinds(t) {
		kind := kind
		t.Run("", func(t *testing.T) {
			b, err := backend.New(kind)
			require.NoError(t, err)
			defer b.Close()

			r, w, err := os.Pipe()
			require.NoError(t, err)
			defer r.Close()
			defer w.Close()

			rfd := int(r.Fd())
			require.NoError(t, b.Register(rfd, backend.Read))
			require.NoError(t, b.Unregister(rfd))

			_, err = w.Write([]byte("x"))
			require.NoError(t, err)

			events, err := b.Wait(50 * time.Millisecond)
			require.NoError(t, err)
			for _, e := range events {
				require.NotEqual(t, rfd, e.FD)
			}
		})
	}
}
