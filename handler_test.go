// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evloop-go/evloop"
)

func newTestLoop(t *testing.T) *evloop.Loop {
	t.Helper()
	l, err := evloop.New()
	require.NoError(t, err)
	t.Cleanup(func() { l.Close(false) })
	return l
}

func TestAddHandlerRejectsDuplicate(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	require.NoError(t, l.AddHandler(r, func(int, evloop.EventMask) {}, evloop.Read))
	err = l.AddHandler(r, func(int, evloop.EventMask) {}, evloop.Read)
	assert.ErrorIs(t, err, evloop.ErrAlreadyRegistered)
}

func TestUpdateHandlerRequiresRegistration(t *testing.T) {
	l := newTestLoop(t)
	err := l.UpdateHandler(99, evloop.Read)
	assert.ErrorIs(t, err, evloop.ErrNotRegistered)
}

func TestRemoveHandlerIdempotent(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	require.NoError(t, l.AddHandler(r, func(int, evloop.EventMask) {}, evloop.Read))
	require.NoError(t, l.RemoveHandler(int(r.Fd())))
	// Removing again is not an error.
	require.NoError(t, l.RemoveHandler(int(r.Fd())))
	assert.False(t, l.IsRegistered(int(r.Fd())))
}

func TestLookupReturnsSnapshot(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	require.NoError(t, l.AddHandler(r, func(int, evloop.EventMask) {}, evloop.Read))
	h, ok := l.Lookup(int(r.Fd()))
	require.True(t, ok)
	assert.Equal(t, int(r.Fd()), h.FD)
	assert.Equal(t, evloop.Read, h.Mask)
}

func TestAddHandlerRawFD(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	require.NoError(t, l.AddHandler(int(r.Fd()), func(int, evloop.EventMask) {}, evloop.Read))
	assert.True(t, l.IsRegistered(int(r.Fd())))
}
