// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evloop-go/evloop/internal/lifecycle"
)

func TestRunGuardExcludesConcurrentBegin(t *testing.T) {
	var g lifecycle.RunGuard
	require.True(t, g.Begin())
	require.False(t, g.Begin())
	g.End()
	require.True(t, g.Begin())
	g.End()
}

func TestRunGuardCloseBlocksFutureBegin(t *testing.T) {
	var g lifecycle.RunGuard
	require.True(t, g.Begin())
	g.End()
	g.Close()
	require.False(t, g.Begin())
	require.True(t, g.Closed())
}

func TestCloseGuardOnlyFirstWins(t *testing.T) {
	var g lifecycle.CloseGuard
	require.True(t, g.Begin())
	require.False(t, g.Begin())
	require.True(t, g.Done())
}
