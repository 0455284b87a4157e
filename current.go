// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import (
	"context"
	"os"
)

// WithLoop attaches l as the "current" loop for ctx, the idiomatic Go
// substitute for the language-neutral spec's per-thread current-loop
// slot: Go has no public per-goroutine storage, so scoping is expressed
// through context.Context instead, exactly the way the rest of the Go
// ecosystem scopes ambient values.
func WithLoop(ctx context.Context, l *Loop) context.Context {
	return context.WithValue(ctx, currentKey{}, l)
}

// Current returns the loop attached to ctx via WithLoop/MakeCurrent, if
// any.
func Current(ctx context.Context) (*Loop, bool) {
	l, ok := ctx.Value(currentKey{}).(*Loop)
	if !ok || l == nil {
		return nil, false
	}
	return l, true
}

// MakeCurrent is a convenience wrapper equivalent to reassigning ctx to
// WithLoop(ctx, l); callers that need the per-call-tree scoping
// context.Context provides should prefer WithLoop directly.
func MakeCurrent(ctx context.Context, l *Loop) context.Context {
	return WithLoop(ctx, l)
}

// ClearCurrent returns a context with no current loop attached, shadowing
// any loop an ancestor context attached.
func ClearCurrent(ctx context.Context) context.Context {
	return context.WithValue(ctx, currentKey{}, (*Loop)(nil))
}

// closeFD closes a raw fd during Close(allFDs=true) for handlers whose
// owner does not implement closer.
func closeFD(fd int) {
	f := os.NewFile(uintptr(fd), "")
	if f != nil {
		f.Close()
	}
}
