// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import "github.com/evloop-go/evloop/internal/backend"

// EventMask is a bitset over {Read, Write, Error}. Error is implicitly
// registered with every handler regardless of the mask passed to
// AddHandler/UpdateHandler.
type EventMask uint8

// Event mask constants.
const (
	None  EventMask = 0
	Read  EventMask = 1 << iota
	Write
	Error
)

func (m EventMask) String() string {
	if m == None {
		return "NONE"
	}
	s := ""
	if m&Read != 0 {
		s += "R"
	}
	if m&Write != 0 {
		s += "W"
	}
	if m&Error != 0 {
		s += "E"
	}
	return s
}

func toBackendMask(m EventMask) backend.Mask {
	var b backend.Mask
	if m&Read != 0 {
		b |= backend.Read
	}
	if m&Write != 0 {
		b |= backend.Write
	}
	return b
}

func fromBackendMask(b backend.Mask) EventMask {
	var m EventMask
	if b&backend.Read != 0 {
		m |= Read
	}
	if b&backend.Write != 0 {
		m |= Write
	}
	if b&backend.Error != 0 {
		m |= Error
	}
	return m
}

// HandlerFunc is invoked once per dispatch with the ready fd and the
// observed event mask (which always includes Error when the fd hung up or
// errored, even if not requested).
type HandlerFunc func(fd int, mask EventMask)

// fder is satisfied by types exposing a raw file descriptor, the
// conventional shape used by os.File and similar.
type fder interface {
	Fd() uintptr
}

// closer is satisfied by any owner object AddHandler normalizes from,
// so Close(allFDs=true) can close the object itself (preserving any
// buffered state) rather than just the raw fd.
type closer interface {
	Close() error
}

// handler is the internal handler-table record; Handler is its read-only
// external view.
type handler struct {
	fd       int
	owner    interface{}
	callback HandlerFunc
	mask     EventMask
}

// Handler is a read-only snapshot of a registered handler, returned by
// diagnostic lookups.
type Handler struct {
	FD    int
	Owner interface{}
	Mask  EventMask
}
