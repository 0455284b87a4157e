// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package evloop

import (
	"github.com/cornelk/hashmap"
)

// handlerTable is the fd -> handler index. A concurrent map is used so
// read-only diagnostic access (IsRegistered, Lookup) never contends with
// the owner thread's dispatch loop, even though spec-level mutation is
// owner-thread-only.
type handlerTable struct {
	m *hashmap.Map[int, *handler]
}

func newHandlerTable() *handlerTable {
	return &handlerTable{m: hashmap.New[int, *handler]()}
}

func (t *handlerTable) get(fd int) (*handler, bool) {
	return t.m.Get(fd)
}

func (t *handlerTable) insert(h *handler) {
	t.m.Set(h.fd, h)
}

func (t *handlerTable) remove(fd int) {
	t.m.Del(fd)
}

func (t *handlerTable) len() int {
	return t.m.Len()
}

func (t *handlerTable) forEach(fn func(*handler)) {
	t.m.Range(func(_ int, h *handler) bool {
		fn(h)
		return true
	})
}

// normalizeHandler extracts the raw fd from either an int or an fd-like
// owner object, recording the owner so Close(allFDs=true) can close the
// original object (preserving any buffered state) instead of just the raw
// descriptor.
func normalizeHandler(fdOrFilelike interface{}, cb HandlerFunc, mask EventMask) *handler {
	switch v := fdOrFilelike.(type) {
	case int:
		return &handler{fd: v, owner: nil, callback: cb, mask: mask}
	case fder:
		return &handler{fd: int(v.Fd()), owner: v, callback: cb, mask: mask}
	default:
		return &handler{fd: -1, owner: v, callback: cb, mask: mask}
	}
}

// AddHandler registers cb to be invoked with the observed event mask
// whenever fdOrFilelike becomes ready for any bit in mask (Error is always
// implicitly included). fdOrFilelike may be a raw fd (int) or any object
// satisfying an Fd() uintptr method (e.g. *os.File). Returns
// ErrAlreadyRegistered if the fd already has a handler.
func (l *Loop) AddHandler(fdOrFilelike interface{}, cb HandlerFunc, mask EventMask) error {
	h := normalizeHandler(fdOrFilelike, cb, mask)
	if h.fd < 0 {
		return errNotAnFD
	}
	if _, ok := l.handlers.get(h.fd); ok {
		return ErrAlreadyRegistered
	}
	if err := l.backend.Register(h.fd, toBackendMask(mask)); err != nil {
		return err
	}
	l.handlers.insert(h)
	return nil
}

// UpdateHandler changes fd's interest mask; the callback is unchanged.
// Returns ErrNotRegistered if fd has no handler.
func (l *Loop) UpdateHandler(fd int, mask EventMask) error {
	h, ok := l.handlers.get(fd)
	if !ok {
		return ErrNotRegistered
	}
	if err := l.backend.Modify(fd, toBackendMask(mask)); err != nil {
		return err
	}
	h.mask = mask
	l.handlers.insert(h)
	return nil
}

// RemoveHandler deletes fd's handler, drops any pending event for fd from
// this iteration's pending-events map, and unregisters fd from the
// backend. Idempotent: removing an fd with no handler is not an error, and
// backend unregister errors are swallowed (the fd may already be closed).
func (l *Loop) RemoveHandler(fd int) error {
	l.handlers.remove(fd)
	l.dropPending(fd)
	if err := l.backend.Unregister(fd); err != nil {
		l.cfg.logger.Debugf("evloop: backend unregister fd=%d: %v", fd, err)
	}
	return nil
}

// Lookup returns a read-only snapshot of fd's handler, for diagnostics.
func (l *Loop) Lookup(fd int) (Handler, bool) {
	h, ok := l.handlers.get(fd)
	if !ok {
		return Handler{}, false
	}
	return Handler{FD: h.fd, Owner: h.owner, Mask: h.mask}, true
}

// IsRegistered reports whether fd currently has a handler.
func (l *Loop) IsRegistered(fd int) bool {
	_, ok := l.handlers.get(fd)
	return ok
}
