// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

//go:build freebsd || dragonfly || darwin || netbsd || openbsd
// +build freebsd dragonfly darwin netbsd openbsd

package backend

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const defaultKeventCount = 128

type kqueueBackend struct {
	fd     int
	events []unix.Kevent_t

	mu     sync.Mutex
	closed bool
}

func newKqueue() (Backend, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &kqueueBackend{
		fd:     fd,
		events: make([]unix.Kevent_t, defaultKeventCount),
	}, nil
}

func (b *kqueueBackend) Register(fd int, mask Mask) error {
	return b.apply(fd, mask, unix.EV_ADD|unix.EV_ENABLE)
}

func (b *kqueueBackend) Modify(fd int, mask Mask) error {
	// kqueue has no single "replace interest" op; delete then re-add the
	// filters that changed. Deleting a filter that was never added is not
	// an error for EV_DELETE|EV_RECEIPT style calls on BSD kqueue, but to
	// stay portable we just unregister both filters and re-register.
	if err := b.deleteFilters(fd); err != nil {
		return err
	}
	return b.apply(fd, mask, unix.EV_ADD|unix.EV_ENABLE)
}

func (b *kqueueBackend) apply(fd int, mask Mask, flags uint16) error {
	var changes []unix.Kevent_t
	if mask&Read != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if mask&Write != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(b.fd, changes, nil, nil); err != nil {
		return errors.Wrap(os.NewSyscallError("kevent", err), "register/modify")
	}
	return nil
}

func (b *kqueueBackend) deleteFilters(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	// Errors here are expected when a filter was never registered; kqueue
	// reports ENOENT for those, which we ignore.
	unix.Kevent(b.fd, changes, nil, nil)
	return nil
}

func (b *kqueueBackend) Unregister(fd int) error {
	return b.deleteFilters(fd)
}

func (b *kqueueBackend) Wait(timeout time.Duration) ([]Event, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		spec := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &spec
	}
	n, err := unix.Kevent(b.fd, nil, b.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, os.NewSyscallError("kevent", err)
	}
	byFD := make(map[int]Mask, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ev := b.events[i]
		fd := int(ev.Ident)
		if _, ok := byFD[fd]; !ok {
			order = append(order, fd)
		}
		var m Mask
		if ev.Filter == unix.EVFILT_READ {
			m |= Read
		}
		if ev.Filter == unix.EVFILT_WRITE {
			m |= Write
		}
		if ev.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0 {
			m |= Error
		}
		byFD[fd] |= m
	}
	out := make([]Event, 0, len(order))
	for _, fd := range order {
		out = append(out, Event{FD: fd, Mask: byFD[fd]})
	}
	return out, nil
}

func (b *kqueueBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return os.NewSyscallError("close", unix.Close(b.fd))
}
