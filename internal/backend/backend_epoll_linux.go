// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

//go:build linux
// +build linux

package backend

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// rflags/wflags deliberately omit EPOLLET and EPOLLONESHOT: this backend is
// level-triggered for the lifetime of a registration, matching the
// readiness-backend contract.
const (
	rflags = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLPRI
	wflags = unix.EPOLLOUT | unix.EPOLLHUP | unix.EPOLLERR

	defaultEventCount = 128
)

type epollBackend struct {
	fd     int
	events []unix.EpollEvent

	mu     sync.Mutex
	closed bool
}

func newEpoll() (Backend, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &epollBackend{
		fd:     fd,
		events: make([]unix.EpollEvent, defaultEventCount),
	}, nil
}

func maskToEpoll(mask Mask) uint32 {
	var e uint32
	if mask&Read != 0 {
		e |= rflags
	}
	if mask&Write != 0 {
		e |= wflags
	}
	return e
}

func (b *epollBackend) Register(fd int, mask Mask) error {
	ev := unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(b.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.Wrap(os.NewSyscallError("epoll_ctl add", err), "register")
	}
	return nil
}

func (b *epollBackend) Modify(fd int, mask Mask) error {
	ev := unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(b.fd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return errors.Wrap(os.NewSyscallError("epoll_ctl mod", err), "modify")
	}
	return nil
}

func (b *epollBackend) Unregister(fd int) error {
	if err := unix.EpollCtl(b.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
			return nil
		}
		return errors.Wrap(os.NewSyscallError("epoll_ctl del", err), "unregister")
	}
	return nil
}

func (b *epollBackend) Wait(timeout time.Duration) ([]Event, error) {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
		if timeout%time.Millisecond != 0 {
			// Round up: truncating a sub-millisecond timeout to 0 would
			// turn a short, deliberate wait into a busy-poll loop.
			msec++
		}
	}
	n, err := unix.EpollWait(b.fd, b.events, msec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, os.NewSyscallError("epoll_wait", err)
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev := b.events[i]
		var m Mask
		if ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
			m |= Read
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			m |= Write
		}
		if ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0 {
			m |= Error
		}
		out = append(out, Event{FD: int(ev.Fd), Mask: m})
	}
	return out, nil
}

func (b *epollBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return os.NewSyscallError("close", unix.Close(b.fd))
}
