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
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// fdBits is the word width of unix.FdSet.Bits on linux, used to compute
// the word/bit-within-word indices fd_set's own macros use.
const fdBits = 64

func fdSetSet(set *unix.FdSet, fd int) {
	set.Bits[fd/fdBits] |= 1 << uint(fd%fdBits)
}

func fdSetIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/fdBits]&(1<<uint(fd%fdBits)) != 0
}

// selectBackend is the portable fallback: a plain select(2) loop. It is
// O(maxfd) per Wait call, unlike epoll/kqueue, but requires nothing beyond
// what every unix-like platform supports. This implementation builds on
// linux only, where newAuto picks epoll, so it is used only when forced
// via WithBackend(Select); on other platforms newSelect is the stub in
// backend_select_other.go, which returns ErrUnsupported.
type selectBackend struct {
	mu       sync.Mutex
	interest map[int]Mask
	closed   bool

	wakeR, wakeW int
}

func newSelect() (Backend, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, errors.Wrap(err, "select: pipe2")
	}
	return &selectBackend{
		interest: make(map[int]Mask),
		wakeR:    fds[0],
		wakeW:    fds[1],
	}, nil
}

func (b *selectBackend) Register(fd int, mask Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.interest[fd]; ok {
		return errors.New("select: fd already registered")
	}
	b.interest[fd] = mask
	return b.wake()
}

func (b *selectBackend) Modify(fd int, mask Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.interest[fd]; !ok {
		return errors.New("select: fd not registered")
	}
	b.interest[fd] = mask
	return b.wake()
}

func (b *selectBackend) Unregister(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.interest, fd)
	return b.wake()
}

// wake must be called with b.mu held; it nudges a blocked Wait so it picks
// up interest-set changes immediately instead of waiting out the timeout.
func (b *selectBackend) wake() error {
	for {
		_, err := unix.Write(b.wakeW, []byte{0})
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return nil
		}
		return err
	}
}

func (b *selectBackend) drainWake() {
	buf := make([]byte, 64)
	for {
		_, err := unix.Read(b.wakeR, buf)
		if err != nil {
			return
		}
	}
}

func (b *selectBackend) Wait(timeout time.Duration) ([]Event, error) {
	b.mu.Lock()
	interest := make(map[int]Mask, len(b.interest))
	for fd, m := range b.interest {
		interest[fd] = m
	}
	b.mu.Unlock()

	var rfds, wfds unix.FdSet
	maxFD := b.wakeR
	fdSetSet(&rfds, b.wakeR)
	for fd, m := range interest {
		if m&Read != 0 {
			fdSetSet(&rfds, fd)
		}
		if m&Write != 0 {
			fdSetSet(&wfds, fd)
		}
		if fd > maxFD {
			maxFD = fd
		}
	}

	var tv *unix.Timeval
	if timeout >= 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}
	n, err := unix.Select(maxFD+1, &rfds, &wfds, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select")
	}
	if n == 0 {
		return nil, nil
	}
	if fdSetIsSet(&rfds, b.wakeR) {
		b.drainWake()
	}
	out := make([]Event, 0, n)
	for fd, m := range interest {
		var got Mask
		if m&Read != 0 && fdSetIsSet(&rfds, fd) {
			got |= Read
		}
		if m&Write != 0 && fdSetIsSet(&wfds, fd) {
			got |= Write
		}
		if got != 0 {
			out = append(out, Event{FD: fd, Mask: got})
		}
	}
	return out, nil
}

func (b *selectBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	unix.Close(b.wakeR)
	unix.Close(b.wakeW)
	return nil
}
