// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

//go:build !linux
// +build !linux

package backend

// newSelect has no portable implementation outside linux in this module:
// unix.FdSet's word width varies by platform (int64 on linux, int32 on
// darwin/bsd) and a byte-level bitset would need to assume host
// endianness, which this module does not want to get wrong silently.
// epoll/kqueue cover linux and the BSDs/Darwin respectively; Auto never
// falls through to this on a platform where it would matter.
func newSelect() (Backend, error) {
	return nil, ErrUnsupported
}
