// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

//go:build !linux
// +build !linux

package backend

func newEpoll() (Backend, error) {
	return nil, ErrUnsupported
}
