// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux || freebsd || darwin

package fuse

import "golang.org/x/sys/unix"

// writev sends the concatenation of bufs to fd in a single syscall,
// avoiding an extra copy for large borrowed payloads such as READ results.
func writev(fd int, bufs [][]byte) (int, error) {
	iovecs := make([][]byte, len(bufs))
	copy(iovecs, bufs)
	return unix.Writev(fd, iovecs)
}
