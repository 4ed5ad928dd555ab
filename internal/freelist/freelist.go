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

// Package freelist provides a minimal, type-erased stack of reusable
// allocations. It exists so that the hot path of reading from and writing
// to the kernel never allocates once a connection has warmed up: every
// in-flight request's InMessage and OutMessage comes from one of these
// lists, and is returned to it once the reply has been sent.
//
// A Freelist is not safe for concurrent use; callers serialize access
// with their own mutex, since they typically need to do other guarded
// bookkeeping at the same time anyway.
package freelist

import "unsafe"

// Freelist is a stack of unsafe.Pointer values, recycled in LIFO order.
// The zero value is an empty, ready-to-use list.
type Freelist struct {
	free []unsafe.Pointer
}

// Get pops the most recently freed pointer, or returns nil if the list is
// empty. The caller is responsible for knowing what concrete type the
// pointer refers to.
func (l *Freelist) Get() unsafe.Pointer {
	n := len(l.free)
	if n == 0 {
		return nil
	}

	p := l.free[n-1]
	l.free[n-1] = nil
	l.free = l.free[:n-1]
	return p
}

// Put pushes p onto the list for later reuse by Get. p must not be used
// again by the caller until it is handed back out by a subsequent Get.
func (l *Freelist) Put(p unsafe.Pointer) {
	l.free = append(l.free, p)
}

// Len reports the number of pointers currently held by the list.
func (l *Freelist) Len() int {
	return len(l.free)
}
