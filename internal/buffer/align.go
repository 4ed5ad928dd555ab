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

// Package buffer provides the 8-byte-aligned byte buffers used for every
// read from and write to the kernel FUSE device, plus the InMessage and
// OutMessage types built on top of them.
package buffer

import (
	"unsafe"

	"github.com/jacobsa/fuse/internal/fusekernel"
)

// Alignment is the byte alignment the decoder requires of the first byte
// of any buffer it parses a kernel struct out of.
const Alignment = 8

// MaxWriteSize is the largest WRITE payload this library asks the kernel
// to send in one request. Reported to the kernel as InitOut.MaxWrite.
const MaxWriteSize = 1 << 20

// MaxReadSize bounds how large a single request frame (header + body) may
// be: the spec requires max_write + 4096 bytes of slack for the fixed
// portion of the largest requests (WRITE's fuse_write_in, etc).
const MaxReadSize = MaxWriteSize + 4096

// newAligned returns a byte slice of length n whose first byte is
// guaranteed to sit at an address that is a multiple of Alignment. Go's
// allocator already aligns slices of this size on every platform this
// library targets, but the over-allocate-and-offset fallback documented
// in the design notes is applied here so that guarantee does not rely on
// an implementation detail of a particular Go release.
func newAligned(n int) []byte {
	buf := make([]byte, n+Alignment-1)
	off := alignOffset(buf)
	return buf[off : off+n : off+n]
}

func alignOffset(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	rem := int(addr % Alignment)
	if rem == 0 {
		return 0
	}
	return Alignment - rem
}

// MinReadBuffer returns a new, zeroed, 8-aligned buffer of exactly
// fusekernel.MinReadBuffer bytes: the smallest a kernel is permitted to
// require for a single request.
func MinReadBuffer() []byte {
	return newAligned(fusekernel.MinReadBuffer)
}

// NewAlignedBuf returns a new, zeroed, 8-aligned buffer of n bytes, for
// callers that size their receive buffer to max_write + overhead rather
// than the protocol minimum.
func NewAlignedBuf(n int) []byte {
	return newAligned(n)
}

// IsAligned reports whether p's first byte satisfies Alignment. Exposed
// for assertions in tests and in constructors that accept caller-supplied
// buffers.
func IsAligned(p []byte) bool {
	if len(p) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&p[0]))%Alignment == 0
}
