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

package buffer

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/jacobsa/fuse/internal/fusekernel"
)

// An incoming message from the kernel, including the leading
// fusekernel.InHeader struct. Provides storage for messages and
// convenient access to their contents. Reused across requests via a
// freelist, so it owns its backing storage rather than wrapping a
// caller-supplied slice.
type InMessage struct {
	storage  []byte // 8-aligned, fixed capacity
	length   int    // bytes actually read by the most recent Init
	consumed uintptr
}

// NewInMessage returns a new InMessage with room for the largest frame
// this library will ever ask the kernel to send (MaxReadSize bytes).
func NewInMessage() *InMessage {
	return &InMessage{storage: newAligned(MaxReadSize)}
}

// Initialize with the data read by a single call to r.Read. The first call to
// Consume will consume the bytes directly after the fusekernel.InHeader
// struct.
func (m *InMessage) Init(r io.Reader) (err error) {
	n, err := r.Read(m.storage)
	if err != nil {
		return err
	}

	headerSize := int(unsafe.Sizeof(fusekernel.InHeader{}))
	if n < headerSize {
		return fmt.Errorf("read %d bytes, too short for a fuse_in_header", n)
	}

	m.length = n
	m.consumed = uintptr(headerSize)
	return nil
}

// Return a reference to the header read in the most recent call to Init.
// The reference is invalidated by the next call to Init.
func (m *InMessage) Header() (h *fusekernel.InHeader) {
	return (*fusekernel.InHeader)(unsafe.Pointer(&m.storage[0]))
}

// Len reports the total number of bytes read by the most recent Init,
// including the header.
func (m *InMessage) Len() int {
	return m.length
}

// Remaining reports how many bytes are left to Consume.
func (m *InMessage) Remaining() uintptr {
	return uintptr(m.length) - m.consumed
}

// Consume the next n bytes from the message, returning a nil pointer if there
// are fewer than n bytes available. The pointer is invalidated by the next
// call to Init.
func (m *InMessage) Consume(n uintptr) (p unsafe.Pointer) {
	if n > m.Remaining() {
		return nil
	}

	p = unsafe.Pointer(&m.storage[m.consumed])
	m.consumed += n
	return p
}

// Equivalent to Consume, except returns a slice of bytes. The result will be
// nil if Consume fails.
func (m *InMessage) ConsumeBytes(n uintptr) (b []byte) {
	if n > m.Remaining() {
		return nil
	}

	start := m.consumed
	m.consumed += n
	return m.storage[start:m.consumed:m.consumed]
}

// Bytes returns the full message, including the header, as read by the
// most recent Init.
func (m *InMessage) Bytes() []byte {
	return m.storage[:m.length]
}
