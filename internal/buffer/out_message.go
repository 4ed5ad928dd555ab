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
	"log"
	"unsafe"

	"github.com/jacobsa/fuse/internal/fusekernel"
)

// OutMessageHeaderSize is the size of the leading header in every
// properly-constructed OutMessage. Reset brings the message back to this size.
const OutMessageHeaderSize = int(unsafe.Sizeof(fusekernel.OutHeader{}))

// maxSglistSegments bounds the scatter-gather vector handed to the socket:
// the header plus up to four borrowed payload segments, so a reply is
// always sendable in a single writev(2) call.
const maxSglistSegments = 5

// OutMessage provides a mechanism for constructing a single fuse reply
// from multiple segments, where the first segment is always a
// fusekernel.OutHeader struct. Segments appended via Append/AppendString
// land in a contiguous payload buffer; segments appended via AppendDirect
// are borrowed as-is and handed to the socket's scatter-gather send
// without being copied.
//
// Must be initialized with Reset.
type OutMessage struct {
	// The offset into payload to which we're currently writing.
	payloadOffset int

	header  [OutMessageHeaderSize]byte
	payload [MaxReadSize]byte

	// Borrowed segments appended after header+payload, sent without a
	// copy. Never grows past maxSglistSegments-1.
	direct [][]byte
}

// Make sure that the header field is aligned correctly for
// fusekernel.OutHeader type punning.
func init() {
	a := unsafe.Alignof(OutMessage{})
	o := unsafe.Offsetof(OutMessage{}.header)
	e := unsafe.Alignof(fusekernel.OutHeader{})

	if a%e != 0 || o%e != 0 {
		log.Panicf("Bad alignment or offset: %d, %d, need %d", a, o, e)
	}
}

// Make sure that the header and payload are contiguous.
func init() {
	a := unsafe.Offsetof(OutMessage{}.header) + uintptr(OutMessageHeaderSize)
	b := unsafe.Offsetof(OutMessage{}.payload)

	if a != b {
		log.Panicf(
			"header ends at offset %d, but payload starts at offset %d",
			a, b)
	}
}

func memclr(p unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}

func memmove(dst, src unsafe.Pointer, n uintptr) {
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
}

// Reset resets m so that it's ready to be used again. Afterward, the contents
// are solely a zeroed fusekernel.OutHeader struct.
func (m *OutMessage) Reset() {
	m.payloadOffset = 0
	m.direct = m.direct[:0]
	memclr(unsafe.Pointer(&m.header), uintptr(OutMessageHeaderSize))
}

// OutHeader returns a pointer to the header at the start of the message.
func (m *OutMessage) OutHeader() (h *fusekernel.OutHeader) {
	return (*fusekernel.OutHeader)(unsafe.Pointer(&m.header))
}

// Grow grows m's buffer by the given number of bytes, returning a pointer to
// the start of the new segment, which is guaranteed to be zeroed. If there is
// insufficient space, it returns nil.
func (m *OutMessage) Grow(n int) (p unsafe.Pointer) {
	p = m.GrowNoZero(n)
	if p != nil {
		memclr(p, uintptr(n))
	}
	return p
}

// GrowNoZero is equivalent to Grow, except the new segment is not zeroed. Use
// with caution!
func (m *OutMessage) GrowNoZero(n int) (p unsafe.Pointer) {
	if n < 0 || m.payloadOffset+n > len(m.payload) {
		return nil
	}

	p = unsafe.Pointer(&m.payload[m.payloadOffset])
	m.payloadOffset += n
	return p
}

// ShrinkTo shrinks m to the given size. It panics if the size is greater than
// Len() or less than OutMessageHeaderSize.
func (m *OutMessage) ShrinkTo(n int) {
	if n < OutMessageHeaderSize {
		panic(fmt.Sprintf("ShrinkTo(%d): smaller than header", n))
	}
	if n > m.Len() {
		panic(fmt.Sprintf("ShrinkTo(%d): larger than current length %d", n, m.Len()))
	}
	m.payloadOffset = n - OutMessageHeaderSize
}

// Append is equivalent to growing by len(src), then copying src over the new
// segment. It panics if there is not enough room available.
func (m *OutMessage) Append(src []byte) {
	p := m.GrowNoZero(len(src))
	if p == nil {
		panic(fmt.Sprintf("Can't grow %d bytes", len(src)))
	}

	if len(src) > 0 {
		memmove(p, unsafe.Pointer(&src[0]), uintptr(len(src)))
	}
}

// AppendString is like Append, but accepts string input.
func (m *OutMessage) AppendString(src string) {
	p := m.GrowNoZero(len(src))
	if p == nil {
		panic(fmt.Sprintf("Can't grow %d bytes", len(src)))
	}

	if len(src) > 0 {
		copy(unsafe.Slice((*byte)(p), len(src)), src)
	}
}

// AppendDirect appends src as an additional scatter-gather segment without
// copying it into the contiguous payload buffer: src must outlive the
// call to the socket's send. Handlers use this for large borrowed
// payloads, such as READ results, that should not be copied twice.
// Panics if doing so would exceed the scatter-gather vector's capacity.
func (m *OutMessage) AppendDirect(src []byte) {
	if len(m.direct)+2 > maxSglistSegments {
		panic("too many scatter-gather segments")
	}
	m.direct = append(m.direct, src)
}

// Len returns the current size of the contiguous header+payload region,
// excluding any segments appended via AppendDirect.
func (m *OutMessage) Len() int {
	return OutMessageHeaderSize + m.payloadOffset
}

// TotalLen returns the full size of the reply this message represents,
// including direct segments: the value the encoder writes into the
// header's Len field.
func (m *OutMessage) TotalLen() int {
	n := m.Len()
	for _, d := range m.direct {
		n += len(d)
	}
	return n
}

// Bytes returns a reference to the current contiguous contents of the
// buffer (header plus payload), excluding any direct segments.
func (m *OutMessage) Bytes() []byte {
	l := m.Len()
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.header)), l)
}

// Sglist returns the full scatter-gather vector for this message: the
// contiguous header+payload region followed by any segments appended via
// AppendDirect. The caller must not retain the result past the next call
// to Reset.
func (m *OutMessage) Sglist() [][]byte {
	if len(m.direct) == 0 {
		return [][]byte{m.Bytes()}
	}

	out := make([][]byte, 0, 1+len(m.direct))
	out = append(out, m.Bytes())
	out = append(out, m.direct...)
	return out
}
