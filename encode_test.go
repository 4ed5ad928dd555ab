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

package fuse

import (
	"testing"
	"unsafe"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/internal/buffer"
	"github.com/jacobsa/fuse/internal/fusekernel"
	"github.com/kylelemons/godebug/pretty"
)

func newTestConnection() *Connection {
	return &Connection{cfg: MountConfig{}}
}

func TestKernelResponse_LookUpInodeFillsEntryOut(t *testing.T) {
	c := newTestConnection()

	op := &fuseops.LookUpInodeOp{
		Entry: fuseops.ChildInodeEntry{
			Child:      123,
			Generation: 7,
			Attributes: fuseops.InodeAttributes{Size: 4096, Nlink: 1},
		},
	}

	outMsg := &buffer.OutMessage{}
	outMsg.Reset()

	noResponse := c.kernelResponse(outMsg, 99, op, nil)
	if noResponse {
		t.Fatalf("expected a response for LookUpInodeOp")
	}

	out := (*fusekernel.EntryOut)(unsafe.Pointer(&outMsg.Bytes()[buffer.OutMessageHeaderSize]))
	if out.Nodeid != 123 {
		t.Errorf("Nodeid = %d, want 123", out.Nodeid)
	}
	if out.Generation != 7 {
		t.Errorf("Generation = %d, want 7", out.Generation)
	}
	if out.Attr.Size != 4096 {
		t.Errorf("Attr.Size = %d, want 4096", out.Attr.Size)
	}

	oh := outMsg.OutHeader()
	if oh.Unique != 99 {
		t.Errorf("Unique = %d, want 99", oh.Unique)
	}
	if oh.Error != 0 {
		t.Errorf("Error = %d, want 0", oh.Error)
	}
	if int(oh.Len) != outMsg.TotalLen() {
		t.Errorf("Len = %d, want %d", oh.Len, outMsg.TotalLen())
	}
}

func TestKernelResponse_ErrorSetsErrnoAndHeaderOnlyLength(t *testing.T) {
	c := newTestConnection()

	op := &fuseops.LookUpInodeOp{}
	outMsg := &buffer.OutMessage{}
	outMsg.Reset()

	noResponse := c.kernelResponse(outMsg, 1, op, EINVAL)
	if noResponse {
		t.Fatalf("expected a response even on error")
	}

	oh := outMsg.OutHeader()
	if oh.Error != -int32(errno(EINVAL)) {
		t.Errorf("Error = %d, want %d", oh.Error, -int32(errno(EINVAL)))
	}
	if int(oh.Len) != buffer.OutMessageHeaderSize {
		t.Errorf("Len = %d, want header-only length %d", oh.Len, buffer.OutMessageHeaderSize)
	}
}

func TestKernelResponse_ForgetInodeExpectsNoResponse(t *testing.T) {
	c := newTestConnection()

	op := &fuseops.ForgetInodeOp{Inode: 1, N: 1}
	outMsg := &buffer.OutMessage{}
	outMsg.Reset()

	if noResponse := c.kernelResponse(outMsg, 1, op, nil); !noResponse {
		t.Fatalf("expected FORGET to suppress a response")
	}
}

func TestKernelResponse_ReadFileAppendsDataDirectly(t *testing.T) {
	c := newTestConnection()

	data := []byte("hello, world")
	op := &fuseops.ReadFileOp{Data: data}

	outMsg := &buffer.OutMessage{}
	outMsg.Reset()

	c.kernelResponse(outMsg, 1, op, nil)

	sglist := outMsg.Sglist()
	if len(sglist) != 2 {
		t.Fatalf("expected header + one direct segment, got %d segments", len(sglist))
	}
	if string(sglist[1]) != string(data) {
		t.Errorf("payload = %q, want %q\ndiff:\n%s", sglist[1], data,
			pretty.Compare(string(sglist[1]), string(data)))
	}
}

func TestKernelResponse_GetInodeAttributesRoundTrip(t *testing.T) {
	c := newTestConnection()

	want := fuseops.InodeAttributes{
		Size:  17,
		Nlink: 2,
		Mode:  0644,
	}
	op := &fuseops.GetInodeAttributesOp{Inode: 5, Attributes: want}

	outMsg := &buffer.OutMessage{}
	outMsg.Reset()
	c.kernelResponse(outMsg, 1, op, nil)

	out := (*fusekernel.AttrOut)(unsafe.Pointer(&outMsg.Bytes()[buffer.OutMessageHeaderSize]))

	type wireAttrs struct {
		Size  uint64
		Nlink uint32
		Perm  uint32
	}
	wantWire := wireAttrs{Size: want.Size, Nlink: uint32(want.Nlink), Perm: uint32(want.Mode.Perm())}
	gotWire := wireAttrs{Size: out.Attr.Size, Nlink: uint32(out.Attr.Nlink), Perm: out.Attr.Mode & 0777}

	if diff := pretty.Compare(wantWire, gotWire); diff != "" {
		t.Errorf("round-tripped attributes differ:\n%s", diff)
	}
}
