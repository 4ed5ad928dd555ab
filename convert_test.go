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
	"bytes"
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/internal/buffer"
	"github.com/jacobsa/fuse/internal/fusekernel"
)

// buildInMessage encodes header followed by body (already wire-shaped,
// e.g. a fusekernel.GetattrIn or a NUL-terminated name) into an
// InMessage, the way a read from /dev/fuse would.
func buildInMessage(t *testing.T, header fusekernel.InHeader, body []byte) *buffer.InMessage {
	t.Helper()

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("encoding header: %v", err)
	}
	buf.Write(body)

	m := buffer.NewInMessage()
	if err := m.Init(&buf); err != nil {
		t.Fatalf("InMessage.Init: %v", err)
	}
	return m
}

func TestConvertInMessage_Lookup(t *testing.T) {
	header := fusekernel.InHeader{
		Opcode: fusekernel.OpLookup,
		Unique: 17,
		NodeID: uint64(fuseops.RootInodeID),
		UID:    501,
		GID:    20,
		PID:    1234,
	}
	name := append([]byte("foo"), 0)

	m := buildInMessage(t, header, name)
	outMsg := &buffer.OutMessage{}
	outMsg.Reset()

	cfg := &MountConfig{}
	op, err := convertInMessage(cfg, m, outMsg, fusekernel.Protocol{Major: 7, Minor: 31})
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	lookup, ok := op.(*fuseops.LookUpInodeOp)
	if !ok {
		t.Fatalf("expected *fuseops.LookUpInodeOp, got %T", op)
	}
	if lookup.Parent != fuseops.RootInodeID {
		t.Errorf("Parent = %v, want %v", lookup.Parent, fuseops.RootInodeID)
	}
	if lookup.Name != "foo" {
		t.Errorf("Name = %q, want %q", lookup.Name, "foo")
	}
	if lookup.Header().Uid != 501 || lookup.Header().Gid != 20 || lookup.Header().Pid != 1234 {
		t.Errorf("unexpected header: %+v", lookup.Header())
	}
}

func TestConvertInMessage_Getattr(t *testing.T) {
	header := fusekernel.InHeader{
		Opcode: fusekernel.OpGetattr,
		Unique: 42,
		NodeID: 7,
	}
	body := make([]byte, unsafe.Sizeof(fusekernel.GetattrIn{}))

	m := buildInMessage(t, header, body)
	outMsg := &buffer.OutMessage{}
	outMsg.Reset()

	cfg := &MountConfig{}
	op, err := convertInMessage(cfg, m, outMsg, fusekernel.Protocol{Major: 7, Minor: 31})
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	getattr, ok := op.(*fuseops.GetInodeAttributesOp)
	if !ok {
		t.Fatalf("expected *fuseops.GetInodeAttributesOp, got %T", op)
	}
	if getattr.Inode != 7 {
		t.Errorf("Inode = %v, want 7", getattr.Inode)
	}
}

func TestConvertInMessage_UnknownOpcode(t *testing.T) {
	header := fusekernel.InHeader{
		Opcode: fusekernel.Opcode(0xffff),
		Unique: 1,
	}

	m := buildInMessage(t, header, nil)
	outMsg := &buffer.OutMessage{}
	outMsg.Reset()

	cfg := &MountConfig{}
	op, err := convertInMessage(cfg, m, outMsg, fusekernel.Protocol{Major: 7, Minor: 31})
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	if _, ok := op.(*unknownOp); !ok {
		t.Fatalf("expected *unknownOp, got %T", op)
	}
}
