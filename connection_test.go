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
	"os"
	"testing"
	"unsafe"

	"github.com/jacobsa/fuse/internal/fusekernel"
	"golang.org/x/sys/unix"
)

// newInMemoryDevicePair returns two *os.File ends of a real AF_UNIX
// socketpair standing in for the kernel end and the library end of
// /dev/fuse, the same construction mountViaFusermount uses to hand a
// device fd across a process boundary.
func newInMemoryDevicePair(t *testing.T) (kernel, library *os.File) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}

	kernel = os.NewFile(uintptr(fds[0]), "fake-kernel")
	library = os.NewFile(uintptr(fds[1]), "fake-library")
	t.Cleanup(func() {
		kernel.Close()
		library.Close()
	})
	return kernel, library
}

func TestNewConnection_NegotiatesInit(t *testing.T) {
	kernel, library := newInMemoryDevicePair(t)

	header := fusekernel.InHeader{
		Len:    uint32(unsafe.Sizeof(fusekernel.InHeader{}) + unsafe.Sizeof(fusekernel.InitIn{})),
		Opcode: fusekernel.OpInit,
		Unique: 1,
	}
	in := fusekernel.InitIn{
		Major: fusekernel.ProtoVersionMaxMajor,
		Minor: fusekernel.ProtoVersionMaxMinor,
	}

	var req bytes.Buffer
	if err := binary.Write(&req, binary.LittleEndian, header); err != nil {
		t.Fatalf("encoding header: %v", err)
	}
	if err := binary.Write(&req, binary.LittleEndian, in); err != nil {
		t.Fatalf("encoding InitIn: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := kernel.Write(req.Bytes())
		done <- err
	}()

	c, err := newConnection(MountConfig{}, nil, nil, library)
	if err != nil {
		t.Fatalf("newConnection: %v", err)
	}
	defer c.close()

	if err := <-done; err != nil {
		t.Fatalf("writing INIT request: %v", err)
	}

	resp := make([]byte, 4096)
	n, err := kernel.Read(resp)
	if err != nil {
		t.Fatalf("reading INIT response: %v", err)
	}
	if n < int(unsafe.Sizeof(fusekernel.OutHeader{})) {
		t.Fatalf("response too short: %d bytes", n)
	}

	oh := (*fusekernel.OutHeader)(unsafe.Pointer(&resp[0]))
	if oh.Unique != 1 {
		t.Errorf("Unique = %d, want 1", oh.Unique)
	}
	if oh.Error != 0 {
		t.Errorf("Error = %d, want 0", oh.Error)
	}

	out := (*fusekernel.InitOut)(unsafe.Pointer(&resp[unsafe.Sizeof(fusekernel.OutHeader{})]))
	if out.Major != fusekernel.ProtoVersionMaxMajor {
		t.Errorf("Major = %d, want %d", out.Major, fusekernel.ProtoVersionMaxMajor)
	}
}

func TestNewConnection_RejectsTooOldKernelProtocol(t *testing.T) {
	kernel, library := newInMemoryDevicePair(t)

	header := fusekernel.InHeader{
		Len:    uint32(unsafe.Sizeof(fusekernel.InHeader{}) + unsafe.Sizeof(fusekernel.InitIn{})),
		Opcode: fusekernel.OpInit,
		Unique: 1,
	}
	in := fusekernel.InitIn{Major: 1, Minor: 0}

	var req bytes.Buffer
	binary.Write(&req, binary.LittleEndian, header)
	binary.Write(&req, binary.LittleEndian, in)

	go kernel.Write(req.Bytes())

	_, err := newConnection(MountConfig{}, nil, nil, library)
	if err == nil {
		t.Fatalf("expected newConnection to reject a too-old protocol version")
	}
}
