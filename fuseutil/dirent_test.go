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

package fuseutil_test

import (
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/oglematchers"
)

// expectThat is a minimal bridge onto oglematchers.Matcher, standing in
// for ogletest's ExpectThat now that ogletest itself is out of scope.
func expectThat(t *testing.T, m oglematchers.Matcher, x interface{}) {
	t.Helper()
	if err := m.Matches(x); err != nil {
		t.Errorf("got %v, want %s: %v", x, m.Description(), err)
	}
}

func TestReaddirEntriesWriter_TwoEntries(t *testing.T) {
	w := fuseutil.NewReaddirEntriesWriter(make([]byte, 4096))

	if err := w.TryPushDirent(fuseops.Dirent{
		Offset: 1,
		Inode:  10,
		Name:   "a",
		Type:   fuseops.DT_File,
	}); err != nil {
		t.Fatalf("first TryPushDirent: %v", err)
	}

	if err := w.TryPushDirent(fuseops.Dirent{
		Offset: 2,
		Inode:  11,
		Name:   "b",
		Type:   fuseops.DT_Link,
	}); err != nil {
		t.Fatalf("second TryPushDirent: %v", err)
	}

	expectThat(t, oglematchers.Equals(64), w.Position())
	expectThat(t, oglematchers.Equals(0), w.Position()%8)
}

func TestReaddirEntriesWriter_ErrCapacityLeavesPositionUnchanged(t *testing.T) {
	// 24-byte header plus one byte of name, padded to 32, leaves no room
	// for a second entry of the same shape in a 40-byte buffer.
	w := fuseutil.NewReaddirEntriesWriter(make([]byte, 40))

	if err := w.TryPushDirent(fuseops.Dirent{Offset: 1, Inode: 1, Name: "a", Type: fuseops.DT_File}); err != nil {
		t.Fatalf("first TryPushDirent: %v", err)
	}

	before := w.Position()

	err := w.TryPushDirent(fuseops.Dirent{Offset: 2, Inode: 2, Name: "bbbbbbbbbbbbbbbb", Type: fuseops.DT_File})
	if err != fuseutil.ErrCapacity {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}

	expectThat(t, oglematchers.Equals(before), w.Position())
}

func TestReaddirEntriesWriter_RespectsMaxReaddirBufferSize(t *testing.T) {
	w := fuseutil.NewReaddirEntriesWriter(make([]byte, fuseutil.MaxReaddirBufferSize+4096))

	// Keep pushing one-byte-named entries; the writer must refuse once it
	// would exceed MaxReaddirBufferSize, regardless of the larger buffer
	// it was constructed with.
	var last error
	for i := 0; i < 10000; i++ {
		last = w.TryPushDirent(fuseops.Dirent{Offset: fuseops.DirOffset(i + 1), Inode: fuseops.InodeID(i + 1), Name: "x", Type: fuseops.DT_File})
		if last != nil {
			break
		}
	}

	if last != fuseutil.ErrCapacity {
		t.Fatalf("expected the writer to eventually hit ErrCapacity at MaxReaddirBufferSize, got %v", last)
	}
	if w.Position() > fuseutil.MaxReaddirBufferSize {
		t.Errorf("writer exceeded MaxReaddirBufferSize: position=%d", w.Position())
	}
}

func TestWriteDirentPlus_PrefixesEntryOut(t *testing.T) {
	buf := make([]byte, 4096)

	e := fuseops.ChildInodeEntry{
		Child:      42,
		Generation: 7,
		Attributes: fuseops.InodeAttributes{Size: 1024},
	}
	d := fuseops.Dirent{Offset: 1, Inode: 42, Name: "f", Type: fuseops.DT_File}

	n := fuseutil.WriteDirentPlus(buf, e, d)
	if n == 0 {
		t.Fatalf("WriteDirentPlus reported 0 bytes written")
	}

	plainDirent := make([]byte, 64)
	dn := fuseutil.WriteDirent(plainDirent, d)

	if n <= dn {
		t.Errorf("direntplus record (%d bytes) should be larger than the bare dirent (%d bytes)", n, dn)
	}
}

func TestWriteDirentPlus_ZeroOnOverflow(t *testing.T) {
	buf := make([]byte, 4)
	n := fuseutil.WriteDirentPlus(buf, fuseops.ChildInodeEntry{}, fuseops.Dirent{Name: "x"})
	if n != 0 {
		t.Errorf("expected 0 on overflow, got %d", n)
	}
}
