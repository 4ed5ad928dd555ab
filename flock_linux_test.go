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

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/oglematchers"
)

func expectThat(t *testing.T, m oglematchers.Matcher, x interface{}) {
	t.Helper()
	if err := m.Matches(x); err != nil {
		t.Errorf("got %v, want %s: %v", x, m.Description(), err)
	}
}

// Every wire lock type must round-trip through Map/UnmapFlockType back to
// itself, and every portable lock type must map to a distinct wire value.
func TestFlockType_RoundTrips(t *testing.T) {
	types := []fuseops.FileLockType{
		fuseops.F_RDLOCK,
		fuseops.F_WRLOCK,
		fuseops.F_UNLOCK,
	}

	seen := make(map[uint32]fuseops.FileLockType)
	for _, lt := range types {
		wire := UnmapFlockType(lt)
		if other, ok := seen[wire]; ok {
			t.Fatalf("wire value %d used by both %v and %v", wire, other, lt)
		}
		seen[wire] = lt

		expectThat(t, oglematchers.Equals(lt), MapFlockType(wire))
	}
}

func TestFlockType_WireValuesMatchKernelNumbering(t *testing.T) {
	// The Linux kernel's fuse_file_lock numbers F_RDLCK=0, F_WRLCK=1,
	// F_UNLCK=2, matching fcntl.h; handlers rely on this exact mapping.
	expectThat(t, oglematchers.Equals(uint32(0)), UnmapFlockType(fuseops.F_RDLOCK))
	expectThat(t, oglematchers.Equals(uint32(1)), UnmapFlockType(fuseops.F_WRLOCK))
	expectThat(t, oglematchers.Equals(uint32(2)), UnmapFlockType(fuseops.F_UNLOCK))
}

func TestFlockType_UnknownWireValuePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected MapFlockType to panic on an unknown wire value")
		}
	}()
	MapFlockType(99)
}

// A lock whose Type is sent through the wire numbering (UnmapFlockType)
// and back (MapFlockType) should come out with every field intact: the
// mapping touches only Type, and Start, End and Pid are copied as-is.
func TestFileLock_FieldsAreIndependent(t *testing.T) {
	cases := []fuseops.FileLock{
		{Start: 0, End: 0, Type: fuseops.F_RDLOCK, Pid: 1},
		{Start: 10, End: 20, Type: fuseops.F_WRLOCK, Pid: 1234},
		{Start: 5, End: -1, Type: fuseops.F_UNLOCK, Pid: 0},
	}

	for _, want := range cases {
		wireType := UnmapFlockType(want.Type)
		got := fuseops.FileLock{
			Start: want.Start,
			End:   want.End,
			Type:  MapFlockType(wireType),
			Pid:   want.Pid,
		}
		expectThat(t, oglematchers.Equals(want.Start), got.Start)
		expectThat(t, oglematchers.Equals(want.End), got.End)
		expectThat(t, oglematchers.Equals(int(want.Type)), int(got.Type))
		expectThat(t, oglematchers.Equals(want.Pid), got.Pid)
	}
}
