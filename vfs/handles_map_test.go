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

package vfs_test

import (
	"testing"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlesMap_IDsStartAtOneAndIncreaseMonotonically(t *testing.T) {
	m := vfs.NewHandlesMap()

	id1 := m.OpenFile("a")
	id2 := m.OpenDir("b")
	id3 := m.OpenFile("c")

	assert.Equal(t, fuseops.HandleID(1), id1)
	assert.Greater(t, uint64(id2), uint64(id1))
	assert.Greater(t, uint64(id3), uint64(id2))
}

func TestHandlesMap_FileAndDirHandlesAreDisjointNamespaces(t *testing.T) {
	m := vfs.NewHandlesMap()
	id := m.OpenFile("file-handle")

	_, err := m.GetDir(id)
	assert.Equal(t, fuse.EINVAL, err, "a file handle ID must not resolve via GetDir")

	h, err := m.GetFile(id)
	require.NoError(t, err)
	assert.Equal(t, "file-handle", h)
}

func TestHandlesMap_CloseThenGetFails(t *testing.T) {
	m := vfs.NewHandlesMap()
	id := m.OpenDir("dir-handle")

	m.CloseDir(id)

	_, err := m.GetDir(id)
	assert.Equal(t, fuse.EINVAL, err)
}

func TestHandlesMap_CloseUnknownIsNoOp(t *testing.T) {
	m := vfs.NewHandlesMap()
	assert.NotPanics(t, func() {
		m.CloseFile(42)
		m.CloseDir(42)
	})
}

func TestHandlesMap_IDsNeverReused(t *testing.T) {
	m := vfs.NewHandlesMap()

	id1 := m.OpenFile("a")
	m.CloseFile(id1)

	id2 := m.OpenFile("b")
	assert.NotEqual(t, id1, id2)
}
