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
	"context"
	"strings"
	"testing"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/vfs"
	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDir and fakeFile are minimal vfs.Directory/vfs.File
// implementations used to exercise Filesystem's dispatch without a
// real mount.

type fakeDir struct {
	attrs    fuseops.InodeAttributes
	children map[string]fuseops.InodeID
	nodes    map[fuseops.InodeID]interface{}
	entries  []fuseops.Dirent
}

func (d *fakeDir) Attributes() fuseops.InodeAttributes { return d.attrs }

func (d *fakeDir) LookUpChild(name string) (fuseops.InodeID, interface{}, error) {
	id, ok := d.children[name]
	if !ok {
		return 0, nil, fuse.ENOENT
	}
	return id, d.nodes[id], nil
}

func (d *fakeDir) ReadEntries() ([]fuseops.Dirent, error) {
	return d.entries, nil
}

type fakeFile struct {
	attrs fuseops.InodeAttributes
	data  string
}

func (f *fakeFile) Attributes() fuseops.InodeAttributes { return f.attrs }

func (f *fakeFile) ReadAt(p []byte, off int64) (int, error) {
	return strings.NewReader(f.data).ReadAt(p, off)
}

func newLookUpInodeOp(parent fuseops.InodeID, name string) (*fuseops.LookUpInodeOp, *error) {
	op := &fuseops.LookUpInodeOp{Parent: parent, Name: name}
	var got error
	op.Init(op, "LookUpInodeOp", fuseops.OpHeader{}, context.Background(),
		func(_ fuseops.Op, err error) { got = err })
	return op, &got
}

func newGetInodeAttributesOp(inode fuseops.InodeID) (*fuseops.GetInodeAttributesOp, *error) {
	op := &fuseops.GetInodeAttributesOp{Inode: inode}
	var got error
	op.Init(op, "GetInodeAttributesOp", fuseops.OpHeader{}, context.Background(),
		func(_ fuseops.Op, err error) { got = err })
	return op, &got
}

func newOpenDirOp(inode fuseops.InodeID) (*fuseops.OpenDirOp, *error) {
	op := &fuseops.OpenDirOp{Inode: inode}
	var got error
	op.Init(op, "OpenDirOp", fuseops.OpHeader{}, context.Background(),
		func(_ fuseops.Op, err error) { got = err })
	return op, &got
}

func newReadDirOp(inode fuseops.InodeID, handle fuseops.HandleID, offset fuseops.DirOffset, size int) (*fuseops.ReadDirOp, *error) {
	op := &fuseops.ReadDirOp{Inode: inode, Handle: handle, Offset: offset, Size: size}
	var got error
	op.Init(op, "ReadDirOp", fuseops.OpHeader{}, context.Background(),
		func(_ fuseops.Op, err error) { got = err })
	return op, &got
}

func newOpenFileOp(inode fuseops.InodeID) (*fuseops.OpenFileOp, *error) {
	op := &fuseops.OpenFileOp{Inode: inode}
	var got error
	op.Init(op, "OpenFileOp", fuseops.OpHeader{}, context.Background(),
		func(_ fuseops.Op, err error) { got = err })
	return op, &got
}

func newReadFileOp(inode fuseops.InodeID, handle fuseops.HandleID, offset int64, size int) (*fuseops.ReadFileOp, *error) {
	op := &fuseops.ReadFileOp{Inode: inode, Handle: handle, Offset: offset, Size: size}
	var got error
	op.Init(op, "ReadFileOp", fuseops.OpHeader{}, context.Background(),
		func(_ fuseops.Op, err error) { got = err })
	return op, &got
}

func newFixtureFilesystem() (*vfs.Filesystem, *fakeFile) {
	file := &fakeFile{
		attrs: fuseops.InodeAttributes{Size: 5},
		data:  "hello",
	}

	root := &fakeDir{
		attrs: fuseops.InodeAttributes{},
		children: map[string]fuseops.InodeID{
			"f": 2,
		},
		nodes: map[fuseops.InodeID]interface{}{
			2: file,
		},
		entries: []fuseops.Dirent{
			{Offset: 1, Inode: 2, Name: "f", Type: fuseops.DT_File},
		},
	}

	fs := vfs.NewFilesystem(root, timeutil.RealClock())
	return fs, file
}

func TestFilesystem_LookUpInodeNotFound(t *testing.T) {
	fs, _ := newFixtureFilesystem()

	op, err := newLookUpInodeOp(fuseops.RootInodeID, "missing")
	fs.LookUpInode(op)

	assert.Equal(t, fuse.ENOENT, *err)
}

func TestFilesystem_LookUpInodeFound(t *testing.T) {
	fs, _ := newFixtureFilesystem()

	op, err := newLookUpInodeOp(fuseops.RootInodeID, "f")
	fs.LookUpInode(op)

	require.NoError(t, *err)
	assert.EqualValues(t, 2, op.Entry.Child)
	assert.EqualValues(t, 5, op.Entry.Attributes.Size)
}

func TestFilesystem_GetInodeAttributes(t *testing.T) {
	fs, _ := newFixtureFilesystem()

	// First a lookup, to register the child node under its ID.
	lookup, lookupErr := newLookUpInodeOp(fuseops.RootInodeID, "f")
	fs.LookUpInode(lookup)
	require.NoError(t, *lookupErr)

	op, err := newGetInodeAttributesOp(lookup.Entry.Child)
	fs.GetInodeAttributes(op)

	require.NoError(t, *err)
	assert.EqualValues(t, 5, op.Attributes.Size)
}

func TestFilesystem_OpenAndReadDir(t *testing.T) {
	fs, _ := newFixtureFilesystem()

	openOp, openErr := newOpenDirOp(fuseops.RootInodeID)
	fs.OpenDir(openOp)
	require.NoError(t, *openErr)

	readOp, readErr := newReadDirOp(fuseops.RootInodeID, openOp.Handle, 0, 4096)
	fs.ReadDir(readOp)
	require.NoError(t, *readErr)

	assert.NotEmpty(t, readOp.Data)
}

func TestFilesystem_OpenAndReadFile(t *testing.T) {
	fs, _ := newFixtureFilesystem()

	lookup, lookupErr := newLookUpInodeOp(fuseops.RootInodeID, "f")
	fs.LookUpInode(lookup)
	require.NoError(t, *lookupErr)

	openOp, openErr := newOpenFileOp(lookup.Entry.Child)
	fs.OpenFile(openOp)
	require.NoError(t, *openErr)

	readOp, readErr := newReadFileOp(lookup.Entry.Child, openOp.Handle, 0, 5)
	fs.ReadFile(readOp)
	require.NoError(t, *readErr)

	assert.Equal(t, "hello", string(readOp.Data))
}

func TestFilesystem_ForgetInodeRemovesNode(t *testing.T) {
	fs, _ := newFixtureFilesystem()

	lookup, lookupErr := newLookUpInodeOp(fuseops.RootInodeID, "f")
	fs.LookUpInode(lookup)
	require.NoError(t, *lookupErr)

	forgetOp := &fuseops.ForgetInodeOp{Inode: lookup.Entry.Child, N: 1}
	var forgetErr error
	forgetOp.Init(forgetOp, "ForgetInodeOp", fuseops.OpHeader{}, context.Background(),
		func(_ fuseops.Op, err error) { forgetErr = err })
	fs.ForgetInode(forgetOp)
	require.NoError(t, forgetErr)

	_, err := fs.Nodes.Get(lookup.Entry.Child)
	assert.Equal(t, fuse.EINVAL, err)
}
