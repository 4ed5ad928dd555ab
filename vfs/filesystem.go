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

package vfs

import (
	"io"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/timeutil"
)

// Attributer is implemented by every node object a Filesystem hands to
// the kernel: its current metadata snapshot.
type Attributer interface {
	Attributes() fuseops.InodeAttributes
}

// Directory is implemented by a file system's own directory node
// objects to participate in Filesystem's dispatch.
type Directory interface {
	Attributer

	// LookUpChild resolves name within this directory, returning the
	// child's inode ID (minted and owned by the file system, as with
	// any other inode ID) and node object, or fuse.ENOENT if no such
	// child exists.
	LookUpChild(name string) (id fuseops.InodeID, child interface{}, err error)

	// ReadEntries returns this directory's entries in a stable order,
	// for use in building a ReadDirOp response starting at op.Offset.
	ReadEntries() ([]fuseops.Dirent, error)
}

// File is implemented by a file system's own file node objects.
type File interface {
	Attributer

	ReadAt(p []byte, off int64) (int, error)
}

// Filesystem is a fuseutil.FileSystem built on a NodeMap and
// HandlesMap: it threads kernel-supplied InodeIDs and HandleIDs
// through the maps to a file system author's own Directory/File
// objects, the way Filesystem::dispatch threads nodes and handles out
// of the registries to call the corresponding node method. Any op this
// façade doesn't route itself falls through to
// fuseutil.NotImplementedFileSystem's ENOSYS, so an author can adopt it
// incrementally.
type Filesystem struct {
	fuseutil.NotImplementedFileSystem

	Nodes   *NodeMap
	Handles *HandlesMap
	Clock   timeutil.Clock

	// EntryTimeout and AttrTimeout bound how long the kernel may cache a
	// name lookup or an attribute fetch before reconsulting the file
	// system. The zero value disables caching for that kind of
	// metadata, the safest default for a file system whose nodes can be
	// mutated out from under the kernel's cache.
	EntryTimeout time.Duration
	AttrTimeout  time.Duration
}

// NewFilesystem returns a Filesystem whose NodeMap is seeded with root
// as the inode fuseops.RootInodeID.
func NewFilesystem(root Directory, clock timeutil.Clock) *Filesystem {
	return &Filesystem{
		Nodes:   NewNodeMap(root),
		Handles: NewHandlesMap(),
		Clock:   clock,
	}
}

func (fs *Filesystem) entryExpiration() time.Time {
	if fs.EntryTimeout == 0 {
		return time.Time{}
	}
	return fs.Clock.Now().Add(fs.EntryTimeout)
}

func (fs *Filesystem) attrExpiration() time.Time {
	if fs.AttrTimeout == 0 {
		return time.Time{}
	}
	return fs.Clock.Now().Add(fs.AttrTimeout)
}

func (fs *Filesystem) directory(id fuseops.InodeID) (Directory, error) {
	n, err := fs.Nodes.Get(id)
	if err != nil {
		return nil, err
	}
	d, ok := n.(Directory)
	if !ok {
		return nil, fuse.ENOTDIR
	}
	return d, nil
}

func (fs *Filesystem) LookUpInode(op *fuseops.LookUpInodeOp) {
	parent, err := fs.directory(op.Parent)
	if err != nil {
		op.Respond(err)
		return
	}

	id, child, err := parent.LookUpChild(op.Name)
	if err != nil {
		op.Respond(err)
		return
	}

	attrs, ok := child.(Attributer)
	if !ok {
		op.Respond(fuse.EIO)
		return
	}

	gen := fs.Nodes.Add(id, child)
	op.Entry = fuseops.ChildInodeEntry{
		Child:                id,
		Generation:           gen,
		Attributes:           attrs.Attributes(),
		AttributesExpiration: fs.attrExpiration(),
		EntryExpiration:      fs.entryExpiration(),
	}
	op.Respond(nil)
}

func (fs *Filesystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	n, err := fs.Nodes.Get(op.Inode)
	if err != nil {
		op.Respond(err)
		return
	}

	attrs, ok := n.(Attributer)
	if !ok {
		op.Respond(fuse.EIO)
		return
	}

	op.Attributes = attrs.Attributes()
	op.AttributesExpiration = fs.attrExpiration()
	op.Respond(nil)
}

func (fs *Filesystem) ForgetInode(op *fuseops.ForgetInodeOp) {
	fs.Nodes.Forget(op.Inode, op.N)
	op.Respond(nil)
}

func (fs *Filesystem) BatchForgetInode(op *fuseops.BatchForgetOp) {
	for _, e := range op.Entries {
		fs.Nodes.Forget(e.Inode, e.N)
	}
	op.Respond(nil)
}

func (fs *Filesystem) OpenDir(op *fuseops.OpenDirOp) {
	dir, err := fs.directory(op.Inode)
	if err != nil {
		op.Respond(err)
		return
	}

	entries, err := dir.ReadEntries()
	if err != nil {
		op.Respond(err)
		return
	}

	op.Handle = fs.Handles.OpenDir(entries)
	op.Respond(nil)
}

func (fs *Filesystem) ReadDir(op *fuseops.ReadDirOp) {
	h, err := fs.Handles.GetDir(op.Handle)
	if err != nil {
		op.Respond(err)
		return
	}

	entries, ok := h.([]fuseops.Dirent)
	if !ok {
		op.Respond(fuse.EIO)
		return
	}

	size := op.Size
	if size > fuseutil.MaxReaddirBufferSize {
		size = fuseutil.MaxReaddirBufferSize
	}
	w := fuseutil.NewReaddirEntriesWriter(make([]byte, size))
	for _, e := range entries {
		if e.Offset <= op.Offset {
			continue
		}
		if pushErr := w.TryPushDirent(e); pushErr != nil {
			break
		}
	}

	op.Data = w.Bytes()
	op.Respond(nil)
}

func (fs *Filesystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) {
	fs.Handles.CloseDir(op.Handle)
	op.Respond(nil)
}

func (fs *Filesystem) OpenFile(op *fuseops.OpenFileOp) {
	n, err := fs.Nodes.Get(op.Inode)
	if err != nil {
		op.Respond(err)
		return
	}

	f, ok := n.(File)
	if !ok {
		op.Respond(fuse.EINVAL)
		return
	}

	op.Handle = fs.Handles.OpenFile(f)
	op.Respond(nil)
}

func (fs *Filesystem) ReadFile(op *fuseops.ReadFileOp) {
	h, err := fs.Handles.GetFile(op.Handle)
	if err != nil {
		op.Respond(err)
		return
	}

	f := h.(File)
	buf := make([]byte, op.Size)
	n, err := f.ReadAt(buf, op.Offset)
	op.Data = buf[:n]
	if err != nil && err != io.EOF {
		op.Respond(err)
		return
	}
	op.Respond(nil)
}

func (fs *Filesystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	fs.Handles.CloseFile(op.Handle)
	op.Respond(nil)
}
