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

package fuseutil

import (
	"errors"
	"os"
	"time"
	"unsafe"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/internal/fusekernel"
)

// Write the supplied directory entry into the given buffer in the format
// expected in fuseops.ReadDirOp.Data, returning the number of bytes written.
// Return zero if the entry would not fit.
func WriteDirent(buf []byte, d fuseops.Dirent) (n int) {
	// We want to write bytes with the layout of fuse_dirent
	// (http://goo.gl/BmFxob) in host order. The struct must be aligned according
	// to FUSE_DIRENT_ALIGN (http://goo.gl/UziWvH), which dictates 8-byte
	// alignment.
	type fuse_dirent struct {
		ino     uint64
		off     uint64
		namelen uint32
		type_   uint32
		name    [0]byte
	}

	const direntAlignment = 8
	const direntSize = 8 + 8 + 4 + 4

	// Compute the number of bytes of padding we'll need to maintain alignment
	// for the next entry.
	var padLen int
	if len(d.Name)%direntAlignment != 0 {
		padLen = direntAlignment - (len(d.Name) % direntAlignment)
	}

	// Do we have enough room?
	totalLen := direntSize + len(d.Name) + padLen
	if totalLen > len(buf) {
		return n
	}

	// Write the header.
	de := fuse_dirent{
		ino:     uint64(d.Inode),
		off:     uint64(d.Offset),
		namelen: uint32(len(d.Name)),
		type_:   uint32(d.Type),
	}

	n += copy(buf[n:], (*[direntSize]byte)(unsafe.Pointer(&de))[:])

	// Write the name afterward.
	n += copy(buf[n:], d.Name)

	// Add any necessary padding.
	if padLen != 0 {
		var padding [direntAlignment]byte
		n += copy(buf[n:], padding[:padLen])
	}

	return n
}

// WriteDirentPlus writes a fuse_direntplus record: a fuse_entry_out
// describing e's attributes, immediately followed by the fuse_dirent
// layout WriteDirent produces for d. Returns 0 without writing anything
// if the combined record would not fit in buf.
func WriteDirentPlus(buf []byte, e fuseops.ChildInodeEntry, d fuseops.Dirent) (n int) {
	const entryOutSize = int(unsafe.Sizeof(fusekernel.EntryOut{}))

	if entryOutSize > len(buf) {
		return 0
	}

	dn := WriteDirent(buf[entryOutSize:], d)
	if dn == 0 {
		return 0
	}

	out := (*fusekernel.EntryOut)(unsafe.Pointer(&buf[0]))
	*out = fusekernel.EntryOut{}
	out.Nodeid = uint64(e.Child)
	out.Generation = uint64(e.Generation)
	out.EntryValid, out.EntryValidNsec = expirationSecsNsecs(e.EntryExpiration)
	out.AttrValid, out.AttrValidNsec = expirationSecsNsecs(e.AttributesExpiration)
	fillAttr(&out.Attr, e.Child, &e.Attributes)

	return entryOutSize + dn
}

func expirationSecsNsecs(t time.Time) (sec uint64, nsec uint32) {
	if t.IsZero() {
		return 0, 0
	}
	d := time.Until(t)
	if d < 0 {
		return 0, 0
	}
	return uint64(d / time.Second), uint32(d % time.Second)
}

func fileModeToFuseType(mode os.FileMode) uint32 {
	switch {
	case mode&os.ModeDir != 0:
		return 0040000
	case mode&os.ModeSymlink != 0:
		return 0120000
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		return 0020000
	case mode&os.ModeDevice != 0:
		return 0060000
	case mode&os.ModeNamedPipe != 0:
		return 0010000
	case mode&os.ModeSocket != 0:
		return 0140000
	default:
		return 0100000
	}
}

func fillAttr(out *fusekernel.Attr, inode fuseops.InodeID, a *fuseops.InodeAttributes) {
	out.Ino = uint64(inode)
	out.Size = a.Size
	out.Blocks = (a.Size + 511) / 512
	out.Atime, out.AtimeNsec = uint64(a.Atime.Unix()), uint32(a.Atime.Nanosecond())
	out.Mtime, out.MtimeNsec = uint64(a.Mtime.Unix()), uint32(a.Mtime.Nanosecond())
	out.Ctime, out.CtimeNsec = uint64(a.Ctime.Unix()), uint32(a.Ctime.Nanosecond())
	out.Mode = fileModeToFuseType(a.Mode) | uint32(a.Mode.Perm())
	out.Nlink = uint32(a.Nlink)
	out.UID = a.Uid
	out.GID = a.Gid
	out.Rdev = a.Rdev
}

// ErrCapacity is returned by ReaddirEntriesWriter.TryPushDirent(Plus) when
// an entry does not fit in the remaining buffer. The writer's state is
// left unchanged so the caller can stop and reply with what it has.
var ErrCapacity = errors.New("fuseutil: entry does not fit in the readdir buffer")

// MaxReaddirBufferSize is the largest buffer ReaddirEntriesWriter will
// pack entries into, matching the kernel's READDIR/READDIRPLUS request
// size ceiling.
const MaxReaddirBufferSize = 65535

// ReaddirEntriesWriter packs a bounded, 8-byte-aligned sequence of
// fuse_dirent (or, via TryPushDirentPlus, fuse_direntplus) records into a
// caller-supplied buffer, for use as the Data field of a ReadDirOp or
// ReadDirPlusOp response. It never writes a partial entry: a push that
// would overflow the buffer fails with ErrCapacity and leaves the
// writer's position unchanged.
type ReaddirEntriesWriter struct {
	buf []byte
	n   int
}

// NewReaddirEntriesWriter wraps buf, which is truncated to
// MaxReaddirBufferSize if longer.
func NewReaddirEntriesWriter(buf []byte) *ReaddirEntriesWriter {
	if len(buf) > MaxReaddirBufferSize {
		buf = buf[:MaxReaddirBufferSize]
	}
	return &ReaddirEntriesWriter{buf: buf}
}

// TryPushDirent appends d's fuse_dirent encoding, or returns ErrCapacity
// if it doesn't fit.
func (w *ReaddirEntriesWriter) TryPushDirent(d fuseops.Dirent) error {
	n := WriteDirent(w.buf[w.n:], d)
	if n == 0 {
		return ErrCapacity
	}
	w.n += n
	return nil
}

// TryPushDirentPlus appends e and d's fuse_direntplus encoding, or
// returns ErrCapacity if it doesn't fit.
func (w *ReaddirEntriesWriter) TryPushDirentPlus(e fuseops.ChildInodeEntry, d fuseops.Dirent) error {
	n := WriteDirentPlus(w.buf[w.n:], e, d)
	if n == 0 {
		return ErrCapacity
	}
	w.n += n
	return nil
}

// Position returns the number of bytes written so far.
func (w *ReaddirEntriesWriter) Position() int {
	return w.n
}

// Bytes returns the written region, suitable for assigning directly to
// ReadDirOp.Data or ReadDirPlusOp.Data.
func (w *ReaddirEntriesWriter) Bytes() []byte {
	return w.buf[:w.n]
}
