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
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/internal/buffer"
	"github.com/jacobsa/fuse/internal/fusekernel"
)

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

func timeToUnix(t time.Time) (sec uint64, nsec uint32) {
	if t.IsZero() {
		return 0, 0
	}
	return uint64(t.Unix()), uint32(t.Nanosecond())
}

func fillAttr(out *fusekernel.Attr, inode fuseops.InodeID, a *fuseops.InodeAttributes) {
	out.Ino = uint64(inode)
	out.Size = a.Size
	out.Blocks = (a.Size + 511) / 512
	out.Atime, out.AtimeNsec = timeToUnix(a.Atime)
	out.Mtime, out.MtimeNsec = timeToUnix(a.Mtime)
	out.Ctime, out.CtimeNsec = timeToUnix(a.Ctime)
	out.Mode = fileModeToFuseType(a.Mode) | uint32(a.Mode.Perm())
	out.Nlink = uint32(a.Nlink)
	out.UID = a.Uid
	out.GID = a.Gid
	out.Rdev = a.Rdev
}

// expirationSecsNsecs converts an absolute cache-expiration time into the
// wire format's relative duration from now, per fuse_entry_out/
// fuse_attr_out's entry_valid/attr_valid fields. Negative durations
// aren't representable on the wire, so a time already in the past
// collapses to zero (immediately revalidate).
func expirationSecsNsecs(now, t time.Time) (sec uint64, nsec uint32) {
	if t.IsZero() {
		return 0, 0
	}
	d := t.Sub(now)
	if d < 0 {
		return 0, 0
	}
	return uint64(d / time.Second), uint32(d % time.Second)
}

func fillEntryOut(now time.Time, out *fusekernel.EntryOut, e *fuseops.ChildInodeEntry) {
	out.Nodeid = uint64(e.Child)
	out.Generation = uint64(e.Generation)
	out.EntryValid, out.EntryValidNsec = expirationSecsNsecs(now, e.EntryExpiration)
	out.AttrValid, out.AttrValidNsec = expirationSecsNsecs(now, e.AttributesExpiration)
	fillAttr(&out.Attr, e.Child, &e.Attributes)
}

// kernelResponse builds the reply payload for op into outMsg, given the
// result opErr of processing it. It reports whether the kernel expects no
// reply at all (FORGET and friends).
func (c *Connection) kernelResponse(
	outMsg *buffer.OutMessage,
	unique uint64,
	op interface{},
	opErr error) (noResponse bool) {
	oh := outMsg.OutHeader()
	oh.Unique = unique

	if opErr != nil {
		oh.Error = -int32(errno(opErr))
		oh.Len = uint32(outMsg.Len())
		return false
	}

	now := c.cfg.clock().Now()

	switch o := op.(type) {
	case *initOp:
		size := int(fusekernel.InitOutSize(o.Library))
		out := (*fusekernel.InitOut)(outMsg.Grow(size))
		out.Major = o.Library.Major
		out.Minor = o.Library.Minor
		out.MaxReadahead = o.MaxReadahead
		out.Flags = o.Flags
		out.MaxWrite = o.MaxWrite
		out.MaxPages = o.MaxPages

	case *fuseops.LookUpInodeOp:
		out := (*fusekernel.EntryOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.EntryOut{}))))
		fillEntryOut(now, out, &o.Entry)

	case *fuseops.MkDirOp:
		out := (*fusekernel.EntryOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.EntryOut{}))))
		fillEntryOut(now, out, &o.Entry)

	case *fuseops.MkNodeOp:
		out := (*fusekernel.EntryOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.EntryOut{}))))
		fillEntryOut(now, out, &o.Entry)

	case *fuseops.CreateSymlinkOp:
		out := (*fusekernel.EntryOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.EntryOut{}))))
		fillEntryOut(now, out, &o.Entry)

	case *fuseops.CreateLinkOp:
		out := (*fusekernel.EntryOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.EntryOut{}))))
		fillEntryOut(now, out, &o.Entry)

	case *fuseops.CreateFileOp:
		entryOut := (*fusekernel.EntryOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.EntryOut{}))))
		fillEntryOut(now, entryOut, &o.Entry)
		openOut := (*fusekernel.OpenOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.OpenOut{}))))
		openOut.Fh = uint64(o.Handle)

	case *fuseops.ReadSymlinkOp:
		outMsg.AppendString(o.Target)

	case *fuseops.GetInodeAttributesOp:
		out := (*fusekernel.AttrOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.AttrOut{}))))
		out.AttrValid, out.AttrValidNsec = expirationSecsNsecs(now, o.AttributesExpiration)
		fillAttr(&out.Attr, o.Inode, &o.Attributes)

	case *fuseops.SetInodeAttributesOp:
		out := (*fusekernel.AttrOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.AttrOut{}))))
		out.AttrValid, out.AttrValidNsec = expirationSecsNsecs(now, o.AttributesExpiration)
		fillAttr(&out.Attr, o.Inode, &o.Attributes)

	case *fuseops.OpenDirOp:
		out := (*fusekernel.OpenOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.OpenOut{}))))
		out.Fh = uint64(o.Handle)

	case *fuseops.OpenFileOp:
		out := (*fusekernel.OpenOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.OpenOut{}))))
		out.Fh = uint64(o.Handle)
		if o.KeepPageCache {
			const fopenKeepCache = 1 << 1
			out.OpenFlags |= fopenKeepCache
		}

	case *fuseops.ReadFileOp:
		outMsg.AppendDirect(o.Data)

	case *fuseops.ReadDirOp:
		outMsg.AppendDirect(o.Data)

	case *fuseops.ReadDirPlusOp:
		outMsg.AppendDirect(o.Data)

	case *fuseops.WriteFileOp:
		out := (*fusekernel.WriteOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.WriteOut{}))))
		out.Size = uint32(len(o.Data))

	case *fuseops.StatFSOp:
		out := (*fusekernel.StatfsOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.StatfsOut{}))))
		out.St.Blocks = o.Blocks
		out.St.Bfree = o.BlocksFree
		out.St.Bavail = o.BlocksAvailable
		out.St.Files = o.Files
		out.St.Ffree = o.FilesFree
		out.St.Bsize = o.IoSize
		out.St.Frsize = o.BlockSize
		out.St.Namelen = o.NameLength

	case *fuseops.GetXattrOp:
		switch {
		case o.Size == 0:
			out := (*fusekernel.GetxattrOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.GetxattrOut{}))))
			out.Size = uint32(len(o.Dst))
		case uint64(len(o.Dst)) > o.Size:
			oh.Error = -int32(errno(ERANGE))
			oh.Len = uint32(outMsg.Len())
			return false
		default:
			outMsg.Append(o.Dst)
		}

	case *fuseops.ListXattrOp:
		switch {
		case o.Size == 0:
			out := (*fusekernel.GetxattrOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.GetxattrOut{}))))
			out.Size = uint32(len(o.Dst))
		case uint64(len(o.Dst)) > o.Size:
			oh.Error = -int32(errno(ERANGE))
			oh.Len = uint32(outMsg.Len())
			return false
		default:
			outMsg.Append(o.Dst)
		}

	case *fuseops.GetLkOp:
		out := (*fusekernel.LkOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.LkOut{}))))
		out.Lk.Start = uint64(o.Conflicting.Start)
		out.Lk.End = uint64(o.Conflicting.End)
		out.Lk.Type = UnmapFlockType(o.Conflicting.Type)
		out.Lk.PID = o.Conflicting.Pid

	case *fuseops.BMapOp:
		out := (*fusekernel.BmapOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.BmapOut{}))))
		out.Block = o.PhysicalBlock

	case *fuseops.IoctlOp:
		out := (*fusekernel.IoctlOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.IoctlOut{}))))
		out.Result = o.Result
		outMsg.Append(o.Output)

	case *fuseops.PollOp:
		out := (*fusekernel.PollOut)(outMsg.Grow(int(unsafe.Sizeof(fusekernel.PollOut{}))))
		out.Revents = o.Revents

	case *fuseops.ForgetInodeOp, *fuseops.BatchForgetOp:
		// The kernel does not expect a reply to FORGET/BATCH_FORGET.
		return true

	case *fuseops.SetLkOp,
		*fuseops.RenameOp,
		*fuseops.RmDirOp,
		*fuseops.UnlinkOp,
		*fuseops.ReleaseDirHandleOp,
		*fuseops.ReleaseFileHandleOp,
		*fuseops.SyncFileOp,
		*fuseops.SyncDirOp,
		*fuseops.FlushFileOp,
		*fuseops.FallocateOp,
		*fuseops.AccessOp,
		*fuseops.SetXattrOp,
		*fuseops.RemoveXattrOp:
		// Header-only success reply.

	case *unknownOp:
		// Header-only success reply, reached only when a Server answers an
		// unknownOp with a nil error; fuseutil's server answers it with
		// ENOSYS, which takes the opErr != nil branch above.

	default:
		// Header-only success reply for anything else we know about but
		// haven't special-cased above.
	}

	oh.Len = uint32(outMsg.TotalLen())
	return false
}

func describeRequest(op interface{}) string {
	switch o := op.(type) {
	case *initOp:
		return fmt.Sprintf("Init(kernel=%v)", o.Kernel)
	case *interruptOp:
		return fmt.Sprintf("Interrupt(id=%d)", o.FuseID)
	case *unknownOp:
		return o.ShortDesc()
	case fuseops.Op:
		return o.ShortDesc()
	default:
		return fmt.Sprintf("%T", op)
	}
}

func describeResponse(op interface{}) string {
	switch o := op.(type) {
	case *initOp:
		return fmt.Sprintf("Init(library=%v, flags=%#x)", o.Library, o.Flags)
	case fuseops.Op:
		return o.ShortDesc()
	default:
		return fmt.Sprintf("%T", op)
	}
}
