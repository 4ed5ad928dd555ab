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
	"context"
	"fmt"
	"math"
	"os"
	"syscall"
	"time"
	"unsafe"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/internal/buffer"
	"github.com/jacobsa/fuse/internal/fusekernel"
)

// initOp carries the raw protocol-negotiation fields of an INIT request.
// It is handled entirely inside Connection.Init and never surfaces to a
// FileSystem implementation.
type initOp struct {
	Kernel       fusekernel.Protocol
	Library      fusekernel.Protocol
	MaxReadahead uint32
	MaxWrite     uint32
	MaxPages     uint16
	Flags        fusekernel.InitFlags
}

// interruptOp carries the unique ID of a request the kernel wants
// cancelled. Handled inline by Connection.ReadOp; never returned to a
// FileSystem implementation.
type interruptOp struct {
	FuseID uint64
}

// unknownOp is returned for any opcode this library doesn't decode into a
// typed fuseops op. It cannot embed fuseops' unexported commonOp, so it
// implements fuseops.Op directly. ReadOp hands it to the Server like any
// other op; fuseutil's server answers it with ENOSYS.
type unknownOp struct {
	OpCode uint32
	Inode  fuseops.InodeID

	header    fuseops.OpHeader
	ctx       context.Context
	replyFn   func(error)
	responded bool
}

func (o *unknownOp) Header() fuseops.OpHeader  { return o.header }
func (o *unknownOp) Context() context.Context  { return o.ctx }
func (o *unknownOp) ShortDesc() string {
	return fmt.Sprintf("unknownOp(opcode=%d)", o.OpCode)
}

func (o *unknownOp) Respond(err error) {
	if o.responded {
		panic("unknownOp already responded to")
	}
	o.responded = true
	o.replyFn(err)
}

func opHeaderFrom(h *fusekernel.InHeader) fuseops.OpHeader {
	return fuseops.OpHeader{Uid: h.UID, Gid: h.GID, Pid: h.PID}
}

// consumeCString consumes a single NUL-terminated string from the
// remaining bytes of m, leaving whatever follows the NUL untouched so
// callers can consume further fields (another name, as SYMLINK does, or
// a value trailer, as SETXATTR does).
func consumeCString(m *buffer.InMessage) (string, error) {
	rest := m.Bytes()
	pos := len(rest) - int(m.Remaining())

	i := pos
	for i < len(rest) && rest[i] != 0 {
		i++
	}
	if i == len(rest) {
		return "", fmt.Errorf("unterminated name")
	}

	name := string(rest[pos:i])
	m.ConsumeBytes(uintptr(i + 1 - pos))
	return name, nil
}

// convertInMessage decodes the request carried by m into either a
// *fuseops.XxxOp, or one of the unexported opcode-dispatch helper types
// (initOp, interruptOp, unknownOp) above. outMsg is pre-seeded with the
// matching OutHeader so handlers need only grow it.
func convertInMessage(
	cfg *MountConfig,
	m *buffer.InMessage,
	outMsg *buffer.OutMessage,
	protocol fusekernel.Protocol) (op interface{}, err error) {
	h := m.Header()

	outMsg.Reset()
	oh := outMsg.OutHeader()
	oh.Unique = h.Unique

	header := opHeaderFrom(h)

	switch h.Opcode {
	case fusekernel.OpInit:
		in := (*fusekernel.InitIn)(m.Consume(unsafe.Sizeof(fusekernel.InitIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt INIT request")
		}
		op = &initOp{
			Kernel: fusekernel.Protocol{Major: in.Major, Minor: in.Minor},
			Flags:  in.Flags,
		}

	case fusekernel.OpInterrupt:
		in := (*fusekernel.InterruptIn)(m.Consume(unsafe.Sizeof(fusekernel.InterruptIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt INTERRUPT request")
		}
		op = &interruptOp{FuseID: in.Unique}

	case fusekernel.OpLookup:
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		o := &fuseops.LookUpInodeOp{Parent: fuseops.InodeID(h.NodeID), Name: name}
		o.Init(o, "LookUpInode", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpForget:
		in := (*fusekernel.ForgetIn)(m.Consume(unsafe.Sizeof(fusekernel.ForgetIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt FORGET request")
		}
		o := &fuseops.ForgetInodeOp{Inode: fuseops.InodeID(h.NodeID), N: in.Nlookup}
		o.Init(o, "ForgetInode", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpBatchForget:
		in := (*fusekernel.BatchForgetIn)(m.Consume(unsafe.Sizeof(fusekernel.BatchForgetIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt BATCH_FORGET request")
		}
		entries := make([]fuseops.BatchForgetEntry, 0, in.Count)
		for i := uint32(0); i < in.Count; i++ {
			e := (*fusekernel.ForgetOne)(m.Consume(unsafe.Sizeof(fusekernel.ForgetOne{})))
			if e == nil {
				break
			}
			entries = append(entries, fuseops.BatchForgetEntry{
				Inode: fuseops.InodeID(e.NodeID),
				N:     e.Nlookup,
			})
		}
		o := &fuseops.BatchForgetOp{Entries: entries}
		o.Init(o, "BatchForget", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpGetattr:
		m.Consume(unsafe.Sizeof(fusekernel.GetattrIn{}))
		o := &fuseops.GetInodeAttributesOp{Inode: fuseops.InodeID(h.NodeID)}
		o.Init(o, "GetInodeAttributes", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpSetattr:
		in := (*fusekernel.SetattrIn)(m.Consume(unsafe.Sizeof(fusekernel.SetattrIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt SETATTR request")
		}
		o := &fuseops.SetInodeAttributesOp{Inode: fuseops.InodeID(h.NodeID)}
		const (
			validSize     = 1 << 3
			validMode     = 1 << 0
			validAtime    = 1 << 4
			validMtime    = 1 << 5
			validAtimeNow = 1 << 7
			validMtimeNow = 1 << 8
		)
		if in.Valid&validSize != 0 {
			size := in.Size
			o.Size = &size
		}
		if in.Valid&validMode != 0 {
			mode := os.FileMode(in.Mode)
			o.Mode = &mode
		}
		if in.Valid&validAtimeNow != 0 {
			t := cfg.clock().Now()
			o.Atime = &t
		} else if in.Valid&validAtime != 0 {
			t := time.Unix(int64(in.Atime), int64(in.AtimeNsec))
			o.Atime = &t
		}
		if in.Valid&validMtimeNow != 0 {
			t := cfg.clock().Now()
			o.Mtime = &t
		} else if in.Valid&validMtime != 0 {
			t := time.Unix(int64(in.Mtime), int64(in.MtimeNsec))
			o.Mtime = &t
		}
		o.Init(o, "SetInodeAttributes", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpReadlink:
		o := &fuseops.ReadSymlinkOp{Inode: fuseops.InodeID(h.NodeID)}
		o.Init(o, "ReadSymlink", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpMkdir:
		in := (*fusekernel.MkdirIn)(m.Consume(unsafe.Sizeof(fusekernel.MkdirIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt MKDIR request")
		}
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		o := &fuseops.MkDirOp{
			Parent: fuseops.InodeID(h.NodeID),
			Name:   name,
			Mode:   os.FileMode(in.Mode) &^ os.FileMode(in.Umask),
		}
		o.Init(o, "MkDir", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpMknod:
		in := (*fusekernel.MknodIn)(m.Consume(fusekernel.MknodInSize(protocol)))
		if in == nil {
			return nil, fmt.Errorf("corrupt MKNOD request")
		}
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		o := &fuseops.MkNodeOp{
			Parent: fuseops.InodeID(h.NodeID),
			Name:   name,
			Mode:   os.FileMode(in.Mode),
			Rdev:   in.Rdev,
		}
		o.Init(o, "MkNode", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpUnlink:
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		o := &fuseops.UnlinkOp{Parent: fuseops.InodeID(h.NodeID), Name: name}
		o.Init(o, "Unlink", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpRmdir:
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		o := &fuseops.RmDirOp{Parent: fuseops.InodeID(h.NodeID), Name: name}
		o.Init(o, "RmDir", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpRename:
		in := (*fusekernel.RenameIn)(m.Consume(unsafe.Sizeof(fusekernel.RenameIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt RENAME request")
		}
		names, namesErr := consumeCStringPair(m)
		if namesErr != nil {
			return nil, namesErr
		}
		o := &fuseops.RenameOp{
			OldParent: fuseops.InodeID(h.NodeID),
			OldName:   names[0],
			NewParent: fuseops.InodeID(in.Newdir),
			NewName:   names[1],
		}
		o.Init(o, "Rename", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpRename2:
		in := (*fusekernel.Rename2In)(m.Consume(unsafe.Sizeof(fusekernel.Rename2In{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt RENAME2 request")
		}
		names, namesErr := consumeCStringPair(m)
		if namesErr != nil {
			return nil, namesErr
		}
		o := &fuseops.RenameOp{
			OldParent: fuseops.InodeID(h.NodeID),
			OldName:   names[0],
			NewParent: fuseops.InodeID(in.Newdir),
			NewName:   names[1],
			Flags:     in.Flags,
		}
		o.Init(o, "Rename", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpLink:
		in := (*fusekernel.LinkIn)(m.Consume(unsafe.Sizeof(fusekernel.LinkIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt LINK request")
		}
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		o := &fuseops.CreateLinkOp{
			Parent: fuseops.InodeID(h.NodeID),
			Name:   name,
			Target: fuseops.InodeID(in.Oldnodeid),
		}
		o.Init(o, "CreateLink", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpSymlink:
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		target, targetErr := consumeCString(m)
		if targetErr != nil {
			return nil, targetErr
		}
		o := &fuseops.CreateSymlinkOp{
			Parent: fuseops.InodeID(h.NodeID),
			Name:   name,
			Target: target,
		}
		o.Init(o, "CreateSymlink", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpOpen:
		in := (*fusekernel.OpenIn)(m.Consume(unsafe.Sizeof(fusekernel.OpenIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt OPEN request")
		}
		o := &fuseops.OpenFileOp{Inode: fuseops.InodeID(h.NodeID), Flags: fuseops.OpenFlags(in.Flags)}
		o.Init(o, "OpenFile", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpCreate:
		in := (*fusekernel.CreateIn)(m.Consume(unsafe.Sizeof(fusekernel.CreateIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt CREATE request")
		}
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		o := &fuseops.CreateFileOp{
			Parent: fuseops.InodeID(h.NodeID),
			Name:   name,
			Mode:   os.FileMode(in.Mode) &^ os.FileMode(in.Umask),
			Flags:  fuseops.OpenFlags(in.Flags),
		}
		o.Init(o, "CreateFile", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpOpendir:
		in := (*fusekernel.OpenIn)(m.Consume(unsafe.Sizeof(fusekernel.OpenIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt OPENDIR request")
		}
		o := &fuseops.OpenDirOp{Inode: fuseops.InodeID(h.NodeID), Flags: fuseops.OpenFlags(in.Flags)}
		o.Init(o, "OpenDir", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpReaddir, fusekernel.OpReaddirplus:
		in := (*fusekernel.ReadIn)(m.Consume(fusekernel.ReadInSize(protocol)))
		if in == nil {
			return nil, fmt.Errorf("corrupt READDIR request")
		}
		if h.Opcode == fusekernel.OpReaddirplus {
			o := &fuseops.ReadDirPlusOp{
				Inode:  fuseops.InodeID(h.NodeID),
				Handle: fuseops.HandleID(in.Fh),
				Offset: fuseops.DirOffset(in.Offset),
				Size:   int(in.Size),
			}
			o.Init(o, "ReadDirPlus", header, cfg.opContext(), nil)
			op = o
		} else {
			o := &fuseops.ReadDirOp{
				Inode:  fuseops.InodeID(h.NodeID),
				Handle: fuseops.HandleID(in.Fh),
				Offset: fuseops.DirOffset(in.Offset),
				Size:   int(in.Size),
			}
			o.Init(o, "ReadDir", header, cfg.opContext(), nil)
			op = o
		}

	case fusekernel.OpReleasedir:
		in := (*fusekernel.ReleaseIn)(m.Consume(unsafe.Sizeof(fusekernel.ReleaseIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt RELEASEDIR request")
		}
		o := &fuseops.ReleaseDirHandleOp{Handle: fuseops.HandleID(in.Fh)}
		o.Init(o, "ReleaseDirHandle", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpFsyncdir:
		in := (*fusekernel.FsyncIn)(m.Consume(unsafe.Sizeof(fusekernel.FsyncIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt FSYNCDIR request")
		}
		o := &fuseops.SyncDirOp{
			Inode:    fuseops.InodeID(h.NodeID),
			Handle:   fuseops.HandleID(in.Fh),
			DataOnly: in.FsyncFlags&1 != 0,
		}
		o.Init(o, "SyncDir", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpRead:
		in := (*fusekernel.ReadIn)(m.Consume(fusekernel.ReadInSize(protocol)))
		if in == nil {
			return nil, fmt.Errorf("corrupt READ request")
		}
		o := &fuseops.ReadFileOp{
			Inode:  fuseops.InodeID(h.NodeID),
			Handle: fuseops.HandleID(in.Fh),
			Offset: int64(in.Offset),
			Size:   int(in.Size),
		}
		o.Init(o, "ReadFile", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpWrite:
		in := (*fusekernel.WriteIn)(m.Consume(fusekernel.WriteInSize(protocol)))
		if in == nil {
			return nil, fmt.Errorf("corrupt WRITE request")
		}
		data := m.ConsumeBytes(uintptr(in.Size))
		if data == nil {
			return nil, fmt.Errorf("corrupt WRITE request: trailer shorter than declared size %d", in.Size)
		}
		o := &fuseops.WriteFileOp{
			Inode:  fuseops.InodeID(h.NodeID),
			Handle: fuseops.HandleID(in.Fh),
			Offset: int64(in.Offset),
			Data:   data,
		}
		o.Init(o, "WriteFile", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpStatfs:
		o := &fuseops.StatFSOp{}
		o.Init(o, "StatFS", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpRelease:
		in := (*fusekernel.ReleaseIn)(m.Consume(unsafe.Sizeof(fusekernel.ReleaseIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt RELEASE request")
		}
		o := &fuseops.ReleaseFileHandleOp{Handle: fuseops.HandleID(in.Fh)}
		o.Init(o, "ReleaseFileHandle", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpFsync:
		in := (*fusekernel.FsyncIn)(m.Consume(unsafe.Sizeof(fusekernel.FsyncIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt FSYNC request")
		}
		o := &fuseops.SyncFileOp{
			Inode:    fuseops.InodeID(h.NodeID),
			Handle:   fuseops.HandleID(in.Fh),
			DataOnly: in.FsyncFlags&1 != 0,
		}
		o.Init(o, "SyncFile", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpFlush:
		in := (*fusekernel.FlushIn)(m.Consume(unsafe.Sizeof(fusekernel.FlushIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt FLUSH request")
		}
		o := &fuseops.FlushFileOp{Inode: fuseops.InodeID(h.NodeID), Handle: fuseops.HandleID(in.Fh)}
		o.Init(o, "FlushFile", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpFallocate:
		in := (*fusekernel.FallocateIn)(m.Consume(unsafe.Sizeof(fusekernel.FallocateIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt FALLOCATE request")
		}
		o := &fuseops.FallocateOp{
			Inode:  fuseops.InodeID(h.NodeID),
			Handle: fuseops.HandleID(in.Fh),
			Offset: in.Offset,
			Length: in.Length,
			Mode:   in.Mode,
		}
		o.Init(o, "Fallocate", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpAccess:
		in := (*fusekernel.AccessIn)(m.Consume(unsafe.Sizeof(fusekernel.AccessIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt ACCESS request")
		}
		o := &fuseops.AccessOp{Inode: fuseops.InodeID(h.NodeID), Mask: in.Mask}
		o.Init(o, "Access", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpSetxattr:
		in := (*fusekernel.SetxattrIn)(m.Consume(unsafe.Sizeof(fusekernel.SetxattrIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt SETXATTR request")
		}
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		value := m.ConsumeBytes(uintptr(in.Size))
		if value == nil {
			return nil, fmt.Errorf("corrupt SETXATTR request: value shorter than declared size %d", in.Size)
		}
		o := &fuseops.SetXattrOp{
			Inode: fuseops.InodeID(h.NodeID),
			Name:  name,
			Value: value,
			Flags: in.Flags,
		}
		o.Init(o, "SetXattr", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpGetxattr:
		in := (*fusekernel.GetxattrIn)(m.Consume(unsafe.Sizeof(fusekernel.GetxattrIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt GETXATTR request")
		}
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		o := &fuseops.GetXattrOp{Inode: fuseops.InodeID(h.NodeID), Name: name, Size: uint64(in.Size)}
		o.Init(o, "GetXattr", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpListxattr:
		in := (*fusekernel.GetxattrIn)(m.Consume(unsafe.Sizeof(fusekernel.GetxattrIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt LISTXATTR request")
		}
		o := &fuseops.ListXattrOp{Inode: fuseops.InodeID(h.NodeID), Size: uint64(in.Size)}
		o.Init(o, "ListXattr", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpRemovexattr:
		name, nameErr := consumeCString(m)
		if nameErr != nil {
			return nil, nameErr
		}
		o := &fuseops.RemoveXattrOp{Inode: fuseops.InodeID(h.NodeID), Name: name}
		o.Init(o, "RemoveXattr", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpGetlk, fusekernel.OpSetlk, fusekernel.OpSetlkw:
		in := (*fusekernel.LkIn)(m.Consume(unsafe.Sizeof(fusekernel.LkIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt LK request")
		}
		start, end := decodeLockRange(in.Lk.Start, in.Lk.End)
		lock := fuseops.FileLock{
			Start: start,
			End:   end,
			Type:  MapFlockType(in.Lk.Type),
			Pid:   in.Lk.PID,
		}
		if h.Opcode == fusekernel.OpGetlk {
			o := &fuseops.GetLkOp{
				Inode: fuseops.InodeID(h.NodeID), Handle: fuseops.HandleID(in.Fh),
				Owner: in.Owner, Lock: lock,
			}
			o.Init(o, "GetLk", header, cfg.opContext(), nil)
			op = o
		} else {
			o := &fuseops.SetLkOp{
				Inode: fuseops.InodeID(h.NodeID), Handle: fuseops.HandleID(in.Fh),
				Owner: in.Owner, Lock: lock, Wait: h.Opcode == fusekernel.OpSetlkw,
			}
			o.Init(o, "SetLk", header, cfg.opContext(), nil)
			op = o
		}

	case fusekernel.OpBmap:
		in := (*fusekernel.BmapIn)(m.Consume(unsafe.Sizeof(fusekernel.BmapIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt BMAP request")
		}
		o := &fuseops.BMapOp{
			Inode: fuseops.InodeID(h.NodeID), BlockSize: in.BlockSize, Block: in.Block,
		}
		o.Init(o, "BMap", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpIoctl:
		in := (*fusekernel.IoctlIn)(m.Consume(unsafe.Sizeof(fusekernel.IoctlIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt IOCTL request")
		}
		input := m.ConsumeBytes(uintptr(in.InSize))
		o := &fuseops.IoctlOp{Handle: fuseops.HandleID(in.Fh), Cmd: in.Cmd, Arg: in.Arg, Input: input}
		o.Init(o, "Ioctl", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpPoll:
		in := (*fusekernel.PollIn)(m.Consume(unsafe.Sizeof(fusekernel.PollIn{})))
		if in == nil {
			return nil, fmt.Errorf("corrupt POLL request")
		}
		o := &fuseops.PollOp{Handle: fuseops.HandleID(in.Fh), Kh: in.Kh, Events: in.Events}
		o.Init(o, "Poll", header, cfg.opContext(), nil)
		op = o

	case fusekernel.OpDestroy:
		op = &unknownOp{OpCode: uint32(h.Opcode), header: header}

	default:
		op = &unknownOp{OpCode: uint32(h.Opcode), Inode: fuseops.InodeID(h.NodeID), header: header}
	}

	return op, nil
}

// decodeLockRange normalizes a wire (start, end) lock range. An end of
// i64::MAX or greater (the kernel's unbounded, to-EOF convention) becomes
// math.MaxInt64; an end before start (the kernel's negative-length
// convention) is swapped into a forward range covering the same bytes.
func decodeLockRange(start, end uint64) (int64, int64) {
	s := int64(start)

	var e int64
	if end >= uint64(math.MaxInt64) {
		e = math.MaxInt64
	} else {
		e = int64(end)
	}

	if e < s {
		s, e = e+1, s
	}

	return s, e
}

// consumeCStringPair reads two consecutive NUL-terminated strings, used
// by RENAME/RENAME2.
func consumeCStringPair(m *buffer.InMessage) ([2]string, error) {
	rest := m.ConsumeBytes(m.Remaining())
	var out [2]string
	start := 0
	for i := 0; i < 2; i++ {
		j := start
		for j < len(rest) && rest[j] != 0 {
			j++
		}
		if j == len(rest) {
			return out, fmt.Errorf("unterminated rename name")
		}
		out[i] = string(rest[start:j])
		start = j + 1
	}
	return out, nil
}

// errnoOf reports the kernel errno this library will send for err.
func errnoOf(err error) syscall.Errno {
	return errno(err)
}
