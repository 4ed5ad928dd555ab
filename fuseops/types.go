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

package fuseops

import (
	"context"
	"os"
	"syscall"
	"time"
)

////////////////////////////////////////////////////////////////////////
// Simple types
////////////////////////////////////////////////////////////////////////

// A 64-bit number used to uniquely identify a file or directory in the file
// system. File systems may mint inode IDs with any value except for
// RootInodeID.
//
// This corresponds to struct inode::i_no in the VFS layer.
type InodeID uint64

// RootInodeID is a distinguished inode ID that identifies the root of the
// file system, e.g. in a request to OpenDir or LookUpInode. Unlike all
// other inode IDs, which are minted by the file system, the kernel may
// send a request for this ID without the file system ever having
// referenced it in a previous response.
const RootInodeID = 1

// GenerationNumber is a generation number for an inode. Irrelevant for file
// systems that won't be exported over NFS. For those that will and that
// reuse inode IDs when they become free, the generation number must change
// when an ID is reused.
type GenerationNumber uint64

// HandleID is an opaque 64-bit number used to identify a particular open
// handle to a file or directory.
//
// This corresponds to fuse_file_info::fh.
type HandleID uint64

// DirOffset is an offset into an open directory handle. This is opaque to
// FUSE, and can be used for whatever purpose the file system desires. See
// notes on ReadDirOp.Offset for details.
type DirOffset uint64

// DirentType describes the type of a directory entry, packed into the low
// bits of the st_mode field the FUSE userspace library also uses: the
// S_IFMT bits of the mode, shifted right by 12.
type DirentType uint32

const (
	// DT_Unknown means callers will need to do a GetInodeAttributes when
	// the type is actually needed; providing a real type up front can
	// save that round trip.
	DT_Unknown DirentType = 0
	DT_Socket  DirentType = 0140000 >> 12
	DT_Link    DirentType = 0120000 >> 12
	DT_File    DirentType = 0100000 >> 12
	DT_Block   DirentType = 0060000 >> 12
	DT_Dir     DirentType = 0040000 >> 12
	DT_Char    DirentType = 0020000 >> 12
	DT_FIFO    DirentType = 0010000 >> 12
)

// Dirent represents a single directory entry, as consumed by
// fuseutil.WriteDirent and produced when listing a directory's contents.
type Dirent struct {
	// Offset round-trips back to the file system in a later ReadDirOp's
	// Offset field, letting it resume a listing after this entry.
	Offset DirOffset

	// Inode is the child's inode ID. The kernel treats this as opaque
	// for plain READDIR; see ReadDirPlusOp for requests where a full
	// ChildInodeEntry is also needed.
	Inode InodeID

	Name string
	Type DirentType
}

// OpenFlags mirrors the open(2) flags the kernel reports for OpenFile,
// OpenDir, and CreateFile requests.
type OpenFlags uint32

const (
	OpenReadOnly  OpenFlags = syscall.O_RDONLY // O_RDONLY section of the mode bits
	OpenWriteOnly OpenFlags = syscall.O_WRONLY // O_WRONLY
	OpenReadWrite OpenFlags = syscall.O_RDWR   // O_RDWR
	OpenAppend    OpenFlags = syscall.O_APPEND
	OpenCreate    OpenFlags = syscall.O_CREAT
	OpenExclusive OpenFlags = syscall.O_EXCL
	OpenTruncate  OpenFlags = syscall.O_TRUNC
	OpenDirectory OpenFlags = syscall.O_DIRECTORY
	OpenNonblock  OpenFlags = syscall.O_NONBLOCK
	OpenSync      OpenFlags = syscall.O_SYNC
)

// InodeAttributes holds attributes for a file or directory inode.
// Corresponds to struct inode in the kernel.
type InodeAttributes struct {
	Size uint64

	// The number of incoming hard links to this inode.
	Nlink uint64

	// The mode of the inode. This is exposed to the user in e.g. the result
	// of fstat(2).
	Mode os.FileMode

	// Time information. See `man 2 stat` for full details.
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
	Crtime time.Time

	// Ownership information.
	Uid uint32
	Gid uint32

	// The device number, valid only for block and character device inodes.
	Rdev uint32
}

// ChildInodeEntry holds information about a child inode within its parent
// directory. Shared by the responses for LookUpInode, MkDir, CreateFile,
// Mknod, Symlink, and Link. Consumed by the kernel in order to set up a
// dcache entry.
type ChildInodeEntry struct {
	// The ID of the child inode. The file system must ensure that the
	// returned inode ID remains valid until a later call to ForgetInode.
	Child InodeID

	// A generation number for this incarnation of the inode with the given
	// ID. See comments on type GenerationNumber for more.
	Generation GenerationNumber

	// Current attributes for the child inode.
	Attributes InodeAttributes

	// The FUSE VFS layer in the kernel maintains a cache of file attributes
	// and of the validity of a name lookup, each with its own expiry time.
	// Leave at the zero value to disable caching.
	AttributesExpiration time.Time
	EntryExpiration      time.Time
}

// OpHeader carries the caller credentials and process ID every kernel
// request is tagged with, independent of opcode.
type OpHeader struct {
	Uid uint32
	Gid uint32
	Pid uint32
}

////////////////////////////////////////////////////////////////////////
// Op
////////////////////////////////////////////////////////////////////////

// Op is implemented by every request type in this package. A Connection
// hands out values satisfying this interface from ReadOp; exactly one of
// Respond must be called for each one, exactly once, before its
// underlying buffers are recycled.
type Op interface {
	// Header returns the credentials and metadata common to every op.
	Header() OpHeader

	// Context returns a context.Context associated with this op, suitable
	// for passing to blocking calls. The context is cancelled if the
	// kernel sends a matching INTERRUPT request before the op is
	// responded to.
	Context() context.Context

	// Respond sends a reply to the kernel for this op: a success reply
	// built from the op's output fields if err is nil, or an error reply
	// carrying the errno for err otherwise. Exactly one call to Respond is
	// allowed per op.
	Respond(err error)

	// ShortDesc returns a short human-readable description of the op,
	// useful for logging.
	ShortDesc() string
}

// replyFunc is installed on every op by the Connection that decoded it. It
// is the op's only path back to the wire: commonOp.Respond calls it
// exactly once.
type replyFunc func(op Op, err error)

// commonOp is embedded by every concrete op type in this package to
// satisfy the parts of Op that don't vary per opcode.
type commonOp struct {
	opType string
	header OpHeader
	ctx    context.Context

	// self points back at the concrete op that embeds this commonOp, whose
	// exported fields hold the response payload. Set by Init.
	self Op

	// Installed by the Connection through InstallReply after decode, once
	// beginOp has run. Responsible for building and sending the kernel
	// reply, then releasing the op's buffers.
	reply replyFunc

	// Guards against a double Respond, which would corrupt the
	// exactly-once-reply invariant the kernel depends on.
	responded bool
}

// Init wires up the parts of commonOp that are identical across opcodes.
// Every concrete op's constructor calls this once, passing itself as self
// so that Respond can hand the fully-populated op back to the Connection.
func (o *commonOp) Init(self Op, opType string, header OpHeader, ctx context.Context, reply replyFunc) {
	o.self = self
	o.opType = opType
	o.header = header
	o.ctx = ctx
	o.reply = reply
}

func (o *commonOp) Header() OpHeader {
	return o.header
}

func (o *commonOp) Context() context.Context {
	return o.ctx
}

func (o *commonOp) ShortDesc() string {
	return o.opType
}

func (o *commonOp) Respond(err error) {
	if o.responded {
		panic("Op already responded to: " + o.opType)
	}
	o.responded = true
	o.reply(o.self, err)
}

// ReplyFunc is the reply callback signature a Connection installs on an
// op once its per-request context is available.
type ReplyFunc = replyFunc

// installReply lets a Connection finish wiring an op's context and reply
// function once the per-request context (cancelled on a matching
// INTERRUPT) has been set up, which happens after the op is decoded.
func (o *commonOp) installReply(ctx context.Context, reply ReplyFunc) {
	o.ctx = ctx
	o.reply = reply
}

type replyInstaller interface {
	installReply(ctx context.Context, reply ReplyFunc)
}

// InstallReply finishes wiring op's context and reply function. The
// Connection calls this once per decoded op after convertInMessage has
// populated it via Init with a placeholder context.
func InstallReply(op Op, ctx context.Context, reply ReplyFunc) {
	if ri, ok := op.(replyInstaller); ok {
		ri.installReply(ctx, reply)
	}
}
