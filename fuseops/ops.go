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

// Package fuseops contains one request/response struct pair per FUSE
// opcode that may be returned by a Connection's ReadOp. See the
// documentation on Op for the contract every struct here satisfies.
package fuseops

import (
	"os"
	"time"
)

////////////////////////////////////////////////////////////////////////
// Mount lifecycle
////////////////////////////////////////////////////////////////////////

// InitOp describes the INIT handshake sent once when mounting the file
// system. The Connection performs that handshake itself (Connection.Init),
// and ReadOp never returns an InitOp.
type InitOp struct {
	commonOp

	// The protocol version the kernel offered.
	Kernel Protocol

	// The negotiated protocol version that will actually be used for the
	// remainder of the session.
	Library Protocol
}

// Protocol is a FUSE protocol version, (major, minor).
type Protocol struct {
	Major uint32
	Minor uint32
}

////////////////////////////////////////////////////////////////////////
// Inodes
////////////////////////////////////////////////////////////////////////

// LookUpInodeOp looks up a child by name within a parent directory. The
// kernel sends this when resolving user paths to dentry structs, which
// are then cached.
type LookUpInodeOp struct {
	commonOp

	// The ID of the directory inode to which the child belongs.
	Parent InodeID

	// The name of the child of interest, relative to the parent.
	Name string

	// The resulting entry. Must be filled out by the file system.
	Entry ChildInodeEntry
}

// GetInodeAttributesOp refreshes the attributes for an inode whose ID was
// previously returned in a LookUpInodeOp. The kernel sends this when the
// FUSE VFS layer's cache of inode attributes is stale.
type GetInodeAttributesOp struct {
	commonOp

	Inode InodeID

	// Set by the file system.
	Attributes           InodeAttributes
	AttributesExpiration time.Time
}

// SetInodeAttributesOp changes attributes for an inode.
//
// The kernel sends this for obvious cases like chmod(2), and for less
// obvious cases like ftruncate(2).
type SetInodeAttributesOp struct {
	commonOp

	Inode InodeID

	// The attributes to modify, or nil for attributes that don't need a change.
	Size  *uint64
	Mode  *os.FileMode
	Atime *time.Time
	Mtime *time.Time

	// Set by the file system.
	Attributes           InodeAttributes
	AttributesExpiration time.Time
}

// ForgetInodeOp forgets an inode ID previously issued (e.g. by
// LookUpInode or MkDir). The kernel sends this when removing an inode
// from its internal caches. The kernel expects no reply, and none is sent.
type ForgetInodeOp struct {
	commonOp

	// The inode to be forgotten. The kernel guarantees the ID will not be
	// reused unless reissued by the file system.
	Inode InodeID

	// The number of lookup references to release, per fuse_forget_in.
	N uint64
}

// BatchForgetEntry is one element of a BatchForgetOp.
type BatchForgetEntry struct {
	Inode InodeID
	N     uint64
}

// BatchForgetOp is the kernel's batched form of ForgetInodeOp, sent when
// several inodes are evicted from the dentry cache at once.
type BatchForgetOp struct {
	commonOp

	Entries []BatchForgetEntry
}

////////////////////////////////////////////////////////////////////////
// Inode creation
////////////////////////////////////////////////////////////////////////

// MkDirOp creates a directory inode as a child of an existing directory
// inode, in response to mkdir(2).
type MkDirOp struct {
	commonOp

	Parent InodeID
	Name   string
	Mode   os.FileMode

	// Set by the file system.
	Entry ChildInodeEntry
}

// MkNodeOp creates a non-directory, non-symlink inode: a regular file,
// device node, or named pipe, in response to mknod(2).
type MkNodeOp struct {
	commonOp

	Parent InodeID
	Name   string
	Mode   os.FileMode
	Rdev   uint32

	Entry ChildInodeEntry
}

// CreateFileOp creates a file inode and opens it.
//
// The kernel sends this when the user asks to open a file with the
// O_CREAT flag and the kernel has observed that the file doesn't exist.
type CreateFileOp struct {
	commonOp

	Parent InodeID
	Name   string
	Mode   os.FileMode
	Flags  OpenFlags

	// Set by the file system.
	Entry  ChildInodeEntry
	Handle HandleID
}

// CreateSymlinkOp creates a symlink inode, in response to symlink(2).
type CreateSymlinkOp struct {
	commonOp

	Parent InodeID
	Name   string
	Target string

	Entry ChildInodeEntry
}

// CreateLinkOp creates a hard link to an existing inode, in response to
// link(2).
type CreateLinkOp struct {
	commonOp

	Parent InodeID
	Name   string
	Target InodeID

	Entry ChildInodeEntry
}

// ReadSymlinkOp reads the target of a symlink inode, in response to
// readlink(2).
type ReadSymlinkOp struct {
	commonOp

	Inode InodeID

	// Set by the file system.
	Target string
}

// RenameOp renames a directory entry, in response to rename(2).
type RenameOp struct {
	commonOp

	OldParent InodeID
	OldName   string
	NewParent InodeID
	NewName   string

	// Flags from renameat2(2) (RENAME_NOREPLACE, RENAME_EXCHANGE), zero if
	// the kernel used the plain RENAME opcode.
	Flags uint32
}

////////////////////////////////////////////////////////////////////////
// Unlinking
////////////////////////////////////////////////////////////////////////

// RmDirOp unlinks a directory from its parent. Because directories cannot
// have a link count above one, this means the directory inode should be
// deleted as well once the kernel sends ForgetInodeOp.
type RmDirOp struct {
	commonOp

	Parent InodeID
	Name   string
}

// UnlinkOp unlinks a file from its parent. If this brings the inode's
// link count to zero, the inode should be deleted once the kernel sends
// ForgetInodeOp.
type UnlinkOp struct {
	commonOp

	Parent InodeID
	Name   string
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

// OpenDirOp opens a directory inode, usually in response to an open(2)
// call from a user-space process.
type OpenDirOp struct {
	commonOp

	Inode InodeID
	Flags OpenFlags

	// Set by the file system.
	Handle HandleID
}

// ReadDirOp reads entries from a directory previously opened with
// OpenDir.
type ReadDirOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID

	// The offset within the directory at which to read; opaque, round-trips
	// through the Offset field of previously-returned Dirent records.
	Offset DirOffset

	// The maximum number of bytes to return in Data. A smaller number is
	// acceptable.
	Size int

	// Set by the file system: a buffer consisting of a sequence of
	// directory entries produced by a fuseutil entry-writer. An empty
	// buffer indicates the end of the directory has been reached.
	Data []byte
}

// ReadDirPlusOp is READDIRPLUS: like ReadDirOp, but each entry also
// carries a full ChildInodeEntry so the kernel can prime its dentry and
// attribute caches in the same round trip.
type ReadDirPlusOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Offset DirOffset
	Size   int

	// Set by the file system, packed with a fuseutil direntplus writer.
	Data []byte
}

// ReleaseDirHandleOp releases a previously-minted directory handle. The
// kernel sends this when there are no more references to an open
// directory.
type ReleaseDirHandleOp struct {
	commonOp

	Handle HandleID
}

// SyncDirOp synchronizes the current contents of an open directory to
// storage, in response to fsync(2) on a directory file descriptor.
type SyncDirOp struct {
	commonOp

	Inode    InodeID
	Handle   HandleID
	DataOnly bool
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

// OpenFileOp opens a file inode, usually in response to an open(2) call
// from a user-space process.
type OpenFileOp struct {
	commonOp

	Inode InodeID
	Flags OpenFlags

	// Set by the file system.
	Handle       HandleID
	KeepPageCache bool
}

// ReadFileOp reads data from a file previously opened with CreateFile or
// OpenFile.
//
// Note that this op is not sent for every call to read(2) by the end
// user; some reads may be served by the page cache.
type ReadFileOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID

	Offset int64
	Size   int

	// Set by the file system: the data read. If this is less than the
	// requested size, it indicates EOF.
	Data []byte

	// Callback, if set by the file system, is invoked after the reply has
	// been written to the kernel and before the op's buffers are recycled.
	// Useful for releasing a buffer backing Data that was handed to the
	// kernel without copying (see buffer.OutMessage.AppendDirect).
	Callback func()
}

// WriteFileOp writes data to a file previously opened with CreateFile or
// OpenFile.
type WriteFileOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID

	Offset int64
	Data   []byte

	// Callback, if set by the file system, is invoked after the reply has
	// been written to the kernel and before the op's buffers are recycled.
	Callback func()
}

// SyncFileOp synchronizes the current contents of an open file to
// storage, in response to fsync(2).
type SyncFileOp struct {
	commonOp

	Inode    InodeID
	Handle   HandleID
	DataOnly bool
}

// FlushFileOp flushes the current state of an open file to storage upon
// closing a file descriptor.
//
// Because of cases like dup2(2), FlushFileOps are not necessarily one to
// one with OpenFileOps; they must not be used for reference counting.
type FlushFileOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
}

// FallocateOp preallocates or deallocates space in a file, in response
// to fallocate(2).
type FallocateOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Offset uint64
	Length uint64
	Mode   uint32
}

// ReleaseFileHandleOp releases a previously-minted file handle. The
// kernel calls this when there are no more references to an open file.
type ReleaseFileHandleOp struct {
	commonOp

	Handle HandleID
}

////////////////////////////////////////////////////////////////////////
// Extended attributes
////////////////////////////////////////////////////////////////////////

// GetXattrOp reads an extended attribute, in response to getxattr(2).
type GetXattrOp struct {
	commonOp

	Inode InodeID
	Name  string

	// The maximum number of bytes to return. If zero, the kernel is
	// asking only for the attribute's size.
	Size uint64

	// Set by the file system: the attribute value. If Size was zero, only
	// len(Dst) is sent back to the kernel, as the attribute's size.
	Dst []byte
}

// ListXattrOp lists the names of extended attributes, in response to
// listxattr(2).
type ListXattrOp struct {
	commonOp

	Inode InodeID
	Size  uint64

	// Set by the file system: a sequence of NUL-terminated names.
	Dst []byte
}

// SetXattrOp sets an extended attribute, in response to setxattr(2).
type SetXattrOp struct {
	commonOp

	Inode InodeID
	Name  string
	Value []byte
	Flags uint32
}

// RemoveXattrOp removes an extended attribute, in response to
// removexattr(2).
type RemoveXattrOp struct {
	commonOp

	Inode InodeID
	Name  string
}

////////////////////////////////////////////////////////////////////////
// Locking
////////////////////////////////////////////////////////////////////////

// FileLockType is the portable form of the POSIX lock types a handler
// deals with; MapFlockType/UnmapFlockType convert to and from the
// platform-specific numbering the kernel puts on the wire.
type FileLockType uint32

const (
	F_RDLOCK FileLockType = iota
	F_WRLOCK
	F_UNLOCK
)

// FileLock describes a POSIX advisory lock range, per fuse_file_lock.
type FileLock struct {
	Start int64
	End   int64
	Type  FileLockType
	Pid   uint32
}

// GetLkOp tests for a conflicting lock, in response to fcntl(2) F_GETLK.
type GetLkOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Owner  uint64
	Lock   FileLock

	// Set by the file system: the conflicting lock, or a lock with
	// Type == F_UNLOCK if none conflicts.
	Conflicting FileLock
}

// SetLkOp acquires or releases a lock, in response to fcntl(2) F_SETLK.
// Wait reports whether the kernel used F_SETLKW, in which case the
// handler may block until the lock is available rather than failing
// immediately with EAGAIN.
type SetLkOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Owner  uint64
	Lock   FileLock
	Wait   bool
}

////////////////////////////////////////////////////////////////////////
// Miscellaneous
////////////////////////////////////////////////////////////////////////

// AccessOp checks whether the calling process may access an inode in the
// given mode, in response to access(2).
type AccessOp struct {
	commonOp

	Inode InodeID
	Mask  uint32
}

// StatFSOp reports file system statistics, in response to statfs(2).
type StatFSOp struct {
	commonOp

	// Set by the file system.
	Blocks, BlocksFree, BlocksAvailable uint64
	Files, FilesFree                   uint64
	IoSize, BlockSize                  uint32
	NameLength                         uint32
}

// BMapOp maps a logical block offset within a file to a physical block
// address on the backing device, for file systems exporting a block
// device directly. Most file systems never receive this op.
type BMapOp struct {
	commonOp

	Inode     InodeID
	BlockSize uint32
	Block     uint64

	// Set by the file system.
	PhysicalBlock uint64
}

// IoctlOp carries a device-specific ioctl(2), primarily used by CUSE
// character devices.
type IoctlOp struct {
	commonOp

	Handle HandleID
	Cmd    uint32
	Arg    uint64
	Input  []byte

	// Set by the file system.
	Output []byte
	Result int32
}

// PollOp supports poll(2)/select(2) on an open handle.
type PollOp struct {
	commonOp

	Handle HandleID
	Kh     uint64
	Events uint32

	// Set by the file system.
	Revents uint32
}

// Interrupt requests and opcodes this package doesn't decode into a typed
// op are handled directly by the Connection (see interruptOp and
// unknownOp in the root fuse package) and never reach this package.
