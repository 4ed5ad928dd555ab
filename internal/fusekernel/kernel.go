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

// Package fusekernel reproduces the Linux kernel's fuse.h wire layouts:
// opcodes, flag bitmasks and the fixed-size fuse_*_in/fuse_*_out records
// that travel across /dev/fuse. Every struct here is read and written by
// type-punning a byte buffer, so field order and width must match the
// kernel exactly; nothing here may be reordered for Go-side convenience.
package fusekernel

import "fmt"

// Protocol is a (major, minor) FUSE ABI version pair. The kernel proposes
// one in its INIT request; the library negotiates down to a mutually
// understood version in the INIT reply.
type Protocol struct {
	Major uint32
	Minor uint32
}

func (p Protocol) String() string {
	return fmt.Sprintf("%d.%d", p.Major, p.Minor)
}

// LT reports whether p is strictly older than other.
func (p Protocol) LT(other Protocol) bool {
	if p.Major != other.Major {
		return p.Major < other.Major
	}
	return p.Minor < other.Minor
}

// GE reports whether p is at least as new as other.
func (p Protocol) GE(other Protocol) bool {
	return !p.LT(other)
}

// HasReaddirplus reports whether this protocol version is new enough for
// fuse_direntplus / FUSE_READDIRPLUS.
func (p Protocol) HasReaddirplus() bool {
	return p.GE(Protocol{7, 21})
}

// HasAttrBlockSize reports whether the kernel's Attr struct carries a
// meaningful BlkSize field rather than padding.
func (p Protocol) HasAttrBlockSize() bool {
	return p.GE(Protocol{7, 9})
}

const (
	// ProtoVersionMinMajor/Minor is the oldest ABI version this library
	// will accept from the kernel without immediately erroring out.
	ProtoVersionMinMajor = 7
	ProtoVersionMinMinor = 8

	// ProtoVersionMaxMajor/Minor is the newest ABI version this library
	// knows how to speak. It is what the library offers in its INIT reply
	// when the kernel proposes something newer.
	ProtoVersionMaxMajor = 7
	ProtoVersionMaxMinor = 38

	// RootID is the reserved NodeID of the mount point.
	RootID = 1

	// MinReadBuffer is the smallest receive buffer the kernel is willing
	// to write a request into; the library's default is exactly this.
	MinReadBuffer = 8192
)

// Opcode identifies the operation carried by a request/response pair.
type Opcode uint32

const (
	OpLookup      Opcode = 1
	OpForget      Opcode = 2 // No reply.
	OpGetattr     Opcode = 3
	OpSetattr     Opcode = 4
	OpReadlink    Opcode = 5
	OpSymlink     Opcode = 6
	OpMknod       Opcode = 8
	OpMkdir       Opcode = 9
	OpUnlink      Opcode = 10
	OpRmdir       Opcode = 11
	OpRename      Opcode = 12
	OpLink        Opcode = 13
	OpOpen        Opcode = 14
	OpRead        Opcode = 15
	OpWrite       Opcode = 16
	OpStatfs      Opcode = 17
	OpRelease     Opcode = 18
	OpFsync       Opcode = 20
	OpSetxattr    Opcode = 21
	OpGetxattr    Opcode = 22
	OpListxattr   Opcode = 23
	OpRemovexattr Opcode = 24
	OpFlush       Opcode = 25
	OpInit        Opcode = 26
	OpOpendir     Opcode = 27
	OpReaddir     Opcode = 28
	OpReleasedir  Opcode = 29
	OpFsyncdir    Opcode = 30
	OpGetlk       Opcode = 31
	OpSetlk       Opcode = 32
	OpSetlkw      Opcode = 33
	OpAccess      Opcode = 34
	OpCreate      Opcode = 35
	OpInterrupt   Opcode = 36
	OpBmap        Opcode = 37
	OpDestroy     Opcode = 38
	OpIoctl       Opcode = 39
	OpPoll        Opcode = 40
	OpNotifyReply Opcode = 41
	OpBatchForget Opcode = 42
	OpFallocate   Opcode = 43
	OpReaddirplus Opcode = 44
	OpRename2     Opcode = 45
	OpLseek       Opcode = 46

	OpCopyFileRange Opcode = 47

	// CUSE-specific. Sent in place of OpInit when opening /dev/cuse.
	OpCuseInit Opcode = 4096
)

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Opcode(%d)", uint32(o))
}

var opcodeNames = map[Opcode]string{
	OpLookup:        "LOOKUP",
	OpForget:        "FORGET",
	OpGetattr:       "GETATTR",
	OpSetattr:       "SETATTR",
	OpReadlink:      "READLINK",
	OpSymlink:       "SYMLINK",
	OpMknod:         "MKNOD",
	OpMkdir:         "MKDIR",
	OpUnlink:        "UNLINK",
	OpRmdir:         "RMDIR",
	OpRename:        "RENAME",
	OpLink:          "LINK",
	OpOpen:          "OPEN",
	OpRead:          "READ",
	OpWrite:         "WRITE",
	OpStatfs:        "STATFS",
	OpRelease:       "RELEASE",
	OpFsync:         "FSYNC",
	OpSetxattr:      "SETXATTR",
	OpGetxattr:      "GETXATTR",
	OpListxattr:     "LISTXATTR",
	OpRemovexattr:   "REMOVEXATTR",
	OpFlush:         "FLUSH",
	OpInit:          "INIT",
	OpOpendir:       "OPENDIR",
	OpReaddir:       "READDIR",
	OpReleasedir:    "RELEASEDIR",
	OpFsyncdir:      "FSYNCDIR",
	OpGetlk:         "GETLK",
	OpSetlk:         "SETLK",
	OpSetlkw:        "SETLKW",
	OpAccess:        "ACCESS",
	OpCreate:        "CREATE",
	OpInterrupt:     "INTERRUPT",
	OpBmap:          "BMAP",
	OpDestroy:       "DESTROY",
	OpIoctl:         "IOCTL",
	OpPoll:          "POLL",
	OpNotifyReply:   "NOTIFY_REPLY",
	OpBatchForget:   "BATCH_FORGET",
	OpFallocate:     "FALLOCATE",
	OpReaddirplus:   "READDIRPLUS",
	OpRename2:       "RENAME2",
	OpLseek:         "LSEEK",
	OpCopyFileRange: "COPY_FILE_RANGE",
	OpCuseInit:      "CUSE_INIT",
}

// NotifyCode identifies a server-to-kernel notification message. Unlike
// ordinary opcodes these travel in OutHeader.Error (OutHeader.Unique is
// zero for every notification).
type NotifyCode int32

const (
	NotifyCodePoll        NotifyCode = 1
	NotifyCodeInvalInode  NotifyCode = 2
	NotifyCodeInvalEntry  NotifyCode = 3
	NotifyCodeStore       NotifyCode = 4
	NotifyCodeRetrieve    NotifyCode = 5
	NotifyCodeDelete      NotifyCode = 6
	NotifyCodeCodeMax     NotifyCode = 7
)

// SETATTR valid-mask bits (Setattr_in.Valid).
const (
	FattrMode      = 1 << 0
	FattrUID       = 1 << 1
	FattrGID       = 1 << 2
	FattrSize      = 1 << 3
	FattrAtime     = 1 << 4
	FattrMtime     = 1 << 5
	FattrFh        = 1 << 6
	FattrAtimeNow  = 1 << 7
	FattrMtimeNow  = 1 << 8
	FattrLockOwner = 1 << 9
	FattrCtime     = 1 << 10
	// FattrKillSuidgid is a Linux extension (kernel >= 5.12) signalling
	// that setuid/setgid bits must be dropped as part of this SETATTR.
	FattrKillSuidgid = 1 << 11
)

// OPEN reply flags (Open_out.OpenFlags).
const (
	OpenDirectIO   = 1 << 0
	OpenKeepCache  = 1 << 1
	OpenNonSeekable = 1 << 2
	OpenCacheDir   = 1 << 3
)

// INIT request/reply flags (Init_in/Init_out.Flags).
type InitFlags uint32

const (
	InitAsyncRead         InitFlags = 1 << 0
	InitPosixLocks        InitFlags = 1 << 1
	InitFileOps           InitFlags = 1 << 2
	InitAtomicTrunc       InitFlags = 1 << 3
	InitExportSupport     InitFlags = 1 << 4
	InitBigWrites         InitFlags = 1 << 5
	InitDontMask          InitFlags = 1 << 6
	InitSpliceWrite       InitFlags = 1 << 7
	InitSpliceMove        InitFlags = 1 << 8
	InitSpliceRead        InitFlags = 1 << 9
	InitFlockLocks        InitFlags = 1 << 10
	InitHasIoctlDir       InitFlags = 1 << 11
	InitAutoInvalData     InitFlags = 1 << 12
	InitDoReaddirplus     InitFlags = 1 << 13
	InitReaddirplusAuto   InitFlags = 1 << 14
	InitAsyncDIO          InitFlags = 1 << 15
	InitWritebackCache    InitFlags = 1 << 16
	InitNoOpenSupport     InitFlags = 1 << 17
	InitParallelDirOps    InitFlags = 1 << 18
	InitHandleKillpriv    InitFlags = 1 << 19
	InitPosixACL          InitFlags = 1 << 20
	InitAbortError        InitFlags = 1 << 21
	InitMaxPages          InitFlags = 1 << 22
	InitCacheSymlinks     InitFlags = 1 << 23
	InitNoOpendirSupport  InitFlags = 1 << 24
	InitExplicitInvalData InitFlags = 1 << 25
)

// CUSE INIT flags.
const (
	CuseUnrestrictedIoctl = 1 << 0
)

// RELEASE flags (Release_in.ReleaseFlags).
const (
	ReleaseFlush     = 1 << 0
	ReleaseFlockUnlock = 1 << 1
)

// GETATTR flags (Getattr_in.GetattrFlags).
const (
	GetattrFh = 1 << 0
)

// Lock flags (Lk_in/Lk_out.LkFlags).
const (
	LkFlock = 1 << 0
)

// WRITE flags (Write_in.WriteFlags).
const (
	WriteCache     = 1 << 0
	WriteLockOwner = 1 << 1
	WriteKillPriv  = 1 << 2
)

// READ flags (Read_in.ReadFlags).
const (
	ReadLockOwner = 1 << 1
)

// IOCTL flags (Ioctl_in/Ioctl_out.Flags).
const (
	IoctlCompat       = 1 << 0
	IoctlUnrestricted = 1 << 1
	IoctlRetry        = 1 << 2
	Ioctl32bit        = 1 << 3
	IoctlDir          = 1 << 4

	// IoctlMaxIov bounds the number of in+out IoctlSlice records a retry
	// descriptor may carry.
	IoctlMaxIov = 256
)

// POLL flags.
const (
	PollScheduleNotify = 1 << 0
)

// RENAME2 flags (Rename2_in.Flags), shared with renameat2(2).
const (
	RenameNoReplace = 1 << 0
	RenameExchange  = 1 << 1
	RenameWhiteout  = 1 << 2
)

// Compat sizes: the kernel will only read this many bytes of the
// corresponding *_out struct when talking a protocol minor version older
// than the one that introduced the trailing fields.
const (
	CompatEntryOutSize  = 120
	CompatAttrOutSize   = 96
	CompatMknodInSize   = 8
	CompatWriteInSize   = 24
	CompatStatfsSize    = 48
	CompatInitOutSize   = 8
	CuseInitInfoMax     = 4096
)

// FileType classifies the high bits of Attr.Mode, matching S_IFMT.
type FileType uint32

const (
	S_IFIFO  FileType = 0o010000
	S_IFCHR  FileType = 0o020000
	S_IFDIR  FileType = 0o040000
	S_IFBLK  FileType = 0o060000
	S_IFREG  FileType = 0o100000
	S_IFLNK  FileType = 0o120000
	S_IFSOCK FileType = 0o140000

	S_IFMT = 0o170000
)

// DirentType maps S_IFMT bits onto the dirent d_type byte (man 3
// readdir), used in fuse_dirent.Type / fuse_direntplus.Dirent.Type.
type DirentType uint32

const (
	DT_Unknown DirentType = 0
	DT_FIFO    DirentType = 1
	DT_Chr     DirentType = 2
	DT_Dir     DirentType = 4
	DT_Blk     DirentType = 6
	DT_Reg     DirentType = 8
	DT_Lnk     DirentType = 10
	DT_Sock    DirentType = 12
	DT_WHT     DirentType = 14
)

// ModeToDirentType converts a full POSIX mode (as found in Attr.Mode)
// to the type nibble used in dirent records.
func ModeToDirentType(mode uint32) DirentType {
	switch FileType(mode & S_IFMT) {
	case S_IFIFO:
		return DT_FIFO
	case S_IFCHR:
		return DT_Chr
	case S_IFDIR:
		return DT_Dir
	case S_IFBLK:
		return DT_Blk
	case S_IFREG:
		return DT_Reg
	case S_IFLNK:
		return DT_Lnk
	case S_IFSOCK:
		return DT_Sock
	default:
		return DT_Unknown
	}
}
