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

package fusekernel

import "unsafe"

// Every struct below is laid out byte-for-byte like its fuse.h counterpart:
// little-endian, naturally aligned, padded to a multiple of 8 bytes so that
// 32-bit userspace and 64-bit kernels agree on size. Do not reorder fields.

// InHeader is fuse_in_header: the fixed 40-byte prefix of every request.
type InHeader struct {
	Len     uint32
	Opcode  Opcode
	Unique  uint64
	NodeID  uint64
	UID     uint32
	GID     uint32
	PID     uint32
	Padding uint32
}

// OutHeader is fuse_out_header: the fixed 16-byte prefix of every reply.
// Error holds a negative errno on failure, zero on success, or (for
// notifications, where Unique is zero) a NotifyCode.
type OutHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

// Attr is fuse_attr.
type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Nlink     uint32
	UID       uint32
	GID       uint32
	Rdev      uint32
	BlkSize   uint32
	Padding   uint32
}

// Kstatfs is fuse_kstatfs.
type Kstatfs struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	Namelen uint32
	Frsize  uint32
	Padding uint32
	Spare   [6]uint32
}

// FileLock is fuse_file_lock.
type FileLock struct {
	Start uint64
	End   uint64
	Type  uint32
	PID   uint32 // tgid
}

// InitIn is fuse_init_in.
type InitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        InitFlags
}

// InitOut is fuse_init_out. InitOutSize decides how much of it the encoder
// writes; MaxPages is only included when the negotiated minor is >= 28.
type InitOut struct {
	Major               uint32
	Minor               uint32
	MaxReadahead        uint32
	Flags               InitFlags
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxWrite            uint32
	TimeGran            uint32
	MaxPages            uint16
	Padding             uint16
	Unused              [8]uint32
}

// CuseInitIn is cuse_init_in.
type CuseInitIn struct {
	Major  uint32
	Minor  uint32
	Unused uint32
	Flags  uint32
}

// CuseInitOut is cuse_init_out. The device-info string (DEVNAME=...) is an
// opaque trailer appended after this fixed header.
type CuseInitOut struct {
	Major    uint32
	Minor    uint32
	Unused   uint32
	Flags    uint32
	MaxRead  uint32
	MaxWrite uint32
	DevMajor uint32
	DevMinor uint32
	Spare    [10]uint32
}

// EntryOut is fuse_entry_out.
type EntryOut struct {
	Nodeid         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

// CompatEntryOutSize is the prefix size the kernel expects when talking a
// protocol older than the one that grew fuse_entry_out's Attr tail.
var _ = func() bool {
	if int(unsafe.Sizeof(EntryOut{})) < CompatEntryOutSize {
		panic("EntryOut smaller than its own compat prefix")
	}
	return true
}()

// ForgetIn is fuse_forget_in.
type ForgetIn struct {
	Nlookup uint64
}

// ForgetOne is fuse_forget_one, an element of a BATCH_FORGET request body.
type ForgetOne struct {
	NodeID  uint64
	Nlookup uint64
}

// BatchForgetIn is fuse_batch_forget_in: a count prefix followed by that
// many ForgetOne records.
type BatchForgetIn struct {
	Count   uint32
	Dummy   uint32
}

// GetattrIn is fuse_getattr_in.
type GetattrIn struct {
	GetattrFlags uint32
	Dummy        uint32
	Fh           uint64
}

// AttrOut is fuse_attr_out.
type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	Dummy         uint32
	Attr          Attr
}

// MknodIn is fuse_mknod_in. Older kernels (pre 7.12) send only the leading
// 8 bytes (Mode, Rdev); Umask/Padding must then decode as zero.
type MknodIn struct {
	Mode    uint32
	Rdev    uint32
	Umask   uint32
	Padding uint32
}

// MkdirIn is fuse_mkdir_in.
type MkdirIn struct {
	Mode  uint32
	Umask uint32
}

// RenameIn is fuse_rename_in.
type RenameIn struct {
	Newdir uint64
}

// Rename2In is fuse_rename2_in.
type Rename2In struct {
	Newdir  uint64
	Flags   uint32
	Padding uint32
}

// LinkIn is fuse_link_in.
type LinkIn struct {
	Oldnodeid uint64
}

// SetattrIn is fuse_setattr_in.
type SetattrIn struct {
	Valid     uint32
	Padding   uint32
	Fh        uint64
	Size      uint64
	LockOwner uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Unused4   uint32
	UID       uint32
	GID       uint32
	Unused5   uint32
}

// OpenIn is fuse_open_in.
type OpenIn struct {
	Flags  uint32
	Unused uint32
}

// CreateIn is fuse_create_in.
type CreateIn struct {
	Flags   uint32
	Mode    uint32
	Umask   uint32
	Padding uint32
}

// OpenOut is fuse_open_out.
type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
	Padding   uint32
}

// ReleaseIn is fuse_release_in.
type ReleaseIn struct {
	Fh           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

// FlushIn is fuse_flush_in.
type FlushIn struct {
	Fh        uint64
	Unused    uint32
	Padding   uint32
	LockOwner uint64
}

// ReadIn is fuse_read_in. Protocol < 7.9 sends only Fh/Offset/Size
// (CompatReadInSize below); the remaining fields must decode as zero.
type ReadIn struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
	Padding   uint32
}

const CompatReadInSize = 24

// WriteIn is fuse_write_in. Protocol < 7.9 sends only the first
// CompatWriteInSize bytes (Fh/Offset/Size/WriteFlags).
type WriteIn struct {
	Fh         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	Padding    uint32
}

// WriteOut is fuse_write_out.
type WriteOut struct {
	Size    uint32
	Padding uint32
}

// StatfsOut is fuse_statfs_out.
type StatfsOut struct {
	St Kstatfs
}

// FsyncIn is fuse_fsync_in.
type FsyncIn struct {
	Fh         uint64
	FsyncFlags uint32
	Padding    uint32
}

// SetxattrIn is fuse_setxattr_in.
type SetxattrIn struct {
	Size  uint32
	Flags uint32
}

// GetxattrIn is fuse_getxattr_in.
type GetxattrIn struct {
	Size    uint32
	Padding uint32
}

// GetxattrOut is fuse_getxattr_out.
type GetxattrOut struct {
	Size    uint32
	Padding uint32
}

// LkIn is fuse_lk_in.
type LkIn struct {
	Fh      uint64
	Owner   uint64
	Lk      FileLock
	LkFlags uint32
	Padding uint32
}

// LkOut is fuse_lk_out.
type LkOut struct {
	Lk FileLock
}

// AccessIn is fuse_access_in.
type AccessIn struct {
	Mask    uint32
	Padding uint32
}

// InterruptIn is fuse_interrupt_in.
type InterruptIn struct {
	Unique uint64
}

// BmapIn is fuse_bmap_in.
type BmapIn struct {
	Block     uint64
	BlockSize uint32
	Padding   uint32
}

// BmapOut is fuse_bmap_out.
type BmapOut struct {
	Block uint64
}

// IoctlIn is fuse_ioctl_in.
type IoctlIn struct {
	Fh      uint64
	Flags   uint32
	Cmd     uint32
	Arg     uint64
	InSize  uint32
	OutSize uint32
}

// IoctlIovec is fuse_ioctl_iovec, an element of a retry descriptor.
type IoctlIovec struct {
	Base uint64
	Len  uint64
}

// IoctlOut is fuse_ioctl_out.
type IoctlOut struct {
	Result  int32
	Flags   uint32
	InIovs  uint32
	OutIovs uint32
}

// PollIn is fuse_poll_in.
type PollIn struct {
	Fh      uint64
	Kh      uint64
	Flags   uint32
	Events  uint32
}

// PollOut is fuse_poll_out.
type PollOut struct {
	Revents uint32
	Padding uint32
}

// NotifyPollWakeupOut is fuse_notify_poll_wakeup_out.
type NotifyPollWakeupOut struct {
	Kh uint64
}

// NotifyInvalInodeOut is fuse_notify_inval_inode_out.
type NotifyInvalInodeOut struct {
	Ino    uint64
	Off    int64
	Length int64
}

// NotifyInvalEntryOut is fuse_notify_inval_entry_out. The entry name
// trails this fixed header.
type NotifyInvalEntryOut struct {
	Parent  uint64
	Namelen uint32
	Padding uint32
}

// NotifyDeleteOut is fuse_notify_delete_out. The entry name trails this
// fixed header.
type NotifyDeleteOut struct {
	Parent  uint64
	Child   uint64
	Namelen uint32
	Padding uint32
}

// FallocateIn is fuse_fallocate_in.
type FallocateIn struct {
	Fh      uint64
	Offset  uint64
	Length  uint64
	Mode    uint32
	Padding uint32
}

// LseekIn is fuse_lseek_in.
type LseekIn struct {
	Fh      uint64
	Offset  uint64
	Whence  uint32
	Padding uint32
}

// LseekOut is fuse_lseek_out.
type LseekOut struct {
	Offset uint64
}

// CopyFileRangeIn is fuse_copy_file_range_in.
type CopyFileRangeIn struct {
	FhIn    uint64
	OffIn   uint64
	NodeIDOut uint64
	FhOut   uint64
	OffOut  uint64
	Len     uint64
	Flags   uint64
}

// Dirent is fuse_dirent: a variable-length directory entry. The name
// bytes (Namelen of them, zero-padded to 8) trail this fixed header.
type Dirent struct {
	Ino     uint64
	Off     uint64
	Namelen uint32
	Type    uint32
}

// DirentAlign is the alignment every fuse_dirent/fuse_direntplus record,
// including its name and padding, must maintain.
const DirentAlign = 8

// DirentSize is unsafe.Sizeof(Dirent{}).
var DirentSize = int(unsafe.Sizeof(Dirent{}))

// DirentplusSize is unsafe.Sizeof(EntryOut{}) + DirentSize: a
// fuse_direntplus is a full EntryOut immediately followed by a Dirent and
// then the name.
var DirentplusSize = int(unsafe.Sizeof(EntryOut{})) + DirentSize
