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

// EntryOutSize returns the number of bytes of a fuse_entry_out the kernel
// expects for the given negotiated protocol: the full struct for modern
// kernels, or the pre-7.9 compat prefix (no Attr.BlkSize) for old ones.
func EntryOutSize(p Protocol) uintptr {
	if p.HasAttrBlockSize() {
		return unsafe.Sizeof(EntryOut{})
	}
	return CompatEntryOutSize
}

// AttrOutSize is the fuse_attr_out analogue of EntryOutSize.
func AttrOutSize(p Protocol) uintptr {
	if p.HasAttrBlockSize() {
		return unsafe.Sizeof(AttrOut{})
	}
	return CompatAttrOutSize
}

// WriteInSize is the read length the decoder should treat the fixed part
// of a WRITE request as: the full struct for protocol >= 7.9, or the
// compat prefix (no LockOwner/Flags) for older ones.
func WriteInSize(p Protocol) uintptr {
	if p.GE(Protocol{7, 9}) {
		return unsafe.Sizeof(WriteIn{})
	}
	return CompatWriteInSize
}

// ReadInSize is the ReadIn analogue of WriteInSize.
func ReadInSize(p Protocol) uintptr {
	if p.GE(Protocol{7, 9}) {
		return unsafe.Sizeof(ReadIn{})
	}
	return CompatReadInSize
}

// MknodInSize is the MknodIn analogue: protocol >= 7.12 sends Umask too.
func MknodInSize(p Protocol) uintptr {
	if p.GE(Protocol{7, 12}) {
		return unsafe.Sizeof(MknodIn{})
	}
	return CompatMknodInSize
}

// InitOutSize bounds how much of InitOut the encoder emits: older
// kernels only understand a prefix of it, down to the leading major/minor
// pair (CompatInitOutSize) for the oldest.
func InitOutSize(p Protocol) uintptr {
	switch {
	case p.GE(Protocol{7, 28}):
		return unsafe.Sizeof(InitOut{})
	case p.GE(Protocol{7, 23}):
		return unsafe.Offsetof(InitOut{}.MaxPages)
	case p.GE(Protocol{7, 13}):
		return unsafe.Offsetof(InitOut{}.TimeGran)
	default:
		return CompatInitOutSize
	}
}

// StatfsOutSize is the Kstatfs analogue: pre-7.4 kernels only read the
// leading compat-sized prefix.
func StatfsOutSize(p Protocol) uintptr {
	if p.GE(Protocol{7, 4}) {
		return unsafe.Sizeof(StatfsOut{})
	}
	return CompatStatfsSize
}
