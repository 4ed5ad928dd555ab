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

// Package fuse implements the kernel side of the FUSE and CUSE wire
// protocols: decoding requests read from /dev/fuse or /dev/cuse and
// encoding the replies a handler produces for them.
//
// The primary elements of interest are:
//
//  *  Connection, which reads and decodes ops from a mounted device and
//     encodes and writes the replies given to it.
//
//  *  fuseops.Op and its concrete variants (fuseops.LookUpInodeOp and so
//     on), the typed request/response pairs a handler works with.
//
//  *  fuseutil.FileSystem and fuseutil.NotImplementedFileSystem, a
//     convenience dispatch layer built on top of Connection; embedding
//     NotImplementedFileSystem gives default implementations for any
//     method a particular file system doesn't care about.
//
//  *  Mount, which hands a directory, a Server, a DeviceOpener and a
//     MountConfig to this package and returns once the resulting
//     connection is ready to serve ops. Mount itself never calls mount(2);
//     the DeviceOpener does. This package provides LinuxDeviceOpener and
//     DarwinDeviceOpener.
//
// In order to use this package to mount file systems on OS X, the system must
// have FUSE for OS X installed: http://osxfuse.github.io/
package fuse
