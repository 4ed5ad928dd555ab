// Copyright 2015 Google Inc. All Rights Reserved.

package fuse

import "syscall"

// ENOATTR is the errno a file system should return from GetXattrOp,
// ListXattrOp, etc. when the requested attribute does not exist. Unlike
// Linux, FreeBSD defines a distinct ENOATTR separate from ENODATA.
const ENOATTR = syscall.ENOATTR
