// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package fuse

import (
	"syscall"
)

// Errors corresponding to kernel error numbers, usable directly as the
// error returned from a FileSystem method; the connection translates any
// syscall.Errno into the kernel's negative errno convention, and any
// other non-nil error into EIO.
const (
	EEXIST    = syscall.EEXIST
	EINVAL    = syscall.EINVAL
	EIO       = syscall.EIO
	ENOENT    = syscall.ENOENT
	ENOSYS    = syscall.ENOSYS
	ENOTDIR   = syscall.ENOTDIR
	ENOTEMPTY = syscall.ENOTEMPTY
	ERANGE    = syscall.ERANGE
)

// errno extracts the kernel errno this library should report to the
// kernel for err. A nil error maps to 0 (success). A syscall.Errno passes
// through unchanged. Anything else - a handler's internal error, a
// context cancellation, a decode failure - is reported as EIO so the
// caller sees a generic I/O failure rather than a success.
func errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	if errnoErr, ok := err.(syscall.Errno); ok {
		return errnoErr
	}

	return EIO
}
