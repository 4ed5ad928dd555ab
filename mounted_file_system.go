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
	"log"
	"os"

	"github.com/jacobsa/fuse/internal/buffer"
	"github.com/jacobsa/timeutil"
)

// Server is a type that knows how to serve ops read from a Connection.
type Server interface {
	// Read and serve ops from the supplied connection until EOF.
	ServeOps(*Connection)
}

// MountedFileSystem represents the status of a mount operation, with a
// method that waits for unmounting.
type MountedFileSystem struct {
	dir string

	joinStatus          error
	joinStatusAvailable chan struct{}
}

// Dir returns the directory on which the file system is mounted (or
// where mounting was attempted).
func (mfs *MountedFileSystem) Dir() string {
	return mfs.dir
}

// Join blocks until a mounted file system has been unmounted. The return
// value is non-nil if anything unexpected happened while serving. May be
// called multiple times.
func (mfs *MountedFileSystem) Join(ctx context.Context) error {
	select {
	case <-mfs.joinStatusAvailable:
		return mfs.joinStatus
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeviceOpener is the collaborator responsible for actually invoking
// mount(2)/the platform mount helper and handing back the open file
// descriptor connected to the kernel. Mount itself never calls mount(2):
// it leaves that to the DeviceOpener it is given, such as this package's
// LinuxDeviceOpener (which calls mount(2) directly, falling back to
// fusermount) or DarwinDeviceOpener, or one the caller supplies.
type DeviceOpener interface {
	// OpenDevice mounts dir according to cfg (building whatever option
	// string the platform's mount(2) or mount helper expects, e.g. via
	// MountConfig.toMountOptionString) and returns the resulting /dev/fuse
	// (or /dev/cuse) file descriptor.
	OpenDevice(dir string, cfg *MountConfig) (*os.File, error)
}

// MountConfig is optional configuration accepted by Mount.
type MountConfig struct {
	// OpContext is the parent context under which every op's Context() is
	// derived. Defaults to context.Background() if nil.
	OpContext context.Context

	// Set FUSE_ASYNC_READ in the INIT reply, letting the kernel issue more
	// than one read request for the same file at a time. The max_readahead
	// value sent to the kernel is the same either way.
	EnableAsyncReads bool

	// Disable writeback caching, which is enabled by default.
	DisableWritebackCaching bool

	// Allow the kernel to cache symlink targets in its page cache.
	EnableSymlinkCaching bool

	// Tell the kernel that returning ENOSYS from OpenFile means it need not
	// send further OpenFile ops for this file system (Linux >= 3.16).
	EnableNoOpenSupport bool

	// Tell the kernel that returning ENOSYS from OpenDir means it need not
	// send further OpenDir ops for this file system (Linux >= 5.1).
	EnableNoOpendirSupport bool

	// Allow the kernel to send lookup and readdir ops in parallel.
	EnableParallelDirOps bool

	// Ask for atomic O_TRUNC support.
	EnableAtomicTrunc bool

	// Enable READDIRPLUS, optionally with the kernel's adaptive heuristic
	// for choosing between READDIR and READDIRPLUS.
	EnableReaddirplus     bool
	EnableAutoReaddirplus bool

	// OS X only: normally entry caching is disabled (the novncache mount
	// option) because osxfuse ignores the entry expiration values this
	// library returns, caching potentially forever. Set this to restore
	// entry caching anyway.
	EnableVnodeCaching bool

	// AllowOther sets the allow_other mount option, letting users other
	// than the one that did the mount access the file system.
	AllowOther bool

	// Optional overrides. Both default to sensible values if left nil.
	MessageProvider buffer.MessageProvider
	Debug           func(msg interface{})

	// FSName and Subtype surface in mount(8)'s output and /proc/mounts.
	FSName  string
	Subtype string

	// Clock is consulted to convert the absolute cache-expiration times a
	// file system sets (e.g. ChildInodeEntry.EntryExpiration) into the
	// relative durations the wire format expects. Defaults to the real
	// wall clock; tests can substitute a fake to make expiration
	// assertions deterministic.
	Clock timeutil.Clock
}

func (c *MountConfig) opContext() context.Context {
	if c.OpContext != nil {
		return c.OpContext
	}
	return context.Background()
}

func (c *MountConfig) clock() timeutil.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return timeutil.RealClock()
}

// toMountOptionString builds the NUL-free comma-joined option string the
// Linux mount(2) call (or a setuid mount helper) expects for a FUSE
// mount: fd=, rootmode=, user_id=, group_id=, plus any optional flags
// this config enables.
func (c *MountConfig) toMountOptionString(fd uintptr, rootMode uint32) string {
	opts := fmt.Sprintf(
		"fd=%d,rootmode=%o,user_id=%d,group_id=%d",
		fd, rootMode, os.Getuid(), os.Getgid())

	opts += ",default_permissions"

	if c.AllowOther {
		opts += ",allow_other"
	}

	if c.FSName != "" {
		opts += ",fsname=" + c.FSName
	}

	subtype := c.Subtype
	if subtype == "" {
		subtype = "fuse"
	}
	opts += ",subtype=" + subtype

	return opts
}

// extraMountOptionString builds the subset of options a setuid mount
// helper (which already knows the descriptor, root mode, and caller's
// uid/gid) still needs to be told about explicitly.
func (c *MountConfig) extraMountOptionString() string {
	var opts string

	if c.AllowOther {
		opts += ",allow_other"
	}

	if c.FSName != "" {
		opts += ",fsname=" + c.FSName
	}

	subtype := c.Subtype
	if subtype == "" {
		subtype = "fuse"
	}
	opts += ",subtype=" + subtype

	return opts
}

// Mount attempts to mount a file system on the given directory using the
// supplied Server and DeviceOpener. This function blocks until the file
// system is successfully mounted and the Connection has answered the
// kernel's INIT request itself; the Server is started only after that.
func Mount(
	dir string,
	server Server,
	opener DeviceOpener,
	config *MountConfig) (mfs *MountedFileSystem, err error) {
	if config == nil {
		config = &MountConfig{}
	}

	mfs = &MountedFileSystem{
		dir:                 dir,
		joinStatusAvailable: make(chan struct{}),
	}

	dev, err := opener.OpenDevice(dir, config)
	if err != nil {
		err = fmt.Errorf("OpenDevice: %v", err)
		return nil, err
	}

	debugLogger, errorLogger := newMountLoggers(config.Debug)

	connection, err := newConnection(*config, debugLogger, errorLogger, dev)
	if err != nil {
		dev.Close()
		err = fmt.Errorf("newConnection: %v", err)
		return nil, err
	}

	go func() {
		server.ServeOps(connection)
		mfs.joinStatus = connection.close()
		close(mfs.joinStatusAvailable)
	}()

	return mfs, nil
}

// newMountLoggers builds the pair of loggers a Connection writes to. If
// the caller didn't supply MountConfig.Debug, debug output still goes
// to the process-wide logger gated by -fuse.debug rather than being
// silently dropped.
func newMountLoggers(debug func(interface{})) (debugLogger, errorLogger *log.Logger) {
	errorLogger = log.New(os.Stderr, "fuse: ", log.Ldate|log.Ltime|log.Lmicroseconds)

	if debug == nil {
		return getLogger(), errorLogger
	}

	return log.New(debugWriter{debug}, "", 0), errorLogger
}

type debugWriter struct {
	emit func(interface{})
}

func (w debugWriter) Write(p []byte) (int, error) {
	w.emit(string(p))
	return len(p), nil
}
