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
	"io"
	"log"
	"os"
	"path"
	"runtime"
	"sync"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/internal/buffer"
	"github.com/jacobsa/fuse/internal/freelist"
	"github.com/jacobsa/fuse/internal/fusekernel"
)

// Ask the Linux kernel for larger read requests.
//
// As of 2015-03-26, the behavior in the kernel is:
//
//   - (https://tinyurl.com/2eakn5e9, https://tinyurl.com/mry9e33d) Set the
//     local variable ra_pages to be init_response->max_readahead divided by
//     the page size.
//
//   - (https://tinyurl.com/2eakn5e9, https://tinyurl.com/mbpshk8h) Set
//     backing_dev_info::ra_pages to the min of that value and what was sent in
//     the request's max_readahead field.
//
//   - (https://tinyurl.com/57hpfu4x) Use backing_dev_info::ra_pages when
//     deciding how much to read ahead.
//
//   - (https://tinyurl.com/ywhfcfte) Don't read ahead at all if that field is
//     zero.
//
// Reading a page at a time is a drag. Ask for a larger size.
const maxReadahead = 1 << 20

// Connection represents a connection to the fuse kernel process. It is used to
// receive and reply to requests from the kernel.
type Connection struct {
	cfg         MountConfig
	debugLogger *log.Logger
	errorLogger *log.Logger

	// The device through which we're talking to the kernel, and the protocol
	// version that we're using to talk to it.
	dev      *os.File
	protocol fusekernel.Protocol

	mu sync.Mutex

	// A map from fuse "unique" request ID to a function that cancels its
	// associated context.
	//
	// GUARDED_BY(mu)
	cancelFuncs map[uint64]func()

	// Freelists, serviced by freelists.go.
	inMessages  freelist.Freelist // GUARDED_BY(mu)
	outMessages freelist.Freelist // GUARDED_BY(mu)
}

// Create a connection wrapping the supplied file descriptor connected to the
// kernel. You must eventually call c.close().
//
// The loggers may be nil.
func newConnection(
	cfg MountConfig,
	debugLogger *log.Logger,
	errorLogger *log.Logger,
	dev *os.File) (*Connection, error) {
	c := &Connection{
		cfg:         cfg,
		debugLogger: debugLogger,
		errorLogger: errorLogger,
		dev:         dev,
		cancelFuncs: make(map[uint64]func()),
	}

	if err := c.Init(); err != nil {
		c.close()
		return nil, fmt.Errorf("Init: %v", err)
	}

	return c, nil
}

// Init performs the work necessary to cause the mount process to complete.
func (c *Connection) Init() error {
	raw, reply, err := c.readRawOp()
	if err != nil {
		return fmt.Errorf("Reading init op: %v", err)
	}

	initOp, ok := raw.(*initOp)
	if !ok {
		reply(syscall.EPROTO)
		return fmt.Errorf("Expected *initOp, got %T", raw)
	}

	// Make sure the protocol version spoken by the kernel is new enough.
	min := fusekernel.Protocol{
		Major: fusekernel.ProtoVersionMinMajor,
		Minor: fusekernel.ProtoVersionMinMinor,
	}

	if initOp.Kernel.LT(min) {
		reply(syscall.EPROTO)
		return fmt.Errorf("Version too old: %v", initOp.Kernel)
	}

	// Downgrade our protocol if necessary.
	c.protocol = fusekernel.Protocol{
		Major: fusekernel.ProtoVersionMaxMajor,
		Minor: fusekernel.ProtoVersionMaxMinor,
	}

	if initOp.Kernel.LT(c.protocol) {
		c.protocol = initOp.Kernel
	}

	cacheSymlinks := initOp.Flags&fusekernel.InitCacheSymlinks > 0
	noOpenSupport := initOp.Flags&fusekernel.InitNoOpenSupport > 0
	noOpendirSupport := initOp.Flags&fusekernel.InitNoOpendirSupport > 0

	// Respond to the init op.
	initOp.Library = c.protocol
	initOp.MaxReadahead = maxReadahead
	initOp.MaxWrite = buffer.MaxWriteSize

	initOp.Flags = 0

	// Tell the kernel not to use pitifully small 4 KiB writes.
	initOp.Flags |= fusekernel.InitBigWrites

	if c.cfg.EnableAsyncReads {
		initOp.Flags |= fusekernel.InitAsyncRead
	}

	// kernel 4.20 increases the max from 32 -> 256
	initOp.Flags |= fusekernel.InitMaxPages
	initOp.MaxPages = 256

	// Enable writeback caching if the user hasn't asked us not to.
	if !c.cfg.DisableWritebackCaching {
		initOp.Flags |= fusekernel.InitWritebackCache
	}

	// Enable caching symlink targets in the kernel page cache if the user
	// opted into it.
	if c.cfg.EnableSymlinkCaching && cacheSymlinks {
		initOp.Flags |= fusekernel.InitCacheSymlinks
	}

	// Tell the kernel to treat returning -ENOSYS on OpenFile as not needing
	// OpenFile calls at all (Linux >= 3.16):
	if c.cfg.EnableNoOpenSupport && noOpenSupport {
		initOp.Flags |= fusekernel.InitNoOpenSupport
	}

	// Tell the kernel to treat returning -ENOSYS on OpenDir as not needing
	// OpenDir calls at all (Linux >= 5.1):
	if c.cfg.EnableNoOpendirSupport && noOpendirSupport {
		initOp.Flags |= fusekernel.InitNoOpendirSupport
	}

	// Tell the kernel to allow sending parallel lookup and readdir operations.
	if c.cfg.EnableParallelDirOps {
		initOp.Flags |= fusekernel.InitParallelDirOps
	}

	if c.cfg.EnableAtomicTrunc {
		initOp.Flags |= fusekernel.InitAtomicTrunc
	}

	if c.cfg.EnableReaddirplus {
		initOp.Flags |= fusekernel.InitDoReaddirplus

		if c.cfg.EnableAutoReaddirplus {
			initOp.Flags |= fusekernel.InitReaddirplusAuto
		}
	}

	return reply(nil)
}

// Log information for an operation with the given ID. calldepth is the depth
// to use when recovering file:line information with runtime.Caller.
func (c *Connection) debugLog(
	fuseID uint64,
	calldepth int,
	format string,
	v ...interface{}) {
	if c.debugLogger == nil {
		return
	}

	var file string
	var line int
	var ok bool

	_, file, line, ok = runtime.Caller(calldepth)
	if !ok {
		file = "???"
	}

	fileLine := fmt.Sprintf("%v:%v", path.Base(file), line)

	msg := fmt.Sprintf(
		"Op 0x%08x %24s] %v",
		fuseID,
		fileLine,
		fmt.Sprintf(format, v...))

	c.debugLogger.Println(msg)
}

// LOCKS_EXCLUDED(c.mu)
func (c *Connection) recordCancelFunc(
	fuseID uint64,
	f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cancelFuncs[fuseID]; ok {
		panic(fmt.Sprintf("Already have cancel func for request %v", fuseID))
	}

	c.cancelFuncs[fuseID] = f
}

// Set up state for an op that is about to be returned to the user, given its
// underlying fuse opcode and request ID.
//
// Return a context that should be used for the op.
//
// LOCKS_EXCLUDED(c.mu)
func (c *Connection) beginOp(
	opCode fusekernel.Opcode,
	fuseID uint64) context.Context {
	ctx := c.cfg.opContext()

	// Special case: On Darwin, osxfuse aggressively reuses "unique" request
	// IDs. This matters for Forget requests, which have no reply associated
	// and therefore have IDs that are immediately eligible for reuse. For
	// these, we should not record any state keyed on their ID.
	//
	// Cf. https://github.com/osxfuse/osxfuse/issues/208
	if opCode != fusekernel.OpForget {
		var cancel func()
		ctx, cancel = context.WithCancel(ctx)
		c.recordCancelFunc(fuseID, cancel)
	}

	return ctx
}

// Clean up all state associated with an op to which the user has responded,
// given its underlying fuse opcode and request ID. This must be called before
// a response is sent to the kernel, to avoid a race where the request's ID
// might be reused by osxfuse.
//
// LOCKS_EXCLUDED(c.mu)
func (c *Connection) finishOp(
	opCode fusekernel.Opcode,
	fuseID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Special case: we don't do this for Forget requests. See
	// the note in beginOp above.
	if opCode != fusekernel.OpForget {
		cancel, ok := c.cancelFuncs[fuseID]
		if !ok {
			panic(fmt.Sprintf("Unknown request ID in finishOp: %v", fuseID))
		}

		cancel()
		delete(c.cancelFuncs, fuseID)
	}
}

// LOCKS_EXCLUDED(c.mu)
func (c *Connection) handleInterrupt(fuseID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// NOTE(jacobsa): fuse.txt in the Linux kernel documentation
	// (https://tinyurl.com/2r4ajuwd) defines the kernel <-> userspace protocol
	// for interrupts.
	//
	// In particular, my reading of it is that an interrupt request cannot be
	// delivered to userspace before the original request. The part about the
	// race and EAGAIN appears to be aimed at userspace programs that
	// concurrently process requests (https://tinyurl.com/3euehwfb).
	//
	// So in this method if we can't find the ID to be interrupted, it means
	// that the request has already been replied to.
	//
	// Cf. https://github.com/osxfuse/osxfuse/issues/208
	cancel, ok := c.cancelFuncs[fuseID]
	if !ok {
		return
	}

	cancel()
}

// Read the next message from the kernel. The message must later be destroyed
// using c.putInMessage.
func (c *Connection) readMessage() (*buffer.InMessage, error) {
	m := c.getInMessage()

	for {
		err := m.Init(c.dev)

		// Special cases:
		//
		//  *  ENODEV means fuse has hung up.
		//
		//  *  EINTR means we should try again. (This seems to happen often on
		//     OS X, cf. http://golang.org/issue/11180)
		if pe, ok := err.(*os.PathError); ok {
			switch pe.Err {
			case syscall.ENODEV:
				err = io.EOF

			case syscall.EINTR:
				err = nil
				continue
			}
		}

		if err != nil {
			c.putInMessage(m)
			return nil, err
		}

		return m, nil
	}
}

// Write a buffer.OutMessage to the kernel, with writev if there's more than
// one segment to send and a plain write otherwise.
func (c *Connection) writeOutMessage(outMsg *buffer.OutMessage) error {
	sglist := outMsg.Sglist()
	if len(sglist) > 1 {
		_, err := writev(int(c.dev.Fd()), sglist)
		return err
	}

	return c.writeMessage(outMsg.Bytes())
}

// Write the supplied message to the kernel.
func (c *Connection) writeMessage(msg []byte) error {
	// Avoid the retry loop in os.File.Write.
	n, err := syscall.Write(int(c.dev.Fd()), msg)
	if err != nil {
		return err
	}

	if n != len(msg) {
		return fmt.Errorf("Wrote %d bytes; expected %d", n, len(msg))
	}

	return nil
}

// readRawOp reads and decodes the next request from the kernel, handling
// INTERRUPT inline. It returns the decoded op (an *initOp, the various
// fuseops.Op implementations, or *unknownOp) along with a reply function
// the caller must invoke exactly once. This is the shared core of Init and
// ReadOp; Init needs to see the raw *initOp, which ReadOp hides from
// callers outside this file.
func (c *Connection) readRawOp() (op interface{}, reply func(error) error, err error) {
	for {
		inMsg, rerr := c.readMessage()
		if rerr != nil {
			return nil, nil, rerr
		}

		outMsg := c.getOutMessage()
		decoded, cerr := convertInMessage(&c.cfg, inMsg, outMsg, c.protocol)
		if cerr != nil {
			c.putInMessage(inMsg)
			c.putOutMessage(outMsg)
			return nil, nil, fmt.Errorf("convertInMessage: %v", cerr)
		}

		header := inMsg.Header()
		fuseID := header.Unique
		opCode := header.Opcode

		if c.debugLogger != nil {
			c.debugLog(fuseID, 2, "<- %s", describeRequest(decoded))
		}

		if iop, ok := decoded.(*interruptOp); ok {
			c.handleInterrupt(iop.FuseID)
			c.putInMessage(inMsg)
			c.putOutMessage(outMsg)
			continue
		}

		ctx := c.beginOp(opCode, fuseID)

		replyFn := func(opErr error) error {
			return c.finishAndReply(fuseID, opCode, inMsg, outMsg, decoded, opErr)
		}

		// unknownOp satisfies fuseops.Op structurally but can't use
		// InstallReply (it can't implement fuseops' unexported
		// installReply method), so it must be matched before the
		// fuseops.Op case below.
		switch t := decoded.(type) {
		case *unknownOp:
			t.ctx = ctx
			t.replyFn = func(opErr error) { replyFn(opErr) }
		case fuseops.Op:
			fuseops.InstallReply(t, ctx, func(_ fuseops.Op, opErr error) {
				replyFn(opErr)
			})
		}

		return decoded, replyFn, nil
	}
}

// ReadOp consumes the next op from the kernel process. It returns io.EOF if
// the kernel has closed the connection.
//
// This function delivers ops in exactly the order they are received from
// /dev/fuse. It must not be called multiple times concurrently.
func (c *Connection) ReadOp() (fuseops.Op, error) {
	for {
		raw, reply, err := c.readRawOp()
		if err != nil {
			return nil, err
		}

		switch t := raw.(type) {
		case *initOp:
			// The kernel sends exactly one INIT, consumed by Connection.Init
			// before the server loop starts seeing ops.
			reply(syscall.EPROTO)
			continue

		case fuseops.Op:
			return t, nil

		case *unknownOp:
			return t, nil

		default:
			reply(syscall.EIO)
			continue
		}
	}
}

// Skip errors that happen as a matter of course, since they spook users.
func (c *Connection) shouldLogError(
	op interface{},
	err error) bool {
	if err == nil {
		return false
	}

	if c.errorLogger == nil {
		return false
	}

	switch op.(type) {
	case *fuseops.LookUpInodeOp:
		// It is totally normal for the kernel to ask to look up an inode by
		// name and find the name doesn't exist, e.g. when linking a new file.
		if err == syscall.ENOENT {
			return false
		}
	case *fuseops.GetXattrOp, *fuseops.ListXattrOp:
		if err == syscall.ENOSYS || err == syscall.ENODATA || err == syscall.ERANGE {
			return false
		}
	case *unknownOp:
		// Don't bother the user with methods we intentionally don't support.
		if err == syscall.ENOSYS {
			return false
		}
	}

	return true
}

// finishAndReply builds and sends the kernel reply for op, then recycles
// inMsg/outMsg. It is the single path by which a reply leaves this
// process, invoked by the reply closure installed on every op.
func (c *Connection) finishAndReply(
	fuseID uint64,
	opCode fusekernel.Opcode,
	inMsg *buffer.InMessage,
	outMsg *buffer.OutMessage,
	op interface{},
	opErr error) error {
	defer func() {
		if callback := c.callbackForOp(op); callback != nil {
			callback()
		}
		c.putInMessage(inMsg)
		c.putOutMessage(outMsg)
	}()

	c.finishOp(opCode, fuseID)

	logError := c.shouldLogError(op, opErr)

	if c.debugLogger != nil {
		if opErr == nil {
			c.debugLog(fuseID, 2, "-> %s", describeResponse(op))
		} else if !logError {
			c.debugLog(fuseID, 2, "-> Error: %q", opErr.Error())
		}
	}

	if logError {
		c.errorLogger.Printf("Op 0x%08x %T] -> Error: %q", fuseID, op, opErr)
	}

	noResponse := c.kernelResponse(outMsg, fuseID, op, opErr)
	if noResponse {
		return nil
	}

	if err := c.writeOutMessage(outMsg); err != nil {
		writeErrMsg := fmt.Sprintf("writeMessage: %v %v", err, outMsg.Bytes())
		if c.errorLogger != nil {
			c.errorLogger.Print(writeErrMsg)
		}
		return fmt.Errorf(writeErrMsg)
	}

	return nil
}

func (c *Connection) callbackForOp(op interface{}) func() {
	switch o := op.(type) {
	case *fuseops.ReadFileOp:
		return o.Callback
	case *fuseops.WriteFileOp:
		return o.Callback
	}
	return nil
}

// Close the connection. Must not be called until operations that were read
// from the connection have been responded to.
func (c *Connection) close() error {
	// Posix doesn't say that close can be called concurrently with read or
	// write, but luckily we exclude the possibility of a race by requiring the
	// user to respond to all ops first.
	return c.dev.Close()
}
