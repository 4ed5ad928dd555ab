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
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrExternallyManagedMountPoint is returned by unmount when fusermount
// fails to unmount a /dev/fd/N mountpoint: one whose fuse device fd was handed to us by
// another process (e.g. via systemd socket activation), which therefore
// owns the mount's lifecycle.
var ErrExternallyManagedMountPoint = errors.New("mountpoint is externally managed")

// parseFuseFd extracts the file descriptor number from a /dev/fd/N path,
// the convention used when another process has already opened /dev/fuse
// and is handing us the descriptor rather than a directory to mount.
func parseFuseFd(dir string) (int, error) {
	s := strings.TrimPrefix(dir, "/dev/fd/")
	fd, err := strconv.Atoi(s)
	if err != nil {
		return -1, fmt.Errorf("parseFuseFd: %v", err)
	}
	if fd < 0 {
		return -1, fmt.Errorf("parseFuseFd: negative fd %d", fd)
	}
	return fd, nil
}

func findFusermount() (string, error) {
	for _, name := range []string{"fusermount3", "fusermount"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("fusermount3/fusermount not found in PATH")
}

// LinuxDeviceOpener is the default DeviceOpener on Linux. If dir is a
// /dev/fd/N path it simply adopts the already-open fuse device handed to
// it; otherwise it opens /dev/fuse directly and calls mount(2), falling
// back to shelling out to fusermount (which can mount without
// CAP_SYS_ADMIN by passing the descriptor back over a unix socket) if the
// direct mount is not permitted.
type LinuxDeviceOpener struct{}

func (LinuxDeviceOpener) OpenDevice(dir string, cfg *MountConfig) (*os.File, error) {
	if strings.HasPrefix(dir, "/dev/fd/") {
		fd, err := parseFuseFd(dir)
		if err != nil {
			return nil, err
		}
		return os.NewFile(uintptr(fd), dir), nil
	}

	dev, err := os.OpenFile("/dev/fuse", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening /dev/fuse: %v", err)
	}

	const sIFDIR = 0040000
	opts := cfg.toMountOptionString(dev.Fd(), sIFDIR|0755)

	err = unix.Mount("fuse", dir, "fuse", 0, opts)
	if err == nil {
		return dev, nil
	}
	dev.Close()

	if !errors.Is(err, unix.EPERM) && !errors.Is(err, unix.EACCES) {
		return nil, fmt.Errorf("mount(2): %v", err)
	}

	return mountViaFusermount(dir, cfg)
}

// mountViaFusermount execs the setuid fusermount helper, which performs
// the mount(2) call itself and passes the resulting fuse device fd back
// to us over a unix socket using SCM_RIGHTS.
func mountViaFusermount(dir string, cfg *MountConfig) (*os.File, error) {
	fusermount, err := findFusermount()
	if err != nil {
		return nil, err
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair: %v", err)
	}
	parent := os.NewFile(uintptr(fds[0]), "fusermount-parent")
	defer parent.Close()
	child := os.NewFile(uintptr(fds[1]), "fusermount-child")
	defer child.Close()

	opts := strings.TrimPrefix(cfg.extraMountOptionString(), ",")

	cmd := exec.Command(fusermount, "-o", opts, "--", dir)
	cmd.Env = append(os.Environ(), "_FUSE_COMMFD=3")
	cmd.ExtraFiles = []*os.File{child}
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("fusermount: %v", err)
	}

	return receiveDeviceFD(parent)
}

// receiveDeviceFD reads a single SCM_RIGHTS control message off conn and
// returns the file descriptor it carries.
func receiveDeviceFD(conn *os.File) (*os.File, error) {
	buf := make([]byte, 4)
	oob := make([]byte, unix.CmsgSpace(4))

	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}

	var n, oobn int
	var rerr error
	err = raw.Read(func(fd uintptr) bool {
		n, oobn, _, _, rerr = unix.Recvmsg(int(fd), buf, oob, 0)
		return true
	})
	if err != nil {
		return nil, err
	}
	if rerr != nil {
		return nil, rerr
	}
	if n == 0 {
		return nil, errors.New("fusermount: did not return a file descriptor")
	}

	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		fds, err := unix.ParseUnixRights(&m)
		if err != nil {
			continue
		}
		if len(fds) > 0 {
			return os.NewFile(uintptr(fds[0]), "/dev/fuse"), nil
		}
	}

	return nil, errors.New("fusermount: no file descriptor in response")
}
