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
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/jacobsa/fuse/internal/buffer"
)

var errNoAvail = errors.New("no available fuse devices")
var errNotLoaded = errors.New("osxfusefs is not loaded")

func loadOSXFUSE() error {
	cmd := exec.Command("/Library/Filesystems/osxfusefs.fs/Support/load_osxfusefs")
	cmd.Dir = "/"
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func openOSXFUSEDev() (dev *os.File, err error) {
	for i := uint64(0); ; i++ {
		path := fmt.Sprintf("/dev/osxfuse%d", i)
		dev, err = os.OpenFile(path, os.O_RDWR, 0000)
		if os.IsNotExist(err) {
			if i == 0 {
				err = errNotLoaded
				return
			}
			err = errNoAvail
			return
		}

		if err2, ok := err.(*os.PathError); ok && err2.Err == syscall.EBUSY {
			continue
		}

		return
	}
}

// darwinMountOptionString builds the osxfuse mount helper's -o argument.
// osxfuse ignores fd=/rootmode=; it learns the descriptor from
// cmd.ExtraFiles slot 3 instead, so only the user-facing flags matter
// here.
func darwinMountOptionString(cfg *MountConfig) string {
	opts := "novncache"
	if cfg.EnableVnodeCaching {
		opts = "vncache"
	}

	if cfg.AllowOther {
		opts += ",allow_other"
	}

	if cfg.FSName != "" {
		opts += ",fsname=" + cfg.FSName
	}

	if cfg.Subtype != "" {
		opts += ",subtype=" + cfg.Subtype
	}

	return opts
}

func callMount(dir string, cfg *MountConfig, f *os.File) error {
	bin := "/Library/Filesystems/osxfusefs.fs/Support/mount_osxfusefs"

	cmd := exec.Command(
		bin,
		"-o", darwinMountOptionString(cfg),
		// Tell osxfuse-kext how large our buffer is. It must split writes
		// larger than this into multiple writes; osxfuse ignores
		// InitOut.MaxWrite and uses this instead.
		"-o", "iosize="+strconv.FormatUint(uint64(buffer.MaxWriteSize), 10),
		// Refers to the fd passed via cmd.ExtraFiles below.
		"3",
		dir,
	)
	cmd.ExtraFiles = []*os.File{f}
	cmd.Env = append(os.Environ(), "MOUNT_FUSEFS_CALL_BY_LIB=", "MOUNT_FUSEFS_DAEMON_PATH="+bin)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		if buf.Len() > 0 {
			output := bytes.TrimRight(buf.Bytes(), "\n")
			return fmt.Errorf("%v: %s", err, output)
		}
		return err
	}
	return nil
}

// DarwinDeviceOpener is the default DeviceOpener on OS X: it opens an
// osxfuse kernel device and hands it to the osxfusefs mount helper,
// loading the osxfuse kernel extension first if necessary.
type DarwinDeviceOpener struct{}

func (DarwinDeviceOpener) OpenDevice(dir string, cfg *MountConfig) (dev *os.File, err error) {
	dev, err = openOSXFUSEDev()
	if err == errNotLoaded {
		if err = loadOSXFUSE(); err != nil {
			return nil, fmt.Errorf("loadOSXFUSE: %v", err)
		}
		dev, err = openOSXFUSEDev()
	}
	if err != nil {
		return nil, fmt.Errorf("openOSXFUSEDev: %v", err)
	}

	if err = callMount(dir, cfg, dev); err != nil {
		dev.Close()
		return nil, fmt.Errorf("callMount: %v", err)
	}

	return dev, nil
}
