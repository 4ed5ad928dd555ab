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

package vfs

import (
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
)

// HandlesMap allocates and tracks open file and directory handles on
// behalf of a Filesystem. File and directory handles are disjoint
// namespaces sharing a single monotonically increasing allocator, so a
// HandleID is never ambiguous between the two maps even though callers
// must still know which map to ask.
//
// The zero value is not usable; construct with NewHandlesMap.
type HandlesMap struct {
	mu syncutil.InvariantMutex

	next  fuseops.HandleID // GUARDED_BY(mu)
	files map[fuseops.HandleID]interface{} // GUARDED_BY(mu)
	dirs  map[fuseops.HandleID]interface{} // GUARDED_BY(mu)
}

// NewHandlesMap returns an empty HandlesMap whose first allocated
// handle, of either kind, is 1.
func NewHandlesMap() *HandlesMap {
	m := &HandlesMap{
		next:  1,
		files: make(map[fuseops.HandleID]interface{}),
		dirs:  make(map[fuseops.HandleID]interface{}),
	}
	m.mu = syncutil.NewInvariantMutex(m.checkInvariants)
	return m
}

func (m *HandlesMap) checkInvariants() {
	if _, ok := m.files[0]; ok {
		panic("HandlesMap: handle 0 allocated")
	}
	if _, ok := m.dirs[0]; ok {
		panic("HandlesMap: handle 0 allocated")
	}
}

func (m *HandlesMap) alloc() fuseops.HandleID {
	id := m.next
	m.next++
	return id
}

// OpenFile allocates a new handle for handle, a file system's own
// open-file object, and returns its ID.
func (m *HandlesMap) OpenFile(handle interface{}) fuseops.HandleID {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.alloc()
	m.files[id] = handle
	return id
}

// OpenDir allocates a new handle for handle, a file system's own
// open-directory object, and returns its ID.
func (m *HandlesMap) OpenDir(handle interface{}) fuseops.HandleID {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.alloc()
	m.dirs[id] = handle
	return id
}

// GetFile returns the object registered under id by OpenFile, or
// fuse.EINVAL if id is unknown or was closed by CloseFile.
func (m *HandlesMap) GetFile(id fuseops.HandleID) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.files[id]
	if !ok {
		return nil, fuse.EINVAL
	}
	return h, nil
}

// GetDir returns the object registered under id by OpenDir, or
// fuse.EINVAL if id is unknown or was closed by CloseDir.
func (m *HandlesMap) GetDir(id fuseops.HandleID) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.dirs[id]
	if !ok {
		return nil, fuse.EINVAL
	}
	return h, nil
}

// CloseFile removes id from the file handle map. Closing an unknown or
// already-closed id is a no-op.
func (m *HandlesMap) CloseFile(id fuseops.HandleID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
}

// CloseDir removes id from the directory handle map. Closing an unknown
// or already-closed id is a no-op.
func (m *HandlesMap) CloseDir(id fuseops.HandleID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dirs, id)
}
