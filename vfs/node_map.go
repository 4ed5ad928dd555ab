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

// Package vfs is an optional object-model façade over fuseops/fuseutil
// for file system authors who would rather hand out node and handle
// objects than hand-roll a dispatch switch.
package vfs

import (
	"github.com/google/uuid"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
)

type nodeEntry struct {
	node        interface{}
	generation  fuseops.GenerationNumber
	lookupCount uint64
}

// NodeMap tracks the live inode objects a Filesystem has handed out to
// the kernel, keyed by InodeID, together with each one's cumulative
// kernel lookup count. An entry is removed once its lookup count is
// forgotten down to zero.
//
// The zero value is not usable; construct with NewNodeMap.
type NodeMap struct {
	mu syncutil.InvariantMutex

	entries map[fuseops.InodeID]*nodeEntry // GUARDED_BY(mu)
}

// NewNodeMap returns a NodeMap with the root inode already present,
// holding root as its object and a lookup count of zero.
func NewNodeMap(root interface{}) *NodeMap {
	m := &NodeMap{
		entries: map[fuseops.InodeID]*nodeEntry{
			fuseops.RootInodeID: {node: root},
		},
	}
	m.mu = syncutil.NewInvariantMutex(m.checkInvariants)
	return m
}

func (m *NodeMap) checkInvariants() {
	if _, ok := m.entries[fuseops.RootInodeID]; !ok {
		panic("NodeMap: root inode missing")
	}
}

// Add records a lookup of node under id. If id is already present its
// lookup count is incremented and its existing node and generation are
// left untouched; the node argument is then ignored. Otherwise a fresh
// entry is inserted with lookup count 1 and a newly minted generation
// number, so that a later caller reusing a freed numeric ID produces an
// entry the kernel cannot confuse with the ID's previous incarnation.
func (m *NodeMap) Add(id fuseops.InodeID, node interface{}) fuseops.GenerationNumber {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok {
		e.lookupCount++
		return e.generation
	}

	gen := fuseops.GenerationNumber(uuid.New().ID())
	m.entries[id] = &nodeEntry{
		node:        node,
		generation:  gen,
		lookupCount: 1,
	}
	return gen
}

// Get returns the node registered under id, or fuse.EINVAL if absent.
func (m *NodeMap) Get(id fuseops.InodeID) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, fuse.EINVAL
	}
	return e.node, nil
}

// Forget saturating-subtracts n from id's lookup count. The root inode
// is never removed, regardless of its count. When a non-root count
// reaches zero its entry is deleted. Forgetting an unknown id is a
// no-op: the kernel is free to send a FORGET for an inode this process
// never knew about, e.g. after a crash and restart.
func (m *NodeMap) Forget(id fuseops.InodeID, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return
	}

	if n >= e.lookupCount {
		e.lookupCount = 0
	} else {
		e.lookupCount -= n
	}

	if e.lookupCount == 0 && id != fuseops.RootInodeID {
		delete(m.entries, id)
	}
}

// Len returns the number of live entries, for use in tests.
func (m *NodeMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
