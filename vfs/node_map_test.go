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

package vfs_test

import (
	"testing"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeMap_RootPresentAtConstruction(t *testing.T) {
	m := vfs.NewNodeMap("root")

	n, err := m.Get(fuseops.RootInodeID)
	require.NoError(t, err)
	assert.Equal(t, "root", n)
	assert.Equal(t, 1, m.Len())
}

func TestNodeMap_AddThenForgetRestoresOriginalState(t *testing.T) {
	m := vfs.NewNodeMap("root")
	before := m.Len()

	const id fuseops.InodeID = 100
	m.Add(id, "child")
	require.Equal(t, before+1, m.Len())

	m.Forget(id, 1)
	assert.Equal(t, before, m.Len())

	_, err := m.Get(id)
	assert.Equal(t, fuse.EINVAL, err)
}

func TestNodeMap_KLookupsKForgetsRemovesNode(t *testing.T) {
	m := vfs.NewNodeMap("root")
	const id fuseops.InodeID = 55

	const k = 5
	for i := 0; i < k; i++ {
		m.Add(id, "child")
	}

	for i := 0; i < k-1; i++ {
		m.Forget(id, 1)
		_, err := m.Get(id)
		require.NoError(t, err, "node should survive until the final forget")
	}

	m.Forget(id, 1)
	_, err := m.Get(id)
	assert.Equal(t, fuse.EINVAL, err)
}

func TestNodeMap_ForgetSaturatesRatherThanUnderflowing(t *testing.T) {
	m := vfs.NewNodeMap("root")
	const id fuseops.InodeID = 7

	m.Add(id, "child")
	m.Forget(id, 1000) // far more than the lookup count

	_, err := m.Get(id)
	assert.Equal(t, fuse.EINVAL, err)
}

func TestNodeMap_ForgetUnknownIDIsNoOp(t *testing.T) {
	m := vfs.NewNodeMap("root")
	assert.NotPanics(t, func() { m.Forget(999, 1) })
}

func TestNodeMap_RootSurvivesForget(t *testing.T) {
	m := vfs.NewNodeMap("root")
	m.Forget(fuseops.RootInodeID, 1000)

	n, err := m.Get(fuseops.RootInodeID)
	require.NoError(t, err)
	assert.Equal(t, "root", n)
}

func TestNodeMap_ReusedIDGetsFreshGeneration(t *testing.T) {
	m := vfs.NewNodeMap("root")
	const id fuseops.InodeID = 9001

	gen1 := m.Add(id, "first")
	m.Forget(id, 1)

	gen2 := m.Add(id, "second")
	assert.NotEqual(t, gen1, gen2)
}

func TestNodeMap_AddExistingIDIncrementsCountWithoutReplacingNode(t *testing.T) {
	m := vfs.NewNodeMap("root")
	const id fuseops.InodeID = 12

	gen1 := m.Add(id, "original")
	gen2 := m.Add(id, "ignored")
	assert.Equal(t, gen1, gen2)

	n, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "original", n)

	m.Forget(id, 1)
	_, err = m.Get(id)
	require.NoError(t, err, "count should be 2 after two adds, not evicted by one forget")

	m.Forget(id, 1)
	_, err = m.Get(id)
	assert.Equal(t, fuse.EINVAL, err)
}
