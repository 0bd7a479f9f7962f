// Copyright 2024 Google Inc. All Rights Reserved.
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

package fsnode_test

import (
	"testing"

	"github.com/nfsmeta/distfs/internal/fsnode"
	"github.com/nfsmeta/distfs/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	n := &fsnode.Node{
		Ino:       1,
		Kind:      fsnode.KindDirectory,
		ParentIno: 1,
		Name:      "/",
	}
	n.AddEntry(&fsnode.DirEntry{Name: "a", Ino: 2, Kind: fsnode.KindRegular})
	n.AddEntry(&fsnode.DirEntry{Name: "b", Ino: 3, Kind: fsnode.KindDirectory})

	raw, err := fsnode.Marshal(n)
	require.NoError(t, err)

	got, err := fsnode.Unmarshal(raw)
	require.NoError(t, err)

	assert.Equal(t, n.Ino, got.Ino)
	assert.Equal(t, n.Kind, got.Kind)
	assert.Equal(t, []string{"a", "b"}, got.EntryOrder)
	assert.Equal(t, uint64(2), got.Attr.Size)
	assert.Equal(t, uint64(2), got.Entries["a"].Ino)
}

func TestSymlinkTargetRoundTrip(t *testing.T) {
	n := &fsnode.Node{Ino: 5, Kind: fsnode.KindSymlink, SymlinkTarget: []byte("/etc/passwd")}
	raw, err := fsnode.Marshal(n)
	require.NoError(t, err)
	got, err := fsnode.Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, "/etc/passwd", string(got.SymlinkTarget))
}

func TestRemoveEntryKeepsOrderAndSize(t *testing.T) {
	n := &fsnode.Node{Ino: 1, Kind: fsnode.KindDirectory}
	n.AddEntry(&fsnode.DirEntry{Name: "a", Ino: 2})
	n.AddEntry(&fsnode.DirEntry{Name: "b", Ino: 3})
	n.AddEntry(&fsnode.DirEntry{Name: "c", Ino: 4})
	n.RemoveEntry("b")

	assert.Equal(t, []string{"a", "c"}, n.EntryOrder)
	assert.Equal(t, uint64(2), n.Attr.Size)
	_, stillThere := n.Entries["b"]
	assert.False(t, stillThere)
}

func TestDecLookupSaturatesAtZero(t *testing.T) {
	n := &fsnode.Node{LookupCount: 2}
	n.DecLookup(5)
	assert.Equal(t, int64(0), n.LookupCount)
}

func TestCanPhysicallyDelete(t *testing.T) {
	n := &fsnode.Node{OpenCount: 0, LookupCount: 0}
	assert.True(t, n.CanPhysicallyDelete())

	n.OpenCount = 1
	assert.False(t, n.CanPhysicallyDelete())
}

func TestSaveAndLoadThroughKV(t *testing.T) {
	e := kv.NewMemEngine()
	err := kv.RunTxn(e, "save", func(txn kv.Txn) error {
		n := &fsnode.Node{Ino: 7, Kind: fsnode.KindRegular, Name: "f"}
		return fsnode.Save(txn, n)
	})
	require.NoError(t, err)

	err = kv.RunTxn(e, "load", func(txn kv.Txn) error {
		n, exists, err := fsnode.Load(txn, 7)
		require.NoError(t, err)
		require.True(t, exists)
		assert.Equal(t, "f", n.Name)
		return nil
	})
	require.NoError(t, err)
}

func TestLoadMissingReturnsNotExists(t *testing.T) {
	e := kv.NewMemEngine()
	err := kv.RunTxn(e, "load", func(txn kv.Txn) error {
		_, exists, err := fsnode.Load(txn, 999)
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	})
	require.NoError(t, err)
}

func TestLookupPreCheckAttachesSharedAttr(t *testing.T) {
	e := kv.NewMemEngine()
	err := kv.RunTxn(e, "setup", func(txn kv.Txn) error {
		child := &fsnode.Node{Ino: 2, Kind: fsnode.KindRegular, Attr: fsnode.Attr{UID: 1000, Mode: 0o644}}
		return fsnode.Save(txn, child)
	})
	require.NoError(t, err)

	parent := &fsnode.Node{Ino: 1, Kind: fsnode.KindDirectory}
	parent.AddEntry(&fsnode.DirEntry{Name: "a", Ino: 2, Kind: fsnode.KindRegular})

	err = kv.RunTxn(e, "precheck", func(txn kv.Txn) error {
		entry, child, err := fsnode.LookupPreCheck(txn, parent, "a")
		require.NoError(t, err)
		require.NotNil(t, child)
		require.NotNil(t, entry.SharedAttr)
		assert.Equal(t, uint32(1000), entry.SharedAttr.UID)
		return nil
	})
	require.NoError(t, err)
}
