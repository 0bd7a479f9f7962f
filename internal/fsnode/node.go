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

// Package fsnode implements component C: the on-disk representation
// of an inode and its directory entries, and the key layout used to
// address them in the KV store.
package fsnode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nfsmeta/distfs/internal/kv"
)

// Kind enumerates the three node kinds the catalog accepts; anything
// else is rejected at creation per §3.
type Kind int

const (
	KindRegular Kind = iota
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDirectory:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// RootIno is the reserved inode number of the volume root.
const RootIno uint64 = 1

// Attr mirrors §3's attr block: mode, uid, gid, size, the three
// timestamps, nlink and rdev.
type Attr struct {
	Mode  uint32    `json:"mode"`
	UID   uint32    `json:"uid"`
	GID   uint32    `json:"gid"`
	Size  uint64    `json:"size"`
	Atime time.Time `json:"atime"`
	Mtime time.Time `json:"mtime"`
	Ctime time.Time `json:"ctime"`
	Nlink uint32    `json:"nlink"`
	Rdev  uint32    `json:"rdev"`
}

// DirEntry is one child binding inside a directory's entry map.
// SharedAttr is the reconstructed-on-load cache the original spec
// calls shared_file_attr_ref: it lets a sticky-bit check (component F)
// avoid a second KV read for the child's owner. It is never persisted
// by itself — its json:"-" tag drops it from the serial form, and
// LookupPreCheck repopulates it after the child has been read.
type DirEntry struct {
	Name       string `json:"name"`
	Ino        uint64 `json:"ino"`
	Kind       Kind   `json:"kind"`
	SharedAttr *Attr  `json:"-"`
}

// Node is the unit stored in the KV store under key INum2Node(ino).
type Node struct {
	Ino              uint64              `json:"ino"`
	Kind             Kind                `json:"kind"`
	Attr             Attr                `json:"attr"`
	ParentIno        uint64              `json:"parent_ino"`
	Name             string              `json:"name"`
	OpenCount        int64               `json:"open_count"`
	LookupCount      int64               `json:"lookup_count"`
	DeferredDeletion bool                `json:"deferred_deletion"`

	// Entries holds the ordered name -> DirEntry mapping for
	// directories; nil for files and symlinks. EntryOrder preserves
	// insertion order for stable readdir cookies.
	Entries    map[string]*DirEntry `json:"entries,omitempty"`
	EntryOrder []string             `json:"entry_order,omitempty"`

	// SymlinkTarget holds the raw byte target for symlinks only.
	SymlinkTarget []byte `json:"symlink_target,omitempty"`
}

// NameMaxLen is the maximum length, in bytes, of a single path
// component (mknod/mkdir/symlink/create/rename all enforce this).
const NameMaxLen = 255

// Key returns the KV key this node is stored under: INum2Node(ino).
func Key(ino uint64) []byte {
	return []byte(fmt.Sprintf("ino/%020d", ino))
}

// Marshal produces the byte-stable serial form of n.
func Marshal(n *Node) ([]byte, error) {
	return json.Marshal(n)
}

// Unmarshal parses the serial form written by Marshal.
func Unmarshal(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Load reads and deserializes the node at ino, returning (nil, false)
// if it does not exist.
func Load(t kv.Txn, ino uint64) (*Node, bool, error) {
	raw, exists, err := t.Get(Key(ino))
	if err != nil || !exists {
		return nil, exists, err
	}
	n, err := Unmarshal(raw)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

// Save serializes and stages n for write in the given txn.
func Save(t kv.Txn, n *Node) error {
	raw, err := Marshal(n)
	if err != nil {
		return err
	}
	t.Set(Key(n.Ino), raw)
	return nil
}

// Delete stages physical removal of ino from the KV store.
func Delete(t kv.Txn, ino uint64) {
	t.Delete(Key(ino))
}

// AddEntry inserts or overwrites a directory entry, keeping
// EntryOrder stable (new names appended, existing names keep their
// position), and keeps n.Attr.Size in sync with the entry count per
// invariant 6.
func (n *Node) AddEntry(e *DirEntry) {
	if n.Entries == nil {
		n.Entries = make(map[string]*DirEntry)
	}
	if _, exists := n.Entries[e.Name]; !exists {
		n.EntryOrder = append(n.EntryOrder, e.Name)
	}
	n.Entries[e.Name] = e
	n.Attr.Size = uint64(len(n.Entries))
}

// RemoveEntry deletes a directory entry by name, keeping Size in sync.
func (n *Node) RemoveEntry(name string) {
	if n.Entries == nil {
		return
	}
	if _, exists := n.Entries[name]; !exists {
		return
	}
	delete(n.Entries, name)
	for i, nm := range n.EntryOrder {
		if nm == name {
			n.EntryOrder = append(n.EntryOrder[:i], n.EntryOrder[i+1:]...)
			break
		}
	}
	n.Attr.Size = uint64(len(n.Entries))
}

// SortedEntries returns the directory's entries in stable readdir
// order.
func (n *Node) SortedEntries() []*DirEntry {
	out := make([]*DirEntry, 0, len(n.EntryOrder))
	for _, name := range n.EntryOrder {
		if e, ok := n.Entries[name]; ok {
			out = append(out, e)
		}
	}
	return out
}

// IncLookup bumps lookup_count on reply of lookup/create/mknod.
func (n *Node) IncLookup() { n.LookupCount++ }

// DecLookup decrements lookup_count by nlookup, saturating at 0, per
// forget's contract.
func (n *Node) DecLookup(nlookup int64) {
	n.LookupCount -= nlookup
	if n.LookupCount < 0 {
		n.LookupCount = 0
	}
}

// CanPhysicallyDelete implements delete_check: true iff both
// reference counts are zero.
func (n *Node) CanPhysicallyDelete() bool {
	return n.OpenCount == 0 && n.LookupCount == 0
}
