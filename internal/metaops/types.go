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

// Package metaops implements component D: one handler per kernel
// filesystem operation, each following the skeleton authorize -> open
// txn -> read -> mutate -> stage writes -> commit -> post-commit side
// effects, composed from internal/kv, internal/fsnode,
// internal/allocator, internal/perms, internal/objstore and
// internal/blockcache.
package metaops

import (
	"time"

	"github.com/nfsmeta/distfs/internal/blockcache"
	"github.com/nfsmeta/distfs/internal/distcache"
	"github.com/nfsmeta/distfs/internal/fsnode"
	"github.com/nfsmeta/distfs/internal/kv"
	"github.com/nfsmeta/distfs/internal/objstore"
)

// ReqContext carries the caller identity the kernel attaches to every
// request.
type ReqContext struct {
	UID uint32
	GID uint32
	PID uint32
}

// Deps bundles the shared, internally thread-safe collaborators every
// handler needs: the KV engine, the object store, the local block
// cache, and the distributed-invalidation client. Constructed once at
// startup and passed to every handler, per §9's implicit-global-state
// rewrite.
type Deps struct {
	Engine      kv.Engine
	Objects     objstore.Store
	Cache       *blockcache.Cache
	Invalidator *distcache.Client
}

// LookupTTL is the attribute/entry cache TTL the original spec fixes
// for lookup and getattr replies.
const LookupTTL = 3600 * time.Second

// NameMaxLen mirrors fsnode.NameMaxLen for callers that only import
// metaops.
const NameMaxLen = 255

// Rename flags, named exactly as the kernel protocol defines them.
const (
	RenameNoReplace uint32 = 1
	RenameExchange  uint32 = 2
)

// Open/read/write access-mode bits passed to Open and OpenDir. The
// FUSE adapter does not derive them from the request's O_* flags: it
// passes WantRead|WantWrite for every file open and WantRead for
// every directory open.
const (
	WantRead  = 0o4
	WantWrite = 0o2
	WantExec  = 0o1
)

// StatfsResult is returned by Statfs.
type StatfsResult struct {
	CapacityBytes uint64
	FreeBytes     uint64
	Files         uint64
	NameLen       uint32
}

// SetAttrParams carries the subset of attributes a setattr call
// wants changed; nil fields are left untouched.
type SetAttrParams struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Size  *uint64
	Atime *time.Time
	Mtime *time.Time
}

// DirEntryOut is one readdir reply entry: the original spec's
// (child_ino, offset+i+1, kind, name).
type DirEntryOut struct {
	Ino    uint64
	Offset int64
	Kind   fsnode.Kind
	Name   string
}
