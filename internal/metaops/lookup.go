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

package metaops

import (
	"syscall"
	"time"

	"github.com/nfsmeta/distfs/internal/errs"
	"github.com/nfsmeta/distfs/internal/fsnode"
	"github.com/nfsmeta/distfs/internal/kv"
	"github.com/nfsmeta/distfs/internal/perms"
)

// Lookup implements lookup(parent, name, ctx).
func Lookup(deps *Deps, parentIno uint64, name string, ctx ReqContext) (ttl time.Duration, attr fsnode.Attr, ino uint64, generation uint64, kind fsnode.Kind, err error) {
	err = kv.RunTxn(deps.Engine, "lookup", func(t kv.Txn) error {
		parent, exists, e := fsnode.Load(t, parentIno)
		if e != nil {
			return e
		}
		if !exists {
			return errs.Posix("lookup", syscall.ENOENT)
		}
		if parent.Kind != fsnode.KindDirectory {
			return errs.Posix("lookup", syscall.ENOTDIR)
		}
		if !perms.CheckPerm(ctx.UID, ctx.GID, parent.Attr.UID, parent.Attr.GID, parent.Attr.Mode, perms.Execute) {
			return errs.Posix("lookup", syscall.EACCES)
		}

		entry, ok := parent.Entries[name]
		if !ok {
			return errs.Posix("lookup", syscall.ENOENT)
		}

		child, exists, e := fsnode.Load(t, entry.Ino)
		if e != nil {
			return e
		}
		if !exists {
			return errs.Inconsistent("lookup", entry.Ino, nil)
		}

		child.IncLookup()
		if e := fsnode.Save(t, child); e != nil {
			return e
		}

		ttl = LookupTTL
		attr = child.Attr
		ino = child.Ino
		generation = 1
		kind = child.Kind
		return nil
	})
	return
}

// Forget implements forget(ino, nlookup).
func Forget(deps *Deps, ino uint64, nlookup int64) error {
	return kv.RunTxn(deps.Engine, "forget", func(t kv.Txn) error {
		n, exists, err := fsnode.Load(t, ino)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		n.DecLookup(nlookup)

		if n.DeferredDeletion && n.CanPhysicallyDelete() {
			fsnode.Delete(t, n.Ino)
			return nil
		}
		return fsnode.Save(t, n)
	})
}

// GetAttr implements getattr(ino): read inode, return (ttl, attr), no
// mutation.
func GetAttr(deps *Deps, ino uint64) (ttl time.Duration, attr fsnode.Attr, kind fsnode.Kind, deferredDeletion bool, err error) {
	err = kv.RunTxn(deps.Engine, "getattr", func(t kv.Txn) error {
		n, exists, e := fsnode.Load(t, ino)
		if e != nil {
			return e
		}
		if !exists {
			return errs.Posix("getattr", syscall.ENOENT)
		}
		ttl = LookupTTL
		attr = n.Attr
		kind = n.Kind
		deferredDeletion = n.DeferredDeletion
		return nil
	})
	return
}
