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
	"context"
	"syscall"

	"github.com/nfsmeta/distfs/internal/errs"
	"github.com/nfsmeta/distfs/internal/fsnode"
	"github.com/nfsmeta/distfs/internal/kv"
	"github.com/nfsmeta/distfs/internal/objstore"
	"github.com/nfsmeta/distfs/internal/perms"
)

// Unlink implements unlink(parent, name, ctx).
func Unlink(deps *Deps, parentIno uint64, name string, ctx ReqContext) error {
	return remove(deps, parentIno, name, ctx, false)
}

// Rmdir implements rmdir(parent, name, ctx).
func Rmdir(deps *Deps, parentIno uint64, name string, ctx ReqContext) error {
	return remove(deps, parentIno, name, ctx, true)
}

func remove(deps *Deps, parentIno uint64, name string, ctx ReqContext, wantDir bool) error {
	var physicallyDeleted bool
	var deletedIno uint64
	var wasRegular bool

	err := kv.RunTxn(deps.Engine, "remove", func(t kv.Txn) error {
		parent, exists, err := fsnode.Load(t, parentIno)
		if err != nil {
			return err
		}
		if !exists {
			return errs.Posix("remove", syscall.ENOENT)
		}
		if parent.Kind != fsnode.KindDirectory {
			return errs.Posix("remove", syscall.ENOTDIR)
		}
		if !perms.CheckPerm(ctx.UID, ctx.GID, parent.Attr.UID, parent.Attr.GID, parent.Attr.Mode, perms.Write|perms.Execute) {
			return errs.Posix("remove", syscall.EACCES)
		}

		entry, _, err := fsnode.LookupPreCheck(t, parent, name)
		if err != nil {
			return err
		}
		if entry == nil {
			return errs.Posix("remove", syscall.ENOENT)
		}

		child, exists, err := fsnode.Load(t, entry.Ino)
		if err != nil {
			return err
		}
		if !exists {
			return errs.Inconsistent("remove", entry.Ino, nil)
		}

		if wantDir && child.Kind != fsnode.KindDirectory {
			return errs.Posix("rmdir", syscall.ENOTDIR)
		}
		if !wantDir && child.Kind == fsnode.KindDirectory {
			return errs.Posix("unlink", syscall.EISDIR)
		}
		if wantDir && len(child.Entries) > 0 {
			return errs.Posix("rmdir", syscall.ENOTEMPTY)
		}

		if !perms.CheckStickyBit(ctx.UID, parent.Attr.Mode, parent.Attr.UID, child.Attr.UID) {
			return errs.Posix("remove", syscall.EACCES)
		}

		parent.RemoveEntry(name)
		if err := fsnode.Save(t, parent); err != nil {
			return err
		}

		if child.CanPhysicallyDelete() {
			fsnode.Delete(t, child.Ino)
			physicallyDeleted = true
			deletedIno = child.Ino
			wasRegular = child.Kind == fsnode.KindRegular
			return nil
		}

		child.DeferredDeletion = true
		child.ParentIno = 0
		return fsnode.Save(t, child)
	})
	if err != nil {
		return err
	}

	if physicallyDeleted {
		deps.Cache.RemoveFileCache(deletedIno)
		if wasRegular && deps.Objects != nil {
			if delErr := deps.Objects.DeleteObject(context.Background(), objstore.ObjectKey(deletedIno)); delErr != nil {
				return errs.Backend("remove", delErr)
			}
		}
	}
	return nil
}
