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

// Rename implements rename(old_parent, old_name, new_parent, new_name,
// flags, ctx), including RENAME_NOREPLACE and RENAME_EXCHANGE.
func Rename(deps *Deps, oldParentIno uint64, oldName string, newParentIno uint64, newName string, flags uint32, ctx ReqContext) error {
	if flags&RenameNoReplace != 0 && flags&RenameExchange != 0 {
		return errs.Posix("rename", syscall.EINVAL)
	}
	if len(newName) > fsnode.NameMaxLen {
		return errs.Posix("rename", syscall.ENAMETOOLONG)
	}

	exchange := flags&RenameExchange != 0
	noReplace := flags&RenameNoReplace != 0

	var replacedIno uint64
	var replacedPhysicallyDeleted bool
	var replacedWasRegular bool

	err := kv.RunTxn(deps.Engine, "rename", func(t kv.Txn) error {
		oldParent, exists, err := fsnode.Load(t, oldParentIno)
		if err != nil {
			return err
		}
		if !exists || oldParent.Kind != fsnode.KindDirectory {
			return errs.Posix("rename", syscall.ENOTDIR)
		}
		if !perms.CheckPerm(ctx.UID, ctx.GID, oldParent.Attr.UID, oldParent.Attr.GID, oldParent.Attr.Mode, perms.Write|perms.Execute) {
			return errs.Posix("rename", syscall.EACCES)
		}

		oldEntry, movedChild, err := fsnode.LookupPreCheck(t, oldParent, oldName)
		if err != nil {
			return err
		}
		if oldEntry == nil || movedChild == nil {
			return errs.Posix("rename", syscall.ENOENT)
		}
		if !perms.CheckStickyBit(ctx.UID, oldParent.Attr.Mode, oldParent.Attr.UID, movedChild.Attr.UID) {
			return errs.Posix("rename", syscall.EACCES)
		}

		newParent := oldParent
		if newParentIno != oldParentIno {
			newParent, exists, err = fsnode.Load(t, newParentIno)
			if err != nil {
				return err
			}
			if !exists || newParent.Kind != fsnode.KindDirectory {
				return errs.Posix("rename", syscall.ENOTDIR)
			}
			if !perms.CheckPerm(ctx.UID, ctx.GID, newParent.Attr.UID, newParent.Attr.GID, newParent.Attr.Mode, perms.Write|perms.Execute) {
				return errs.Posix("rename", syscall.EACCES)
			}
		}

		newEntry, existingTarget, err := fsnode.LookupPreCheck(t, newParent, newName)
		if err != nil {
			return err
		}

		if exchange {
			if newEntry == nil || existingTarget == nil {
				return errs.Posix("rename", syscall.ENOENT)
			}
			if !perms.CheckStickyBit(ctx.UID, newParent.Attr.Mode, newParent.Attr.UID, existingTarget.Attr.UID) {
				return errs.Posix("rename", syscall.EACCES)
			}

			movedChild.ParentIno, existingTarget.ParentIno = newParentIno, oldParentIno
			movedChild.Name, existingTarget.Name = newName, oldName

			oldParent.RemoveEntry(oldName)
			oldParent.AddEntry(&fsnode.DirEntry{Name: oldName, Ino: existingTarget.Ino, Kind: existingTarget.Kind})
			newParent.RemoveEntry(newName)
			newParent.AddEntry(&fsnode.DirEntry{Name: newName, Ino: movedChild.Ino, Kind: movedChild.Kind})

			if err := fsnode.Save(t, movedChild); err != nil {
				return err
			}
			if err := fsnode.Save(t, existingTarget); err != nil {
				return err
			}
			if err := fsnode.Save(t, oldParent); err != nil {
				return err
			}
			if newParentIno != oldParentIno {
				return fsnode.Save(t, newParent)
			}
			return nil
		}

		if newEntry != nil {
			if noReplace {
				return errs.Posix("rename", syscall.EEXIST)
			}
			if !perms.CheckStickyBit(ctx.UID, newParent.Attr.Mode, newParent.Attr.UID, existingTarget.Attr.UID) {
				return errs.Posix("rename", syscall.EACCES)
			}
			if existingTarget.Kind == fsnode.KindDirectory && len(existingTarget.Entries) > 0 {
				return errs.Posix("rename", syscall.ENOTEMPTY)
			}

			newParent.RemoveEntry(newName)
			if existingTarget.CanPhysicallyDelete() {
				fsnode.Delete(t, existingTarget.Ino)
				replacedPhysicallyDeleted = true
				replacedIno = existingTarget.Ino
				replacedWasRegular = existingTarget.Kind == fsnode.KindRegular
			} else {
				existingTarget.DeferredDeletion = true
				existingTarget.ParentIno = 0
				if err := fsnode.Save(t, existingTarget); err != nil {
					return err
				}
			}
		}

		movedChild.ParentIno = newParentIno
		movedChild.Name = newName

		oldParent.RemoveEntry(oldName)
		newParent.AddEntry(&fsnode.DirEntry{Name: newName, Ino: movedChild.Ino, Kind: movedChild.Kind})

		if err := fsnode.Save(t, movedChild); err != nil {
			return err
		}
		if err := fsnode.Save(t, oldParent); err != nil {
			return err
		}
		if newParentIno != oldParentIno {
			return fsnode.Save(t, newParent)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if replacedPhysicallyDeleted {
		deps.Cache.RemoveFileCache(replacedIno)
		if replacedWasRegular && deps.Objects != nil {
			if delErr := deps.Objects.DeleteObject(context.Background(), objstore.ObjectKey(replacedIno)); delErr != nil {
				return errs.Backend("rename", delErr)
			}
		}
	}
	return nil
}
