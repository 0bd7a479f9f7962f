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

// Open implements open(ino, flags, ctx): access check plus open_count
// increment. The local file-handle number itself is allocated by the
// FUSE session adapter (component H), not here — see SPEC_FULL.md
// §4.H for why this system does not keep that counter inside the
// metadata layer.
func Open(deps *Deps, ino uint64, want uint32, ctx ReqContext) (fsnode.Attr, error) {
	return openCommon(deps, ino, want, ctx, fsnode.KindRegular)
}

// OpenDir implements opendir(ino, flags, ctx).
func OpenDir(deps *Deps, ino uint64, want uint32, ctx ReqContext) (fsnode.Attr, error) {
	return openCommon(deps, ino, want, ctx, fsnode.KindDirectory)
}

func openCommon(deps *Deps, ino uint64, want uint32, ctx ReqContext, expect fsnode.Kind) (fsnode.Attr, error) {
	var attr fsnode.Attr
	err := kv.RunTxn(deps.Engine, "open", func(t kv.Txn) error {
		n, exists, err := fsnode.Load(t, ino)
		if err != nil {
			return err
		}
		if !exists {
			return errs.Posix("open", syscall.ENOENT)
		}
		if expect == fsnode.KindDirectory && n.Kind != fsnode.KindDirectory {
			return errs.Posix("opendir", syscall.ENOTDIR)
		}
		if expect == fsnode.KindRegular && n.Kind == fsnode.KindDirectory {
			return errs.Posix("open", syscall.EISDIR)
		}
		if !perms.CheckPerm(ctx.UID, ctx.GID, n.Attr.UID, n.Attr.GID, n.Attr.Mode, want) {
			return errs.Posix("open", syscall.EACCES)
		}

		n.OpenCount++
		if err := fsnode.Save(t, n); err != nil {
			return err
		}
		attr = n.Attr
		return nil
	})
	return attr, err
}

// Release implements release(ino, fh, flush): decrement open_count,
// optionally flush dirty data first, and run delete_check.
func Release(deps *Deps, ino uint64, flush bool) error {
	if flush {
		if err := Flush(deps, ino); err != nil {
			return err
		}
	}
	return closeCommon(deps, ino)
}

// ReleaseDir implements releasedir(ino, fh).
func ReleaseDir(deps *Deps, ino uint64) error {
	return closeCommon(deps, ino)
}

func closeCommon(deps *Deps, ino uint64) error {
	var physicallyDeleted bool
	var wasRegular bool

	err := kv.RunTxn(deps.Engine, "release", func(t kv.Txn) error {
		n, exists, err := fsnode.Load(t, ino)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		if n.OpenCount > 0 {
			n.OpenCount--
		}
		wasRegular = n.Kind == fsnode.KindRegular

		if n.DeferredDeletion && n.CanPhysicallyDelete() {
			fsnode.Delete(t, n.Ino)
			physicallyDeleted = true
			return nil
		}
		return fsnode.Save(t, n)
	})
	if err != nil {
		return err
	}

	if physicallyDeleted {
		deps.Cache.RemoveFileCache(ino)
		if wasRegular && deps.Objects != nil {
			if delErr := deps.Objects.DeleteObject(context.Background(), objstore.ObjectKey(ino)); delErr != nil {
				return errs.Backend("release", delErr)
			}
		}
	}
	return nil
}
