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

	"github.com/nfsmeta/distfs/internal/allocator"
	"github.com/nfsmeta/distfs/internal/errs"
	"github.com/nfsmeta/distfs/internal/fsnode"
	"github.com/nfsmeta/distfs/internal/kv"
	"github.com/nfsmeta/distfs/internal/objstore"
	"github.com/nfsmeta/distfs/internal/perms"
)

// CreateChild implements the shared body of mknod/mkdir/symlink/
// create: validate, allocate an inum, link it into parent, and
// externalize an empty payload for regular files. symlinkTarget is
// only consulted when kind is fsnode.KindSymlink.
func CreateChild(deps *Deps, parentIno uint64, name string, kind fsnode.Kind, mode uint32, ctx ReqContext, symlinkTarget []byte) (uint64, fsnode.Attr, error) {
	if len(name) == 0 || len(name) > fsnode.NameMaxLen {
		return 0, fsnode.Attr{}, errs.Posix("create", syscall.ENAMETOOLONG)
	}
	switch kind {
	case fsnode.KindRegular, fsnode.KindDirectory, fsnode.KindSymlink:
	default:
		return 0, fsnode.Attr{}, errs.Config("create", syscall.ENOSYS, "unsupported node kind")
	}

	var childIno uint64
	var childAttr fsnode.Attr

	err := kv.RunTxn(deps.Engine, "create", func(t kv.Txn) error {
		parent, exists, err := fsnode.Load(t, parentIno)
		if err != nil {
			return err
		}
		if !exists {
			return errs.Posix("create", syscall.ENOENT)
		}
		if parent.Kind != fsnode.KindDirectory {
			return errs.Posix("create", syscall.ENOTDIR)
		}
		if !perms.CheckPerm(ctx.UID, ctx.GID, parent.Attr.UID, parent.Attr.GID, parent.Attr.Mode, perms.Write|perms.Execute) {
			return errs.Posix("create", syscall.EACCES)
		}
		if _, exists := parent.Entries[name]; exists {
			return errs.Posix("create", syscall.EEXIST)
		}

		ino, err := allocator.Next(deps.Engine)
		if err != nil {
			return err
		}

		child := &fsnode.Node{
			Ino:         ino,
			Kind:        kind,
			ParentIno:   parentIno,
			Name:        name,
			LookupCount: 1,
			Attr: fsnode.Attr{
				Mode:  mode,
				UID:   ctx.UID,
				GID:   ctx.GID,
				Nlink: 1,
			},
		}
		if kind == fsnode.KindDirectory {
			child.Attr.Nlink = 2
		}
		if kind == fsnode.KindSymlink {
			child.SymlinkTarget = append([]byte(nil), symlinkTarget...)
			child.Attr.Size = uint64(len(symlinkTarget))
		}

		parent.AddEntry(&fsnode.DirEntry{Name: name, Ino: ino, Kind: kind})

		if err := fsnode.Save(t, child); err != nil {
			return err
		}
		if err := fsnode.Save(t, parent); err != nil {
			return err
		}

		childIno = ino
		childAttr = child.Attr
		return nil
	})
	if err != nil {
		return 0, fsnode.Attr{}, err
	}

	if kind == fsnode.KindRegular && deps.Objects != nil {
		if putErr := deps.Objects.PutObject(context.Background(), objstore.ObjectKey(childIno), nil); putErr != nil {
			return childIno, childAttr, errs.Backend("create", putErr)
		}
	}

	return childIno, childAttr, nil
}
