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

	"github.com/nfsmeta/distfs/internal/errs"
	"github.com/nfsmeta/distfs/internal/fsnode"
	"github.com/nfsmeta/distfs/internal/kv"
	"github.com/nfsmeta/distfs/internal/perms"
)

// ReadDir implements readdir(ino, offset, reply, ctx): the offset is
// an opaque 1-based position into the directory's ordered entry list.
// maxEntries bounds how many entries are returned in this call,
// standing in for "until the reply buffer is full".
func ReadDir(deps *Deps, ino uint64, offset int64, maxEntries int, ctx ReqContext) ([]DirEntryOut, error) {
	var out []DirEntryOut

	err := kv.RunTxn(deps.Engine, "readdir", func(t kv.Txn) error {
		n, exists, err := fsnode.Load(t, ino)
		if err != nil {
			return err
		}
		if !exists {
			return errs.Posix("readdir", syscall.ENOENT)
		}
		if n.Kind != fsnode.KindDirectory {
			return errs.Posix("readdir", syscall.ENOTDIR)
		}
		if !perms.CheckPerm(ctx.UID, ctx.GID, n.Attr.UID, n.Attr.GID, n.Attr.Mode, perms.Execute) {
			return errs.Posix("readdir", syscall.EACCES)
		}

		entries := n.SortedEntries()
		if offset < 0 {
			offset = 0
		}
		for i := int(offset); i < len(entries) && (maxEntries <= 0 || len(out) < maxEntries); i++ {
			e := entries[i]
			out = append(out, DirEntryOut{
				Ino:    e.Ino,
				Offset: int64(i) + 1,
				Kind:   e.Kind,
				Name:   e.Name,
			})
		}
		return nil
	})
	return out, err
}

// Readlink implements readlink(ino): the raw byte target of a
// symlink.
func Readlink(deps *Deps, ino uint64) ([]byte, error) {
	var target []byte
	err := kv.RunTxn(deps.Engine, "readlink", func(t kv.Txn) error {
		n, exists, err := fsnode.Load(t, ino)
		if err != nil {
			return err
		}
		if !exists {
			return errs.Posix("readlink", syscall.ENOENT)
		}
		if n.Kind != fsnode.KindSymlink {
			return errs.Posix("readlink", syscall.EINVAL)
		}
		target = n.SymlinkTarget
		return nil
	})
	return target, err
}

// Statfs implements statfs(ino): capacity, free, files and namelen
// from volume metadata. This design reports a synthetic, effectively
// unbounded volume, since the object store itself (S3) has no fixed
// capacity to report.
func Statfs(deps *Deps) (StatfsResult, error) {
	return StatfsResult{
		CapacityBytes: 1 << 50,
		FreeBytes:     1 << 50,
		Files:         1 << 32,
		NameLen:       fsnode.NameMaxLen,
	}, nil
}
