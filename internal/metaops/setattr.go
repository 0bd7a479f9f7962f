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
	"time"

	"github.com/nfsmeta/distfs/internal/errs"
	"github.com/nfsmeta/distfs/internal/fsnode"
	"github.com/nfsmeta/distfs/internal/kv"
	"github.com/nfsmeta/distfs/internal/objstore"
)

// SetAttr implements setattr(ino, param, ctx).
func SetAttr(deps *Deps, ino uint64, p SetAttrParams, ctx ReqContext) (fsnode.Attr, error) {
	var resultAttr fsnode.Attr
	var oldSize, newSize uint64
	var sizeChanged bool

	err := kv.RunTxn(deps.Engine, "setattr", func(t kv.Txn) error {
		n, exists, err := fsnode.Load(t, ino)
		if err != nil {
			return err
		}
		if !exists {
			return errs.Posix("setattr", syscall.ENOENT)
		}

		changingOwnership := p.Mode != nil || p.UID != nil || p.GID != nil
		if changingOwnership && ctx.UID != 0 && ctx.UID != n.Attr.UID {
			return errs.Posix("setattr", syscall.EACCES)
		}
		if p.Size != nil && ctx.UID != 0 && ctx.UID != n.Attr.UID {
			return errs.Posix("setattr", syscall.EACCES)
		}

		if p.Mode != nil {
			n.Attr.Mode = *p.Mode
		}
		if p.UID != nil {
			n.Attr.UID = *p.UID
		}
		if p.GID != nil {
			n.Attr.GID = *p.GID
		}
		if p.Atime != nil {
			n.Attr.Atime = *p.Atime
		}
		if p.Mtime != nil {
			n.Attr.Mtime = *p.Mtime
		}
		if p.Size != nil {
			oldSize = n.Attr.Size
			newSize = *p.Size
			sizeChanged = oldSize != newSize
			n.Attr.Size = newSize
		}
		n.Attr.Ctime = time.Now()

		if err := fsnode.Save(t, n); err != nil {
			return err
		}
		resultAttr = n.Attr
		return nil
	})
	if err != nil {
		return fsnode.Attr{}, err
	}

	if sizeChanged && deps.Objects != nil {
		if truncErr := truncateObject(deps, ino, newSize); truncErr != nil {
			return resultAttr, errs.Backend("setattr", truncErr)
		}
		if newSize < oldSize {
			deps.Cache.Invalidate(ino, deps.Cache.BlockIndex(int64(newSize)), deps.Cache.BlockIndex(int64(oldSize))+1)
		}
	}

	return resultAttr, nil
}

func truncateObject(deps *Deps, ino uint64, newSize uint64) error {
	ctx := context.Background()
	key := objstore.ObjectKey(ino)

	data, err := deps.Objects.GetObject(ctx, key)
	if err != nil {
		if err == objstore.ErrNotExist {
			data = nil
		} else {
			return err
		}
	}

	if uint64(len(data)) == newSize {
		return nil
	}
	if uint64(len(data)) > newSize {
		data = data[:newSize]
	} else {
		grown := make([]byte, newSize)
		copy(grown, data)
		data = grown
	}
	return deps.Objects.PutObject(ctx, key, data)
}
