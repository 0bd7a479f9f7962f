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

// Read implements read(ino, offset, size): clamp to attr.size,
// serve through the block cache, fall back to the object store on
// miss. Read loads attr.size in a read-only txn; it stages no KV writes
// and does not update atime.
func Read(deps *Deps, ino uint64, offset int64, size int64) ([]byte, error) {
	ctx := context.Background()

	var fileSize uint64
	err := kv.RunTxn(deps.Engine, "read.attr", func(t kv.Txn) error {
		n, exists, err := fsnode.Load(t, ino)
		if err != nil {
			return err
		}
		if !exists {
			return errs.Posix("read", syscall.ENOENT)
		}
		fileSize = n.Attr.Size
		return nil
	})
	if err != nil {
		return nil, err
	}

	if offset >= int64(fileSize) {
		return nil, nil
	}
	if offset+size > int64(fileSize) {
		size = int64(fileSize) - offset
	}
	if size <= 0 {
		return nil, nil
	}

	align := deps.Cache.Align()
	out := make([]byte, 0, size)

	for pos := offset; pos < offset+size; {
		block := deps.Cache.BlockIndex(pos)
		blockStart := block * align
		blockData, ok := deps.Cache.Get(ino, block)
		if !ok {
			full, err := deps.Objects.GetObject(ctx, objstore.ObjectKey(ino))
			if err != nil && err != objstore.ErrNotExist {
				return nil, errs.Backend("read", err)
			}
			end := blockStart + align
			if end > int64(len(full)) {
				end = int64(len(full))
			}
			if blockStart > int64(len(full)) {
				blockStart = int64(len(full))
			}
			blockData = full[blockStart:end]
			deps.Cache.Put(ino, block, blockData)
		}

		withinBlock := pos - blockStart
		avail := int64(len(blockData)) - withinBlock
		if avail <= 0 {
			break
		}
		want := offset + size - pos
		if want > avail {
			want = avail
		}
		out = append(out, blockData[withinBlock:withinBlock+want]...)
		pos += want
	}
	return out, nil
}

// Write implements write(ino, fh, offset, data, flags): write-through
// to the block cache and the object store, update attr.size/mtime/
// ctime inside a txn, then broadcast invalidation to peers.
func Write(deps *Deps, ino uint64, offset int64, data []byte) (int, error) {
	ctx := context.Background()
	key := objstore.ObjectKey(ino)

	existing, err := deps.Objects.GetObject(ctx, key)
	if err != nil {
		if err != objstore.ErrNotExist {
			return 0, errs.Backend("write", err)
		}
		existing = nil
	}

	end := offset + int64(len(data))
	var buf []byte
	if int64(len(existing)) >= end {
		buf = existing
	} else {
		buf = make([]byte, end)
		copy(buf, existing)
	}
	copy(buf[offset:end], data)

	if err := deps.Objects.PutObject(ctx, key, buf); err != nil {
		return 0, errs.Backend("write", err)
	}

	newSize := uint64(len(buf))
	err = kv.RunTxn(deps.Engine, "write", func(t kv.Txn) error {
		n, exists, err := fsnode.Load(t, ino)
		if err != nil {
			return err
		}
		if !exists {
			return errs.Posix("write", syscall.ENOENT)
		}
		if newSize > n.Attr.Size {
			n.Attr.Size = newSize
		}
		now := time.Now()
		n.Attr.Mtime = now
		n.Attr.Ctime = now
		return fsnode.Save(t, n)
	})
	if err != nil {
		return 0, err
	}

	align := deps.Cache.Align()
	blockStart := deps.Cache.BlockIndex(offset)
	blockEnd := deps.Cache.BlockIndex(end-1) + 1
	for b := blockStart; b < blockEnd; b++ {
		bStart := b * align
		bEnd := bStart + align
		if bEnd > int64(len(buf)) {
			bEnd = int64(len(buf))
		}
		deps.Cache.Put(ino, b, buf[bStart:bEnd])
	}

	if deps.Invalidator != nil {
		deps.Invalidator.Invalidate(ino, blockStart, blockEnd)
	}

	return len(data), nil
}

// Flush implements flush/fsync: the write path above is already
// write-through, so there is nothing buffered to force out; this
// exists as a named seam for a future write-back cache.
func Flush(deps *Deps, ino uint64) error {
	return nil
}

// Fsync is identical to Flush in this write-through design.
func Fsync(deps *Deps, ino uint64) error {
	return Flush(deps, ino)
}
