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

// Package blockcache implements component J: an align()-aware LRU
// content cache for regular-file payload blocks, shared across the
// local node's open files and invalidated either locally (unlink,
// overwrite) or remotely (component K).
package blockcache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// key identifies one fixed-size block of one file.
type key struct {
	ino   uint64
	block int64
}

func (k key) String() string { return fmt.Sprintf("%d:%d", k.ino, k.block) }

// Cache is the block-indexed LRU named in §4.J.
type Cache struct {
	blockSize int64
	lru       *lru.Cache

	mu        sync.Mutex
	fileBlock map[uint64]map[int64]struct{}
}

// New builds a Cache with room for capacityBytes/blockSize blocks.
// At least one entry of headroom is always allocated even if the
// configured capacity is smaller than a single block.
func New(capacityBytes, blockSize int64) (*Cache, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("blockcache: block size must be positive")
	}
	entries := int(capacityBytes / blockSize)
	if entries < 1 {
		entries = 1
	}

	c := &Cache{blockSize: blockSize, fileBlock: make(map[uint64]map[int64]struct{})}
	evicted, err := lru.NewWithEvict(entries, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = evicted
	return c, nil
}

func (c *Cache) onEvict(k, _ interface{}) {
	bk := k.(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if blocks, ok := c.fileBlock[bk.ino]; ok {
		delete(blocks, bk.block)
		if len(blocks) == 0 {
			delete(c.fileBlock, bk.ino)
		}
	}
}

// Align returns the configured block size; callers use it to compute
// the [blockStart, blockEnd) range a byte range touches.
func (c *Cache) Align() int64 { return c.blockSize }

// BlockIndex returns the block index a byte offset falls into.
func (c *Cache) BlockIndex(offset int64) int64 { return offset / c.blockSize }

// Get returns the cached block, if present.
func (c *Cache) Get(ino uint64, block int64) ([]byte, bool) {
	v, ok := c.lru.Get(key{ino, block})
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Put caches data as the block'th block of ino.
func (c *Cache) Put(ino uint64, block int64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	c.mu.Lock()
	if c.fileBlock[ino] == nil {
		c.fileBlock[ino] = make(map[int64]struct{})
	}
	c.fileBlock[ino][block] = struct{}{}
	c.mu.Unlock()

	c.lru.Add(key{ino, block}, cp)
}

// Invalidate drops every cached block of ino in [blockStart, blockEnd).
func (c *Cache) Invalidate(ino uint64, blockStart, blockEnd int64) {
	for b := blockStart; b < blockEnd; b++ {
		c.lru.Remove(key{ino, b})
	}
}

// RemoveFileCache drops every cached block of ino, used when the
// inode is physically deleted (delete_check).
func (c *Cache) RemoveFileCache(ino uint64) {
	c.mu.Lock()
	blocks := c.fileBlock[ino]
	delete(c.fileBlock, ino)
	c.mu.Unlock()

	for b := range blocks {
		c.lru.Remove(key{ino, b})
	}
}
