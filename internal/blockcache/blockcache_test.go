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

package blockcache_test

import (
	"testing"

	"github.com/nfsmeta/distfs/internal/blockcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	c, err := blockcache.New(1<<20, 4096)
	require.NoError(t, err)

	c.Put(1, 0, []byte("block0"))
	v, ok := c.Get(1, 0)
	require.True(t, ok)
	assert.Equal(t, "block0", string(v))

	_, ok = c.Get(1, 1)
	assert.False(t, ok)
}

func TestInvalidateRange(t *testing.T) {
	c, err := blockcache.New(1<<20, 4096)
	require.NoError(t, err)

	for b := int64(0); b < 5; b++ {
		c.Put(1, b, []byte{byte(b)})
	}
	c.Invalidate(1, 1, 3)

	_, ok := c.Get(1, 0)
	assert.True(t, ok)
	_, ok = c.Get(1, 1)
	assert.False(t, ok)
	_, ok = c.Get(1, 2)
	assert.False(t, ok)
	_, ok = c.Get(1, 3)
	assert.True(t, ok)
}

func TestRemoveFileCache(t *testing.T) {
	c, err := blockcache.New(1<<20, 4096)
	require.NoError(t, err)

	c.Put(1, 0, []byte("a"))
	c.Put(1, 1, []byte("b"))
	c.Put(2, 0, []byte("c"))

	c.RemoveFileCache(1)

	_, ok := c.Get(1, 0)
	assert.False(t, ok)
	_, ok = c.Get(1, 1)
	assert.False(t, ok)
	_, ok = c.Get(2, 0)
	assert.True(t, ok)
}

func TestAlignAndBlockIndex(t *testing.T) {
	c, err := blockcache.New(1<<20, 4096)
	require.NoError(t, err)

	assert.Equal(t, int64(4096), c.Align())
	assert.Equal(t, int64(0), c.BlockIndex(0))
	assert.Equal(t, int64(0), c.BlockIndex(4095))
	assert.Equal(t, int64(1), c.BlockIndex(4096))
}

func TestEvictionClearsFileBlockIndex(t *testing.T) {
	c, err := blockcache.New(8192, 4096) // capacity for 2 blocks
	require.NoError(t, err)

	c.Put(1, 0, []byte("a"))
	c.Put(1, 1, []byte("b"))
	c.Put(1, 2, []byte("c")) // evicts (1,0)

	_, ok := c.Get(1, 0)
	assert.False(t, ok)

	// RemoveFileCache must not panic or leave stale entries behind
	// after an LRU-driven eviction already removed block 0.
	c.RemoveFileCache(1)
	_, ok = c.Get(1, 1)
	assert.False(t, ok)
	_, ok = c.Get(1, 2)
	assert.False(t, ok)
}
