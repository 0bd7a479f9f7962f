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

package allocator_test

import (
	"sync"
	"testing"

	"github.com/nfsmeta/distfs/internal/allocator"
	"github.com/nfsmeta/distfs/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStartsAtTwo(t *testing.T) {
	e := kv.NewMemEngine()
	ino, err := allocator.Next(e)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ino)
}

func TestNextNeverReturnsZeroOrOne(t *testing.T) {
	e := kv.NewMemEngine()
	for i := 0; i < 50; i++ {
		ino, err := allocator.Next(e)
		require.NoError(t, err)
		assert.NotEqual(t, uint64(0), ino)
		assert.NotEqual(t, uint64(1), ino)
	}
}

func TestNextIsMonotonicAndUnique(t *testing.T) {
	e := kv.NewMemEngine()
	seen := make(map[uint64]bool)
	for i := 0; i < 200; i++ {
		ino, err := allocator.Next(e)
		require.NoError(t, err)
		assert.False(t, seen[ino], "inode %d allocated twice", ino)
		seen[ino] = true
	}
}

func TestNextConcurrentAllocationsAreUnique(t *testing.T) {
	e := kv.NewMemEngine()
	const n = 100
	results := make([]uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			ino, err := allocator.Next(e)
			assert.NoError(t, err)
			results[i] = ino
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, ino := range results {
		assert.False(t, seen[ino], "inode %d allocated twice", ino)
		seen[ino] = true
	}
}
