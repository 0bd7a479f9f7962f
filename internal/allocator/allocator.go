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

// Package allocator implements component B: a cluster-wide monotonic
// inode-number counter layered on the same KV store as the rest of
// the metadata catalog, so that every node in the cluster allocates
// from the same sequence with no coordination beyond the KV engine's
// own transactions.
package allocator

import (
	"encoding/binary"

	"github.com/nfsmeta/distfs/internal/kv"
)

// counterKey holds the next inode number to hand out. Root (inode 1)
// is bootstrapped directly by internal/metaops and never passes
// through this counter.
const counterKey = "sys/next_ino"

// firstAllocatable is the first inode number Next can ever return;
// 0 is never valid and 1 is reserved for the root directory.
const firstAllocatable = 2

// Next allocates and returns the next available inode number,
// persisting the advance in the same KV engine used for the rest of
// the metadata catalog. It is safe to call concurrently from any node
// in the cluster.
func Next(engine kv.Engine) (uint64, error) {
	var next uint64
	err := kv.RunTxn(engine, "allocator.next", func(t kv.Txn) error {
		raw, exists, err := t.Get([]byte(counterKey))
		if err != nil {
			return err
		}

		var cur uint64
		if exists {
			cur = binary.BigEndian.Uint64(raw)
		} else {
			cur = firstAllocatable
		}

		next = cur
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, cur+1)
		t.Set([]byte(counterKey), buf)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
