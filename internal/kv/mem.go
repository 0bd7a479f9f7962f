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

package kv

import (
	"sync"

	"github.com/nfsmeta/distfs/internal/errs"
)

// memStore is the in-memory Engine backend, used by tests and by a
// single-node daemon with no durability requirement.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	version map[string]uint64
}

// NewMemEngine returns an Engine that keeps all state in an in-process
// map. It is never durable across restarts.
func NewMemEngine() Engine {
	return &engine{s: &memStore{
		data:    make(map[string][]byte),
		version: make(map[string]uint64),
	}}
}

func (m *memStore) get(key string) ([]byte, uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, m.version[key], false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, m.version[key], true, nil
}

func (m *memStore) atomicCommit(reads map[string]uint64, writes map[string][]byte, deletes map[string]struct{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, wantVer := range reads {
		if m.version[k] != wantVer {
			return &errs.ConflictError{Op: "kv.mem"}
		}
	}

	for k := range deletes {
		delete(m.data, k)
		m.version[k]++
	}
	for k, v := range writes {
		m.data[k] = v
		m.version[k]++
	}
	return nil
}

func (m *memStore) close() error { return nil }
