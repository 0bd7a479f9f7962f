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
	"encoding/binary"
	"time"

	"github.com/nfsmeta/distfs/internal/errs"
	bolt "go.etcd.io/bbolt"
)

var (
	dataBucket = []byte("data")
	verBucket  = []byte("ver")
)

// boltStore is the durable, single-node Engine backend: a bbolt file
// with a data bucket and a parallel version bucket, so that optimistic
// reads can be checked against a monotonically increasing per-key
// counter without re-reading (and hashing) the value itself.
type boltStore struct {
	db *bolt.DB
}

// NewBoltEngine opens (creating if needed) a bbolt database at path
// and returns an Engine backed by it.
func NewBoltEngine(path string) (Engine, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errs.Backend("kv.open", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(dataBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(verBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errs.Backend("kv.open", err)
	}

	return &engine{s: &boltStore{db: db}}, nil
}

func (b *boltStore) get(key string) ([]byte, uint64, bool, error) {
	var value []byte
	var ver uint64
	var exists bool

	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(dataBucket).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
			exists = true
		}
		if vb := tx.Bucket(verBucket).Get([]byte(key)); vb != nil {
			ver = binary.BigEndian.Uint64(vb)
		}
		return nil
	})
	return value, ver, exists, err
}

func (b *boltStore) atomicCommit(reads map[string]uint64, writes map[string][]byte, deletes map[string]struct{}) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		data := tx.Bucket(dataBucket)
		ver := tx.Bucket(verBucket)

		currentVersion := func(k string) uint64 {
			if vb := ver.Get([]byte(k)); vb != nil {
				return binary.BigEndian.Uint64(vb)
			}
			return 0
		}

		for k, want := range reads {
			if currentVersion(k) != want {
				return &errs.ConflictError{Op: "kv.bolt"}
			}
		}

		bump := func(k string) error {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, currentVersion(k)+1)
			return ver.Put([]byte(k), buf)
		}

		for k := range deletes {
			if err := data.Delete([]byte(k)); err != nil {
				return err
			}
			if err := bump(k); err != nil {
				return err
			}
		}
		for k, v := range writes {
			if err := data.Put([]byte(k), v); err != nil {
				return err
			}
			if err := bump(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltStore) close() error { return b.db.Close() }
