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

// Package kv implements component A (the KV transaction runner) and
// component L (the KV engine backends): an optimistic-concurrency
// transactional key-value store with bbolt-backed and in-memory
// implementations.
package kv

import (
	"context"

	"github.com/nfsmeta/distfs/internal/errs"
	"github.com/nfsmeta/distfs/metrics"
)

// txnMetrics records RunTxn's retry behavior (component O). Defaults to
// a no-op so tests and callers that never call SetMetrics still work;
// real wiring happens once at startup via SetMetrics.
var txnMetrics metrics.Handle = metrics.NewNoopMetrics()

// SetMetrics installs the metrics.Handle every RunTxn call records
// against. RunTxn is called from many packages (internal/metaops,
// internal/allocator) with no shared Deps-like struct to carry a
// handle through, so this is a package-level hook set once at startup,
// the same shape as internal/logger's package-level default logger.
func SetMetrics(h metrics.Handle) {
	txnMetrics = h
}

// Txn is the per-attempt handle a transaction body reads and writes
// through. A value read through Get reflects any prior Set/Delete
// staged in the same Txn (read-your-writes).
type Txn interface {
	Get(key []byte) (value []byte, exists bool, err error)
	Set(key, value []byte)
	Delete(key []byte)
	Commit() error
}

// Engine is the outbound KV store interface named in §6: get/set/
// delete (through a Txn) and begin_txn() -> MetaTxn.
type Engine interface {
	BeginTxn() (Txn, error)
	Close() error
}

// store is the minimal atomic primitive an Engine backend provides;
// the optimistic-concurrency Txn logic above is shared by every
// backend and layered on top of it.
type store interface {
	get(key string) (value []byte, version uint64, exists bool, err error)
	atomicCommit(reads map[string]uint64, writes map[string][]byte, deletes map[string]struct{}) error
	close() error
}

type engine struct {
	s store
}

func (e *engine) BeginTxn() (Txn, error) {
	return &txn{
		store:   e.s,
		reads:   make(map[string]uint64),
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}, nil
}

func (e *engine) Close() error { return e.s.close() }

type txn struct {
	store   store
	reads   map[string]uint64
	writes  map[string][]byte
	deletes map[string]struct{}
}

func (t *txn) Get(key []byte) ([]byte, bool, error) {
	k := string(key)

	if v, ok := t.writes[k]; ok {
		return v, true, nil
	}
	if _, ok := t.deletes[k]; ok {
		return nil, false, nil
	}

	v, ver, exists, err := t.store.get(k)
	if err != nil {
		return nil, false, err
	}
	if _, already := t.reads[k]; !already {
		t.reads[k] = ver
	}
	return v, exists, nil
}

func (t *txn) Set(key, value []byte) {
	k := string(key)
	delete(t.deletes, k)
	cp := make([]byte, len(value))
	copy(cp, value)
	t.writes[k] = cp
}

func (t *txn) Delete(key []byte) {
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = struct{}{}
}

func (t *txn) Commit() error {
	return t.store.atomicCommit(t.reads, t.writes, t.deletes)
}

// maxAttempts is 1 initial attempt plus 5 retries, matching the
// original spec's "at most 5 attempts" on top of the first try: the
// 6th conflicting attempt converts to TxnRetryExceeded.
const maxAttempts = 6

// RunTxn executes body against a fresh Txn from engine, retrying on
// optimistic-concurrency conflict, for at most maxAttempts attempts in
// total (the first try plus maxAttempts-1 retries). A
// non-conflict error returned by body propagates immediately without
// retry, per component A's contract.
func RunTxn(engine Engine, op string, body func(Txn) error) error {
	ctx := context.Background()
	defer txnMetrics.SetOpenTxnRetries(0)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		txnMetrics.SetOpenTxnRetries(int64(attempt))

		t, err := engine.BeginTxn()
		if err != nil {
			return errs.Backend(op, err)
		}

		if err := body(t); err != nil {
			return err
		}

		if err := t.Commit(); err != nil {
			if errs.IsConflict(err) {
				lastErr = err
				txnMetrics.TxnRetryCount(ctx, 1, op)
				continue
			}
			return errs.Backend(op, err)
		}
		return nil
	}
	_ = lastErr
	return errs.TxnRetryExceeded(op)
}
