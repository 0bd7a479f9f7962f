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

// Package objstore implements component I: the S3-compatible backend
// regular-file payloads are externalized to, plus an in-memory fake
// for StorageBackendNone.
package objstore

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
)

// ErrNotExist is returned by GetObject when key has no object yet.
var ErrNotExist = errors.New("objstore: object does not exist")

// Store is the externalized-payload object store named in §3
// ("payload is externalized to S3") and §6's backend interface.
type Store interface {
	// GetObject returns the full contents of key, or ErrNotExist if no
	// object is stored under it (metaops.CreateChild puts an empty
	// object for every new regular file, so a new file already has one).
	GetObject(ctx context.Context, key string) ([]byte, error)
	// PutObject replaces key's contents entirely.
	PutObject(ctx context.Context, key string, data []byte) error
	// DeleteObject removes key; a no-op if it does not exist.
	DeleteObject(ctx context.Context, key string) error
}

// ObjectKey derives the S3/fake-store key for a regular file's
// payload from its inode number, as hex(ino).
func ObjectKey(ino uint64) string {
	return strconv.FormatUint(ino, 16)
}
