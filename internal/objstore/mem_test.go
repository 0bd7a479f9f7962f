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

package objstore_test

import (
	"context"
	"testing"

	"github.com/nfsmeta/distfs/internal/objstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := objstore.NewMemStore()

	_, err := s.GetObject(ctx, objstore.ObjectKey(2))
	assert.ErrorIs(t, err, objstore.ErrNotExist)

	require.NoError(t, s.PutObject(ctx, objstore.ObjectKey(2), []byte("hello")))

	data, err := s.GetObject(ctx, objstore.ObjectKey(2))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.DeleteObject(ctx, objstore.ObjectKey(2)))
	_, err = s.GetObject(ctx, objstore.ObjectKey(2))
	assert.ErrorIs(t, err, objstore.ErrNotExist)
}
