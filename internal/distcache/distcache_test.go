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

package distcache_test

import (
	"net"
	"net/rpc"
	"testing"
	"time"

	"github.com/nfsmeta/distfs/internal/blockcache"
	"github.com/nfsmeta/distfs/internal/distcache"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, volume string, cache *blockcache.Cache) string {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("Invalidation", distcache.NewServer(volume, cache)))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go server.Accept(l)
	t.Cleanup(func() { _ = l.Close() })
	return l.Addr().String()
}

func TestInvalidateReachesPeer(t *testing.T) {
	cache, err := blockcache.New(1<<20, 4096)
	require.NoError(t, err)
	cache.Put(7, 0, []byte("x"))

	addr := startTestServer(t, "vol1", cache)
	registry := distcache.NewNodeRegistry([]string{addr})
	client := distcache.NewClient("vol1", registry)

	client.Invalidate(7, 0, 1)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(7, 0)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestInvalidateIgnoresUnreachablePeerWithoutPanicking(t *testing.T) {
	registry := distcache.NewNodeRegistry([]string{"127.0.0.1:1"})
	client := distcache.NewClient("vol1", registry)
	client.Invalidate(1, 0, 1)
}
