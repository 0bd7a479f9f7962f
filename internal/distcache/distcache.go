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

// Package distcache implements component K: a unary, fire-and-forget
// cache-invalidation broadcast to every other node in the cluster,
// built on the standard library's net/rpc (see DESIGN.md for why this
// one ambient concern is not sourced from a third-party dependency).
package distcache

import (
	"net"
	"net/rpc"
	"sync"

	"github.com/nfsmeta/distfs/internal/blockcache"
	"github.com/nfsmeta/distfs/internal/logger"
)

// InvalidateArgs is the wire payload of one Invalidate call.
type InvalidateArgs struct {
	Volume     string
	Ino        uint64
	BlockStart int64
	BlockEnd   int64
}

// InvalidateReply carries no data; net/rpc requires a reply type.
type InvalidateReply struct{}

// Server exposes the RPC method peers call into; it wraps the local
// block cache so a remote write invalidates this node's cached blocks.
type Server struct {
	cache  *blockcache.Cache
	volume string
}

// NewServer returns an RPC service to register under the name
// "Invalidation" via net/rpc.
func NewServer(volume string, cache *blockcache.Cache) *Server {
	return &Server{cache: cache, volume: volume}
}

// Invalidate is the RPC entry point; the net/rpc convention requires
// this exact (args, *reply) error signature.
func (s *Server) Invalidate(args *InvalidateArgs, reply *InvalidateReply) error {
	if args.Volume != s.volume {
		return nil
	}
	s.cache.Invalidate(args.Ino, args.BlockStart, args.BlockEnd)
	*reply = InvalidateReply{}
	return nil
}

// Serve registers s under the "Invalidation" RPC name (the name
// Client.Invalidate dials into) and accepts connections on addr in
// the background. onAcceptError, if non-nil, is called from the
// accept loop's goroutine the first time the listener returns an
// error (of any kind); the accept loop then stops.
func Serve(addr string, s *Server, onAcceptError func(error)) error {
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Invalidation", s); err != nil {
		return err
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				if onAcceptError != nil {
					onAcceptError(err)
				}
				return
			}
			go rpcServer.ServeConn(conn)
		}
	}()
	return nil
}

// NodeRegistry is the set of peer addresses (host:port) a node
// broadcasts invalidations to. It is swapped wholesale on membership
// changes rather than mutated in place.
type NodeRegistry struct {
	mu    sync.RWMutex
	peers []string
}

// NewNodeRegistry returns a registry seeded with the given peer
// addresses.
func NewNodeRegistry(peers []string) *NodeRegistry {
	r := &NodeRegistry{}
	r.Set(peers)
	return r
}

// Set replaces the peer list.
func (r *NodeRegistry) Set(peers []string) {
	cp := make([]string, len(peers))
	copy(cp, peers)
	r.mu.Lock()
	r.peers = cp
	r.mu.Unlock()
}

// Peers returns a snapshot of the current peer list.
func (r *NodeRegistry) Peers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make([]string, len(r.peers))
	copy(cp, r.peers)
	return cp
}

// Client broadcasts invalidate_remote calls to every peer in a
// NodeRegistry. Failures are logged and swallowed: invalidation is
// best-effort, never on the critical path of a committed write.
type Client struct {
	registry *NodeRegistry
	volume   string
	dial     func(addr string) (*rpc.Client, error)
}

// NewClient returns a Client broadcasting to registry's peers.
func NewClient(volume string, registry *NodeRegistry) *Client {
	return &Client{
		registry: registry,
		volume:   volume,
		dial:     func(addr string) (*rpc.Client, error) { return rpc.Dial("tcp", addr) },
	}
}

// Invalidate implements the original spec's invalidate_remote: fire a
// unary Invalidate RPC at every peer, concurrently, without waiting
// for any reply before returning success to the caller's own commit
// path. It never returns an error; failures are logged only.
func (c *Client) Invalidate(ino uint64, blockStart, blockEnd int64) {
	args := &InvalidateArgs{Volume: c.volume, Ino: ino, BlockStart: blockStart, BlockEnd: blockEnd}
	for _, peer := range c.registry.Peers() {
		peer := peer
		go func() {
			client, err := c.dial(peer)
			if err != nil {
				logger.Warnf("distcache: dial %s failed: %v", peer, err)
				return
			}
			defer client.Close()

			var reply InvalidateReply
			if err := client.Call("Invalidation.Invalidate", args, &reply); err != nil {
				logger.Warnf("distcache: invalidate call to %s failed: %v", peer, err)
			}
		}()
	}
}
