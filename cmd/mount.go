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

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/nfsmeta/distfs/cfg"
	"github.com/nfsmeta/distfs/internal/blockcache"
	"github.com/nfsmeta/distfs/internal/distcache"
	"github.com/nfsmeta/distfs/internal/fuseserver"
	"github.com/nfsmeta/distfs/internal/kv"
	"github.com/nfsmeta/distfs/internal/logger"
	"github.com/nfsmeta/distfs/internal/metaops"
	"github.com/nfsmeta/distfs/internal/objstore"
	"github.com/nfsmeta/distfs/internal/perms"
	"github.com/nfsmeta/distfs/metrics"
)

// dbFileName is the bbolt-backed KV engine's on-disk file, kept inside
// the mount-dir's parent rather than the mount point itself since the
// mount point is covered by the FUSE mount once active.
const dbFileName = ".distfs-meta.db"

// mount builds every collaborator named in SPEC_FULL.md §4 from the
// parsed config, bootstraps the root inode, registers this node's
// distributed-cache RPC server, and blocks serving the FUSE mount
// until it is unmounted.
func mount(ctx context.Context, config *cfg.Config) (err error) {
	uid, gid, err := perms.MyUserAndGroup()
	if err != nil {
		return fmt.Errorf("perms.MyUserAndGroup: %w", err)
	}

	engine, err := kv.NewBoltEngine(filepath.Join(filepath.Dir(string(config.MountDir)), dbFileName))
	if err != nil {
		return fmt.Errorf("kv.NewBoltEngine: %w", err)
	}
	defer engine.Close()

	var objects objstore.Store
	switch config.Storage.Backend {
	case cfg.StorageBackendS3:
		objects, err = objstore.NewS3Store(config.Storage)
		if err != nil {
			return fmt.Errorf("objstore.NewS3Store: %w", err)
		}
	default:
		objects = objstore.NewMemStore()
	}

	cache, err := blockcache.New(config.Cache.CapacityBytes, config.Cache.BlockSize)
	if err != nil {
		return fmt.Errorf("blockcache.New: %w", err)
	}

	// Every node serving the same bucket belongs to one volume, so
	// invalidations are tagged with the bucket rather than the node ID.
	volume := config.Storage.Bucket
	registry := distcache.NewNodeRegistry(config.Peers)
	invalidator := distcache.NewClient(volume, registry)

	rpcServer := distcache.NewServer(volume, cache)
	if err := startInvalidationServer(config, rpcServer); err != nil {
		return fmt.Errorf("starting distributed-cache RPC server: %w", err)
	}

	var metricsHandle metrics.Handle
	if config.Metrics.Enabled {
		addr := fmt.Sprintf(":%d", config.Metrics.Port)
		metricsHandle, _, err = metrics.StartExporter(addr)
		if err != nil {
			return fmt.Errorf("metrics.StartExporter: %w", err)
		}
	} else {
		metricsHandle = metrics.NewNoopMetrics()
	}
	kv.SetMetrics(metricsHandle)

	deps := &metaops.Deps{
		Engine:      engine,
		Objects:     objects,
		Cache:       cache,
		Invalidator: invalidator,
	}

	if err := metaops.Bootstrap(deps, uid, gid); err != nil {
		return fmt.Errorf("metaops.Bootstrap: %w", err)
	}

	server := fuseserver.New(deps, uid, gid, metricsHandle)
	fsServer := fuseutil.NewFileSystemServer(server)

	mountCfg := &fuse.MountConfig{
		FSName:     "distfs",
		Subtype:    "distfs",
		VolumeName: config.NodeID,
	}
	if config.Logging.Severity.Rank() <= cfg.TraceLogSeverity.Rank() {
		mountCfg.DebugLogger = log.New(os.Stderr, "fuse_debug: ", 0)
	}

	logger.Infof("mounting %q as node %q", string(config.MountDir), config.NodeID)
	mfs, err := fuse.Mount(string(config.MountDir), fsServer, mountCfg)
	if err != nil {
		return fmt.Errorf("fuse.Mount: %w", err)
	}

	if err := mfs.Join(ctx); err != nil {
		return fmt.Errorf("mfs.Join: %w", err)
	}
	return nil
}

// startInvalidationServer registers rpcServer under the "Invalidation"
// name (matching internal/distcache.Client's hardcoded RPC method
// name) and serves it on config.ip:config.server_port in the
// background.
func startInvalidationServer(config *cfg.Config, rpcServer *distcache.Server) error {
	return distcache.Serve(fmt.Sprintf("%s:%d", config.IP, config.ServerPort), rpcServer, func(err error) {
		fmt.Fprintln(os.Stderr, "distcache: RPC server stopped:", err)
	})
}
