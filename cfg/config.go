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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully parsed, validated configuration for one mounted
// volume. It mirrors the external interface surface named in §6:
// storage.params, cache.*, node_id, ip, server_port, mount_dir, plus
// ambient logging configuration.
type Config struct {
	NodeID     string       `mapstructure:"node-id" yaml:"node-id"`
	IP         string       `mapstructure:"ip" yaml:"ip"`
	ServerPort int          `mapstructure:"server-port" yaml:"server-port"`
	MountDir   ResolvedPath `mapstructure:"mount-dir" yaml:"mount-dir"`
	Peers      []string     `mapstructure:"peers" yaml:"peers"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig controls component O's Prometheus-over-OTel exporter.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// StorageConfig names the object-store backend: S3 or the in-memory
// fake (the original spec's `StorageParams::None`).
type StorageConfig struct {
	Backend StorageBackend `mapstructure:"backend" yaml:"backend"`

	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access-key" yaml:"access-key"`
	SecretKey string `mapstructure:"secret-key" yaml:"secret-key"`
}

// CacheConfig is the block cache's sizing knobs.
type CacheConfig struct {
	CapacityBytes int64 `mapstructure:"capacity-bytes" yaml:"capacity-bytes"`
	BlockSize     int64 `mapstructure:"block-size" yaml:"block-size"`
}

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	Severity LogSeverity  `mapstructure:"severity" yaml:"severity"`
	Format   string       `mapstructure:"format" yaml:"format"`
	FilePath ResolvedPath `mapstructure:"file-path" yaml:"file-path"`

	LogRotateConfig LogRotateConfig `mapstructure:"log-rotate" yaml:"log-rotate"`
}

// LogRotateConfig configures lumberjack.Logger.
type LogRotateConfig struct {
	MaxFileSizeMB   int  `mapstructure:"max-file-size-mb" yaml:"max-file-size-mb"`
	BackupFileCount int  `mapstructure:"backup-file-count" yaml:"backup-file-count"`
	Compress        bool `mapstructure:"compress" yaml:"compress"`
}

// BindFlags registers every flag in the configuration surface above
// against flagSet and binds it into viper, following the teacher's
// BindFlags/viper.BindPFlag pattern.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	bind := func(name string, bindErr error) error {
		if err != nil {
			return err
		}
		return bindErr
	}

	flagSet.StringP("node-id", "", "", "Cluster-unique identifier for this node.")
	err = bind("node-id", viper.BindPFlag("node-id", flagSet.Lookup("node-id")))
	if err != nil {
		return err
	}

	flagSet.StringP("ip", "", "0.0.0.0", "Address this node's distributed-cache RPC server listens on.")
	err = bind("ip", viper.BindPFlag("ip", flagSet.Lookup("ip")))
	if err != nil {
		return err
	}

	flagSet.IntP("server-port", "", 9417, "Port this node's distributed-cache RPC server listens on.")
	err = bind("server-port", viper.BindPFlag("server-port", flagSet.Lookup("server-port")))
	if err != nil {
		return err
	}

	flagSet.StringP("mount-dir", "", "", "Local mount point.")
	err = bind("mount-dir", viper.BindPFlag("mount-dir", flagSet.Lookup("mount-dir")))
	if err != nil {
		return err
	}

	flagSet.StringSliceP("peers", "", nil, "host:port of every other node in the cluster, for cache invalidation broadcast.")
	err = bind("peers", viper.BindPFlag("peers", flagSet.Lookup("peers")))
	if err != nil {
		return err
	}

	flagSet.StringP("storage-backend", "", string(StorageBackendNone), "Object store backend: s3 or none.")
	err = bind("storage-backend", viper.BindPFlag("storage.backend", flagSet.Lookup("storage-backend")))
	if err != nil {
		return err
	}

	flagSet.StringP("storage-bucket", "", "", "S3 bucket name.")
	err = bind("storage-bucket", viper.BindPFlag("storage.bucket", flagSet.Lookup("storage-bucket")))
	if err != nil {
		return err
	}

	flagSet.StringP("storage-endpoint", "", "", "S3-compatible endpoint URL.")
	err = bind("storage-endpoint", viper.BindPFlag("storage.endpoint", flagSet.Lookup("storage-endpoint")))
	if err != nil {
		return err
	}

	flagSet.StringP("storage-access-key", "", "", "S3 access key.")
	err = bind("storage-access-key", viper.BindPFlag("storage.access-key", flagSet.Lookup("storage-access-key")))
	if err != nil {
		return err
	}

	flagSet.StringP("storage-secret-key", "", "", "S3 secret key.")
	err = bind("storage-secret-key", viper.BindPFlag("storage.secret-key", flagSet.Lookup("storage-secret-key")))
	if err != nil {
		return err
	}

	flagSet.Int64P("cache-capacity-bytes", "", 1<<30, "Total size of the block cache.")
	err = bind("cache-capacity-bytes", viper.BindPFlag("cache.capacity-bytes", flagSet.Lookup("cache-capacity-bytes")))
	if err != nil {
		return err
	}

	flagSet.Int64P("cache-block-size", "", 10*1024*1024, "Block cache alignment/block size, in bytes.")
	err = bind("cache-block-size", viper.BindPFlag("cache.block-size", flagSet.Lookup("cache-block-size")))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	err = bind("log-severity", viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "json", "Log format: text or json.")
	err = bind("log-format", viper.BindPFlag("logging.format", flagSet.Lookup("log-format")))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the log file; empty logs to stderr.")
	err = bind("log-file", viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")))
	if err != nil {
		return err
	}

	flagSet.BoolP("metrics-enabled", "", false, "Serve Prometheus metrics over HTTP.")
	err = bind("metrics-enabled", viper.BindPFlag("metrics.enabled", flagSet.Lookup("metrics-enabled")))
	if err != nil {
		return err
	}

	flagSet.IntP("metrics-port", "", 9418, "Port the Prometheus metrics endpoint listens on.")
	err = bind("metrics-port", viper.BindPFlag("metrics.port", flagSet.Lookup("metrics-port")))
	if err != nil {
		return err
	}

	return nil
}
