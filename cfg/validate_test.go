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
	"testing"

	"github.com/stretchr/testify/assert"
)

func validLogRotateConfig() LogRotateConfig {
	return LogRotateConfig{
		MaxFileSizeMB:   1,
		BackupFileCount: 0,
		Compress:        false,
	}
}

func validConfig() *Config {
	return &Config{
		NodeID:     "node-a",
		MountDir:   "/mnt/distfs",
		ServerPort: 9417,
		Storage:    StorageConfig{Backend: StorageBackendNone},
		Cache:      CacheConfig{CapacityBytes: 1 << 20, BlockSize: 1 << 10},
		Logging:    LoggingConfig{LogRotateConfig: validLogRotateConfig()},
	}
}

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing node-id",
			mutate:  func(c *Config) { c.NodeID = "" },
			wantErr: true,
		},
		{
			name:    "missing mount-dir",
			mutate:  func(c *Config) { c.MountDir = "" },
			wantErr: true,
		},
		{
			name:    "s3 backend without bucket",
			mutate:  func(c *Config) { c.Storage.Backend = StorageBackendS3 },
			wantErr: true,
		},
		{
			name: "s3 backend with bucket",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendS3
				c.Storage.Bucket = "my-bucket"
			},
			wantErr: false,
		},
		{
			name:    "zero block size",
			mutate:  func(c *Config) { c.Cache.BlockSize = 0 },
			wantErr: true,
		},
		{
			name:    "capacity smaller than one block",
			mutate:  func(c *Config) { c.Cache.CapacityBytes = 1 },
			wantErr: true,
		},
		{
			name:    "server-port out of range",
			mutate:  func(c *Config) { c.ServerPort = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid log-rotate max-file-size-mb",
			mutate:  func(c *Config) { c.Logging.LogRotateConfig.MaxFileSizeMB = 0 },
			wantErr: true,
		},
		{
			name:    "negative log-rotate backup-file-count",
			mutate:  func(c *Config) { c.Logging.LogRotateConfig.BackupFileCount = -1 },
			wantErr: true,
		},
		{
			name: "metrics enabled with invalid port",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 0
			},
			wantErr: true,
		},
		{
			name: "metrics enabled with valid port",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 9418
			},
			wantErr: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := validConfig()
			tc.mutate(config)
			err := ValidateConfig(config)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
