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

import "fmt"

func isValidLogRotateConfig(config *LogRotateConfig) error {
	if config.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid,
// per §7's ConfigError class.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotateConfig); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	if config.NodeID == "" {
		return fmt.Errorf("node-id must be set")
	}
	if config.MountDir == "" {
		return fmt.Errorf("mount-dir must be set")
	}
	if config.Storage.Backend == StorageBackendS3 && config.Storage.Bucket == "" {
		return fmt.Errorf("storage-bucket must be set when storage-backend is s3")
	}
	if config.Cache.BlockSize <= 0 {
		return fmt.Errorf("cache-block-size must be positive")
	}
	if config.Cache.CapacityBytes < config.Cache.BlockSize {
		return fmt.Errorf("cache-capacity-bytes must be at least one block (%d bytes)", config.Cache.BlockSize)
	}
	if config.ServerPort <= 0 || config.ServerPort > 65535 {
		return fmt.Errorf("server-port must be between 1 and 65535")
	}
	if config.Metrics.Enabled && (config.Metrics.Port <= 0 || config.Metrics.Port > 65535) {
		return fmt.Errorf("metrics-port must be between 1 and 65535")
	}
	return nil
}
