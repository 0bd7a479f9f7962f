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

// DefaultBlockSize is the cache.block_size default named in §6: 10 MiB.
const DefaultBlockSize int64 = 10 * 1024 * 1024

// GetDefaultLoggingConfig returns the configuration used during
// application startup, before a config file or flags have been parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "json",
		LogRotateConfig: LogRotateConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMB:   512,
		},
	}
}

// GetDefaultCacheConfig returns the default block-cache sizing.
func GetDefaultCacheConfig() CacheConfig {
	return CacheConfig{
		CapacityBytes: 1 << 30,
		BlockSize:     DefaultBlockSize,
	}
}
