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
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHookParsesCustomTypes(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	type testConfig struct {
		OctalParam    Octal
		SeverityParam LogSeverity
		BackendParam  StorageBackend
		PathParam     ResolvedPath
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("octalParam", "0", "")
	fs.String("severityParam", "INFO", "")
	fs.String("backendParam", "none", "")
	fs.String("pathParam", "", "")
	require.NoError(t, fs.Parse([]string{
		"--octalParam=755",
		"--severityParam=debug",
		"--backendParam=S3",
		"--pathParam=~/data",
	}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("OctalParam", fs.Lookup("octalParam")))
	require.NoError(t, v.BindPFlag("SeverityParam", fs.Lookup("severityParam")))
	require.NoError(t, v.BindPFlag("BackendParam", fs.Lookup("backendParam")))
	require.NoError(t, v.BindPFlag("PathParam", fs.Lookup("pathParam")))

	var c testConfig
	require.NoError(t, v.Unmarshal(&c, viper.DecodeHook(DecodeHook())))

	assert.Equal(t, Octal(0755), c.OctalParam)
	assert.Equal(t, DebugLogSeverity, c.SeverityParam)
	assert.Equal(t, StorageBackendS3, c.BackendParam)
	assert.Equal(t, ResolvedPath(filepath.Join(home, "data")), c.PathParam)
}

func TestDecodeHookRejectsInvalidBackend(t *testing.T) {
	type testConfig struct {
		BackendParam StorageBackend
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("backendParam", "none", "")
	require.NoError(t, fs.Parse([]string{"--backendParam=azure"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("BackendParam", fs.Lookup("backendParam")))

	var c testConfig
	err := v.Unmarshal(&c, viper.DecodeHook(DecodeHook()))
	assert.Error(t, err)
}
