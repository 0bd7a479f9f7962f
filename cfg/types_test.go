// Copyright 2024 Google LLC
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
	"github.com/stretchr/testify/require"
)

func TestOctalUnmarshalText(t *testing.T) {
	var o Octal
	require.NoError(t, o.UnmarshalText([]byte("755")))
	assert.Equal(t, Octal(0755), o)

	text, err := o.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "755", string(text))
}

func TestOctalUnmarshalTextInvalid(t *testing.T) {
	var o Octal
	assert.Error(t, o.UnmarshalText([]byte("not-octal")))
}

func TestLogSeverityUnmarshalTextAndRank(t *testing.T) {
	var l LogSeverity
	require.NoError(t, l.UnmarshalText([]byte("warning")))
	assert.Equal(t, WarningLogSeverity, l)
	assert.Equal(t, 3, l.Rank())
	assert.True(t, ErrorLogSeverity.Rank() > l.Rank())
}

func TestLogSeverityUnmarshalTextInvalid(t *testing.T) {
	var l LogSeverity
	assert.Error(t, l.UnmarshalText([]byte("CRITICAL")))
}

func TestLogSeverityRankUnknown(t *testing.T) {
	assert.Equal(t, -1, LogSeverity("bogus").Rank())
}

func TestStorageBackendUnmarshalText(t *testing.T) {
	var b StorageBackend
	require.NoError(t, b.UnmarshalText([]byte("S3")))
	assert.Equal(t, StorageBackendS3, b)

	require.NoError(t, b.UnmarshalText([]byte("none")))
	assert.Equal(t, StorageBackendNone, b)
}

func TestStorageBackendUnmarshalTextInvalid(t *testing.T) {
	var b StorageBackend
	assert.Error(t, b.UnmarshalText([]byte("azure")))
}

func TestResolvedPathUnmarshalTextEmpty(t *testing.T) {
	var p ResolvedPath
	require.NoError(t, p.UnmarshalText([]byte("")))
	assert.Equal(t, ResolvedPath(""), p)
}
