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

package metrics

import "context"

// NewNoopMetrics returns a Handle that discards every measurement, for
// callers (tests, runs without `--metrics-enabled`) that don't want a meter
// provider wired up at all.
func NewNoopMetrics() Handle {
	var n noopMetrics
	return &n
}

type noopMetrics struct{}

func (*noopMetrics) OpsCount(context.Context, int64, string, Result)     {}
func (*noopMetrics) OpsLatency(context.Context, float64, string, Result) {}
func (*noopMetrics) TxnRetryCount(context.Context, int64, string)        {}
func (*noopMetrics) SetOpenTxnRetries(int64)                             {}
