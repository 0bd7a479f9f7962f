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

// Package metrics implements component O: a prometheus-scrapeable view
// of the metadata layer's health, built the way the teacher builds its
// own instrumentation -- an OpenTelemetry meter per concern, read out
// through the OTel Prometheus exporter rather than a hand-rolled
// counter registry.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Result classifies how an operation handler in internal/metaops
// finished, mirroring the five-way taxonomy in internal/errs.
type Result string

const (
	ResultOK               Result = "ok"
	ResultPosixError       Result = "posix_error"
	ResultInconsistentFS   Result = "inconsistent_fs"
	ResultTxnRetryExceeded Result = "txn_retry_exceeded"
	ResultBackendError     Result = "backend_error"
)

// OpKey and ResultKey are the attribute keys every op-invocation metric
// is broken down by.
const (
	OpKey     = "op"
	ResultKey = "result"
)

// ShutdownFn stops whatever StartExporter started.
type ShutdownFn func(ctx context.Context) error

// JoinShutdownFunc combines shutdown functions into one, running all of
// them even if an earlier one fails.
func JoinShutdownFunc(fns ...ShutdownFn) ShutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

// MetricAttr is a single key/value tag attached to a measurement.
type MetricAttr struct{ Key, Value string }

func (a MetricAttr) String() string {
	return fmt.Sprintf("%s=%s", a.Key, a.Value)
}

// defaultLatencyDistribution buckets handler latency in microseconds.
// Same boundaries the teacher uses for its own fs/ops_latency histogram.
var defaultLatencyDistribution = metric.WithExplicitBucketBoundaries(
	1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100,
	130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000,
	10000, 20000, 50000, 100000,
)

// OpsMetricHandle records invocation counts and latency for the
// handlers in internal/metaops (component D), broken down by op name
// and result class.
type OpsMetricHandle interface {
	OpsCount(ctx context.Context, inc int64, op string, result Result)
	OpsLatency(ctx context.Context, latencyMicros float64, op string, result Result)
}

// TxnMetricHandle records the KV engine's optimistic-concurrency retry
// behavior (component A's RunTxn).
type TxnMetricHandle interface {
	TxnRetryCount(ctx context.Context, inc int64, op string)
	SetOpenTxnRetries(n int64)
}

// Handle is the full metrics surface the rest of the module depends on.
type Handle interface {
	OpsMetricHandle
	TxnMetricHandle
}
