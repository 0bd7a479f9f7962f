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

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	opsMeter = otel.Meter("metaops")
	txnMeter = otel.Meter("kv")

	opsAttributeSets sync.Map
)

func getOpsAttributeSet(op string, result Result) metric.MeasurementOption {
	key := op + "\x00" + string(result)
	if v, ok := opsAttributeSets.Load(key); ok {
		return v.(metric.MeasurementOption)
	}
	opt := metric.WithAttributeSet(attribute.NewSet(
		attribute.String(OpKey, op),
		attribute.String(ResultKey, string(result)),
	))
	v, _ := opsAttributeSets.LoadOrStore(key, opt)
	return v.(metric.MeasurementOption)
}

// otelMetrics is the real Handle implementation: every call records
// against an OpenTelemetry meter, scraped over HTTP by StartExporter.
type otelMetrics struct {
	opsCount   metric.Int64Counter
	opsLatency metric.Float64Histogram

	txnRetryCount        metric.Int64Counter
	openTxnRetriesAtomic *atomic.Int64
}

func (o *otelMetrics) OpsCount(ctx context.Context, inc int64, op string, result Result) {
	o.opsCount.Add(ctx, inc, getOpsAttributeSet(op, result))
}

func (o *otelMetrics) OpsLatency(ctx context.Context, latencyMicros float64, op string, result Result) {
	o.opsLatency.Record(ctx, latencyMicros, getOpsAttributeSet(op, result))
}

func (o *otelMetrics) TxnRetryCount(ctx context.Context, inc int64, op string) {
	o.txnRetryCount.Add(ctx, inc, metric.WithAttributes(attribute.String(OpKey, op)))
}

func (o *otelMetrics) SetOpenTxnRetries(n int64) {
	o.openTxnRetriesAtomic.Store(n)
}

// NewOTelMetrics constructs the op-invocation counter/histogram and the
// transaction-retry counter/gauge described in SPEC_FULL.md §4.O.
func NewOTelMetrics() (Handle, error) {
	opsCount, err1 := opsMeter.Int64Counter("metaops/ops_count",
		metric.WithDescription("Cumulative number of metadata operations processed, by op and result."))
	opsLatency, err2 := opsMeter.Float64Histogram("metaops/ops_latency",
		metric.WithDescription("Distribution of metadata operation handler latency."),
		metric.WithUnit("us"),
		defaultLatencyDistribution)

	txnRetryCount, err3 := txnMeter.Int64Counter("kv/txn_retry_count",
		metric.WithDescription("Cumulative number of optimistic-concurrency retries performed by the KV runner."))

	var openTxnRetriesAtomic atomic.Int64
	_, err4 := txnMeter.Int64ObservableGauge("kv/open_txn_retries",
		metric.WithDescription("Retry count of the transaction currently in flight, per RunTxn caller; 0 when idle."),
		metric.WithInt64Callback(func(_ context.Context, obsrv metric.Int64Observer) error {
			obsrv.Observe(openTxnRetriesAtomic.Load())
			return nil
		}))

	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, err
	}

	return &otelMetrics{
		opsCount:             opsCount,
		opsLatency:           opsLatency,
		txnRetryCount:        txnRetryCount,
		openTxnRetriesAtomic: &openTxnRetriesAtomic,
	}, nil
}
