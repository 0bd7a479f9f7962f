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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opDataPoint struct {
	inc    int64
	op     string
	result Result
}

type fakeMetricHandle struct {
	noopMetrics
	opsCounts []opDataPoint
}

func (f *fakeMetricHandle) OpsCount(_ context.Context, inc int64, op string, result Result) {
	f.opsCounts = append(f.opsCounts, opDataPoint{inc: inc, op: op, result: result})
}

func TestFakeMetricHandleRecordsOpsCount(t *testing.T) {
	t.Parallel()
	var h fakeMetricHandle

	h.OpsCount(context.Background(), 1, "lookup", ResultOK)

	require.Len(t, h.opsCounts, 1)
	assert.Equal(t, opDataPoint{inc: 1, op: "lookup", result: ResultOK}, h.opsCounts[0])
}

func TestJoinShutdownFunc(t *testing.T) {
	t.Parallel()
	var calls []string

	shutdown := JoinShutdownFunc(
		func(context.Context) error { calls = append(calls, "a"); return nil },
		nil,
		func(context.Context) error { calls = append(calls, "b"); return nil },
	)

	require.NoError(t, shutdown(context.Background()))
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestMetricAttrString(t *testing.T) {
	t.Parallel()
	a := MetricAttr{Key: "op", Value: "lookup"}
	assert.Equal(t, "op=lookup", a.String())
}

func TestNewNoopMetricsDiscardsMeasurements(t *testing.T) {
	t.Parallel()
	h := NewNoopMetrics()

	assert.NotPanics(t, func() {
		h.OpsCount(context.Background(), 1, "lookup", ResultOK)
		h.OpsLatency(context.Background(), 10, "lookup", ResultOK)
		h.TxnRetryCount(context.Background(), 1, "rename")
		h.SetOpenTxnRetries(2)
	})
}
