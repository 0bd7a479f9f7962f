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
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/nfsmeta/distfs/internal/logger"
)

var log = logger.Component("metrics")

// StartExporter wires the OTel Prometheus exporter into the global
// meter provider and serves it on addr at /metrics. It returns a Handle
// for the rest of the module to record against and a ShutdownFn that
// stops both the HTTP listener and the meter provider.
func StartExporter(addr string) (Handle, ShutdownFn, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	handle, err := NewOTelMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: registering instruments: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics exporter stopped", "err", err)
		}
	}()
	log.Info("metrics exporter listening", "addr", addr)

	shutdown := func(ctx context.Context) error {
		httpErr := srv.Shutdown(ctx)
		providerErr := provider.Shutdown(ctx)
		return errors.Join(httpErr, providerErr)
	}
	return handle, shutdown, nil
}
