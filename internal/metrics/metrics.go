// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the Prometheus counters and histograms the
// flowtrace subcommands record during a run. Metrics are always registered;
// Serve exposes them on an HTTP /metrics endpoint, and no flowtrace
// subcommand starts it.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowtrace",
		Subsystem: "tracer",
		Name:      "events_recorded_total",
		Help:      "Tracer session activity (session opens, served steps, step timeouts), by event type.",
	}, []string{"event_type"})

	RequestsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowtrace",
		Subsystem: "tracer",
		Name:      "requests_served_total",
		Help:      "Target-resolution requests served, by outcome.",
	}, []string{"outcome"})

	WorkerTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowtrace",
		Subsystem: "tracer",
		Name:      "worker_timeouts_total",
		Help:      "Times the interpreter worker failed to respond within the step deadline.",
	})

	StepLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flowtrace",
		Subsystem: "interp",
		Name:      "step_latency_seconds",
		Help:      "Wall-clock time between consecutive line-step hooks.",
		Buckets:   prometheus.DefBuckets,
	})

	FilesIndexed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowtrace",
		Subsystem: "staticindex",
		Name:      "files_indexed_total",
		Help:      "Source files parsed into the static index.",
	})

	HunksClassified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowtrace",
		Subsystem: "changeset",
		Name:      "hunks_classified_total",
		Help:      "Diff hunks classified, by verdict (material or cosmetic).",
	}, []string{"verdict"})
)

func init() {
	prometheus.MustRegister(EventsRecorded, RequestsServed, WorkerTimeouts, StepLatency, FilesIndexed, HunksClassified)
}

// Serve starts a Prometheus /metrics endpoint on addr and blocks until the
// server stops; cancelling ctx shuts it down.
func Serve(ctx context.Context, addr string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics.http.error", "err", err)
	}
}
