// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics registers Commodore's compile-time metrics with the
// default Prometheus registry. Commodore is not a daemon; the CLI
// neither serves nor pushes these metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "commodore"

var (
	// ComponentsCompiled counts compiles, labeled by outcome.
	ComponentsCompiled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "compiles_total",
		Help:      "Number of catalog compiles, labeled by outcome.",
	}, []string{"outcome"})

	// GitFetches counts fetches of the global and tenant class
	// repositories through the Git Repository Cache. Dependency fetches
	// made by the resolver are not counted.
	GitFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gitcache",
		Name:      "fetches_total",
		Help:      "Number of global/tenant class repository fetches, labeled by outcome.",
	}, []string{"outcome"})

	// FilterInvocations counts post-processing filter runs.
	FilterInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "postprocess",
		Name:      "filter_invocations_total",
		Help:      "Number of post-processing filter invocations, labeled by filter name and outcome.",
	}, []string{"filter", "outcome"})

	// CompileDuration observes end-to-end compile wall-clock time.
	CompileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "compile_duration_seconds",
		Help:      "Wall-clock duration of a full catalog compile.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// TargetsRendered observes how many targets a compile produced.
	TargetsRendered = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "targets_rendered",
		Help:      "Number of rendering targets produced by a compile.",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})
)
