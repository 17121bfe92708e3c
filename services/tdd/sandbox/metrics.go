// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for sandbox executions, registered with the default
// registerer.
var (
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentsmith",
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Total test executions by language and verdict",
		},
		[]string{"language", "verdict"},
	)

	executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentsmith",
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Wall time of test executions",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"language"},
	)

	truncatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentsmith",
			Subsystem: "sandbox",
			Name:      "output_truncated_total",
			Help:      "Executions whose output hit the byte cap",
		},
		[]string{"language"},
	)
)

func recordExecution(language string, r *Result) {
	executionsTotal.WithLabelValues(language, r.Verdict.String()).Inc()
	executionDuration.WithLabelValues(language).Observe(r.Duration.Seconds())
	if r.Truncated {
		truncatedTotal.WithLabelValues(language).Inc()
	}
}
