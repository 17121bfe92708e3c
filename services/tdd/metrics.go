// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tdd

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for workflow operations.
var (
	tracer = otel.Tracer("agentsmith.tdd")
	meter  = otel.Meter("agentsmith.tdd")
)

// Metrics for workflow operations.
var (
	runLatency       metric.Float64Histogram
	runTotal         metric.Int64Counter
	stateTransitions metric.Int64Counter
	candidateTotal   metric.Int64Counter
	featureOutcomes  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"tdd_run_duration_seconds",
			metric.WithDescription("Duration of workflow runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"tdd_run_total",
			metric.WithDescription("Total number of workflow runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stateTransitions, err = meter.Int64Counter(
			"tdd_state_transitions_total",
			metric.WithDescription("Total number of state transitions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		candidateTotal, err = meter.Int64Counter(
			"tdd_candidates_total",
			metric.WithDescription("Candidates by gate outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		featureOutcomes, err = meter.Int64Counter(
			"tdd_features_total",
			metric.WithDescription("Features by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates a span for a workflow run.
func startRunSpan(ctx context.Context, runID, language string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Run",
		trace.WithAttributes(
			attribute.String("tdd.run_id", runID),
			attribute.String("tdd.language", language),
		),
	)
}

// setRunSpanResult sets the result attributes on the run span in ctx.
func setRunSpanResult(ctx context.Context, s *SessionState) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("tdd.status", string(s.Status)),
		attribute.Int("tdd.steps", s.History.Len()),
		attribute.Int("tdd.completed", len(s.Completed)),
		attribute.Int("tdd.abandoned", len(s.Abandoned)),
	)
}

// recordRunMetrics records metrics for a finished run.
func recordRunMetrics(ctx context.Context, language string, duration time.Duration, status RunStatus) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.String("status", string(status)),
	)
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
}

// recordStateTransition records a state transition.
func recordStateTransition(ctx context.Context, from, to State) {
	if err := initMetrics(); err != nil {
		return
	}
	stateTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

// recordCandidate records a gate outcome.
func recordCandidate(ctx context.Context, state State, accepted bool) {
	if err := initMetrics(); err != nil {
		return
	}
	candidateTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state.String()),
		attribute.Bool("accepted", accepted),
	))
}

// recordFeatureOutcome records a completed or abandoned feature.
func recordFeatureOutcome(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	featureOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
