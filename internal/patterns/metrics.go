package patterns

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("sigscope.patterns")
	meter  = otel.Meter("sigscope.patterns")
)

var (
	analysisLatency metric.Float64Histogram
	analysisTotal   metric.Int64Counter
	patternsByType  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"sigscope_analysis_duration_seconds",
			metric.WithDescription("Duration of a full pattern analysis"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"sigscope_analysis_total",
			metric.WithDescription("Number of pattern analyses run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		patternsByType, err = meter.Int64Counter(
			"sigscope_patterns_total",
			metric.WithDescription("Patterns found by type"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startAnalysisSpan(ctx context.Context, nodes, edges int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Detector.RunAnalysis",
		trace.WithAttributes(
			attribute.Int("patterns.nodes", nodes),
			attribute.Int("patterns.edges", edges),
		),
	)
}

func startDetectorSpan(ctx context.Context, typ Type) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Detector."+string(typ))
}

func recordAnalysis(ctx context.Context, result AnalysisResult) {
	if err := initMetrics(); err != nil {
		return
	}

	analysisLatency.Record(ctx, result.Duration.Seconds())
	analysisTotal.Add(ctx, 1)
	for _, p := range result.Patterns {
		patternsByType.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pattern_type", string(p.Type)),
			attribute.String("severity", string(p.Severity)),
		))
	}
}

func setAnalysisSpanResult(span trace.Span, result AnalysisResult, budget time.Duration) {
	span.SetAttributes(
		attribute.Int("patterns.count", len(result.Patterns)),
		attribute.Bool("patterns.over_budget", budget > 0 && result.Duration > budget),
	)
}
