package overdue

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

func (s *Sweeper) logDebug(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (s *Sweeper) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (s *Sweeper) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (s *Sweeper) logError(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

func (s *Sweeper) incrementCounter(ctx context.Context, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{"status": status}

	if contextual, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricNotificationsName, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metricNotificationsName, labels)
}

func (s *Sweeper) recordDuration(ctx context.Context, duration time.Duration, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{"status": status}

	if contextual, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricSweepDurationName, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metricSweepDurationName, duration, labels)
}

func (s *Sweeper) startSpan(ctx context.Context, now time.Time) (context.Context, lending.SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, spanNameSweep, map[string]string{"now": now.Format(time.RFC3339)})
}

func (s *Sweeper) finishSpan(span lending.SpanContext, status string, attrs map[string]string) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	s.tracingCollector.FinishSpan(span, status, attrs)
}
