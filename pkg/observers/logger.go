package observers

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/harunnryd/datau/pkg/metrics"
)

// LoggerObserver writes each metrics event as one log line named after the
// event. Problems (failed tool calls, truncated or failed turns, rate limits,
// breaker trips) log at warn; everything else at debug.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

// leadingTags are written first, in this order, so lines of one session line up.
var leadingTags = []string{"session_id", "trace_id", "tool", "status"}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	ctx := context.Background()
	level := eventLevel(ev)
	if !o.log.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(ev.Tags)+len(ev.Fields)+1)
	for _, k := range leadingTags {
		if v := ev.Tags[k]; v != "" {
			attrs = append(attrs, slog.String(k, v))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(ev.Tags)) {
		if !slices.Contains(leadingTags, k) {
			attrs = append(attrs, slog.String(k, ev.Tags[k]))
		}
	}
	attrs = append(attrs, slog.Float64(valueKey(ev.Name), ev.Value))
	for _, k := range slices.Sorted(maps.Keys(ev.Fields)) {
		attrs = append(attrs, slog.Any(k, ev.Fields[k]))
	}
	o.log.LogAttrs(ctx, level, ev.Name, attrs...)
}

func eventLevel(ev metrics.MetricsEvent) slog.Level {
	switch ev.Name {
	case metrics.EventTurnTruncated, metrics.EventTurnFailed, metrics.EventRateLimit,
		metrics.EventBreakerOpen, metrics.EventBreakerDenied:
		return slog.LevelWarn
	case metrics.EventToolCall:
		if ev.Tags["status"] == "error" {
			return slog.LevelWarn
		}
	}
	return slog.LevelDebug
}

// valueKey names MetricsEvent.Value for the event it belongs to.
func valueKey(name string) string {
	switch name {
	case metrics.EventLLMCall, metrics.EventToolCall, metrics.EventTurnComplete:
		return "latency_ms"
	case metrics.EventTurnTruncated:
		return "tool_rounds"
	default:
		return "value"
	}
}

type MultiObserver struct {
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	return &MultiObserver{list: list}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		if obs != nil {
			obs.RecordEvent(ev)
		}
	}
}
