package metrics

import "time"

const (
	EventLLMCall       = "llm_call"
	EventToolCall      = "tool_call"
	EventTurnComplete  = "turn_complete"
	EventTurnTruncated = "turn_truncated"
	EventTurnFailed    = "turn_failed"
	EventTranscription = "transcription"
	EventSynthesis     = "synthesis"
	EventSessionStart  = "session_start"
	EventSessionEnd    = "session_end"

	EventRateLimit     = "rate_limit"
	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// OrNoop returns obs, or a NoopObserver when obs is nil.
func OrNoop(obs Observer) Observer {
	if obs == nil {
		return NoopObserver{}
	}
	return obs
}
