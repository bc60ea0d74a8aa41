package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/datau/pkg/metrics"
)

// UsageSummary aggregates per-session usage for offline review.
type UsageSummary struct {
	SessionID      string `json:"session_id"`
	TraceID        string `json:"trace_id,omitempty"`
	Turns          int    `json:"turns"`
	TruncatedTurns int    `json:"truncated_turns"`
	FailedTurns    int    `json:"failed_turns"`
	LLMCalls       int    `json:"llm_calls"`
	LLMTokens      int    `json:"llm_tokens"`
	ToolCalls      int    `json:"tool_calls"`
	ToolErrors     int    `json:"tool_errors"`
	AudioBytes     int    `json:"audio_bytes"`
	RecordedAtUTC  string `json:"recorded_at_utc"`
}

// UsageObserver tallies events per session and writes
// <dir>/<session>.usage.json when the session ends.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.Tags["session_id"]
	if id == "" {
		return
	}
	if ev.Name == metrics.EventSessionEnd {
		_ = o.flush(id)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	stat := o.stats[id]
	if stat == nil {
		stat = &UsageSummary{SessionID: id, TraceID: ev.Tags["trace_id"]}
		o.stats[id] = stat
	}
	switch ev.Name {
	case metrics.EventLLMCall:
		stat.LLMCalls++
		stat.LLMTokens += intField(ev.Fields, "total_tokens")
	case metrics.EventToolCall:
		stat.ToolCalls++
		if ev.Tags["status"] == "error" {
			stat.ToolErrors++
		}
	case metrics.EventTurnComplete:
		stat.Turns++
	case metrics.EventTurnTruncated:
		stat.TruncatedTurns++
	case metrics.EventTurnFailed:
		stat.FailedTurns++
	case metrics.EventTranscription:
		stat.AudioBytes += intField(ev.Fields, "audio_bytes")
	}
}

// Summary returns a copy of the running totals for a session.
func (o *UsageObserver) Summary(sessionID string) (UsageSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stat, ok := o.stats[sessionID]
	if !ok {
		return UsageSummary{}, false
	}
	return *stat, true
}

// Close writes every summary still held in memory.
func (o *UsageObserver) Close() error {
	o.mu.Lock()
	ids := make([]string, 0, len(o.stats))
	for id := range o.stats {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	var errOut error
	for _, id := range ids {
		errOut = errors.Join(errOut, o.flush(id))
	}
	return errOut
}

func (o *UsageObserver) flush(id string) error {
	o.mu.Lock()
	stat := o.stats[id]
	delete(o.stats, id)
	o.mu.Unlock()
	if stat == nil || strings.TrimSpace(o.dir) == "" {
		return nil
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
	b, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(o.dir, sanitizeID(id)+".usage.json"), b, 0o644)
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

var _ metrics.Observer = (*UsageObserver)(nil)
