package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/datau/pkg/adapters/stt"
)

type STTConfig struct {
	Transcript string
	Err        error
}

type Transcriber struct {
	cfg STTConfig

	mu    sync.Mutex
	audio []stt.Audio
}

func NewSTT(cfg STTConfig) *Transcriber {
	if cfg.Transcript == "" {
		cfg.Transcript = "mock transcript"
	}
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Name() string { return "mock_stt" }

func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	t.mu.Lock()
	t.audio = append(t.audio, audio)
	t.mu.Unlock()
	if t.cfg.Err != nil {
		return "", t.cfg.Err
	}
	return t.cfg.Transcript, nil
}

// Received returns every recording passed to Transcribe.
func (t *Transcriber) Received() []stt.Audio {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]stt.Audio(nil), t.audio...)
}

var _ stt.Transcriber = (*Transcriber)(nil)
