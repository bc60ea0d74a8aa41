package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/datau/pkg/adapters/tts"
)

type TTSConfig struct {
	MIMEType string
	Err      error
}

type Synthesizer struct {
	cfg TTSConfig

	mu    sync.Mutex
	texts []string
}

func NewTTS(cfg TTSConfig) *Synthesizer {
	if cfg.MIMEType == "" {
		cfg.MIMEType = "audio/mpeg"
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (tts.Speech, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.cfg.Err != nil {
		return tts.Speech{}, s.cfg.Err
	}
	return tts.Speech{MIMEType: s.cfg.MIMEType, Data: []byte(text)}, nil
}

// Texts returns every text passed to Synthesize.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
