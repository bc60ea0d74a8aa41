package session

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/datau/pkg/adapters/stt"
	"github.com/harunnryd/datau/pkg/errorsx"
)

// AudioSettings are sent to the UI recorder at session start.
type AudioSettings struct {
	MinDecibels           int
	InitialSilenceTimeout time.Duration
	SilenceTimeout        time.Duration
	MaxDuration           time.Duration
	ChunkDuration         time.Duration
	SampleRate            int
}

func DefaultAudioSettings() AudioSettings {
	return AudioSettings{
		MinDecibels:           -20,
		InitialSilenceTimeout: 2000 * time.Millisecond,
		SilenceTimeout:        3500 * time.Millisecond,
		MaxDuration:           15000 * time.Millisecond,
		ChunkDuration:         1000 * time.Millisecond,
		SampleRate:            44100,
	}
}

// Millis renders the settings with durations in milliseconds, as the UI expects.
func (a AudioSettings) Millis() map[string]int64 {
	return map[string]int64{
		"min_decibels":            int64(a.MinDecibels),
		"initial_silence_timeout": a.InitialSilenceTimeout.Milliseconds(),
		"silence_timeout":         a.SilenceTimeout.Milliseconds(),
		"max_duration":            a.MaxDuration.Milliseconds(),
		"chunk_duration":          a.ChunkDuration.Milliseconds(),
		"sample_rate":             int64(a.SampleRate),
	}
}

var ErrNoAudio = errorsx.New(errorsx.ReasonAudio, "no audio recorded")

// AudioBuffer accumulates one recording until it is flushed.
type AudioBuffer struct {
	mu      sync.Mutex
	started bool
	name    string
	mime    string
	data    bytes.Buffer
}

// Start discards any previous recording and begins a new one.
func (b *AudioBuffer) Start(mimeType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data.Reset()
	b.started = true
	b.mime = mimeType
	b.name = "input_audio." + (stt.Audio{MIMEType: mimeType}).Extension()
}

func (b *AudioBuffer) Write(chunk []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return errorsx.New(errorsx.ReasonAudio, "audio buffer is not initialized")
	}
	b.data.Write(chunk)
	return nil
}

// Flush returns the recording and resets the buffer. It fails with
// ErrNoAudio when no recording was started.
func (b *AudioBuffer) Flush() (stt.Audio, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return stt.Audio{}, ErrNoAudio
	}
	out := stt.Audio{
		Name:     b.name,
		MIMEType: b.mime,
		Data:     append([]byte(nil), b.data.Bytes()...),
	}
	b.resetLocked()
	return out, nil
}

func (b *AudioBuffer) Reset() {
	b.mu.Lock()
	b.resetLocked()
	b.mu.Unlock()
}

func (b *AudioBuffer) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

func (b *AudioBuffer) resetLocked() {
	b.data.Reset()
	b.started = false
	b.name = ""
	b.mime = ""
}

// IsStart parses the is_start chunk flag.
func IsStart(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
