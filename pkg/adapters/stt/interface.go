package stt

import (
	"context"
	"strings"
)

// Audio is one complete recording captured from the UI.
type Audio struct {
	// Name is the upload file name, e.g. "input_audio.webm".
	Name     string
	MIMEType string
	Data     []byte
}

// Extension returns the MIME subtype, used as a file extension.
func (a Audio) Extension() string {
	_, sub, ok := strings.Cut(a.MIMEType, "/")
	if !ok || sub == "" {
		return "bin"
	}
	sub, _, _ = strings.Cut(sub, ";")
	return strings.TrimSpace(sub)
}

// Transcriber defines the contract for any speech-to-text vendor implementation.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe converts a complete recording into text.
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// Config contains vendor-agnostic transcription configuration.
type Config struct {
	Model    string
	Language string
}
