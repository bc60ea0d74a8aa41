package tts

import "context"

// Speech is synthesized audio ready to send to the UI.
type Speech struct {
	MIMEType string
	Data     []byte
}

// Synthesizer defines the contract for any text-to-speech vendor implementation.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize renders text to a single audio clip.
	Synthesize(ctx context.Context, text string) (Speech, error)
}
