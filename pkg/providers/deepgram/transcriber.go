package deepgram

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/harunnryd/datau/pkg/adapters/stt"
	"github.com/harunnryd/datau/pkg/logging"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey      string
	Model       string
	Language    string
	SmartFormat bool
	Punctuate   bool
}

type prerecorded interface {
	FromStream(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (*msginterfaces.PreRecordedResponse, error)
}

// Transcriber sends a complete recording to Deepgram's prerecorded API.
type Transcriber struct {
	cfg    Config
	dg     prerecorded
	logger *slog.Logger
}

func New(cfg Config) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	c := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Transcriber{
		cfg:    cfg,
		dg:     api.New(c),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
}

func (t *Transcriber) Name() string { return "deepgram_prerecorded" }

func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", errors.New("empty audio")
	}
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    t.cfg.Language,
		SmartFormat: t.cfg.SmartFormat,
		Punctuate:   t.cfg.Punctuate,
	}
	t.logger.Debug("deepgram_transcribe",
		slog.String("model", t.cfg.Model),
		slog.String("mime_type", audio.MIMEType),
		slog.Int("bytes", len(audio.Data)))

	res, err := t.dg.FromStream(ctx, bytes.NewReader(audio.Data), options)
	if err != nil {
		return "", err
	}
	return transcriptFrom(res)
}

func transcriptFrom(res *msginterfaces.PreRecordedResponse) (string, error) {
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
		return "", errors.New("deepgram: empty response")
	}
	var parts []string
	for _, ch := range res.Results.Channels {
		if len(ch.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(ch.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
