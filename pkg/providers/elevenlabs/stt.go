package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/harunnryd/datau/pkg/adapters/stt"
	"github.com/harunnryd/datau/pkg/resilience"
)

// Transcriber calls the ElevenLabs speech-to-text REST endpoint.
type Transcriber struct {
	cfg    Config
	client *http.Client
}

func NewTranscriber(cfg Config) *Transcriber {
	if cfg.STTModelID == "" {
		cfg.STTModelID = "scribe_v1"
	}
	return &Transcriber{cfg: cfg, client: &http.Client{Timeout: 120 * time.Second}}
}

func (t *Transcriber) Name() string { return "elevenlabs_stt" }

func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	if t.cfg.APIKey == "" {
		return "", errors.New("missing elevenlabs api key")
	}
	if len(audio.Data) == 0 {
		return "", errors.New("empty audio")
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	name := audio.Name
	if name == "" {
		name = "input_audio." + audio.Extension()
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	if audio.MIMEType != "" {
		h.Set("Content-Type", audio.MIMEType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return "", err
	}
	if err := w.WriteField("model_id", t.cfg.STTModelID); err != nil {
		return "", err
	}
	if t.cfg.Language != "" {
		if err := w.WriteField("language_code", t.cfg.Language); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.baseURL()+"/v1/speech-to-text", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("xi-api-key", t.cfg.APIKey)
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if err := resilience.CheckStatus("elevenlabs", resp.StatusCode, raw); err != nil {
		return "", err
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", err
	}
	return strings.TrimSpace(payload.Text), nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
