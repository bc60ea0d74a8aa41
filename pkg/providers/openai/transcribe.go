package openai

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

// Transcriber calls the audio transcriptions endpoint (Whisper).
type Transcriber struct {
	APIKey   string
	Model    string
	Language string
	BaseURL  string
	Client   *http.Client
}

func NewTranscriber(apiKey string, cfg stt.Config) *Transcriber {
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	return &Transcriber{
		APIKey:   apiKey,
		Model:    model,
		Language: cfg.Language,
		BaseURL:  DefaultBaseURL,
		Client:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (t *Transcriber) Name() string { return "openai_whisper" }

func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", errors.New("empty audio")
	}
	body, contentType, err := t.buildForm(audio)
	if err != nil {
		return "", err
	}
	base := t.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/audio/transcriptions", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if err := resilience.CheckStatus("openai", resp.StatusCode, raw); err != nil {
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

func (t *Transcriber) buildForm(audio stt.Audio) (*bytes.Buffer, string, error) {
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
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("model", t.Model); err != nil {
		return nil, "", err
	}
	if t.Language != "" {
		if err := w.WriteField("language", t.Language); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
