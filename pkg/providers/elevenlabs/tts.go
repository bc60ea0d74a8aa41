package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/datau/pkg/adapters/tts"
	"github.com/harunnryd/datau/pkg/logging"
	"github.com/harunnryd/datau/pkg/resilience"
)

// Synthesizer renders one reply per call over the stream-input websocket.
type Synthesizer struct {
	cfg    Config
	dialer websocket.Dialer
	logger *slog.Logger
}

func NewSynthesizer(cfg Config) *Synthesizer {
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	return &Synthesizer{
		cfg:    cfg,
		dialer: websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}
}

func (s *Synthesizer) Name() string { return "elevenlabs_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (tts.Speech, error) {
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return tts.Speech{}, errors.New("missing elevenlabs config")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return tts.Speech{}, errors.New("empty text")
	}
	u, err := s.buildURL()
	if err != nil {
		return tts.Speech{}, err
	}

	conn, resp, err := s.dialer.DialContext(ctx, u, http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Error("elevenlabs_rate_limited", slog.String("status", resp.Status))
			return tts.Speech{}, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		s.logger.Error("elevenlabs_connect_failed", slog.String("error", err.Error()))
		return tts.Speech{}, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// Init with a single space, then the text, then an empty string to close the input.
	messages := []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        0.5,
				"similarity_boost": 0.8,
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	}
	for _, msg := range messages {
		if err := conn.WriteJSON(msg); err != nil {
			return tts.Speech{}, err
		}
	}

	var audio bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return tts.Speech{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && audio.Len() > 0 {
				break
			}
			return tts.Speech{}, err
		}
		chunk, final, err := decodeMessage(data)
		if err != nil {
			s.logger.Warn("elevenlabs_bad_message", slog.String("error", err.Error()))
			continue
		}
		audio.Write(chunk)
		if final {
			break
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	if audio.Len() == 0 {
		return tts.Speech{}, errors.New("elevenlabs returned no audio")
	}
	s.logger.Debug("elevenlabs_synthesized", slog.Int("bytes", audio.Len()))
	return tts.Speech{MIMEType: mimeForFormat(s.cfg.OutputFormat), Data: audio.Bytes()}, nil
}

func (s *Synthesizer) buildURL() (string, error) {
	base, err := url.Parse(s.cfg.wsURL())
	if err != nil {
		return "", err
	}
	base.Path = "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID) + "/stream-input"
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	q.Set("output_format", s.cfg.OutputFormat)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// decodeMessage extracts audio bytes and the final marker from one server message.
func decodeMessage(data []byte) ([]byte, bool, error) {
	var msg struct {
		Audio       *string `json:"audio"`
		AudioBase64 *string `json:"audio_base_64"`
		IsFinal     *bool   `json:"isFinal"`
		Error       string  `json:"error"`
		Message     string  `json:"message"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, err
	}
	if msg.Error != "" {
		return nil, false, errors.New(msg.Error + ": " + msg.Message)
	}
	final := msg.IsFinal != nil && *msg.IsFinal
	encoded := msg.Audio
	if encoded == nil {
		encoded = msg.AudioBase64
	}
	if encoded == nil || *encoded == "" {
		return nil, final, nil
	}
	raw, err := base64.StdEncoding.DecodeString(*encoded)
	if err != nil {
		return nil, final, err
	}
	return raw, final, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
