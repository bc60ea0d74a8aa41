package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/datau/pkg/adapters/stt"
	"github.com/harunnryd/datau/pkg/resilience"
)

func TestTranscriberPostsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speech-to-text" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("model_id") != "scribe_v1" {
			t.Errorf("unexpected model %q", r.FormValue("model_id"))
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file: %v", err)
		} else {
			body, _ := io.ReadAll(f)
			if string(body) != "abc" || hdr.Filename != "input_audio.webm" {
				t.Errorf("unexpected upload %q %q", body, hdr.Filename)
			}
		}
		_, _ = w.Write([]byte(`{"text":" top artists "}`))
	}))
	defer srv.Close()

	tr := NewTranscriber(Config{APIKey: "key", BaseURL: srv.URL})
	text, err := tr.Transcribe(context.Background(), stt.Audio{MIMEType: "audio/webm", Data: []byte("abc")})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "top artists" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestTranscriberRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := NewTranscriber(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := tr.Transcribe(context.Background(), stt.Audio{MIMEType: "audio/wav", Data: []byte("x")})
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestSynthesizerCollectsAudioUntilFinal(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/voice-1/stream-input") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 3; i++ {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if i == 1 {
				gotText, _ = msg["text"].(string)
			}
		}
		chunk := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
		_ = conn.WriteJSON(map[string]any{"audio": chunk("hel")})
		_ = conn.WriteJSON(map[string]any{"alignment": map[string]any{}})
		_ = conn.WriteJSON(map[string]any{"audio": chunk("lo")})
		_ = conn.WriteJSON(map[string]any{"isFinal": true})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	s := NewSynthesizer(Config{
		APIKey:  "key",
		VoiceID: "voice-1",
		WSURL:   "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	speech, err := s.Synthesize(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(speech.Data) != "hello" {
		t.Fatalf("unexpected audio %q", speech.Data)
	}
	if speech.MIMEType != "audio/mpeg" {
		t.Fatalf("unexpected mime %q", speech.MIMEType)
	}
	if gotText != "Hello " {
		t.Fatalf("unexpected text sent %q", gotText)
	}
}

func TestSynthesizerRequiresConfig(t *testing.T) {
	_, err := NewSynthesizer(Config{}).Synthesize(context.Background(), "hi")
	if err == nil {
		t.Fatalf("expected config error")
	}
}

func TestDecodeMessage(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{"audio_base_64": base64.StdEncoding.EncodeToString([]byte("x")), "isFinal": true})
	chunk, final, err := decodeMessage(raw)
	if err != nil || string(chunk) != "x" || !final {
		t.Fatalf("unexpected decode %q %v %v", chunk, final, err)
	}
	_, _, err = decodeMessage([]byte(`{"error":"quota","message":"exceeded"}`))
	if err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("expected server error, got %v", err)
	}
	if _, _, err := decodeMessage([]byte("nope")); err == nil {
		t.Fatalf("expected json error")
	}
}
