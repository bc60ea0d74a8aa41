package web

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harunnryd/datau/pkg/frames"
)

// Event is the JSON envelope exchanged with the chat UI.
type Event struct {
	Type string `json:"type"`

	ID      string `json:"id,omitempty"`
	Author  string `json:"author,omitempty"`
	Content string `json:"content,omitempty"`

	MIMEType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"`
	IsStart  bool   `json:"is_start,omitempty"`

	Name   string `json:"name,omitempty"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Status string `json:"status,omitempty"`

	Figure json.RawMessage `json:"figure,omitempty"`
	URL    string          `json:"url,omitempty"`

	SessionID     string          `json:"session_id,omitempty"`
	AudioSettings json.RawMessage `json:"audio_settings,omitempty"`
}

const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventMessage      = "message"
	EventUpdate       = "update"
	EventAudioChunk   = "audio_chunk"
	EventAudioEnd     = "audio_end"
	EventStop         = "stop"
	EventAudio        = "audio"
	EventStep         = "step"
	EventChart        = "chart"
	EventError        = "error"
)

// toFrame converts an inbound event. meta is the connection's base metadata.
func toFrame(ev Event, streamID string, sampleRate int, meta map[string]string) (frames.Frame, error) {
	now := time.Now().UnixNano()
	switch ev.Type {
	case EventMessage:
		return frames.NewTextFrame(streamID, now, ev.Content, meta), nil
	case EventAudioChunk:
		data, err := base64.StdEncoding.DecodeString(ev.Data)
		if err != nil {
			return nil, fmt.Errorf("audio_chunk: %w", err)
		}
		m := copyMeta(meta)
		m[frames.MetaMIMEType] = ev.MIMEType
		if ev.IsStart {
			m[frames.MetaIsStart] = "true"
		}
		return frames.NewAudioFrameFromPool(streamID, now, data, sampleRate, 1, m), nil
	case EventAudioEnd:
		return frames.NewControlFrame(streamID, now, frames.ControlAudioEnd, meta), nil
	case EventStop:
		return frames.NewControlFrame(streamID, now, frames.ControlCancel, meta), nil
	case EventSessionEnd:
		return frames.NewSystemFrame(streamID, now, frames.SystemSessionEnd, meta), nil
	default:
		return nil, fmt.Errorf("unsupported event type %q", ev.Type)
	}
}

// fromFrame converts an outbound frame. ok is false for frames the UI has no event for.
func fromFrame(f frames.Frame) (Event, bool) {
	meta := f.Meta()
	switch v := f.(type) {
	case frames.TextFrame:
		if meta[frames.MetaUpdate] == "true" {
			return Event{Type: EventUpdate, ID: meta[frames.MetaMessageID], Content: v.Text()}, true
		}
		return Event{Type: EventMessage, ID: meta[frames.MetaMessageID], Author: meta[frames.MetaAuthor], Content: v.Text()}, true
	case frames.ImageFrame:
		return Event{
			Type:     EventChart,
			ID:       meta[frames.MetaMessageID],
			Author:   meta[frames.MetaAuthor],
			MIMEType: v.MIME(),
			Figure:   json.RawMessage(v.RawPayload()),
			URL:      v.URL(),
		}, true
	case frames.AudioFrame:
		return Event{
			Type:     EventAudio,
			ID:       meta[frames.MetaMessageID],
			Author:   meta[frames.MetaAuthor],
			MIMEType: meta[frames.MetaMIMEType],
			Data:     base64.StdEncoding.EncodeToString(v.RawPayload()),
		}, true
	case frames.SystemFrame:
		switch v.Name() {
		case frames.SystemStep:
			return Event{
				Type:   EventStep,
				Name:   meta[frames.MetaStepName],
				Input:  meta[frames.MetaStepInput],
				Output: meta[frames.MetaStepOutput],
				Status: meta[frames.MetaStepStatus],
			}, true
		case frames.SystemError:
			return Event{Type: EventError, Content: meta[frames.MetaError]}, true
		case frames.SystemSessionStart:
			ev := Event{Type: EventSessionStart, SessionID: meta[frames.MetaStreamID]}
			if raw := meta[frames.MetaAudioSettings]; raw != "" {
				ev.AudioSettings = json.RawMessage(raw)
			}
			return ev, true
		}
	}
	return Event{}, false
}

func copyMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
