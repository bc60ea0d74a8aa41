package frames

// Frame metadata keys.
const (
	MetaStreamID  = "stream_id"
	MetaTraceID   = "trace_id"
	MetaMessageID = "message_id"
	MetaAuthor    = "author"
	// MetaUpdate marks a text frame that replaces the content of MetaMessageID.
	MetaUpdate   = "update"
	MetaMIMEType = "mime_type"
	MetaIsStart  = "is_start"
	// MetaDirection is "inbound" for user-originated frames echoed back to the UI.
	MetaDirection = "direction"

	MetaStepName   = "step_name"
	MetaStepInput  = "step_input"
	MetaStepOutput = "step_output"
	MetaStepStatus = "step_status"
	MetaError      = "error"
	// MetaAudioSettings carries the recorder settings as JSON on session_start.
	MetaAudioSettings = "audio_settings"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// StreamID returns the session stream id of a frame, or "".
func StreamID(f Frame) string {
	if f == nil {
		return ""
	}
	return f.Meta()[MetaStreamID]
}
