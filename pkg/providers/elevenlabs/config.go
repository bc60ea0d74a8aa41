package elevenlabs

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultWSURL   = "wss://api.elevenlabs.io"
)

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	STTModelID   string
	OutputFormat string
	Language     string
	// BaseURL and WSURL override the API hosts (tests).
	BaseURL string
	WSURL   string
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c Config) wsURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	return DefaultWSURL
}

// mimeForFormat maps an ElevenLabs output_format to a MIME type.
func mimeForFormat(format string) string {
	switch {
	case format == "":
		return "audio/mpeg"
	case len(format) >= 3 && format[:3] == "mp3":
		return "audio/mpeg"
	case len(format) >= 3 && format[:3] == "pcm":
		return "audio/pcm"
	case len(format) >= 4 && format[:4] == "ulaw":
		return "audio/basic"
	default:
		return "application/octet-stream"
	}
}
