package web

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// SampleRate tags inbound audio frames; the UI records at this rate.
	SampleRate int `mapstructure:"sample_rate"`
	// MaxMessageBytes bounds one inbound websocket message.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 8 << 20
	}
	return c
}
