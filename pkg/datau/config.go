package datau

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/harunnryd/datau/pkg/configutil"
	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/session"
	"github.com/harunnryd/datau/pkg/speech"
	"github.com/harunnryd/datau/pkg/sqlexec"
	"github.com/harunnryd/datau/pkg/transports/web"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Server        web.Config          `mapstructure:"server"`
	Database      sqlexec.Config      `mapstructure:"database"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Conversation  ConversationConfig  `mapstructure:"conversation"`
	Charts        ChartsConfig        `mapstructure:"charts"`
	Voice         VoiceConfig         `mapstructure:"voice"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	LLM VendorConfig `mapstructure:"llm"`
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
}

type ConversationConfig struct {
	// Dialect names the SQL flavour in the system prompt. Defaults from the database driver.
	Dialect          string `mapstructure:"dialect"`
	QueryDescription string `mapstructure:"query_description"`
	// BreakerThreshold enables the LLM circuit breaker after that many rate limits.
	BreakerThreshold  int `mapstructure:"breaker_threshold"`
	BreakerCooldownMS int `mapstructure:"breaker_cooldown_ms"`
}

type ChartsConfig struct {
	// Dir receives a PNG per chart. Empty disables saving.
	Dir           string `mapstructure:"dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type VoiceConfig struct {
	// Enabled speaks the final reply of every turn through the TTS vendor.
	Enabled bool          `mapstructure:"enabled"`
	Speech  speech.Config `mapstructure:"speech"`
}

type AudioConfig struct {
	MinDecibels             int `mapstructure:"min_decibels"`
	InitialSilenceTimeoutMS int `mapstructure:"initial_silence_timeout_ms"`
	SilenceTimeoutMS        int `mapstructure:"silence_timeout_ms"`
	MaxDurationMS           int `mapstructure:"max_duration_ms"`
	ChunkDurationMS         int `mapstructure:"chunk_duration_ms"`
	SampleRate              int `mapstructure:"sample_rate"`
}

// Settings converts the recorder config, filling blanks from the defaults.
func (a AudioConfig) Settings() session.AudioSettings {
	def := session.DefaultAudioSettings()
	out := session.AudioSettings{
		MinDecibels:           a.MinDecibels,
		InitialSilenceTimeout: configutil.Millis(a.InitialSilenceTimeoutMS, def.InitialSilenceTimeout),
		SilenceTimeout:        configutil.Millis(a.SilenceTimeoutMS, def.SilenceTimeout),
		MaxDuration:           configutil.Millis(a.MaxDurationMS, def.MaxDuration),
		ChunkDuration:         configutil.Millis(a.ChunkDurationMS, def.ChunkDuration),
		SampleRate:            a.SampleRate,
	}
	if out.MinDecibels == 0 {
		out.MinDecibels = def.MinDecibels
	}
	if out.SampleRate <= 0 {
		out.SampleRate = def.SampleRate
	}
	return out
}

type ObservabilityConfig struct {
	ArtifactsDir  string `mapstructure:"artifacts_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// vendorEnv lists the environment variables consulted when a vendor setting is blank.
var vendorEnv = map[string]map[string]string{
	"openai":     {"api_key": "OPENAI_API_KEY"},
	"deepgram":   {"api_key": "DEEPGRAM_API_KEY"},
	"elevenlabs": {"api_key": "ELEVENLABS_API_KEY", "voice_id": "ELEVENLABS_VOICE_ID"},
}

// LoadConfig reads the YAML file at path. A .env file next to it, or in the
// working directory, is loaded first; variables already set win.
func LoadConfig(path string) (Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	bindDatabaseEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errorsx.Wrapf(err, errorsx.ReasonConfig, "read config")
	}
	return decodeConfig(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.server_addr", ":8080")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.sample_rate", 44100)
	v.SetDefault("server.max_message_bytes", 8<<20)
	v.SetDefault("database.driver", sqlexec.DriverSQLite)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("vendors.llm.provider", "openai")
	v.SetDefault("vendors.stt.provider", "openai")
	v.SetDefault("vendors.tts.provider", "")
	v.SetDefault("conversation.query_description", "Fetch data from the database")
	v.SetDefault("conversation.breaker_threshold", 0)
	v.SetDefault("conversation.breaker_cooldown_ms", 30000)
	v.SetDefault("charts.dir", "")
	v.SetDefault("charts.retention_days", 0)
	v.SetDefault("voice.enabled", false)
	v.SetDefault("audio.min_decibels", -20)
	v.SetDefault("audio.initial_silence_timeout_ms", 2000)
	v.SetDefault("audio.silence_timeout_ms", 3500)
	v.SetDefault("audio.max_duration_ms", 15000)
	v.SetDefault("audio.chunk_duration_ms", 1000)
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

func bindDatabaseEnv(v *viper.Viper) {
	for key, env := range map[string]string{
		"database.path":     "DB_PATH",
		"database.name":     "DB_NAME",
		"database.user":     "DB_USER",
		"database.password": "DB_PASSWORD",
		"database.host":     "DB_HOST",
		"database.port":     "DB_PORT",
	} {
		_ = v.BindEnv(key, env)
	}
}

func decodeConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsx.Wrapf(err, errorsx.ReasonConfig, "unmarshal")
	}
	expandEnvStrings(&cfg)
	applyVendorEnv(&cfg.Vendors)
	if err := cfg.Validate(); err != nil {
		return Config{}, errorsx.Wrapf(err, errorsx.ReasonConfig, "validate config")
	}
	return cfg, nil
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = gotenv.Load(p)
	}
}

func (c *Config) Validate() error {
	if err := configutil.RequireString(c.Vendors.LLM.Provider, "vendors.llm.provider"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Vendors.STT.Provider, "vendors.stt.provider"); err != nil {
		return err
	}
	if c.Voice.Enabled {
		if err := configutil.RequireString(c.Vendors.TTS.Provider, "vendors.tts.provider"); err != nil {
			return fmt.Errorf("%w when voice.enabled is set", err)
		}
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Conversation.BreakerThreshold < 0 {
		return errors.New("conversation.breaker_threshold must not be negative")
	}
	return nil
}

// Dialect returns the SQL flavour named in the system prompt.
func (c Config) Dialect() string {
	if d := strings.TrimSpace(c.Conversation.Dialect); d != "" {
		return d
	}
	return c.Database.Dialect()
}

func (c Config) chartRetention() time.Duration {
	return time.Duration(c.Charts.RetentionDays) * 24 * time.Hour
}

func (c Config) artifactRetention() time.Duration {
	return time.Duration(c.Observability.RetentionDays) * 24 * time.Hour
}

// applyVendorEnv fills blank credentials from the provider's conventional variables.
func applyVendorEnv(v *VendorsConfig) {
	for _, vc := range []*VendorConfig{&v.LLM, &v.STT, &v.TTS} {
		envs := vendorEnv[strings.ToLower(strings.TrimSpace(vc.Provider))]
		if len(envs) == 0 {
			continue
		}
		if vc.Settings == nil {
			vc.Settings = map[string]any{}
		}
		for key, env := range envs {
			if cur, ok := vc.Settings[key].(string); ok && strings.TrimSpace(cur) != "" {
				continue
			}
			if val := os.Getenv(env); val != "" {
				vc.Settings[key] = val
			}
		}
	}
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
