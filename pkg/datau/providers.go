package datau

import (
	"github.com/harunnryd/datau/pkg/adapters/stt"
	"github.com/harunnryd/datau/pkg/adapters/tts"
	"github.com/harunnryd/datau/pkg/configutil"
	"github.com/harunnryd/datau/pkg/llm"
	"github.com/harunnryd/datau/pkg/providers/deepgram"
	"github.com/harunnryd/datau/pkg/providers/elevenlabs"
	"github.com/harunnryd/datau/pkg/providers/mock"
	"github.com/harunnryd/datau/pkg/providers/openai"
)

// DefaultProviders registers every built-in vendor.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterLLM("openai", openAILLM)
	r.RegisterLLM("mock", mockLLM)
	r.RegisterSTT("openai", openAISTT)
	r.RegisterSTT("deepgram", deepgramSTT)
	r.RegisterSTT("elevenlabs", elevenLabsSTT)
	r.RegisterSTT("mock", mockSTT)
	r.RegisterTTS("elevenlabs", elevenLabsTTS)
	r.RegisterTTS("mock", mockTTS)
	return r
}

// decodeVendor validates settings against schema and decodes them into out.
func decodeVendor(vc VendorConfig, schema configutil.Schema, out any) error {
	if err := configutil.ValidateSettings(vc.Settings, schema); err != nil {
		return err
	}
	return configutil.DecodeSettings(vc.Settings, out)
}

func openAILLM(vc VendorConfig) (llm.LLMAdapter, error) {
	var s struct {
		APIKey      string   `mapstructure:"api_key"`
		Model       string   `mapstructure:"model"`
		BaseURL     string   `mapstructure:"base_url"`
		Temperature *float64 `mapstructure:"temperature"`
	}
	schema := configutil.Schema{Required: []string{"api_key"}, Optional: []string{"model", "base_url", "temperature"}}
	if err := decodeVendor(vc, schema, &s); err != nil {
		return nil, err
	}
	a := openai.NewAdapter(s.APIKey, s.Model)
	a.BaseURL = configutil.StringValue(s.BaseURL, openai.DefaultBaseURL)
	a.Temperature = s.Temperature
	return a, nil
}

func mockLLM(vc VendorConfig) (llm.LLMAdapter, error) {
	var s struct {
		ResponseText string `mapstructure:"response_text"`
	}
	schema := configutil.Schema{Optional: []string{"response_text"}}
	if err := decodeVendor(vc, schema, &s); err != nil {
		return nil, err
	}
	return mock.NewLLMAdapter(mock.LLMConfig{ResponseText: s.ResponseText}), nil
}

func openAISTT(vc VendorConfig) (stt.Transcriber, error) {
	var s struct {
		APIKey   string `mapstructure:"api_key"`
		Model    string `mapstructure:"model"`
		Language string `mapstructure:"language"`
		BaseURL  string `mapstructure:"base_url"`
	}
	schema := configutil.Schema{Required: []string{"api_key"}, Optional: []string{"model", "language", "base_url"}}
	if err := decodeVendor(vc, schema, &s); err != nil {
		return nil, err
	}
	t := openai.NewTranscriber(s.APIKey, stt.Config{Model: s.Model, Language: s.Language})
	t.BaseURL = configutil.StringValue(s.BaseURL, openai.DefaultBaseURL)
	return t, nil
}

func deepgramSTT(vc VendorConfig) (stt.Transcriber, error) {
	var s struct {
		APIKey      string `mapstructure:"api_key"`
		Model       string `mapstructure:"model"`
		Language    string `mapstructure:"language"`
		SmartFormat *bool  `mapstructure:"smart_format"`
		Punctuate   *bool  `mapstructure:"punctuate"`
	}
	schema := configutil.Schema{Required: []string{"api_key"}, Optional: []string{"model", "language", "smart_format", "punctuate"}}
	if err := decodeVendor(vc, schema, &s); err != nil {
		return nil, err
	}
	return deepgram.New(deepgram.Config{
		APIKey:      s.APIKey,
		Model:       s.Model,
		Language:    s.Language,
		SmartFormat: configutil.BoolValue(s.SmartFormat, true),
		Punctuate:   configutil.BoolValue(s.Punctuate, true),
	}), nil
}

func elevenLabsSTT(vc VendorConfig) (stt.Transcriber, error) {
	var s struct {
		APIKey   string `mapstructure:"api_key"`
		ModelID  string `mapstructure:"model_id"`
		Language string `mapstructure:"language"`
		BaseURL  string `mapstructure:"base_url"`
	}
	// voice_id is accepted so one ElevenLabs block can serve both directions.
	schema := configutil.Schema{Required: []string{"api_key"}, Optional: []string{"model_id", "language", "base_url", "voice_id"}}
	if err := decodeVendor(vc, schema, &s); err != nil {
		return nil, err
	}
	return elevenlabs.NewTranscriber(elevenlabs.Config{
		APIKey:     s.APIKey,
		STTModelID: s.ModelID,
		Language:   s.Language,
		BaseURL:    s.BaseURL,
	}), nil
}

func elevenLabsTTS(vc VendorConfig) (tts.Synthesizer, error) {
	var s struct {
		APIKey       string `mapstructure:"api_key"`
		VoiceID      string `mapstructure:"voice_id"`
		ModelID      string `mapstructure:"model_id"`
		OutputFormat string `mapstructure:"output_format"`
		WSURL        string `mapstructure:"ws_url"`
	}
	schema := configutil.Schema{
		Required: []string{"api_key", "voice_id"},
		Optional: []string{"model_id", "output_format", "ws_url"},
	}
	if err := decodeVendor(vc, schema, &s); err != nil {
		return nil, err
	}
	return elevenlabs.NewSynthesizer(elevenlabs.Config{
		APIKey:       s.APIKey,
		VoiceID:      s.VoiceID,
		ModelID:      s.ModelID,
		OutputFormat: s.OutputFormat,
		WSURL:        s.WSURL,
	}), nil
}

func mockSTT(vc VendorConfig) (stt.Transcriber, error) {
	var s struct {
		Transcript string `mapstructure:"transcript"`
	}
	if err := decodeVendor(vc, configutil.Schema{Optional: []string{"transcript"}}, &s); err != nil {
		return nil, err
	}
	return mock.NewSTT(mock.STTConfig{Transcript: s.Transcript}), nil
}

func mockTTS(vc VendorConfig) (tts.Synthesizer, error) {
	var s struct {
		MIMEType string `mapstructure:"mime_type"`
	}
	if err := decodeVendor(vc, configutil.Schema{Optional: []string{"mime_type"}}, &s); err != nil {
		return nil, err
	}
	return mock.NewTTS(mock.TTSConfig{MIMEType: s.MIMEType}), nil
}
