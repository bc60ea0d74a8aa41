package datau

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/datau/pkg/adapters/stt"
	"github.com/harunnryd/datau/pkg/adapters/tts"
	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/llm"
)

type LLMFactory func(vc VendorConfig) (llm.LLMAdapter, error)
type STTFactory func(vc VendorConfig) (stt.Transcriber, error)
type TTSFactory func(vc VendorConfig) (tts.Synthesizer, error)

// ProviderRegistry maps vendor names from the config to adapter constructors.
type ProviderRegistry struct {
	stt map[string]STTFactory
	tts map[string]TTSFactory
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt: make(map[string]STTFactory),
		tts: make(map[string]TTSFactory),
		llm: make(map[string]LLMFactory),
	}
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) BuildSTT(vc VendorConfig) (stt.Transcriber, error) {
	fn := r.stt[normalizeProvider(vc.Provider)]
	if fn == nil {
		return nil, notRegistered("stt", vc.Provider, r.stt)
	}
	t, err := fn(vc)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonConfig, "vendors.stt (%s)", vc.Provider)
	}
	return t, nil
}

func (r *ProviderRegistry) BuildTTS(vc VendorConfig) (tts.Synthesizer, error) {
	fn := r.tts[normalizeProvider(vc.Provider)]
	if fn == nil {
		return nil, notRegistered("tts", vc.Provider, r.tts)
	}
	s, err := fn(vc)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonConfig, "vendors.tts (%s)", vc.Provider)
	}
	return s, nil
}

func (r *ProviderRegistry) BuildLLM(vc VendorConfig) (llm.LLMAdapter, error) {
	fn := r.llm[normalizeProvider(vc.Provider)]
	if fn == nil {
		return nil, notRegistered("llm", vc.Provider, r.llm)
	}
	a, err := fn(vc)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonConfig, "vendors.llm (%s)", vc.Provider)
	}
	return a, nil
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func notRegistered[T any](kind, provider string, known map[string]T) error {
	names := make([]string, 0, len(known))
	for k := range known {
		names = append(names, k)
	}
	sort.Strings(names)
	return errorsx.New(errorsx.ReasonConfig,
		fmt.Sprintf("%s provider not registered: %q (known: %s)", kind, provider, strings.Join(names, ", ")))
}
