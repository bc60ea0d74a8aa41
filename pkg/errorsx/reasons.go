package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonConfig ReasonCode = "config"

	ReasonQuery      ReasonCode = "query"
	ReasonChartInput ReasonCode = "chart_input"
	ReasonChartSave  ReasonCode = "chart_save"
	ReasonToolArgs   ReasonCode = "tool_args"
	ReasonToolName   ReasonCode = "tool_unknown"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonTranscribe ReasonCode = "transcribe"
	ReasonSynthesize ReasonCode = "synthesize"
	ReasonAudio      ReasonCode = "audio"

	ReasonSessionStart  ReasonCode = "session_start"
	ReasonTransportSend ReasonCode = "transport_send"
)
