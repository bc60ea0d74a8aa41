package datau

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/datau/pkg/adapters/stt"
	"github.com/harunnryd/datau/pkg/adapters/tts"
	"github.com/harunnryd/datau/pkg/conversation"
	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/frames"
	"github.com/harunnryd/datau/pkg/llm"
	"github.com/harunnryd/datau/pkg/logging"
	"github.com/harunnryd/datau/pkg/metrics"
	"github.com/harunnryd/datau/pkg/observers"
	"github.com/harunnryd/datau/pkg/redact"
	"github.com/harunnryd/datau/pkg/resilience"
	"github.com/harunnryd/datau/pkg/runner"
	"github.com/harunnryd/datau/pkg/session"
	"github.com/harunnryd/datau/pkg/speech"
	"github.com/harunnryd/datau/pkg/sqlexec"
	"github.com/harunnryd/datau/pkg/tools"
	"github.com/harunnryd/datau/pkg/transports"
)

// Message authors shown in the chat UI.
const (
	AuthorBot       = "DataU"
	AuthorAssistant = "Assistant"
	AuthorUser      = "You"
)

// User-facing texts.
const (
	MsgNoAudio         = "No audio recorded. Please try again."
	MsgAudioError      = "Error processing audio. Please try again."
	MsgSessionFailed   = "The session could not be started. Please try again later."
	MsgSessionRejected = "The server is busy. Please try again."
)

const PlotlyMIME = "application/vnd.plotly.v1+json"

type Engine struct {
	cfg       Config
	transport transports.Transport
	registry  *session.Registry
	db        *sqlexec.Executor
	llm       llm.LLMAdapter
	stt       stt.Transcriber
	tts       tts.Synthesizer
	asyncObs  *metrics.AsyncObserver
	closers   []io.Closer
	runner    *runner.LifecycleRunner
	base      *slog.Logger
	logger    *slog.Logger
	pts       *frames.PTSGen

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Transport may be nil when bots are driven directly (the ask command).
	Transport transports.Transport
	Logger    *slog.Logger
	// Observer receives every metrics event next to the configured sinks.
	Observer metrics.Observer
	// DrainTimeout bounds shutdown. Defaults to 30s.
	DrainTimeout time.Duration
}

// NewEngine builds the vendors, the database executor and the observers.
// Any missing credential or database parameter is returned as a config error.
func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)
	if err := cfg.Validate(); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
	}

	logger.Info("datau_init",
		"llm_provider", cfg.Vendors.LLM.Provider,
		"stt_provider", cfg.Vendors.STT.Provider,
		"tts_provider", cfg.Vendors.TTS.Provider,
		"voice", cfg.Voice.Enabled,
		"database", cfg.Database.Dialect(),
	)

	e := &Engine{
		cfg:       cfg,
		transport: opts.Transport,
		db:        sqlexec.New(cfg.Database, logger),
		base:      logger,
		logger:    logging.NewComponentLogger(logger, "engine"),
		pts:       frames.NewPTSGen(),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	if err := e.buildObservers(logger, opts.Observer); err != nil {
		return nil, err
	}
	if err := e.buildProviders(opts.Providers); err != nil {
		e.closeObservers()
		return nil, err
	}
	if cfg.Charts.Dir != "" && cfg.Charts.RetentionDays > 0 {
		if n, err := observers.PurgeArtifacts(cfg.Charts.Dir, cfg.chartRetention(), ".png"); err != nil {
			e.logger.Warn("chart_purge_failed", "error", err)
		} else if n > 0 {
			e.logger.Info("chart_purge", "deleted", n)
		}
	}

	e.registry = session.NewRegistry(e.NewBot, cfg.Audio.Settings())
	drainTimeout := opts.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	e.runner = runner.NewLifecycleRunner(runner.DrainerFunc(e.drain), runner.Hooks{
		OnStart: e.onStart,
		OnStop:  e.onStop,
	}, drainTimeout)
	return e, nil
}

func (e *Engine) buildObservers(logger *slog.Logger, extra metrics.Observer) error {
	list := []metrics.Observer{observers.NewLoggerObserver(logger)}
	if extra != nil {
		list = append(list, extra)
	}
	if dir := strings.TrimSpace(e.cfg.Observability.ArtifactsDir); dir != "" {
		if e.cfg.Observability.RetentionDays > 0 {
			_, _ = observers.PurgeArtifacts(dir, e.cfg.artifactRetention(), ".jsonl", ".json")
		}
		jsonl, err := metrics.OpenJSONLFile(dir, "events.jsonl")
		if err != nil {
			return errorsx.Wrapf(err, errorsx.ReasonConfig, "observability.artifacts_dir")
		}
		usage := observers.NewUsageObserver(dir)
		list = append(list, jsonl, usage)
		e.closers = append(e.closers, jsonl, usage)
	}
	e.asyncObs = metrics.NewAsyncObserver(observers.NewMultiObserver(list...), 2048)
	return nil
}

func (e *Engine) buildProviders(providers *ProviderRegistry) error {
	if providers == nil {
		providers = DefaultProviders()
	}
	adapter, err := providers.BuildLLM(e.cfg.Vendors.LLM)
	if err != nil {
		return err
	}
	if n := e.cfg.Conversation.BreakerThreshold; n > 0 {
		cooldown := time.Duration(e.cfg.Conversation.BreakerCooldownMS) * time.Millisecond
		cb := llm.NewCircuitBreakerAdapter(adapter, resilience.NewCircuitBreaker(n, cooldown))
		cb.SetObserver(e.asyncObs)
		adapter = cb
	}
	e.llm = adapter

	if e.stt, err = providers.BuildSTT(e.cfg.Vendors.STT); err != nil {
		return err
	}
	if e.cfg.Voice.Enabled {
		if e.tts, err = providers.BuildTTS(e.cfg.Vendors.TTS); err != nil {
			return err
		}
	}
	return nil
}

// NewBot introspects the schema and builds a bot for one session.
func (e *Engine) NewBot(ctx context.Context, id, traceID string) (*conversation.Bot, error) {
	info, err := e.db.TableInfo(ctx)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonSessionStart, "schema introspection")
	}
	registry := tools.NewRegistry(e.base,
		tools.NewQueryTool(e.db, e.cfg.Conversation.QueryDescription),
		tools.NewChartTool(e.cfg.Charts.Dir),
	)
	return conversation.New(conversation.Config{
		SystemPrompt: conversation.SystemPrompt(e.cfg.Dialect(), info),
		LLM:          e.llm,
		Tools:        registry,
		Observer:     e.asyncObs,
		Logger:       e.base,
		SessionID:    id,
		TraceID:      traceID,
	}), nil
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.mu.Lock()
	e.ctx, e.cancel = context.WithCancel(ctx)
	runCtx := e.ctx
	e.mu.Unlock()
	if e.transport != nil {
		if err := e.transport.Start(runCtx); err != nil {
			return err
		}
		go e.routeTransport(runCtx)
	}
	go func() {
		if err := e.runner.Run(runCtx); err != nil {
			e.logger.Error("lifecycle_stop_failed",
				"error", err,
				"active_sessions", e.registry.Count())
		}
	}()
	return nil
}

// Stop drains the sessions and flushes the observers. It is safe to call twice.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	cancel()
	return e.runner.Stop()
}

func (e *Engine) onStart() {
	fields := []any{"message", "DataU Engine Ready"}
	if rr, ok := e.transport.(transports.ReadyReporter); ok {
		for k, v := range rr.ReadyFields() {
			fields = append(fields, k, v)
		}
	}
	e.logger.Info("engine_ready", fields...)
}

func (e *Engine) onStop() {
	e.closeObservers()
	e.logger.Info("shutdown", "goroutines", runtime.NumGoroutine(), "active_sessions", e.registry.Count())
}

func (e *Engine) closeObservers() {
	if e.asyncObs != nil {
		e.asyncObs.Close()
	}
	for _, c := range e.closers {
		_ = c.Close()
	}
}

func (e *Engine) drain() error {
	if e.transport != nil {
		_ = e.transport.Stop()
	}
	e.registry.SetDraining(true)
	e.registry.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if !e.registry.WaitForEmpty(ctx, 200*time.Millisecond) {
		return fmt.Errorf("%d sessions still open", e.registry.Count())
	}
	return nil
}

func (e *Engine) routeTransport(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-e.transport.Recv():
			if !ok {
				return
			}
			e.route(ctx, f)
		}
	}
}

func (e *Engine) route(ctx context.Context, f frames.Frame) {
	meta := f.Meta()
	id := meta[frames.MetaStreamID]
	if id == "" {
		frames.ReleaseAudioFrame(f)
		return
	}
	if sf, ok := f.(frames.SystemFrame); ok {
		switch sf.Name() {
		case frames.SystemSessionStart:
			e.openSession(ctx, id, meta[frames.MetaTraceID])
			return
		case frames.SystemSessionEnd:
			e.closeSession(id)
			return
		}
	}
	sess, ok := e.registry.Get(id)
	if !ok {
		if sess, ok = e.openSession(ctx, id, meta[frames.MetaTraceID]); !ok {
			frames.ReleaseAudioFrame(f)
			return
		}
	}

	var job session.Job
	switch v := f.(type) {
	case frames.TextFrame:
		text := v.Text()
		job = func(ctx context.Context, s *session.Session) { e.processMessage(ctx, s, text) }
	case frames.AudioFrame:
		job = func(ctx context.Context, s *session.Session) { e.handleAudioChunk(s, v) }
	case frames.ControlFrame:
		switch v.Code() {
		case frames.ControlAudioEnd:
			job = e.handleAudioEnd
		case frames.ControlCancel:
			if sess.CancelCurrent() {
				e.logger.Info("turn_cancelled", "session_id", id)
			}
			return
		}
	}
	if job == nil {
		return
	}
	if !sess.Submit(job) {
		frames.ReleaseAudioFrame(f)
		e.logger.Warn("session_inbox_full", "session_id", id, "kind", string(f.Kind()))
	}
}

func (e *Engine) openSession(ctx context.Context, id, traceID string) (*session.Session, bool) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	s, created, err := e.registry.GetOrCreate(ctx, id, traceID)
	if err != nil {
		msg := MsgSessionFailed
		if errors.Is(err, session.ErrDraining) {
			msg = MsgSessionRejected
		}
		e.logger.Error("session_start_failed",
			"session_id", id,
			"reason_code", string(errorsx.Reason(err)),
			"error", err)
		e.sendError(id, msg)
		return nil, false
	}
	if created {
		e.record(s, metrics.EventSessionStart, nil)
		settings, _ := json.Marshal(s.Settings.Millis())
		e.send(frames.NewSystemFrame(id, e.pts.Next(id), frames.SystemSessionStart, map[string]string{
			frames.MetaTraceID:       traceID,
			frames.MetaAudioSettings: string(settings),
		}))
		e.logger.Info("session_started", "session_id", id, "trace_id", traceID)
	}
	return s, true
}

func (e *Engine) closeSession(id string) {
	s, ok := e.registry.Get(id)
	if !ok || !e.registry.Remove(id) {
		return
	}
	e.record(s, metrics.EventSessionEnd, map[string]any{"duration_ms": time.Since(s.Created).Milliseconds()})
	e.logger.Info("session_ended", "session_id", id)
}

// processMessage runs one turn and shows its outputs. A failed turn leaves the
// placeholder empty and shows nothing else.
func (e *Engine) processMessage(ctx context.Context, s *session.Session, text string) {
	placeholder := uuid.NewString()
	e.sendText(s.ID, placeholder, AuthorBot, "", false)

	res, err := s.Bot.Turn(ctx, text)
	if err != nil {
		e.logger.Error("turn_failed",
			"session_id", s.ID,
			"reason_code", string(errorsx.Reason(err)),
			"error", err)
		return
	}

	for _, st := range res.Steps {
		e.send(frames.NewSystemFrame(s.ID, e.pts.Next(s.ID), frames.SystemStep, map[string]string{
			frames.MetaStepName:   st.Name,
			frames.MetaStepInput:  st.Input,
			frames.MetaStepOutput: st.Output,
			frames.MetaStepStatus: string(st.Status),
		}))
	}
	for _, out := range res.Outputs {
		switch out.Kind {
		case conversation.OutputText:
			if out.Iteration == 1 {
				e.sendText(s.ID, placeholder, AuthorBot, out.Text, true)
				continue
			}
			e.sendText(s.ID, uuid.NewString(), AuthorAssistant, out.Text, false)
		case conversation.OutputChart:
			e.sendChart(s.ID, out)
		}
	}
	if replies := res.Replies(); e.tts != nil && len(replies) > 0 {
		if text := speech.Prepare(replies[len(replies)-1], e.cfg.Voice.Speech); text != "" {
			e.speak(ctx, s, text)
		}
	}
}

func (e *Engine) handleAudioChunk(s *session.Session, f frames.AudioFrame) {
	defer frames.ReleaseAudioFrame(f)
	meta := f.Meta()
	if session.IsStart(meta[frames.MetaIsStart]) {
		s.Audio.Start(meta[frames.MetaMIMEType])
	}
	if err := s.Audio.Write(f.RawPayload()); err != nil {
		e.logger.Warn("audio_chunk_dropped", "session_id", s.ID, "error", err)
	}
}

func (e *Engine) handleAudioEnd(ctx context.Context, s *session.Session) {
	defer s.Audio.Reset()
	audio, err := s.Audio.Flush()
	if err != nil {
		e.logger.Warn("audio_missing", "session_id", s.ID, "error", err)
		e.sendText(s.ID, uuid.NewString(), AuthorBot, MsgNoAudio, false)
		return
	}

	e.send(frames.NewAudioFrame(s.ID, e.pts.Next(s.ID), audio.Data, s.Settings.SampleRate, 1, map[string]string{
		frames.MetaMessageID: uuid.NewString(),
		frames.MetaAuthor:    AuthorUser,
		frames.MetaMIMEType:  audio.MIMEType,
		frames.MetaDirection: frames.DirectionInbound,
	}))

	start := time.Now()
	text, err := e.stt.Transcribe(ctx, audio)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonTranscribe)
		e.logger.Error("transcription_failed",
			"session_id", s.ID,
			"provider", e.stt.Name(),
			"reason_code", string(errorsx.Reason(err)),
			"error", err)
		e.sendText(s.ID, uuid.NewString(), AuthorBot, MsgAudioError, false)
		return
	}
	e.record(s, metrics.EventTranscription, map[string]any{
		"audio_bytes": len(audio.Data),
		"latency_ms":  time.Since(start).Milliseconds(),
		"provider":    e.stt.Name(),
	})
	e.logger.Info("transcription_received", "session_id", s.ID, "text", redact.Preview(text, 120))
	e.processMessage(ctx, s, text)
}

func (e *Engine) speak(ctx context.Context, s *session.Session, text string) {
	start := time.Now()
	speech, err := e.tts.Synthesize(ctx, text)
	if err != nil {
		e.logger.Warn("synthesis_failed",
			"session_id", s.ID,
			"provider", e.tts.Name(),
			"reason_code", string(errorsx.Reason(errorsx.Wrap(err, errorsx.ReasonSynthesize))),
			"error", err)
		return
	}
	e.record(s, metrics.EventSynthesis, map[string]any{
		"audio_bytes": len(speech.Data),
		"latency_ms":  time.Since(start).Milliseconds(),
		"provider":    e.tts.Name(),
	})
	e.send(frames.NewAudioFrame(s.ID, e.pts.Next(s.ID), speech.Data, 0, 1, map[string]string{
		frames.MetaMessageID: uuid.NewString(),
		frames.MetaAuthor:    AuthorBot,
		frames.MetaMIMEType:  speech.MIMEType,
		frames.MetaDirection: frames.DirectionOutbound,
	}))
}

func (e *Engine) sendText(streamID, messageID, author, text string, update bool) {
	meta := map[string]string{
		frames.MetaMessageID: messageID,
		frames.MetaAuthor:    author,
	}
	if update {
		meta[frames.MetaUpdate] = "true"
	}
	e.send(frames.NewTextFrame(streamID, e.pts.Next(streamID), text, meta))
}

func (e *Engine) sendChart(streamID string, out conversation.Output) {
	raw, err := out.Figure.JSON()
	if err != nil {
		e.logger.Error("chart_encode_failed", "session_id", streamID, "error", err)
		return
	}
	e.send(frames.NewImageFrame(streamID, e.pts.Next(streamID), raw, PlotlyMIME, "", map[string]string{
		frames.MetaMessageID: uuid.NewString(),
		frames.MetaAuthor:    AuthorAssistant,
	}))
}

func (e *Engine) sendError(streamID, text string) {
	e.send(frames.NewSystemFrame(streamID, e.pts.Next(streamID), frames.SystemError, map[string]string{
		frames.MetaError: text,
	}))
}

func (e *Engine) send(f frames.Frame) {
	if e.transport == nil {
		return
	}
	if err := e.transport.Send(f); err != nil {
		e.logger.Warn("transport_send_failed",
			"session_id", frames.StreamID(f),
			"kind", string(f.Kind()),
			"reason_code", string(errorsx.Reason(err)),
			"error", err)
	}
}

func (e *Engine) record(s *session.Session, name string, fields map[string]any) {
	e.asyncObs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Tags:   map[string]string{"session_id": s.ID, "trace_id": s.TraceID, "component": "engine"},
		Fields: fields,
	})
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Registry() *session.Registry { return e.registry }

func (e *Engine) Transport() transports.Transport { return e.transport }

func (e *Engine) Context() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// Health reports whether the database answers.
func (e *Engine) Health(ctx context.Context) error {
	if e.registry.Draining() {
		return session.ErrDraining
	}
	_, err := e.db.Run(ctx, "SELECT 1")
	return err
}
