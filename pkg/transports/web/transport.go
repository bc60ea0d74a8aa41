package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/frames"
	"github.com/harunnryd/datau/pkg/logging"
	"github.com/harunnryd/datau/pkg/transports"
)

const writeWait = 10 * time.Second

// Transport serves the chat UI over one websocket per session.
type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger

	recvMu     sync.RWMutex
	recvCh     chan frames.Frame
	recvClosed bool

	mu    sync.Mutex
	conns map[string]*conn

	draining atomic.Bool
	addr     atomic.Value
	health   atomic.Value
}

// HealthCheck reports whether the backing service can take traffic.
type HealthCheck func(ctx context.Context) error

// SetHealthCheck makes /health run check in addition to the drain state.
func (t *Transport) SetHealthCheck(check HealthCheck) {
	if check != nil {
		t.health.Store(check)
	}
}

func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logging.NewComponentLogger(slog.Default(), "web_transport"),
		recvCh: make(chan frames.Frame, 512),
		conns:  make(map[string]*conn),
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "web" }

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

func (t *Transport) ReadyFields() map[string]any {
	addr, _ := t.addr.Load().(string)
	if addr == "" {
		addr = t.cfg.ServerAddr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return map[string]any{"ws_url": "ws://" + addr + t.cfg.WebsocketPath}
}

// Handler returns the HTTP routes: the websocket endpoint and /health.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if t.draining.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if check, ok := t.health.Load().(HealthCheck); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				t.logger.Warn("health_check_failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", t.cfg.ServerAddr)
	if err != nil {
		return err
	}
	t.addr.Store(ln.Addr().String())
	t.server = &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           t.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("web_transport_server_error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	if !t.draining.CompareAndSwap(false, true) {
		return nil
	}
	if t.server != nil {
		_ = t.server.Close()
	}
	t.mu.Lock()
	for _, c := range t.conns {
		c.close()
	}
	t.conns = make(map[string]*conn)
	t.mu.Unlock()
	t.recvMu.Lock()
	t.recvClosed = true
	close(t.recvCh)
	t.recvMu.Unlock()
	return nil
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.SetReadLimit(t.cfg.MaxMessageBytes)

	streamID := uuid.NewString()
	meta := map[string]string{
		frames.MetaStreamID: streamID,
		frames.MetaTraceID:  uuid.NewString(),
	}
	c := t.attach(streamID, ws)
	defer t.detach(streamID)
	t.logger.Info("web_session_connected", slog.String("stream_id", streamID))
	t.emit(frames.NewSystemFrame(streamID, time.Now().UnixNano(), frames.SystemSessionStart, meta))

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			c.enqueue(Event{Type: EventError, Content: "invalid event: " + err.Error()})
			continue
		}
		if ev.Type == EventSessionStart {
			continue
		}
		f, err := toFrame(ev, streamID, t.cfg.SampleRate, meta)
		if err != nil {
			c.enqueue(Event{Type: EventError, Content: err.Error()})
			continue
		}
		t.emit(f)
		if ev.Type == EventSessionEnd {
			return
		}
	}
	t.emit(frames.NewSystemFrame(streamID, time.Now().UnixNano(), frames.SystemSessionEnd, meta))
}

// Send writes f to its session's websocket. Frames for closed sessions are dropped.
func (t *Transport) Send(f frames.Frame) error {
	ev, ok := fromFrame(f)
	if !ok {
		return nil
	}
	c := t.conn(frames.StreamID(f))
	if c == nil {
		return nil
	}
	if !c.enqueue(ev) {
		return errorsx.New(errorsx.ReasonTransportSend, "send queue full")
	}
	return nil
}

func (t *Transport) emit(f frames.Frame) {
	t.recvMu.RLock()
	defer t.recvMu.RUnlock()
	if t.recvClosed {
		return
	}
	select {
	case t.recvCh <- f:
	default:
		t.logger.Warn("web_transport_recv_full", slog.String("stream_id", frames.StreamID(f)))
	}
}

func (t *Transport) attach(streamID string, ws *websocket.Conn) *conn {
	c := &conn{ws: ws, sendCh: make(chan []byte, 256), logger: t.logger}
	t.mu.Lock()
	t.conns[streamID] = c
	t.mu.Unlock()
	go c.loop()
	return c
}

func (t *Transport) detach(streamID string) {
	t.mu.Lock()
	c := t.conns[streamID]
	delete(t.conns, streamID)
	t.mu.Unlock()
	if c != nil {
		c.close()
	}
}

func (t *Transport) conn(streamID string) *conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[streamID]
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

type conn struct {
	ws     *websocket.Conn
	sendCh chan []byte
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

func (c *conn) enqueue(ev Event) bool {
	b, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error("web_event_encode_failed", slog.String("type", ev.Type), slog.String("error", err.Error()))
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.sendCh <- b:
		return true
	default:
		return false
	}
}

func (c *conn) loop() {
	for msg := range c.sendCh {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.logger.Warn("web_write_failed", slog.String("error", err.Error()))
		}
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.ws.Close()
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.sendCh)
	}
}

var _ transports.Transport = (*Transport)(nil)
var _ transports.ReadyReporter = (*Transport)(nil)
