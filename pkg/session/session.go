package session

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/datau/pkg/conversation"
)

// Job is one unit of session work, run on the session goroutine.
type Job func(ctx context.Context, s *Session)

// Session is the per-user state: the bot, the audio buffer and the UI's
// audio settings. All jobs run sequentially on one goroutine.
type Session struct {
	ID       string
	TraceID  string
	Created  time.Time
	Bot      *conversation.Bot
	Audio    *AudioBuffer
	Settings AudioSettings

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan Job
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	current context.CancelFunc
}

func New(id, traceID string, bot *conversation.Bot, settings AudioSettings) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       id,
		TraceID:  traceID,
		Created:  time.Now(),
		Bot:      bot,
		Audio:    &AudioBuffer{},
		Settings: settings,
		ctx:      ctx,
		cancel:   cancel,
		inbox:    make(chan Job, 64),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

// Submit queues job. It returns false once the session is closed or the inbox is full.
func (s *Session) Submit(job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.inbox <- job:
		return true
	default:
		return false
	}
}

func (s *Session) Context() context.Context { return s.ctx }

// Done is closed when the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close cancels in-flight work and stops the session. Queued jobs are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.inbox)
	s.mu.Unlock()
	s.cancel()
	s.Audio.Reset()
}

// CancelCurrent aborts the job that is running, if any. Queued jobs still run.
func (s *Session) CancelCurrent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	s.current()
	return true
}

func (s *Session) loop() {
	defer close(s.done)
	for job := range s.inbox {
		if s.ctx.Err() != nil {
			continue
		}
		s.run(job)
	}
}

func (s *Session) run(job Job) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.current = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		cancel()
	}()
	job(ctx, s)
}
