package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/datau/pkg/conversation"
)

// BotFactory builds the bot of a new session (schema introspection, system prompt).
type BotFactory func(ctx context.Context, id, traceID string) (*conversation.Bot, error)

var ErrDraining = errors.New("session registry is draining")

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	count    atomic.Int64
	factory  BotFactory
	settings AudioSettings
	draining atomic.Bool
}

func NewRegistry(factory BotFactory, settings AudioSettings) *Registry {
	return &Registry{sessions: make(map[string]*Session), factory: factory, settings: settings}
}

// GetOrCreate returns the session for id, creating it when absent. The
// boolean reports whether a new session was created.
func (r *Registry) GetOrCreate(ctx context.Context, id, traceID string) (*Session, bool, error) {
	if id == "" {
		return nil, false, errors.New("empty session id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, false, nil
	}
	if r.draining.Load() {
		return nil, false, ErrDraining
	}
	bot, err := r.factory(ctx, id, traceID)
	if err != nil {
		return nil, false, err
	}
	s := New(id, traceID, bot, r.settings)
	r.sessions[id] = s
	r.count.Add(1)
	return s, true, nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and forgets the session. It reports whether one existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		r.count.Add(-1)
	}
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Remove(id)
	}
}

func (r *Registry) Count() int64 {
	return r.count.Load()
}

func (r *Registry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *Registry) Draining() bool {
	return r.draining.Load()
}

func (r *Registry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
