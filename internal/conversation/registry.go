package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nous-labs/folio/pkg/artifact"
)

// Loader restores a stored session. found is false when nothing was
// stored under id.
type Loader func(ctx context.Context, id string) (history []Message, art artifact.Artifact, found bool, err error)

// Registry holds the live conversations, keyed by session id.
type Registry struct {
	deps   Deps
	loader Loader

	mu       sync.Mutex
	sessions map[string]*Conversation
}

// NewRegistry creates a registry whose conversations share deps. loader
// may be nil.
func NewRegistry(deps Deps, loader Loader) *Registry {
	return &Registry{
		deps:     deps,
		loader:   loader,
		sessions: make(map[string]*Conversation),
	}
}

// Create starts a new conversation with a random id.
func (r *Registry) Create() *Conversation {
	c := New(uuid.NewString(), r.deps)
	r.mu.Lock()
	r.sessions[c.ID()] = c
	r.mu.Unlock()
	return c
}

// Get returns a live conversation, falling back to the loader for
// sessions evicted from memory. A live conversation counts as active from
// the lookup on, so Evict does not drop it from under the caller.
func (r *Registry) Get(ctx context.Context, id string) (*Conversation, bool) {
	r.mu.Lock()
	c, ok := r.sessions[id]
	if ok {
		c.touch()
	}
	r.mu.Unlock()
	if ok {
		return c, true
	}
	if r.loader == nil {
		return nil, false
	}

	history, art, found, err := r.loader(ctx, id)
	if err != nil {
		slog.Warn("failed to load session", "session", id, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return r.adopt(id, history, art), true
}

// GetOrCreate returns the conversation for id, creating it if needed.
// Transports with their own ids (Matrix rooms) use this.
func (r *Registry) GetOrCreate(ctx context.Context, id string) *Conversation {
	if c, ok := r.Get(ctx, id); ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.sessions[id]; ok {
		return c
	}
	c := New(id, r.deps)
	r.sessions[id] = c
	return c
}

// adopt registers a restored conversation unless another goroutine got
// there first.
func (r *Registry) adopt(id string, history []Message, art artifact.Artifact) *Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.sessions[id]; ok {
		return c
	}
	c := New(id, r.deps)
	c.Restore(history, art)
	r.sessions[id] = c
	slog.Info("session restored", "session", id, "messages", len(history))
	return c
}

// Evict drops idle conversations that have not finished a request within
// idle. Busy conversations are kept. Returns the evicted ids.
func (r *Registry) Evict(idle time.Duration) []string {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, c := range r.sessions {
		if c.Busy() || c.LastActive().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, id)
	}
	return evicted
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
