// Package events is the state-update channel between conversations and
// the clients watching them (SSE streams, the terminal chat, the Matrix
// bridge).
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nous-labs/folio/pkg/artifact"
)

// Event types.
const (
	TypeChat     = "chat"     // message appended to history
	TypeArtifact = "artifact" // artifact panel changed
	TypeStatus   = "status"   // request started/finished
	TypeError    = "error"    // collaborator failure
)

// Event is a single update for one session.
type Event struct {
	// ID increases with every publish on a bus. Zero until published.
	ID       uint64             `json:"id"`
	Type     string             `json:"type"`
	Session  string             `json:"session"`
	Role     string             `json:"role,omitempty"`    // chat: "user" or "assistant"
	Content  string             `json:"content,omitempty"` // chat content
	Artifact *artifact.Artifact `json:"artifact,omitempty"`
	Message  string             `json:"message,omitempty"` // status/error text
	Level    string             `json:"level,omitempty"`   // status: "info", "warn", "error"
	TS       string             `json:"ts"`
}

// Marshal serializes an event to JSON with timestamp.
func (e Event) Marshal() []byte {
	if e.TS == "" {
		e.TS = time.Now().Format(time.RFC3339)
	}
	b, _ := json.Marshal(e)
	return b
}

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(e Event)
}

type subscriber struct {
	ch      chan Event
	done    chan struct{}
	session string // "" receives every session
}

// Bus fans out events to subscribers. Thread-safe. A subscriber that falls
// behind misses events rather than blocking the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}

	// ring buffer so new subscribers can catch up
	recent    []Event
	recentMu  sync.RWMutex
	maxRecent int
	seq       uint64 // last assigned ID, guarded by recentMu
}

// NewBus creates a bus that remembers the last maxRecent events.
func NewBus(maxRecent int) *Bus {
	if maxRecent <= 0 {
		maxRecent = 200
	}
	return &Bus{
		subscribers: make(map[*subscriber]struct{}),
		maxRecent:   maxRecent,
	}
}

// Publish sends an event to all matching subscribers. Non-blocking.
func (b *Bus) Publish(e Event) {
	if e.TS == "" {
		e.TS = time.Now().Format(time.RFC3339)
	}

	b.recentMu.Lock()
	b.seq++
	e.ID = b.seq
	b.recent = append(b.recent, e)
	if len(b.recent) > b.maxRecent {
		b.recent = b.recent[len(b.recent)-b.maxRecent:]
	}
	b.recentMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if sub.session != "" && sub.session != e.Session {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// slow subscriber, drop
		}
	}
}

// Subscribe registers a subscriber for one session, or for all sessions
// when session is "". Callers must Unsubscribe with the returned done
// channel.
func (b *Bus) Subscribe(session string) (<-chan Event, chan struct{}) {
	sub := &subscriber{
		ch:      make(chan Event, 64),
		done:    make(chan struct{}),
		session: session,
	}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	return sub.ch, sub.done
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(done chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub.done == done {
			close(sub.ch)
			delete(b.subscribers, sub)
			return
		}
	}
}

// Recent returns up to n of the latest events for session ("" for all),
// oldest first.
func (b *Bus) Recent(session string, n int) []Event {
	b.recentMu.RLock()
	defer b.recentMu.RUnlock()

	var matched []Event
	for i := len(b.recent) - 1; i >= 0; i-- {
		if n > 0 && len(matched) == n {
			break
		}
		if session == "" || b.recent[i].Session == session {
			matched = append(matched, b.recent[i])
		}
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

// SubscriberCount returns the number of connected subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
