// Package conversation runs the chat loop between a visitor and the
// assistant: it sends history to the chat provider, executes the
// directives in the reply against the artifact slot, and keeps the
// display history.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nous-labs/folio/internal/llm"
	"github.com/nous-labs/folio/pkg/artifact"
	"github.com/nous-labs/folio/pkg/directive"
	"github.com/nous-labs/folio/pkg/events"
)

// Fixed replies for provider failures.
const (
	ConnectivityMessage = "I'm having trouble connecting to deep space. Please try again in a moment."
	MissingBrainMessage = "I'm missing my brain! The chat provider is not configured."
)

const (
	recorderTimeout       = 2 * time.Second
	defaultReplyMaxTokens = 1024
)

// Message is one history entry. Only Role and Content are sent to the
// chat provider.
type Message struct {
	Seq     int       `json:"seq"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Recorder persists history and artifact changes. Implementations must be
// safe for concurrent use.
type Recorder interface {
	AppendMessages(ctx context.Context, session string, msgs []Message) error
	SaveArtifact(ctx context.Context, session string, a artifact.Artifact) error
}

// PromptFunc builds the system prompt for the latest user text.
type PromptFunc func(ctx context.Context, userText string) string

// Deps are the collaborators shared by every conversation.
type Deps struct {
	Provider    llm.Provider
	Executor    *Executor
	Prompt      PromptFunc
	Events      events.Publisher // optional
	Recorder    Recorder         // optional
	Model       string
	MaxTokens   int
	Temperature float64
}

// Snapshot is a copy of a conversation's visible state.
type Snapshot struct {
	ID       string            `json:"id"`
	History  []Message         `json:"history"`
	Artifact artifact.Artifact `json:"artifact"`
	Busy     bool              `json:"busy"`
}

// Conversation owns one history and one artifact slot. At most one
// request is in flight at a time; the mutex is never held while waiting
// on the provider.
type Conversation struct {
	id   string
	deps Deps

	mu         sync.Mutex
	history    []Message
	art        artifact.Artifact
	inFlight   bool
	lastActive time.Time
}

// New creates an empty conversation.
func New(id string, deps Deps) *Conversation {
	if deps.Provider == nil {
		deps.Provider = llm.Unconfigured{}
	}
	if deps.Executor == nil {
		deps.Executor = NewExecutor(nil, nil)
	}
	if deps.MaxTokens <= 0 {
		deps.MaxTokens = defaultReplyMaxTokens
	}
	return &Conversation{
		id:         id,
		deps:       deps,
		art:        artifact.None(),
		lastActive: time.Now(),
	}
}

func (c *Conversation) ID() string { return c.id }

// Reply is what one submission added to the conversation.
type Reply struct {
	// Messages holds the user message followed by the assistant messages.
	Messages        []Message         `json:"messages"`
	Artifact        artifact.Artifact `json:"artifact"`
	ArtifactChanged bool              `json:"artifact_changed"`
	// Failed is set when the provider call failed and the fixed
	// fallback message was used.
	Failed bool `json:"failed,omitempty"`
}

// Submit sends text and waits for the reply to be processed. It returns
// false, without touching history, when text is blank or another request
// is still in flight.
func (c *Conversation) Submit(ctx context.Context, text string) bool {
	_, ok := c.Exchange(ctx, text)
	return ok
}

// Exchange is Submit returning what the submission added.
func (c *Conversation) Exchange(ctx context.Context, text string) (Reply, bool) {
	req, ok := c.begin(ctx, text)
	if !ok {
		return Reply{}, false
	}
	return c.run(ctx, req), true
}

// SubmitAsync is Submit without waiting. The in-flight check happens
// before it returns; the returned channel closes once the reply has been
// processed. ok is false when the submission was rejected.
func (c *Conversation) SubmitAsync(ctx context.Context, text string) (done <-chan struct{}, ok bool) {
	req, ok := c.begin(ctx, text)
	if !ok {
		return nil, false
	}
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		c.run(ctx, req)
	}()
	return ch, true
}

// Busy reports whether a request is in flight.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Snapshot returns a copy of history and artifact.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := make([]Message, len(c.history))
	copy(h, c.history)
	return Snapshot{ID: c.id, History: h, Artifact: c.art, Busy: c.inFlight}
}

// Artifact returns the current artifact.
func (c *Conversation) Artifact() artifact.Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.art
}

// LastActive is when the conversation was last looked up, submitted to,
// or finished a request.
func (c *Conversation) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Conversation) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

// Restore replaces history and artifact, e.g. from a stored transcript.
// It is ignored while a request is in flight.
func (c *Conversation) Restore(history []Message, art artifact.Artifact) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.history = append([]Message(nil), history...)
	c.art = art
	return true
}

type request struct {
	user     Message
	userText string
	history  []llm.Message
}

// begin claims the in-flight flag and appends the user message.
func (c *Conversation) begin(ctx context.Context, text string) (request, bool) {
	c.mu.Lock()
	if strings.TrimSpace(text) == "" || c.inFlight {
		c.mu.Unlock()
		return request{}, false
	}
	c.inFlight = true
	c.lastActive = time.Now()
	user := c.appendLocked("user", text)
	history := make([]llm.Message, len(c.history))
	for i, m := range c.history {
		history[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	c.mu.Unlock()

	c.publish(events.Event{Type: events.TypeStatus, Message: "thinking", Level: "info"})
	c.emitMessages(ctx, []Message{user})
	return request{user: user, userText: text, history: history}, true
}

// run talks to the provider and applies the reply. It always clears the
// in-flight flag.
func (c *Conversation) run(ctx context.Context, req request) Reply {
	defer c.finish()

	start := time.Now()
	var system string
	if c.deps.Prompt != nil {
		system = c.deps.Prompt(ctx, req.userText)
	}
	resp, err := c.deps.Provider.Complete(ctx, llm.CompletionRequest{
		System:      system,
		Messages:    req.history,
		Model:       c.deps.Model,
		MaxTokens:   c.deps.MaxTokens,
		Temperature: c.deps.Temperature,
	})
	if err == nil && resp == nil {
		err = &llm.ProviderError{Message: "empty response", Provider: c.deps.Provider.Name()}
	}
	if err != nil {
		reply := ConnectivityMessage
		if llm.IsNoProvider(err) {
			reply = MissingBrainMessage
		}
		slog.Warn("chat provider failed",
			"session", c.id,
			"provider", c.deps.Provider.Name(),
			"error", err,
		)
		c.publish(events.Event{Type: events.TypeError, Message: err.Error(), Level: "error"})
		msgs := c.appendAndEmit(ctx, []string{reply})
		return Reply{
			Messages: append([]Message{req.user}, msgs...),
			Artifact: c.Artifact(),
			Failed:   true,
		}
	}

	slog.Info("reply received",
		"session", c.id,
		"provider", c.deps.Provider.Name(),
		"elapsed", time.Since(start).Round(time.Millisecond),
		"len", len(resp.Content),
	)
	msgs, changed := c.apply(ctx, resp.Content)
	return Reply{
		Messages:        append([]Message{req.user}, msgs...),
		Artifact:        c.Artifact(),
		ArtifactChanged: changed,
	}
}

// apply executes the directives in a raw reply, then appends the cleaned
// reply followed by any supplementary answers. It returns the appended
// messages and whether the artifact changed.
func (c *Conversation) apply(ctx context.Context, raw string) ([]Message, bool) {
	var (
		supplements []string
		changes     []artifact.Artifact
	)

	c.mu.Lock()
	for d := range directive.Parse(raw) {
		out := c.deps.Executor.ExecuteDirective(d, &c.art)
		if out.Changed {
			changes = append(changes, c.art)
		}
		if out.Supplement != "" {
			supplements = append(supplements, out.Supplement)
		}
	}
	c.mu.Unlock()

	for i := range changes {
		a := changes[i]
		c.publish(events.Event{Type: events.TypeArtifact, Artifact: &a})
	}
	if len(changes) > 0 && c.deps.Recorder != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recorderTimeout)
		if err := c.deps.Recorder.SaveArtifact(rctx, c.id, changes[len(changes)-1]); err != nil {
			slog.Warn("failed to record artifact", "session", c.id, "error", err)
		}
		cancel()
	}

	var contents []string
	if cleaned := strings.TrimSpace(directive.Strip(raw)); cleaned != "" {
		contents = append(contents, cleaned)
	}
	contents = append(contents, supplements...)
	return c.appendAndEmit(ctx, contents), len(changes) > 0
}

func (c *Conversation) finish() {
	c.mu.Lock()
	c.inFlight = false
	c.lastActive = time.Now()
	c.mu.Unlock()
	c.publish(events.Event{Type: events.TypeStatus, Message: "idle", Level: "info"})
}

// appendLocked appends one message. Callers hold c.mu.
func (c *Conversation) appendLocked(role, content string) Message {
	m := Message{
		Seq:     len(c.history) + 1,
		Role:    role,
		Content: content,
		At:      time.Now().UTC(),
	}
	if n := len(c.history); n > 0 {
		m.Seq = c.history[n-1].Seq + 1
	}
	c.history = append(c.history, m)
	return m
}

// appendAndEmit appends assistant messages in order.
func (c *Conversation) appendAndEmit(ctx context.Context, contents []string) []Message {
	if len(contents) == 0 {
		return nil
	}
	c.mu.Lock()
	msgs := make([]Message, 0, len(contents))
	for _, content := range contents {
		msgs = append(msgs, c.appendLocked("assistant", content))
	}
	c.mu.Unlock()
	c.emitMessages(ctx, msgs)
	return msgs
}

// emitMessages publishes and records messages already in history.
func (c *Conversation) emitMessages(ctx context.Context, msgs []Message) {
	for _, m := range msgs {
		c.publish(events.Event{Type: events.TypeChat, Role: m.Role, Content: m.Content})
	}
	if c.deps.Recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recorderTimeout)
	defer cancel()
	if err := c.deps.Recorder.AppendMessages(rctx, c.id, msgs); err != nil {
		slog.Warn("failed to record messages", "session", c.id, "count", len(msgs), "error", err)
	}
}

func (c *Conversation) publish(e events.Event) {
	if c.deps.Events == nil {
		return
	}
	e.Session = c.id
	c.deps.Events.Publish(e)
}
