package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/nous-labs/folio/internal/llm"
	"github.com/nous-labs/folio/pkg/artifact"
	"github.com/nous-labs/folio/pkg/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProvider returns a fixed reply. When gate is set it waits for the
// gate to close first.
type fakeProvider struct {
	reply string
	err   error
	gate  chan struct{}

	mu       sync.Mutex
	requests []llm.CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply}, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	messages []Message
	last     artifact.Artifact
	saves    int
}

func (r *fakeRecorder) AppendMessages(_ context.Context, _ string, msgs []Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msgs...)
	return nil
}

func (r *fakeRecorder) SaveArtifact(_ context.Context, _ string, a artifact.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = a
	r.saves++
	return nil
}

func roles(h []Message) []string {
	out := make([]string, len(h))
	for i, m := range h {
		out[i] = m.Role + ":" + m.Content
	}
	return out
}

func TestGalleryScenario(t *testing.T) {
	p := &fakeProvider{reply: "Sure! {{TOOL:open_artifact:type=gallery}}"}
	c := New("s1", Deps{
		Provider: p,
		Executor: NewExecutor(testCatalog(t), nil),
		Prompt:   func(context.Context, string) string { return "system prompt" },
	})

	if !c.Submit(context.Background(), "show me some pictures") {
		t.Fatal("Submit rejected")
	}

	snap := c.Snapshot()
	want := []string{"user:show me some pictures", "assistant:Sure!"}
	if diff := cmp.Diff(want, roles(snap.History)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	g, ok := snap.Artifact.Gallery()
	if snap.Artifact.Kind() != artifact.KindGallery || !ok {
		t.Fatalf("artifact = %q", snap.Artifact.Kind())
	}
	if g.Images == nil || len(g.Images) != 0 {
		t.Errorf("images = %#v, want empty", g.Images)
	}

	if len(p.requests) != 1 {
		t.Fatalf("provider called %d times", len(p.requests))
	}
	req := p.requests[0]
	if req.System != "system prompt" {
		t.Errorf("System = %q", req.System)
	}
	if diff := cmp.Diff([]llm.Message{{Role: "user", Content: "show me some pictures"}}, req.Messages); diff != "" {
		t.Errorf("request messages mismatch (-want +got):\n%s", diff)
	}
	if snap.Busy || c.Busy() {
		t.Error("still busy after Submit")
	}
}

func TestSupplementsFollowReply(t *testing.T) {
	p := &fakeProvider{reply: "Here you go {{TOOL:answer_about_me:topic=contact}} {{TOOL:close_artifact}}"}
	c := New("s1", Deps{Provider: p, Executor: NewExecutor(testCatalog(t), nil)})

	c.Submit(context.Background(), "how do I reach Ada?")
	want := []string{
		"user:how do I reach Ada?",
		"assistant:Here you go",
		"assistant:You can reach Ada at **ada@example.com**.",
	}
	if diff := cmp.Diff(want, roles(c.Snapshot().History)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestDirectiveOnlyReply(t *testing.T) {
	p := &fakeProvider{reply: "  {{TOOL:open_artifact:type=contact}}\n"}
	c := New("s1", Deps{Provider: p})

	c.Submit(context.Background(), "contact form please")
	snap := c.Snapshot()
	if len(snap.History) != 1 {
		t.Errorf("history = %v, want only the user message", roles(snap.History))
	}
	if snap.Artifact.Kind() != artifact.KindContact {
		t.Errorf("artifact = %q, want contact", snap.Artifact.Kind())
	}
}

func TestDisplayProjectKeptForRenderer(t *testing.T) {
	p := &fakeProvider{reply: "Genesis: {{DISPLAY_PROJECT:genesis}}"}
	c := New("s1", Deps{Provider: p})

	c.Submit(context.Background(), "tell me about genesis")
	h := c.Snapshot().History
	if got := h[len(h)-1].Content; got != "Genesis: {{DISPLAY_PROJECT:genesis}}" {
		t.Errorf("assistant content = %q", got)
	}
}

func TestBlankSubmitRejected(t *testing.T) {
	p := &fakeProvider{reply: "hi"}
	c := New("s1", Deps{Provider: p})
	for _, text := range []string{"", "   ", "\n\t"} {
		if c.Submit(context.Background(), text) {
			t.Errorf("Submit(%q) accepted", text)
		}
	}
	if n := len(c.Snapshot().History); n != 0 {
		t.Errorf("history length = %d, want 0", n)
	}
	if len(p.requests) != 0 {
		t.Errorf("provider called %d times", len(p.requests))
	}
}

func TestSubmitWhileInFlightIsNoop(t *testing.T) {
	p := &fakeProvider{reply: "done", gate: make(chan struct{})}
	c := New("s1", Deps{Provider: p})

	done, ok := c.SubmitAsync(context.Background(), "first")
	if !ok {
		t.Fatal("first submission rejected")
	}
	if !c.Busy() {
		t.Error("Busy() = false while in flight")
	}

	if c.Submit(context.Background(), "second") {
		t.Error("second Submit accepted while in flight")
	}
	if _, ok := c.SubmitAsync(context.Background(), "third"); ok {
		t.Error("third SubmitAsync accepted while in flight")
	}
	if n := len(c.Snapshot().History); n != 1 {
		t.Errorf("history length = %d while in flight, want 1", n)
	}

	close(p.gate)
	<-done

	want := []string{"user:first", "assistant:done"}
	if diff := cmp.Diff(want, roles(c.Snapshot().History)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if !c.Submit(context.Background(), "fourth") {
		t.Error("Submit rejected after the first request finished")
	}
}

func TestProviderFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"network", errors.New("dial tcp: connection refused"), ConnectivityMessage},
		{"http", &llm.ProviderError{Provider: "zai", StatusCode: 500, Message: "HTTP 500"}, ConnectivityMessage},
		{"unconfigured", llm.ErrNoProvider, MissingBrainMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("s1", Deps{Provider: &fakeProvider{err: tt.err}})
			c.Submit(context.Background(), "hello")

			want := []string{"user:hello", "assistant:" + tt.want}
			if diff := cmp.Diff(want, roles(c.Snapshot().History)); diff != "" {
				t.Errorf("history mismatch (-want +got):\n%s", diff)
			}
			if c.Busy() {
				t.Error("in-flight flag not cleared")
			}
		})
	}
}

func TestNilProviderMeansMissingBrain(t *testing.T) {
	c := New("s1", Deps{})
	c.Submit(context.Background(), "hello")
	h := c.Snapshot().History
	if len(h) != 2 || h[1].Content != MissingBrainMessage {
		t.Errorf("history = %v", roles(h))
	}
}

func TestEventsAndRecorder(t *testing.T) {
	bus := events.NewBus(50)
	rec := &fakeRecorder{}
	p := &fakeProvider{reply: "Sure! {{TOOL:open_artifact:type=gallery}}"}
	c := New("s1", Deps{Provider: p, Events: bus, Recorder: rec})

	c.Submit(context.Background(), "pictures")

	var kinds []string
	for _, e := range bus.Recent("s1", 0) {
		kinds = append(kinds, e.Type)
	}
	want := []string{
		events.TypeStatus, events.TypeChat, events.TypeArtifact, events.TypeChat, events.TypeStatus,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("event types mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"user:pictures", "assistant:Sure!"}, roles(rec.messages)); diff != "" {
		t.Errorf("recorded messages mismatch (-want +got):\n%s", diff)
	}
	if rec.saves != 1 || rec.last.Kind() != artifact.KindGallery {
		t.Errorf("recorded artifact = %q after %d saves", rec.last.Kind(), rec.saves)
	}
	if rec.messages[0].Seq != 1 || rec.messages[1].Seq != 2 {
		t.Errorf("seq = %d, %d", rec.messages[0].Seq, rec.messages[1].Seq)
	}
}

func TestRestore(t *testing.T) {
	p := &fakeProvider{reply: "welcome back"}
	c := New("s1", Deps{Provider: p})
	c.Restore([]Message{
		{Seq: 1, Role: "user", Content: "hi"},
		{Seq: 2, Role: "assistant", Content: "hello"},
	}, artifact.Contact())

	c.Submit(context.Background(), "again")
	snap := c.Snapshot()
	if snap.Artifact.Kind() != artifact.KindContact {
		t.Errorf("artifact = %q", snap.Artifact.Kind())
	}
	if got := snap.History[len(snap.History)-1].Seq; got != 4 {
		t.Errorf("last seq = %d, want 4", got)
	}
	if n := len(p.requests[0].Messages); n != 3 {
		t.Errorf("sent %d messages, want full history of 3", n)
	}
}

func TestExchangeReturnsAddedMessages(t *testing.T) {
	p := &fakeProvider{reply: "Contact card is up {{TOOL:open_artifact:type=contact}}"}
	c := New("s1", Deps{Provider: p, Executor: NewExecutor(testCatalog(t), nil)})
	c.Submit(context.Background(), "hello")

	reply, ok := c.Exchange(context.Background(), "how do I reach you?")
	if !ok {
		t.Fatal("Exchange rejected")
	}
	want := []string{"user:how do I reach you?", "assistant:Contact card is up"}
	if diff := cmp.Diff(want, roles(reply.Messages)); diff != "" {
		t.Errorf("reply messages mismatch (-want +got):\n%s", diff)
	}
	if reply.Messages[0].Seq != 3 {
		t.Errorf("first seq = %d, want 3", reply.Messages[0].Seq)
	}
	if !reply.ArtifactChanged || reply.Artifact.Kind() != artifact.KindContact {
		t.Errorf("artifact = %q changed=%v", reply.Artifact.Kind(), reply.ArtifactChanged)
	}
	if reply.Failed {
		t.Error("Failed set on success")
	}

	if _, ok := c.Exchange(context.Background(), "   "); ok {
		t.Error("blank text accepted")
	}
}

func TestExchangeReportsProviderFailure(t *testing.T) {
	c := New("s1", Deps{Provider: &fakeProvider{err: errors.New("boom")}})
	reply, ok := c.Exchange(context.Background(), "hi")
	if !ok || !reply.Failed {
		t.Fatalf("ok=%v failed=%v", ok, reply.Failed)
	}
	want := []string{"user:hi", "assistant:" + ConnectivityMessage}
	if diff := cmp.Diff(want, roles(reply.Messages)); diff != "" {
		t.Errorf("reply messages mismatch (-want +got):\n%s", diff)
	}
	if reply.ArtifactChanged {
		t.Error("artifact changed on failure")
	}
}
