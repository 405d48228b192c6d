package events

import (
	"encoding/json"
	"testing"

	"github.com/nous-labs/folio/pkg/artifact"
)

func TestPublishFiltersBySession(t *testing.T) {
	b := NewBus(10)
	aCh, aDone := b.Subscribe("a")
	allCh, allDone := b.Subscribe("")
	defer b.Unsubscribe(aDone)
	defer b.Unsubscribe(allDone)

	b.Publish(Event{Type: TypeChat, Session: "a", Content: "one"})
	b.Publish(Event{Type: TypeChat, Session: "b", Content: "two"})

	if e := <-aCh; e.Content != "one" {
		t.Errorf("a got %q, want one", e.Content)
	}
	select {
	case e := <-aCh:
		t.Errorf("a received event for session %q", e.Session)
	default:
	}
	if len(allCh) != 2 {
		t.Errorf("all-sessions subscriber has %d events, want 2", len(allCh))
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus(10)
	_, done := b.Subscribe("")
	defer b.Unsubscribe(done)

	for i := 0; i < 200; i++ {
		b.Publish(Event{Type: TypeStatus, Session: "s"})
	}
}

func TestRecent(t *testing.T) {
	b := NewBus(3)
	for _, c := range []string{"1", "2", "3", "4"} {
		b.Publish(Event{Type: TypeChat, Session: "s", Content: c})
	}
	b.Publish(Event{Type: TypeChat, Session: "other", Content: "x"})

	got := b.Recent("s", 10)
	if len(got) != 2 || got[0].Content != "3" || got[1].Content != "4" {
		t.Errorf("Recent(s) = %+v", got)
	}
	if got := b.Recent("", 1); len(got) != 1 || got[0].Content != "x" {
		t.Errorf("Recent(all, 1) = %+v", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus(0)
	ch, done := b.Subscribe("")
	b.Unsubscribe(done)
	if _, ok := <-ch; ok {
		t.Error("channel still open")
	}
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d", n)
	}
}

func TestMarshalIncludesArtifact(t *testing.T) {
	a := artifact.Gallery(nil)
	raw := Event{Type: TypeArtifact, Session: "s", Artifact: &a}.Marshal()

	var decoded struct {
		Type     string `json:"type"`
		TS       string `json:"ts"`
		Artifact struct {
			Kind string `json:"kind"`
		} `json:"artifact"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Artifact.Kind != "gallery" || decoded.TS == "" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPublishAssignsIncreasingIDs(t *testing.T) {
	b := NewBus(10)
	b.Publish(Event{Type: TypeChat, Session: "a"})
	b.Publish(Event{Type: TypeChat, Session: "b"})
	b.Publish(Event{Type: TypeChat, Session: "a", ID: 99})

	recent := b.Recent("", 0)
	for i, e := range recent {
		if want := uint64(i + 1); e.ID != want {
			t.Errorf("event %d ID = %d, want %d", i, e.ID, want)
		}
	}
}
