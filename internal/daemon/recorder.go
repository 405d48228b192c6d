package daemon

import (
	"context"

	"github.com/nous-labs/folio/internal/conversation"
	"github.com/nous-labs/folio/pkg/artifact"
	"github.com/nous-labs/folio/pkg/transcript"
)

// recorder adapts the transcript store to conversation.Recorder.
type recorder struct {
	store *transcript.Store
}

func (r recorder) AppendMessages(ctx context.Context, session string, msgs []conversation.Message) error {
	out := make([]transcript.Message, len(msgs))
	for i, m := range msgs {
		out[i] = transcript.Message{Seq: m.Seq, Role: m.Role, Content: m.Content, At: m.At}
	}
	return r.store.AppendMessages(ctx, session, out)
}

func (r recorder) SaveArtifact(ctx context.Context, session string, a artifact.Artifact) error {
	return r.store.SaveArtifact(ctx, session, a)
}

// loadTranscript restores registry sessions from the store.
func loadTranscript(store *transcript.Store) conversation.Loader {
	return func(ctx context.Context, id string) ([]conversation.Message, artifact.Artifact, bool, error) {
		t, found, err := store.Load(ctx, id)
		if err != nil || !found {
			return nil, artifact.None(), false, err
		}
		history := make([]conversation.Message, len(t.Messages))
		for i, m := range t.Messages {
			history[i] = conversation.Message{Seq: m.Seq, Role: m.Role, Content: m.Content, At: m.At}
		}
		return history, t.Artifact, true, nil
	}
}
