package daemon

import (
	"context"
	"log/slog"

	"github.com/nous-labs/folio/pkg/channel"
)

// busyNotice is sent when a room speaks while its last request is running.
const busyNotice = "Still working on your last message."

// onChannelMessage returns the handler that routes channel messages into
// per-room conversations and sends the replies back as plain text.
func (d *Daemon) onChannelMessage(ch channel.Channel) channel.MessageHandler {
	typer, _ := ch.(channel.Typer)

	return func(ctx context.Context, msg channel.Message) error {
		session := msg.SessionID()
		conv := d.sessions.GetOrCreate(ctx, session)
		if d.store != nil {
			if err := d.store.EnsureSession(ctx, session, msg.Source); err != nil {
				slog.Warn("failed to record session", "session", session, "error", err)
			}
		}

		if typer != nil {
			if err := typer.SetTyping(ctx, msg.RoomID, true); err != nil {
				slog.Debug("typing indicator failed", "room", msg.RoomID, "error", err)
			}
			defer func() {
				if err := typer.SetTyping(context.WithoutCancel(ctx), msg.RoomID, false); err != nil {
					slog.Debug("typing indicator failed", "room", msg.RoomID, "error", err)
				}
			}()
		}

		reply, ok := conv.Exchange(ctx, msg.Content)
		if !ok {
			if conv.Busy() {
				return ch.Send(ctx, channel.Response{RoomID: msg.RoomID, Content: busyNotice, Notice: true})
			}
			return nil
		}

		// The first message is the user's own.
		for _, m := range reply.Messages[1:] {
			text := d.renderer.PlainText(m.Content)
			if text == "" {
				continue
			}
			if err := ch.Send(ctx, channel.Response{RoomID: msg.RoomID, Content: text}); err != nil {
				return err
			}
		}
		if reply.ArtifactChanged {
			return ch.Send(ctx, channel.Response{
				RoomID:  msg.RoomID,
				Content: reply.Artifact.Describe(),
				Notice:  true,
			})
		}
		return nil
	}
}
