// Package channel defines chat surfaces other than the website that can
// host the portfolio assistant, such as a Matrix room.
package channel

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Message is an incoming message from a channel.
type Message struct {
	// Source identifies the channel, e.g. "matrix".
	Source string

	SenderID string
	RoomID   string
	Content  string

	// Timestamp in milliseconds.
	Timestamp int64
}

// SessionID is the conversation id used for a room on a channel.
func (m Message) SessionID() string {
	return SessionID(m.Source, m.RoomID)
}

// SessionID joins a channel name and room id into a conversation id.
func SessionID(source, room string) string {
	return source + ":" + room
}

// Response is an outgoing message.
type Response struct {
	RoomID  string
	Content string

	// Notice marks status lines such as artifact changes. Channels that
	// support it render these less prominently than chat replies.
	Notice bool
}

// Channel is a chat surface.
type Channel interface {
	// Name returns the channel identifier, e.g. "matrix".
	Name() string

	// Start begins listening. Blocks until ctx is cancelled.
	Start(ctx context.Context, handler MessageHandler) error

	// Send sends a response to a room.
	Send(ctx context.Context, resp Response) error

	// Stop shuts the channel down.
	Stop() error
}

// Typer is implemented by channels that can show a typing indicator.
type Typer interface {
	SetTyping(ctx context.Context, roomID string, typing bool) error
}

// MessageHandler is called for every accepted incoming message.
type MessageHandler func(ctx context.Context, msg Message) error

// Split breaks s into chunks of at most maxLen bytes, preferring line
// breaks and never cutting a UTF-8 sequence.
func Split(s string, maxLen int) []string {
	if maxLen <= 0 || len(s) <= maxLen {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	var chunks []string
	for len(s) > maxLen {
		cut := strings.LastIndexByte(s[:maxLen], '\n')
		if cut <= 0 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
		}
		chunks = append(chunks, s[:cut])
		s = strings.TrimPrefix(s[cut:], "\n")
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}
