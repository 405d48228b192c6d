// Package matrix runs the portfolio assistant as a Matrix bot using
// mautrix-go. Each room it is invited to gets its own conversation.
package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/nous-labs/folio/pkg/channel"
)

const (
	maxMessageLen = 4000
	typingTimeout = 30 * time.Second
)

// Config holds Matrix channel configuration.
type Config struct {
	Homeserver   string
	UserID       string // localpart, e.g. "folio"
	Password     string
	ServerName   string // e.g. "matrix.example.com"
	AllowedUsers []string
	DataDir      string
}

// Channel implements channel.Channel and channel.Typer for Matrix.
type Channel struct {
	config    Config
	client    *mautrix.Client
	handler   channel.MessageHandler
	startTime int64
	credFile  string
}

// credentials holds saved login state.
type credentials struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	DeviceID    string `json:"device_id"`
}

// New creates a Matrix channel.
func New(cfg Config) *Channel {
	return &Channel{
		config:   cfg,
		credFile: filepath.Join(cfg.DataDir, "matrix_credentials.json"),
	}
}

// Name returns "matrix".
func (c *Channel) Name() string { return "matrix" }

// Start logs in and syncs until ctx is cancelled, reconnecting on errors.
func (c *Channel) Start(ctx context.Context, handler channel.MessageHandler) error {
	c.handler = handler
	c.startTime = time.Now().UnixMilli()

	if err := os.MkdirAll(c.config.DataDir, 0o755); err != nil {
		return fmt.Errorf("create matrix data dir: %w", err)
	}

	fullUserID := fmt.Sprintf("@%s:%s", c.config.UserID, c.config.ServerName)
	client, err := mautrix.NewClient(c.config.Homeserver, id.UserID(fullUserID), "")
	if err != nil {
		return fmt.Errorf("create matrix client: %w", err)
	}
	c.client = client
	// in-memory sync state; a restart resyncs from now
	client.Store = mautrix.NewMemorySyncStore()

	if err := c.loginWithRetry(ctx, fullUserID); err != nil {
		return err
	}

	syncer := client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.onMessage)
	syncer.OnEventType(event.StateMember, c.onMemberEvent)

	slog.Info("matrix channel ready, starting sync", "user", fullUserID)

	for {
		err := client.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			slog.Warn("matrix sync error, reconnecting in 15s", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(15 * time.Second):
			}
		}
	}
}

// loginWithRetry tries saved credentials, then password login with
// exponential backoff.
func (c *Channel) loginWithRetry(ctx context.Context, fullUserID string) error {
	if err := c.loadCredentials(); err == nil {
		slog.Info("loaded saved Matrix credentials", "user", fullUserID)
		return nil
	}

	backoff := 2 * time.Second
	const (
		maxBackoff  = 2 * time.Minute
		maxAttempts = 10
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		slog.Info("logging into Matrix",
			"user", fullUserID,
			"homeserver", c.config.Homeserver,
			"attempt", attempt,
		)

		resp, err := c.client.Login(ctx, &mautrix.ReqLogin{
			Type: mautrix.AuthTypePassword,
			Identifier: mautrix.UserIdentifier{
				Type: mautrix.IdentifierTypeUser,
				User: c.config.UserID,
			},
			Password:                 c.config.Password,
			InitialDeviceDisplayName: "folio",
			StoreCredentials:         true,
		})
		if err == nil {
			slog.Info("logged into Matrix", "user", resp.UserID, "device", resp.DeviceID)
			if err := c.saveCredentials(credentials{
				AccessToken: resp.AccessToken,
				UserID:      string(resp.UserID),
				DeviceID:    string(resp.DeviceID),
			}); err != nil {
				slog.Warn("could not save Matrix credentials", "error", err)
			}
			return nil
		}

		if nonRetryable(err) {
			return fmt.Errorf("matrix login: %w (non-retryable)", err)
		}
		if attempt == maxAttempts {
			return fmt.Errorf("matrix login: %w (after %d attempts)", err, maxAttempts)
		}

		slog.Warn("matrix login failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
	return fmt.Errorf("matrix login: exhausted retries")
}

func nonRetryable(err error) bool {
	s := err.Error()
	for _, code := range []string{"M_FORBIDDEN", "M_UNKNOWN_TOKEN", "M_INVALID_PARAM", "M_USER_DEACTIVATED"} {
		if strings.Contains(s, code) {
			return true
		}
	}
	return false
}

// Send posts a reply or notice, splitting long content.
func (c *Channel) Send(ctx context.Context, resp channel.Response) error {
	roomID := id.RoomID(resp.RoomID)
	chunks := channel.Split(resp.Content, maxMessageLen)

	for i, chunk := range chunks {
		if len(chunks) > 1 {
			chunk = fmt.Sprintf("[%d/%d] %s", i+1, len(chunks), chunk)
		}
		var err error
		if resp.Notice {
			_, err = c.client.SendNotice(ctx, roomID, chunk)
		} else {
			_, err = c.client.SendText(ctx, roomID, chunk)
		}
		if err != nil {
			slog.Error("matrix send failed", "room", roomID, "chunk", i+1, "error", err)
			return fmt.Errorf("send to %s: %w", roomID, err)
		}
		if i < len(chunks)-1 {
			time.Sleep(500 * time.Millisecond)
		}
	}
	slog.Debug("matrix message sent", "room", roomID, "chunks", len(chunks), "notice", resp.Notice)
	return nil
}

// SetTyping toggles the typing indicator in a room.
func (c *Channel) SetTyping(ctx context.Context, roomID string, typing bool) error {
	_, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, typingTimeout)
	return err
}

// Stop stops syncing.
func (c *Channel) Stop() error {
	if c.client != nil {
		c.client.StopSync()
	}
	return nil
}

func (c *Channel) onMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == c.client.UserID || evt.Timestamp < c.startTime {
		return
	}
	if !isAllowed(c.config.AllowedUsers, evt.Sender) {
		return
	}

	content := evt.Content.AsMessage()
	// notices are other bots talking; answering them loops
	if content == nil || content.Body == "" || content.MsgType == event.MsgNotice {
		return
	}

	slog.Info("matrix message received",
		"sender", evt.Sender,
		"room", evt.RoomID,
		"content", truncate(content.Body, 100),
	)

	msg := channel.Message{
		Source:    c.Name(),
		SenderID:  string(evt.Sender),
		RoomID:    string(evt.RoomID),
		Content:   content.Body,
		Timestamp: evt.Timestamp,
	}
	if err := c.handler(ctx, msg); err != nil {
		slog.Error("message handler error", "room", evt.RoomID, "error", err)
	}
}

func (c *Channel) onMemberEvent(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != string(c.client.UserID) {
		return
	}
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite {
		return
	}
	if !isAllowed(c.config.AllowedUsers, evt.Sender) {
		slog.Warn("rejecting invite from unauthorized user", "sender", evt.Sender)
		return
	}

	slog.Info("accepting room invite", "room", evt.RoomID, "from", evt.Sender)
	if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		slog.Error("failed to join room", "room", evt.RoomID, "error", err)
	}
}

func (c *Channel) loadCredentials() error {
	data, err := os.ReadFile(c.credFile)
	if err != nil {
		return err
	}
	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}
	if creds.AccessToken == "" {
		return fmt.Errorf("no access token in %s", c.credFile)
	}
	c.client.AccessToken = creds.AccessToken
	c.client.UserID = id.UserID(creds.UserID)
	c.client.DeviceID = id.DeviceID(creds.DeviceID)
	return nil
}

func (c *Channel) saveCredentials(creds credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.credFile, data, 0o600)
}

// isAllowed reports whether sender may talk to the bot. An empty list
// allows everyone.
func isAllowed(allowed []string, sender id.UserID) bool {
	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "") {
		return true
	}
	for _, u := range allowed {
		if string(sender) == strings.TrimSpace(u) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
