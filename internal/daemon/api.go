package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nous-labs/folio/internal/conversation"
	"github.com/nous-labs/folio/pkg/artifact"
	"github.com/nous-labs/folio/pkg/events"
	"github.com/nous-labs/folio/pkg/gallery"
	"github.com/nous-labs/folio/pkg/render"
)

const (
	maxMessageBytes    = 16 << 10
	defaultSearchLimit = 5
	maxSearchLimit     = 20
	recentEventReplay  = 50
)

// Handler returns the HTTP API:
//
//	GET  /health                         liveness and counters
//	POST /v1/sessions                    start a conversation
//	GET  /v1/sessions/{id}               history with rendered segments, artifact
//	POST /v1/sessions/{id}/messages      send a message, get what it added
//	GET  /v1/sessions/{id}/events        SSE stream of session updates
//	GET  /v1/projects                    every project
//	GET  /v1/projects/search?q=          hybrid project search
//	GET  /v1/projects/{id}               one project
//	GET  /v1/answer?topic=&question=     FAQ answer without the chat provider
//	GET  /v1/prompts?set=                starter prompts
//	GET  /images, /images.json           gallery listing, when configured
func (d *Daemon) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /health", d.handleHealth)
	api.HandleFunc("POST /v1/sessions", d.handleCreateSession)
	api.HandleFunc("GET /v1/sessions/{id}", d.handleGetSession)
	api.HandleFunc("POST /v1/sessions/{id}/messages", d.handleSendMessage)
	api.HandleFunc("GET /v1/sessions/{id}/events", d.handleSessionEvents)
	api.HandleFunc("GET /v1/projects", d.handleProjects)
	api.HandleFunc("GET /v1/projects/search", d.handleProjectSearch)
	api.HandleFunc("GET /v1/projects/{id}", d.handleProject)
	api.HandleFunc("GET /v1/answer", d.handleAnswer)
	api.HandleFunc("GET /v1/prompts", d.handlePrompts)

	root := http.NewServeMux()
	if d.gallery != nil {
		// The gallery sets its own CORS headers.
		images := gallery.NewHandler(d.gallery)
		root.Handle("/images", images)
		root.Handle("/images.json", images)
	}
	root.Handle("/", d.cors(api))
	return root
}

// cors allows the configured origins, or any origin when none are set,
// and answers preflight requests.
func (d *Daemon) cors(next http.Handler) http.Handler {
	allowed := d.config.HTTP.AllowedOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (len(allowed) == 0 || slices.Contains(allowed, origin)) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Health ---

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if !d.healthy.Load() {
		status, code = "starting", http.StatusServiceUnavailable
	}
	resp := map[string]any{
		"status":   status,
		"name":     d.config.Name,
		"uptime":   time.Since(d.startedAt).Round(time.Second).String(),
		"provider": d.provider.Name(),
		"sessions": d.sessions.Len(),
		"projects": len(d.catalog.Projects()),
		"gallery":  d.gallery != nil,
	}
	if d.store != nil {
		resp["transcripts"] = d.store.Stats(r.Context())
	}
	if d.janitor != nil {
		if rep := d.janitor.LastReport(); rep != nil {
			resp["janitor"] = rep
		}
	}
	d.embedMu.RLock()
	resp["project_index"] = d.embedStore != nil
	d.embedMu.RUnlock()
	writeJSON(w, code, resp)
}

// --- Sessions ---

// messageView is a history entry with its display segments resolved.
type messageView struct {
	conversation.Message
	Segments []render.Segment `json:"segments,omitempty"`
}

type sessionView struct {
	ID       string            `json:"id"`
	History  []messageView     `json:"history"`
	Artifact artifact.Artifact `json:"artifact"`
	Busy     bool              `json:"busy"`
}

type replyView struct {
	Messages        []messageView     `json:"messages"`
	Artifact        artifact.Artifact `json:"artifact"`
	ArtifactChanged bool              `json:"artifact_changed"`
	Failed          bool              `json:"failed,omitempty"`
}

// views renders assistant messages into segments. User text is shown as
// typed.
func (d *Daemon) views(msgs []conversation.Message) []messageView {
	out := make([]messageView, len(msgs))
	for i, m := range msgs {
		out[i] = messageView{Message: m}
		if m.Role == "assistant" {
			out[i].Segments = d.renderer.Collect(m.Content)
		}
	}
	return out
}

func (d *Daemon) sessionView(snap conversation.Snapshot) sessionView {
	return sessionView{
		ID:       snap.ID,
		History:  d.views(snap.History),
		Artifact: snap.Artifact,
		Busy:     snap.Busy,
	}
}

func (d *Daemon) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	conv := d.sessions.Create()
	if d.store != nil {
		if err := d.store.EnsureSession(r.Context(), conv.ID(), "http"); err != nil {
			slog.Warn("failed to record session", "session", conv.ID(), "error", err)
		}
	}
	slog.Info("session created", "session", conv.ID(), "remote", r.RemoteAddr)
	writeJSON(w, http.StatusCreated, d.sessionView(conv.Snapshot()))
}

func (d *Daemon) handleGetSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := d.sessions.Get(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, d.sessionView(conv.Snapshot()))
}

// messageRequest is the JSON body for POST /v1/sessions/{id}/messages.
type messageRequest struct {
	Message string `json:"message"`
}

func (d *Daemon) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "missing message field")
		return
	}

	conv, ok := d.sessions.Get(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	reply, ok := conv.Exchange(r.Context(), req.Message)
	if !ok {
		writeError(w, http.StatusConflict, "a reply is still in progress")
		return
	}
	writeJSON(w, http.StatusOK, replyView{
		Messages:        d.views(reply.Messages),
		Artifact:        reply.Artifact,
		ArtifactChanged: reply.ArtifactChanged,
		Failed:          reply.Failed,
	})
}

// handleSessionEvents streams one session's events as SSE, replaying the
// recent ones first. Live events already covered by the replay are
// skipped, so each event is sent at most once.
func (d *Daemon) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := d.sessions.Get(r.Context(), id); !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	ch, done := d.events.Subscribe(id)
	defer d.events.Unsubscribe(done)

	slog.Debug("SSE client connected", "session", id, "subscribers", d.events.SubscriberCount())

	streamEvents(r.Context(), w, flusher, d.events.Recent(id, recentEventReplay), ch)
	slog.Debug("SSE client disconnected", "session", id)
}

// streamEvents writes replay, then live events from ch until ctx ends or
// ch closes. Live events with an ID already replayed are dropped; they
// were published between subscribing and reading the replay.
func streamEvents(ctx context.Context, w io.Writer, flusher http.Flusher, replay []events.Event, ch <-chan events.Event) {
	var last uint64
	for _, e := range replay {
		writeEvent(w, e)
		last = e.ID
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if evt.ID <= last {
				continue
			}
			writeEvent(w, evt)
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, e events.Event) {
	fmt.Fprintf(w, "id: %d\ndata: %s\n\n", e.ID, e.Marshal())
}

// --- Catalog ---

func (d *Daemon) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects := d.catalog.Projects()
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
		"count":    len(projects),
	})
}

func (d *Daemon) handleProject(w http.ResponseWriter, r *http.Request) {
	p, ok := d.catalog.Project(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (d *Daemon) handleProjectSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	projects, err := d.SearchProjects(r.Context(), q, limit)
	if err != nil {
		slog.Warn("project search failed", "query", q, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":    q,
		"projects": projects,
		"count":    len(projects),
	})
}

func (d *Daemon) handleAnswer(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	question := r.URL.Query().Get("question")
	writeJSON(w, http.StatusOK, map[string]any{
		"topic":  d.answers.Resolve(topic, question),
		"answer": d.answers.Answer(topic, question),
	})
}

func (d *Daemon) handlePrompts(w http.ResponseWriter, r *http.Request) {
	sets := starterPrompts(d.config.Catalog.Prompts, d.catalog)
	n, err := strconv.Atoi(r.URL.Query().Get("set"))
	if err != nil || n < 0 {
		n = 0
	}
	n %= len(sets)
	writeJSON(w, http.StatusOK, map[string]any{
		"set":     n,
		"sets":    len(sets),
		"prompts": sets[n],
	})
}
