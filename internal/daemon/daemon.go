// Package daemon wires the portfolio assistant together: catalog, chat
// provider, conversations, persistence, the optional project index,
// gallery and Matrix channel, and the HTTP API that serves them.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nous-labs/folio/internal/channel/matrix"
	"github.com/nous-labs/folio/internal/conversation"
	"github.com/nous-labs/folio/internal/llm"
	"github.com/nous-labs/folio/pkg/answer"
	"github.com/nous-labs/folio/pkg/catalog"
	"github.com/nous-labs/folio/pkg/embeddings"
	"github.com/nous-labs/folio/pkg/events"
	"github.com/nous-labs/folio/pkg/gallery"
	"github.com/nous-labs/folio/pkg/janitor"
	"github.com/nous-labs/folio/pkg/render"
	"github.com/nous-labs/folio/pkg/transcript"
)

const (
	// projectIndexRetries and projectIndexRetryInterval bound the background
	// reconnect to pgvector, about ten minutes in total.
	projectIndexRetries       = 20
	projectIndexRetryInterval = 30 * time.Second
)

// Daemon is the folio process.
type Daemon struct {
	config    *Config
	catalog   *catalog.Catalog
	answers   *answer.Engine
	renderer  *render.Renderer
	provider  llm.Provider
	prompts   *conversation.PromptBuilder
	sessions  *conversation.Registry
	events    *events.Bus
	store     *transcript.Store // nil when persistence is off or unavailable
	gallery   *gallery.Lister   // nil when not configured
	matrix    *matrix.Channel   // nil when not configured
	janitor   *janitor.Worker   // nil when disabled
	startedAt time.Time
	healthy   atomic.Bool

	// Project index (optional, requires pgvector + TEI). The searcher is
	// swapped in once the store connects.
	embedMu    sync.RWMutex
	embedStore *embeddings.Store
	tei        *embeddings.TEIClient
	search     *embeddings.Searcher
}

// New builds a daemon from cfg. Only the catalog is required; every other
// subsystem logs a warning and stays off when it cannot start.
func New(cfg *Config) (*Daemon, error) {
	c, err := catalog.Load(cfg.Catalog.ProfilePath, cfg.Catalog.ProjectsPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return newDaemon(cfg, c, NewProvider(cfg.LLM)), nil
}

// newDaemon wires a daemon around an already loaded catalog and provider.
func newDaemon(cfg *Config, c *catalog.Catalog, provider llm.Provider) *Daemon {
	d := &Daemon{
		config:    cfg,
		catalog:   c,
		answers:   answer.New(c.Profile),
		renderer:  render.New(c),
		provider:  provider,
		events:    events.NewBus(500),
		startedAt: time.Now(),
	}
	d.search = embeddings.NewSearcher(c, nil, nil)
	d.prompts = conversation.NewPromptBuilder(c, d)

	if !cfg.State.Disabled {
		store, err := transcript.Open(cfg.State.Path)
		if err != nil {
			slog.Warn("transcript store unavailable, sessions will not survive restarts",
				"path", cfg.State.Path, "error", err)
		} else {
			d.store = store
		}
	}

	deps := conversation.Deps{
		Provider:    provider,
		Executor:    conversation.NewExecutor(c, d.answers),
		Prompt:      d.prompts.Func(),
		Events:      d.events,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	var loader conversation.Loader
	if d.store != nil {
		deps.Recorder = recorder{store: d.store}
		loader = loadTranscript(d.store)
	}
	d.sessions = conversation.NewRegistry(deps, loader)

	if cfg.Gallery.Enabled {
		bucket, err := gallery.NewS3Bucket(gallery.S3Config{
			Endpoint:        cfg.Gallery.Endpoint,
			Region:          cfg.Gallery.Region,
			Bucket:          cfg.Gallery.Bucket,
			AccessKeyID:     cfg.Gallery.AccessKeyID,
			SecretAccessKey: cfg.Gallery.SecretAccessKey,
		})
		if err != nil {
			slog.Warn("gallery disabled", "error", err)
		} else {
			d.gallery = gallery.NewLister(bucket, cfg.Gallery.PublicBaseURL)
			slog.Info("gallery configured", "bucket", cfg.Gallery.Bucket, "base_url", cfg.Gallery.PublicBaseURL)
		}
	}

	if cfg.Matrix.Enabled {
		if cfg.Matrix.Homeserver == "" || cfg.Matrix.ServerName == "" {
			slog.Warn("matrix enabled but missing config",
				"has_homeserver", cfg.Matrix.Homeserver != "",
				"has_server_name", cfg.Matrix.ServerName != "",
			)
		} else {
			d.matrix = matrix.New(matrix.Config{
				Homeserver:   cfg.Matrix.Homeserver,
				UserID:       cfg.Matrix.UserID,
				Password:     cfg.Matrix.Password,
				ServerName:   cfg.Matrix.ServerName,
				AllowedUsers: cfg.Matrix.AllowedUsers,
				DataDir:      cfg.Matrix.DataDir,
			})
		}
	}

	if !cfg.Janitor.Disabled {
		var pruner janitor.Pruner
		if d.store != nil {
			pruner = d.store
		}
		d.janitor = janitor.NewWorker(d.sessions, pruner, janitor.Config{
			Interval:   duration("janitor.interval", cfg.Janitor.Interval, 10*time.Minute),
			IdleAfter:  duration("janitor.idle_after", cfg.Janitor.IdleAfter, 30*time.Minute),
			RetainFor:  duration("janitor.retain_for", cfg.Janitor.RetainFor, 30*24*time.Hour),
			StartDelay: time.Minute,
		})
	}

	// If pgvector is not ready yet (startup race), Run retries in the background.
	if cfg.Embeddings.Enabled && cfg.Embeddings.PostgresURL != "" && cfg.Embeddings.TEIURL != "" {
		if !d.tryInitProjectIndex() {
			slog.Info("project index will retry in background when pgvector becomes available")
		}
	} else if cfg.Embeddings.Enabled {
		slog.Warn("project index enabled but missing config",
			"has_pg_url", cfg.Embeddings.PostgresURL != "",
			"has_tei_url", cfg.Embeddings.TEIURL != "",
		)
	}
	return d
}

// NewProvider builds the chat provider for cfg. A missing API key yields
// llm.Unconfigured so conversations can report it.
func NewProvider(cfg LLMConfig) llm.Provider {
	if cfg.APIKey == "" && cfg.KeyFile != "" {
		cfg.APIKey = keyFromFile(cfg.KeyFile, cfg.Provider)
	}
	if cfg.APIKey == "" {
		slog.Warn("no chat provider API key configured, replies will report a missing provider",
			"provider", cfg.Provider)
		return llm.Unconfigured{}
	}

	timeout := duration("llm.timeout", cfg.Timeout, 60*time.Second)
	opts := llm.OpenAICompatOptions{Timeout: timeout, MaxConcurrent: cfg.MaxConcurrent}

	var p llm.Provider
	switch cfg.Provider {
	case "anthropic":
		p = llm.NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.Model, timeout)
	case "openai":
		if cfg.BaseURL == "" {
			slog.Warn("openai-compatible provider needs base_url", "model", cfg.Model)
			return llm.Unconfigured{}
		}
		p = llm.NewOpenAICompat("openai", cfg.BaseURL, cfg.APIKey, cfg.Model, opts)
	default:
		if cfg.BaseURL != "" {
			model := cfg.Model
			if model == "" {
				model = llm.DefaultZAIModel
			}
			p = llm.NewOpenAICompat("zai", cfg.BaseURL, cfg.APIKey, model, opts)
		} else {
			p = llm.NewZAI(cfg.APIKey, cfg.Model, opts)
		}
	}
	slog.Info("chat provider configured", "provider", p.Name(), "model", cfg.Model, "timeout", timeout)
	return p
}

// keyFromFile looks provider up in a key file, logging what went wrong.
func keyFromFile(path, provider string) string {
	keys, err := llm.OpenKeyFile(path)
	if err != nil {
		slog.Warn("cannot read key file", "path", path, "error", err)
		return ""
	}
	key, err := keys.APIKey(provider)
	if err != nil {
		slog.Warn("no usable key in key file", "provider", provider, "known", keys.Providers(), "error", err)
		return ""
	}
	return key
}

// tryInitProjectIndex connects to pgvector and prepares the schema.
// Returns false when the caller should retry later.
func (d *Daemon) tryInitProjectIndex() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := embeddings.NewStore(ctx, d.config.Embeddings.PostgresURL)
	if err != nil {
		slog.Warn("project index unavailable, pgvector connection failed", "error", err)
		return false
	}
	if err := store.Init(ctx); err != nil {
		slog.Warn("project index unavailable, schema init failed", "error", err)
		store.Close()
		return false
	}

	tei := embeddings.NewTEIClient(d.config.Embeddings.TEIURL, 0)
	d.embedMu.Lock()
	d.embedStore = store
	d.tei = tei
	d.search = embeddings.NewSearcher(d.catalog, store, tei)
	d.embedMu.Unlock()

	slog.Info("project index initialized", "tei", d.config.Embeddings.TEIURL)
	return true
}

// retryProjectIndex reconnects pgvector in the background, then starts
// the indexer.
func (d *Daemon) retryProjectIndex(ctx context.Context) {
	for attempt := 1; attempt <= projectIndexRetries; attempt++ {
		select {
		case <-ctx.Done():
			slog.Info("project index retry cancelled")
			return
		case <-time.After(projectIndexRetryInterval):
		}

		slog.Info("retrying project index connection", "attempt", attempt, "max", projectIndexRetries)
		if d.tryInitProjectIndex() {
			d.runIndexer(ctx)
			return
		}
	}
	slog.Error("project index permanently unavailable after retries", "attempts", projectIndexRetries)
}

// runIndexer keeps project embeddings current. Blocks until ctx is done.
func (d *Daemon) runIndexer(ctx context.Context) {
	d.embedMu.RLock()
	store, tei := d.embedStore, d.tei
	d.embedMu.RUnlock()
	if store == nil || tei == nil {
		return
	}
	interval := duration("embeddings.sync_interval", d.config.Embeddings.SyncInterval, 5*time.Minute)
	embeddings.NewIndexer(d.catalog.Projects, store, tei, interval, d.config.Embeddings.BatchSize).Run(ctx)
}

// SearchProjects implements conversation.ProjectSearcher using the
// hybrid index when it is up and keyword search otherwise.
func (d *Daemon) SearchProjects(ctx context.Context, query string, limit int) ([]catalog.Project, error) {
	d.embedMu.RLock()
	s := d.search
	d.embedMu.RUnlock()
	return s.SearchProjects(ctx, query, limit)
}

// Run serves until ctx is cancelled or the HTTP server fails.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("folio daemon running",
		"name", d.config.Name,
		"addr", d.config.HTTP.Addr,
		"provider", d.provider.Name(),
		"projects", len(d.catalog.Projects()),
		"transcripts", d.store != nil,
		"gallery", d.gallery != nil,
		"matrix", d.matrix != nil,
	)

	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              d.config.HTTP.Addr,
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	d.embedMu.RLock()
	hasIndex := d.embedStore != nil
	d.embedMu.RUnlock()
	switch {
	case hasIndex:
		g.Go(func() error { d.runIndexer(ctx); return nil })
	case d.config.Embeddings.Enabled && d.config.Embeddings.PostgresURL != "" && d.config.Embeddings.TEIURL != "":
		g.Go(func() error { d.retryProjectIndex(ctx); return nil })
	}

	if d.janitor != nil {
		g.Go(func() error { d.janitor.Run(ctx); return nil })
	}

	if d.matrix != nil {
		g.Go(func() error {
			slog.Info("starting matrix channel")
			// Matrix is optional; a fatal channel error does not stop the API.
			if err := d.matrix.Start(ctx, d.onChannelMessage(d.matrix)); err != nil && ctx.Err() == nil {
				slog.Error("matrix channel stopped", "error", err)
			}
			return nil
		})
	}

	d.healthy.Store(true)
	err := g.Wait()
	d.healthy.Store(false)

	if d.matrix != nil {
		d.matrix.Stop()
	}
	slog.Info("folio daemon shutting down")
	return err
}

// Close releases stores. Call after Run returns.
func (d *Daemon) Close() {
	d.embedMu.Lock()
	if d.embedStore != nil {
		d.embedStore.Close()
		d.embedStore = nil
	}
	d.embedMu.Unlock()
	if d.store != nil {
		d.store.Close()
	}
}
