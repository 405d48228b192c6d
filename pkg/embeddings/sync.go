package embeddings

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"time"

	"github.com/nous-labs/folio/pkg/catalog"
)

// Indexer keeps the vector store in step with the project catalog.
type Indexer struct {
	projects  func() []catalog.Project
	store     VectorStore
	embedder  Embedder
	interval  time.Duration
	batchSize int
}

// NewIndexer returns an indexer that re-checks the catalog every interval.
func NewIndexer(projects func() []catalog.Project, store VectorStore, embedder Embedder, interval time.Duration, batchSize int) *Indexer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Indexer{
		projects:  projects,
		store:     store,
		embedder:  embedder,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run syncs immediately, then on every tick. Blocks until ctx is done.
// A failed cycle is retried on the next tick.
func (ix *Indexer) Run(ctx context.Context) {
	slog.Info("project indexer started", "interval", ix.interval, "batch_size", ix.batchSize)

	if n, err := ix.SyncOnce(ctx); err != nil {
		slog.Warn("initial project index sync failed", "error", err)
	} else if n > 0 {
		slog.Info("initial project index sync complete", "embedded", n)
	}

	ticker := time.NewTicker(ix.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("project indexer stopping")
			return
		case <-ticker.C:
			if n, err := ix.SyncOnce(ctx); err != nil {
				slog.Warn("project index sync failed", "error", err)
			} else if n > 0 {
				slog.Info("project index sync", "embedded", n)
			}
		}
	}
}

// SyncOnce embeds new or changed projects and drops removed ones.
// Returns the number of projects embedded.
func (ix *Indexer) SyncOnce(ctx context.Context) (int, error) {
	embedded, err := ix.store.Hashes(ctx)
	if err != nil {
		return 0, fmt.Errorf("get embedded: %w", err)
	}

	projects := ix.projects()
	live := make(map[string]struct{}, len(projects))
	var stale []catalog.Project
	for _, p := range projects {
		live[p.ID] = struct{}{}
		if embedded[p.ID] != ContentHash(p.SearchText()) {
			stale = append(stale, p)
		}
	}

	var gone []string
	for id := range embedded {
		if _, ok := live[id]; !ok {
			gone = append(gone, id)
		}
	}
	if err := ix.store.Delete(ctx, gone); err != nil {
		return 0, err
	}

	if len(stale) == 0 {
		return 0, nil
	}
	slog.Info("projects need embedding", "total", len(projects), "to_embed", len(stale), "removed", len(gone))

	total := 0
	for start := 0; start < len(stale); start += ix.batchSize {
		batch := stale[start:min(start+ix.batchSize, len(stale))]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.SearchText()
		}
		vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("embed batch at %d: %w", start, err)
		}

		docs := make([]Document, len(batch))
		for i, p := range batch {
			docs[i] = Document{ProjectID: p.ID, Embedding: vectors[i], ContentHash: ContentHash(texts[i])}
		}
		if err := ix.store.Upsert(ctx, docs); err != nil {
			return total, fmt.Errorf("store batch at %d: %w", start, err)
		}
		total += len(docs)
	}
	return total, nil
}

// ContentHash is the staleness key stored alongside each embedding.
func ContentHash(content string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(content)))
}
