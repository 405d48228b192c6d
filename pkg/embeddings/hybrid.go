package embeddings

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nous-labs/folio/pkg/catalog"
)

const (
	// rrfK is the Reciprocal Rank Fusion smoothing constant (Cormack et al., 2009).
	rrfK = 60
	// overFetch widens each source's result list before fusion.
	overFetch = 3
)

// Ranked is one fused result.
type Ranked struct {
	ProjectID string
	Score     float64
}

// Searcher answers project queries from the catalog and the vector index.
// With no store or embedder it is keyword-only.
type Searcher struct {
	catalog  *catalog.Catalog
	store    VectorStore
	embedder Embedder
}

// NewSearcher returns a hybrid project searcher.
func NewSearcher(c *catalog.Catalog, store VectorStore, embedder Embedder) *Searcher {
	return &Searcher{catalog: c, store: store, embedder: embedder}
}

// SearchProjects returns up to limit projects ranked by RRF over vector
// similarity and keyword score. When the vector side fails the keyword
// ranking is returned alone.
func (s *Searcher) SearchProjects(ctx context.Context, query string, limit int) ([]catalog.Project, error) {
	if limit <= 0 {
		limit = 5
	}
	fetch := limit * overFetch

	if s.store == nil || s.embedder == nil {
		return s.catalog.Search(query, limit), nil
	}

	var (
		g       errgroup.Group
		keyword []catalog.Project
		vector  []Match
		vecErr  error
	)
	g.Go(func() error {
		keyword = s.catalog.Search(query, fetch)
		return nil
	})
	g.Go(func() error {
		q, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			vecErr = err
			return nil
		}
		vector, vecErr = s.store.Search(ctx, q, fetch)
		return nil
	})
	g.Wait()

	if vecErr != nil {
		if errors.Is(vecErr, context.Canceled) || errors.Is(vecErr, context.DeadlineExceeded) {
			slog.Debug("vector search cut short, using keyword-only", "error", vecErr)
		} else {
			slog.Warn("vector search failed, using keyword-only", "error", vecErr)
		}
		if len(keyword) > limit {
			keyword = keyword[:limit]
		}
		return keyword, nil
	}

	vecIDs := make([]string, len(vector))
	for i, m := range vector {
		vecIDs[i] = m.ProjectID
	}
	kwIDs := make([]string, len(keyword))
	for i, p := range keyword {
		kwIDs[i] = p.ID
	}

	out := make([]catalog.Project, 0, limit)
	for _, r := range reciprocalRankFusion([][]string{vecIDs, kwIDs}, rrfK) {
		if len(out) == limit {
			break
		}
		// the index may lag behind a catalog reload
		if p, ok := s.catalog.Project(r.ProjectID); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// reciprocalRankFusion merges ranked id lists: score(d) = Σ 1/(k + rank_i(d)).
// Ties keep first-seen order.
func reciprocalRankFusion(lists [][]string, k int) []Ranked {
	scores := make(map[string]float64)
	var order []string
	for _, list := range lists {
		for rank, id := range list {
			if _, seen := scores[id]; !seen {
				order = append(order, id)
			}
			scores[id] += 1.0 / (float64(k) + float64(rank+1))
		}
	}

	fused := make([]Ranked, len(order))
	for i, id := range order {
		fused[i] = Ranked{ProjectID: id, Score: scores[id]}
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}
