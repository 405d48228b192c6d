package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nous-labs/folio/pkg/catalog"
)

type memStore struct {
	mu      sync.Mutex
	docs    map[string]Document
	results []Match
	err     error
	upserts int
}

func newMemStore() *memStore { return &memStore{docs: map[string]Document{}} }

func (m *memStore) Search(ctx context.Context, q []float32, limit int) ([]Match, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *memStore) Hashes(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.docs))
	for id, d := range m.docs {
		out[id] = d.ContentHash
	}
	return out, nil
}

func (m *memStore) Upsert(ctx context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	for _, d := range docs {
		m.docs[d.ProjectID] = d
	}
	return nil
}

func (m *memStore) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.docs, id)
	}
	return nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.Profile{}, []catalog.Project{
		{ID: "weaszel", Title: "Weaszel", Description: "Browser automation extension"},
		{ID: "chatbot_ui", Title: "Chatbot UI", Description: "Chat interface for language models"},
		{ID: "genesis", Title: "Genesis", Description: "Realtime chat platform"},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func ids(ps []catalog.Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestReciprocalRankFusion(t *testing.T) {
	fused := reciprocalRankFusion([][]string{
		{"a", "b", "c"},
		{"c", "b", "d"},
	}, rrfK)

	var got []string
	for _, r := range fused {
		got = append(got, r.ProjectID)
	}
	// c (ranks 3 and 1) edges out b (ranks 2 and 2)
	want := []string{"c", "b", "a", "d"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fusion order mismatch (-want +got):\n%s", diff)
	}
	if fused[0].Score <= fused[2].Score {
		t.Errorf("shared result scored %f, single-list result %f", fused[0].Score, fused[2].Score)
	}
}

func TestSearchFusesBothSources(t *testing.T) {
	store := newMemStore()
	store.results = []Match{{ProjectID: "weaszel"}, {ProjectID: "genesis"}}
	s := NewSearcher(testCatalog(t), store, &fakeEmbedder{})

	got, err := s.SearchProjects(context.Background(), "chat", 2)
	if err != nil {
		t.Fatalf("SearchProjects: %v", err)
	}
	// genesis is the only project found by both
	if diff := cmp.Diff([]string{"genesis", "weaszel"}, ids(got)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchSkipsUnknownIDs(t *testing.T) {
	store := newMemStore()
	store.results = []Match{{ProjectID: "deleted"}, {ProjectID: "weaszel"}}
	s := NewSearcher(testCatalog(t), store, &fakeEmbedder{})

	got, err := s.SearchProjects(context.Background(), "browser", 5)
	if err != nil {
		t.Fatalf("SearchProjects: %v", err)
	}
	if diff := cmp.Diff([]string{"weaszel"}, ids(got)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchDegradesToKeyword(t *testing.T) {
	tests := []struct {
		name     string
		store    VectorStore
		embedder Embedder
	}{
		{"no index", nil, nil},
		{"embed fails", newMemStore(), &fakeEmbedder{err: errors.New("tei down")}},
		{"store fails", &memStore{err: errors.New("pg down")}, &fakeEmbedder{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSearcher(testCatalog(t), tt.store, tt.embedder)
			got, err := s.SearchProjects(context.Background(), "chat", 1)
			if err != nil {
				t.Fatalf("SearchProjects: %v", err)
			}
			if diff := cmp.Diff([]string{"chatbot_ui"}, ids(got)); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSyncOnce(t *testing.T) {
	c := testCatalog(t)
	store := newMemStore()
	store.docs["removed"] = Document{ProjectID: "removed", ContentHash: "x"}
	emb := &fakeEmbedder{}
	ix := NewIndexer(c.Projects, store, emb, 0, 2)

	n, err := ix.SyncOnce(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("first SyncOnce = %d, %v; want 3", n, err)
	}
	if store.upserts != 2 {
		t.Errorf("upserts = %d, want 2 batches", store.upserts)
	}
	var stored []string
	for id := range store.docs {
		stored = append(stored, id)
	}
	sort.Strings(stored)
	if diff := cmp.Diff([]string{"chatbot_ui", "genesis", "weaszel"}, stored); diff != "" {
		t.Errorf("stored mismatch (-want +got):\n%s", diff)
	}

	n, err = ix.SyncOnce(context.Background())
	if err != nil || n != 0 {
		t.Errorf("second SyncOnce = %d, %v; want nothing to embed", n, err)
	}
	if emb.calls != 2 {
		t.Errorf("embedder called %d times, want 2", emb.calls)
	}
}

func TestTEIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/embed":
			var req embedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			out := make([][]float32, len(req.Inputs))
			for i, in := range req.Inputs {
				out[i] = []float32{float32(len(in))}
			}
			json.NewEncoder(w).Encode(out)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewTEIClient(srv.URL, 0)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	q, err := c.EmbedQuery(context.Background(), "ab")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if want := float32(len(PrefixQuery) + 2); q[0] != want {
		t.Errorf("query vector = %v, want prefixed length %v", q, want)
	}
	docs, err := c.EmbedDocuments(context.Background(), []string{"a", "bcd"})
	if err != nil || len(docs) != 2 {
		t.Fatalf("EmbedDocuments = %v, %v", docs, err)
	}
	if docs[1][0] != float32(len(PrefixDocument)+3) {
		t.Errorf("document vector = %v", docs[1])
	}
}

func TestTEIClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewTEIClient(srv.URL, 0).EmbedQuery(context.Background(), "x"); err == nil {
		t.Error("expected error for 503")
	}
}
