package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Dimensions is the vector width of nomic-embed-text-v1.5.
const Dimensions = 768

// VectorStore holds one embedding per project.
type VectorStore interface {
	Search(ctx context.Context, query []float32, limit int) ([]Match, error)
	Hashes(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, docs []Document) error
	Delete(ctx context.Context, projectIDs []string) error
}

// Match is a vector search hit.
type Match struct {
	ProjectID string
	Distance  float64 // cosine distance, lower is closer
}

// Document is an embedded project ready to store.
type Document struct {
	ProjectID   string
	Embedding   []float32
	ContentHash string
}

// Store is the pgvector-backed VectorStore.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and verifies the connection.
func NewStore(ctx context.Context, pgURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres URL: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Init creates the extension, table and HNSW index if missing.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS project_embeddings (
			project_id   TEXT PRIMARY KEY,
			embedding    vector(%d) NOT NULL,
			content_hash TEXT NOT NULL,
			embedded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, Dimensions)); err != nil {
		return fmt.Errorf("create embeddings table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_project_embeddings_hnsw
		ON project_embeddings
		USING hnsw (embedding vector_cosine_ops)
		WITH (m = 16, ef_construction = 64)`); err != nil {
		return fmt.Errorf("create HNSW index: %w", err)
	}
	slog.Info("project index store initialized")
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Upsert stores embeddings in one transaction.
func (s *Store) Upsert(ctx context.Context, docs []Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range docs {
		_, err := tx.Exec(ctx, `
			INSERT INTO project_embeddings (project_id, embedding, content_hash, embedded_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (project_id) DO UPDATE
			SET embedding = EXCLUDED.embedding,
				content_hash = EXCLUDED.content_hash,
				embedded_at = now()
		`, d.ProjectID, pgvector.NewVector(d.Embedding), d.ContentHash)
		if err != nil {
			return fmt.Errorf("upsert embedding %s: %w", d.ProjectID, err)
		}
	}
	return tx.Commit(ctx)
}

// Search returns the closest projects by cosine distance.
func (s *Store) Search(ctx context.Context, query []float32, limit int) ([]Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT project_id, embedding <=> $1 AS distance
		FROM project_embeddings
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ProjectID, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Hashes returns the content hash of every embedded project.
func (s *Store) Hashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT project_id, content_hash FROM project_embeddings")
	if err != nil {
		return nil, fmt.Errorf("get embedded: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("scan embedded: %w", err)
		}
		out[id] = hash
	}
	return out, rows.Err()
}

// Delete removes embeddings for projects no longer in the catalog.
func (s *Store) Delete(ctx context.Context, projectIDs []string) error {
	if len(projectIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, "DELETE FROM project_embeddings WHERE project_id = ANY($1)", projectIDs)
	if err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	return nil
}

// Count returns the number of stored embeddings.
func (s *Store) Count(ctx context.Context) (n int, err error) {
	err = s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM project_embeddings").Scan(&n)
	return
}
