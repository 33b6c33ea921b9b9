package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mnemohq/rehydrate/pkg/types"
)

// ErrChunkNotFound is returned when a chunk id does not exist in the index.
var ErrChunkNotFound = errors.New("chunk not found")

// SQLiteStore implements Store on a single SQLite database file.
// FTS5 provides the BM25 lexical index; dense search scans the embeddings
// table and computes cosine similarity in Go.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the index at path. Use ":memory:"
// for an ephemeral index in tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Single writer keeps the FTS triggers race-free; reads are cheap.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// UpsertChunk inserts or replaces a chunk and its embedding.
func (s *SQLiteStore) UpsertChunk(ctx context.Context, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}

	updatedAt := chunk.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if chunk.ID == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (source_file, span_start, span_end, text, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			chunk.SourceFile, chunk.SpanStart, chunk.SpanEnd, chunk.Text, updatedAt)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
		chunk.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("chunk id: %w", err)
		}
	} else {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, source_file, span_start, span_end, text, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			     source_file = excluded.source_file,
			     span_start  = excluded.span_start,
			     span_end    = excluded.span_end,
			     text        = excluded.text,
			     updated_at  = excluded.updated_at`,
			chunk.ID, chunk.SourceFile, chunk.SpanStart, chunk.SpanEnd, chunk.Text, updatedAt)
		if err != nil {
			return fmt.Errorf("upsert chunk: %w", err)
		}
	}

	if len(chunk.Embedding) > 0 {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (chunk_id, dimension, vector) VALUES (?, ?, ?)
			 ON CONFLICT(chunk_id) DO UPDATE SET
			     dimension = excluded.dimension,
			     vector    = excluded.vector`,
			chunk.ID, len(chunk.Embedding), serializeVector(chunk.Embedding))
		if err != nil {
			return fmt.Errorf("upsert embedding: %w", err)
		}
	}

	return tx.Commit()
}

// GetChunk loads a single chunk (without its embedding) by id.
func (s *SQLiteStore) GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error) {
	var c types.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_file, span_start, span_end, text, updated_at
		 FROM chunks WHERE id = ?`, chunkID).
		Scan(&c.ID, &c.SourceFile, &c.SpanStart, &c.SpanEnd, &c.Text, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk %d: %w", chunkID, err)
	}
	return &c, nil
}

// SearchText runs a BM25 query against the FTS index. Results are sorted
// descending by score, ties broken by ascending chunk id.
func (s *SQLiteStore) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	if limit <= 0 {
		return []TextResult{}, nil
	}
	match := buildMatchQuery(query)
	if match == "" {
		return []TextResult{}, nil
	}

	// bm25() returns lower-is-better; negate so callers see higher-is-better.
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, -bm25(chunks_fts) AS score
		 FROM chunks_fts
		 JOIN chunks c ON c.id = chunks_fts.rowid
		 WHERE chunks_fts MATCH ?
		 ORDER BY score DESC, c.id ASC
		 LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []TextResult
	for rows.Next() {
		var r TextResult
		if err := rows.Scan(&r.ChunkID, &r.BM25Score); err != nil {
			return nil, fmt.Errorf("scan text result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SearchVector scans stored embeddings and ranks chunks by cosine
// similarity against the query vector. Results are sorted descending by
// similarity, ties broken by ascending chunk id.
func (s *SQLiteStore) SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorResult, error) {
	if limit <= 0 || len(vector) == 0 {
		return []VectorResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, dimension, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []VectorResult
	for rows.Next() {
		var (
			chunkID   int64
			dimension int
			blob      []byte
		)
		if err := rows.Scan(&chunkID, &dimension, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		stored, err := deserializeVector(blob, dimension)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunkID, err)
		}
		results = append(results, VectorResult{
			ChunkID:         chunkID,
			SimilarityScore: cosineSimilarity(vector, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// RecentChunks returns the most recently updated chunks, newest first.
func (s *SQLiteStore) RecentChunks(ctx context.Context, limit int) ([]*types.Chunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_file, span_start, span_end, text, updated_at
		 FROM chunks
		 ORDER BY updated_at DESC, id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*types.Chunk
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(&c.ID, &c.SourceFile, &c.SpanStart, &c.SpanEnd, &c.Text, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// CountChunks returns the number of indexed chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// buildMatchQuery converts free text into a safe FTS5 MATCH expression:
// each alphanumeric term is double-quoted and terms are OR-ed so natural
// language queries never trip FTS5 operator syntax.
func buildMatchQuery(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}
