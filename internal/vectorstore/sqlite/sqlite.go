// Package sqlite is a single-file vector store backend on modernc SQLite.
// Similarity search is brute-force cosine over all stored vectors.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	dimensions INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	chunk_index INTEGER,
	vector BLOB NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_points_slot ON points(collection, document_id, chunk_index);
`

// Store implements vectorstore.Store on a SQLite database
type Store struct {
	db         *sql.DB
	collection string

	mu   sync.Mutex
	dims int
}

// Open opens (or creates) the database at path. An empty path uses an
// in-memory database.
func Open(ctx context.Context, path, collection string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == "" {
		// Each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &Store{db: db, collection: collection}
	row := db.QueryRowContext(ctx, `SELECT dimensions FROM collections WHERE name = ?`, collection)
	if err := row.Scan(&s.dims); err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = db.Close()
		return nil, fmt.Errorf("reading collection: %w", err)
	}
	return s, nil
}

func (s *Store) Backend() string { return "sqlite" }

func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims != 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name, dimensions) VALUES (?, ?)`, s.collection, dims); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	s.dims = dims
	return nil
}

func (s *Store) Lookup(ctx context.Context, key model.DedupKey) (*vectorstore.Point, error) {
	var row *sql.Row
	if key.Chunked() {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, payload FROM points WHERE collection = ? AND document_id = ? AND chunk_index = ? LIMIT 1`,
			s.collection, key.DocumentID, key.Index())
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, payload FROM points WHERE collection = ? AND document_id = ? AND chunk_index IS NULL LIMIT 1`,
			s.collection, key.DocumentID)
	}

	var id, payloadJSON string
	if err := row.Scan(&id, &payloadJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}

	var payload model.Payload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", id, err)
	}
	return &vectorstore.Point{ID: id, Payload: payload}, nil
}

func (s *Store) Upsert(ctx context.Context, p vectorstore.Point) error {
	if err := s.checkDims(ctx, len(p.Vector)); err != nil {
		return err
	}

	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	var chunkIndex any
	if p.Payload.ChunkIndex != nil {
		chunkIndex = *p.Payload.ChunkIndex
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO points (collection, id, document_id, chunk_index, vector, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document_id = excluded.document_id,
			chunk_index = excluded.chunk_index,
			vector = excluded.vector,
			payload = excluded.payload
	`, s.collection, p.ID, p.Payload.DocumentID, chunkIndex, float32SliceToBytes(p.Vector), string(payloadJSON))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) SetPayload(ctx context.Context, id string, payload model.Payload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE points SET payload = ? WHERE collection = ? AND id = ?`, string(payloadJSON), s.collection, id)
	if err != nil {
		return fmt.Errorf("set payload %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("point %s not found", id)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]vectorstore.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vector, payload FROM points WHERE collection = ?`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []vectorstore.Match
	for rows.Next() {
		var (
			id          string
			vecBytes    []byte
			payloadJSON string
		)
		if err := rows.Scan(&id, &vecBytes, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		var payload model.Payload
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", id, err)
		}
		matches = append(matches, vectorstore.Match{
			ID:      id,
			Score:   vectorstore.Cosine(vector, bytesToFloat32Slice(vecBytes)),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return vectorstore.TopMatches(matches, limit), nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM points WHERE collection = ?`, s.collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) Scroll(ctx context.Context, fn func(model.Payload) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM points WHERE collection = ? ORDER BY document_id, chunk_index`, s.collection)
	if err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var payloadJSON string
		if err := rows.Scan(&payloadJSON); err != nil {
			return fmt.Errorf("scan payload: %w", err)
		}
		var payload model.Payload
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if err := fn(payload); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) checkDims(ctx context.Context, n int) error {
	s.mu.Lock()
	dims := s.dims
	s.mu.Unlock()

	if dims == 0 {
		return s.EnsureCollection(ctx, n)
	}
	if n != dims {
		return fmt.Errorf("%w: got %d, collection has %d", vectorstore.ErrDimensionMismatch, n, dims)
	}
	return nil
}

func float32SliceToBytes(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}

var _ vectorstore.Store = (*Store)(nil)
