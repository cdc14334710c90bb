// ABOUTME: vectorstore.Store on a single SQLite file with brute-force cosine search
// ABOUTME: Suited to a single-user deployment; filters run in SQL through json_extract
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

// ErrUnknownCollection is returned for operations on a collection that was never ensured.
var ErrUnknownCollection = errors.New("unknown collection")

type Store struct {
	db   *sql.DB
	path string
	log  *logger.Logger
}

// Open opens (or creates) a store persisted at path.
func Open(ctx context.Context, log *logger.Logger, path string) (*Store, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store at %s: %w", path, err)
	}
	s := &Store{db: db, path: path, log: log.With("service", "SQLiteVectorStore")}
	s.log.Info("SQLite vector store opened", "path", path)
	return s, nil
}

// OpenInMemory creates a store that lives only as long as the process.
func OpenInMemory(ctx context.Context, log *logger.Logger) (*Store, error) {
	db, err := openMemoryDB(ctx)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: ":memory:", log: log.With("service", "SQLiteVectorStore")}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

func (s *Store) EnsureCollection(ctx context.Context, spec vectorstore.CollectionSpec) (bool, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return false, errors.New("collection name is required")
	}
	if spec.Dimension <= 0 {
		return false, fmt.Errorf("collection %q needs a positive dimension", spec.Name)
	}
	if spec.Distance == "" {
		spec.Distance = vectorstore.DistanceCosine
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (name, dimension, distance) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, spec.Name, spec.Dimension, string(spec.Distance))
	if err != nil {
		return false, fmt.Errorf("create collection %s: %w", spec.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.log.Info("Created collection", "collection", spec.Name, "dimension", spec.Dimension)
	}
	return n > 0, nil
}

func (s *Store) dimension(ctx context.Context, collection string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, collection).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if err != nil {
		return 0, fmt.Errorf("look up collection %s: %w", collection, err)
	}
	return dim, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, points ...vectorstore.Point) error {
	dim, err := s.dimension(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, p := range points {
		if p.ID == "" {
			return errors.New("point id is required")
		}
		if len(p.Vector) != dim {
			return fmt.Errorf("point %q has %d dimensions, collection %s expects %d", p.ID, len(p.Vector), collection, dim)
		}
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", p.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO points (collection, id, vector, payload, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				vector = excluded.vector,
				payload = excluded.payload,
				updated_at = excluded.updated_at
		`, collection, p.ID, vectorToBlob(p.Vector), string(payload), now)
		if err != nil {
			return fmt.Errorf("upsert %s/%s: %w", collection, p.ID, err)
		}
	}
	return tx.Commit()
}

// Search scores every matching point in Go and keeps the top limit.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, filter *vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, errors.New("query vector required")
	}
	if _, err := s.dimension(ctx, collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	where, args := whereClause(collection, filter)
	rows, err := s.db.QueryContext(ctx, `SELECT id, vector, payload FROM points WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var results []vectorstore.ScoredPoint
	for rows.Next() {
		var (
			id      string
			blob    []byte
			payload string
		)
		if err := rows.Scan(&id, &blob, &payload); err != nil {
			return nil, err
		}
		decoded, err := decodePayload(payload)
		if err != nil {
			s.log.Warn("skipping undecodable point", "collection", collection, "id", id, "error", err)
			continue
		}
		results = append(results, vectorstore.ScoredPoint{
			ID:      id,
			Score:   CosineSimilarity(vector, blobToVector(blob)),
			Payload: decoded,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) Scroll(ctx context.Context, collection string, filter *vectorstore.Filter) ([]vectorstore.Point, error) {
	if _, err := s.dimension(ctx, collection); err != nil {
		return nil, err
	}

	where, args := whereClause(collection, filter)
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM points WHERE `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("scroll %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var out []vectorstore.Point
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		decoded, err := decodePayload(payload)
		if err != nil {
			s.log.Warn("skipping undecodable point", "collection", collection, "id", id, "error", err)
			continue
		}
		out = append(out, vectorstore.Point{ID: id, Payload: decoded})
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, collection, id string) (*vectorstore.Point, error) {
	if _, err := s.dimension(ctx, collection); err != nil {
		return nil, err
	}

	var (
		blob    []byte
		payload string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT vector, payload FROM points WHERE collection = ? AND id = ?
	`, collection, id).Scan(&blob, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	decoded, err := decodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &vectorstore.Point{ID: id, Vector: blobToVector(blob), Payload: decoded}, nil
}

func (s *Store) SetPayload(ctx context.Context, collection, id string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set payload: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT payload FROM points WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("set payload on %s/%s: point not found", collection, id)
	}
	if err != nil {
		return fmt.Errorf("set payload on %s/%s: %w", collection, id, err)
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	for k, v := range fields {
		payload[k] = v
	}
	updated, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE points SET payload = ?, updated_at = ? WHERE collection = ? AND id = ?
	`, string(updated), time.Now().UTC(), collection, id); err != nil {
		return fmt.Errorf("set payload on %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	if _, err := s.db.ExecContext(ctx, `DELETE FROM points WHERE collection = ? AND id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// whereClause matches payload fields with json_extract. Paths are bound as
// parameters, so keys never reach the SQL text.
func whereClause(collection string, filter *vectorstore.Filter) (string, []any) {
	clauses := []string{"collection = ?"}
	args := []any{collection}
	if !filter.IsEmpty() {
		for _, c := range filter.Must {
			clauses = append(clauses, "json_extract(payload, ?) = ?")
			args = append(args, "$."+c.Key, sqlValue(c.Value))
		}
	}
	return strings.Join(clauses, " AND "), args
}

// sqlValue maps a filter value to what json_extract returns for it.
// JSON booleans come back as 1 and 0.
func sqlValue(v any) any {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		return t.String()
	}
	return v
}

func decodePayload(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	payload := map[string]any{}
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// vectorToBlob converts a float32 slice to a little-endian blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// blobToVector converts a blob back into a float32 slice
func blobToVector(blob []byte) []float32 {
	count := len(blob) / 4
	vector := make([]float32, count)
	for i := 0; i < count; i++ {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// CosineSimilarity calculates cosine similarity between two vectors
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
