// ABOUTME: Embedded vectorstore.Store backed by chromem-go, in memory or persisted to a directory
// ABOUTME: Payloads live in document content as JSON; scalar fields are mirrored to metadata for filtering
package chromem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

// maxMetadataString bounds which string payload fields are mirrored into
// metadata; long blobs such as message logs are never filtered on.
const maxMetadataString = 256

// ErrUnknownCollection is returned for operations on a collection that was
// never ensured.
var ErrUnknownCollection = errors.New("unknown collection")

// Store wraps a chromem-go database.
type Store struct {
	db   *chromem.DB
	log  *logger.Logger
	mu   sync.Mutex
	dims map[string]int
}

var _ vectorstore.Store = (*Store)(nil)

// New creates a purely in-memory store.
func New(log *logger.Logger) *Store {
	return &Store{
		db:   chromem.NewDB(),
		log:  log.With("service", "ChromemVectorStore"),
		dims: make(map[string]int),
	}
}

// NewPersistent opens (or creates) a store persisted under path.
func NewPersistent(log *logger.Logger, path string, compress bool) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
	}
	s := &Store{
		db:   db,
		log:  log.With("service", "ChromemVectorStore"),
		dims: make(map[string]int),
	}
	s.log.Info("Chromem vector store opened", "path", path, "collections", len(db.ListCollections()))
	return s, nil
}

func (s *Store) EnsureCollection(_ context.Context, spec vectorstore.CollectionSpec) (bool, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return false, errors.New("collection name is required")
	}
	if spec.Dimension <= 0 {
		return false, fmt.Errorf("collection %q needs a positive dimension", spec.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dims[spec.Name] = spec.Dimension
	if s.db.GetCollection(spec.Name, nil) != nil {
		return false, nil
	}
	meta := map[string]string{
		"dimension": strconv.Itoa(spec.Dimension),
		"distance":  string(spec.Distance),
	}
	if _, err := s.db.CreateCollection(spec.Name, meta, nil); err != nil {
		return false, fmt.Errorf("create collection %s: %w", spec.Name, err)
	}
	s.log.Info("Created collection", "collection", spec.Name, "dimension", spec.Dimension)
	return true, nil
}

func (s *Store) collection(name string) (*chromem.Collection, error) {
	col := s.db.GetCollection(name, nil)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return col, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, points ...vectorstore.Point) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if p.ID == "" {
			return errors.New("point id is required")
		}
		if len(p.Vector) == 0 {
			return fmt.Errorf("point %q has empty vector", p.ID)
		}
		doc, err := toDocument(p.ID, p.Vector, p.Payload)
		if err != nil {
			return err
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, vector []float32, filter *vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, errors.New("query vector required")
	}
	if limit <= 0 {
		limit = 10
	}
	results, err := s.query(ctx, col, vector, filter, limit)
	if err != nil {
		return nil, err
	}

	out := make([]vectorstore.ScoredPoint, 0, len(results))
	for _, r := range results {
		payload, err := decodePayload(r.Content)
		if err != nil {
			s.log.Warn("skipping undecodable document", "collection", collection, "id", r.ID, "error", err)
			continue
		}
		out = append(out, vectorstore.ScoredPoint{ID: r.ID, Score: float64(r.Similarity), Payload: payload})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *Store) Scroll(ctx context.Context, collection string, filter *vectorstore.Filter) ([]vectorstore.Point, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	dim := s.dims[collection]
	s.mu.Unlock()
	if dim == 0 {
		return nil, fmt.Errorf("%w: %s has no known dimension", ErrUnknownCollection, collection)
	}

	probe := make([]float32, dim)
	probe[0] = 1
	results, err := s.query(ctx, col, probe, filter, col.Count())
	if err != nil {
		return nil, err
	}

	out := make([]vectorstore.Point, 0, len(results))
	for _, r := range results {
		payload, err := decodePayload(r.Content)
		if err != nil {
			s.log.Warn("skipping undecodable document", "collection", collection, "id", r.ID, "error", err)
			continue
		}
		out = append(out, vectorstore.Point{ID: r.ID, Payload: payload})
	}
	return out, nil
}

// query caps nResults at the collection size, which chromem requires.
func (s *Store) query(ctx context.Context, col *chromem.Collection, vector []float32, filter *vectorstore.Filter, limit int) ([]chromem.Result, error) {
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}
	results, err := col.QueryEmbedding(ctx, vector, limit, whereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query %s: %w", col.Name, err)
	}
	return results, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*vectorstore.Point, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	payload, err := decodePayload(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &vectorstore.Point{ID: doc.ID, Vector: doc.Embedding, Payload: payload}, nil
}

func (s *Store) SetPayload(ctx context.Context, collection, id string, fields map[string]any) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("set payload on %s/%s: %w", collection, id, err)
	}
	payload, err := decodePayload(doc.Content)
	if err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	for k, v := range fields {
		payload[k] = v
	}
	updated, err := toDocument(doc.ID, doc.Embedding, payload)
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, updated)
}

func (s *Store) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return col.Delete(ctx, nil, nil, ids...)
}

func (s *Store) Close() error {
	return nil
}

func toDocument(id string, vector []float32, payload map[string]any) (chromem.Document, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("encode payload for %s: %w", id, err)
	}
	return chromem.Document{
		ID:        id,
		Content:   string(raw),
		Embedding: append([]float32(nil), vector...),
		Metadata:  metadataFor(payload),
	}, nil
}

func decodePayload(content string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.UseNumber()
	payload := map[string]any{}
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func metadataFor(payload map[string]any) map[string]string {
	meta := make(map[string]string, len(payload))
	for k, v := range payload {
		if s, ok := v.(string); ok && len(s) > maxMetadataString {
			continue
		}
		if str, ok := scalarString(v); ok {
			meta[k] = str
		}
	}
	return meta
}

func whereClause(filter *vectorstore.Filter) map[string]string {
	if filter.IsEmpty() {
		return nil
	}
	where := make(map[string]string, len(filter.Must))
	for _, c := range filter.Must {
		str, _ := scalarString(c.Value)
		where[c.Key] = str
	}
	return where
}

// scalarString renders values so that an int64 written by a caller and the
// json.Number read back from stored content produce the same string.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}
