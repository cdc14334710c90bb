// ABOUTME: Memory storage for conversations, insights, memos, history snapshots, alarms, and briefings
// ABOUTME: Maps entities to vector store points and owns the collection layout and deterministic IDs
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

// Collection names before the configured prefix is applied
const (
	CollectionConversations = "conversations"
	CollectionMemories      = "memories"
	CollectionMemos         = "memos"
	CollectionHistory       = "history_snapshots"
	CollectionAlarms        = "alarms"
	CollectionBriefings     = "briefings"
)

// Key-value collections store a constant one-dimensional vector.
var dummyVector = []float32{1.0}

// Match is a search hit decoded into its entity type
type Match[T any] struct {
	Item  T
	Score float64
}

type Options struct {
	Prefix    string
	Dimension int
	// Location interprets legacy timestamps stored without a zone.
	Location *time.Location
}

// Storage manages all persistent memory and scheduling state
type Storage struct {
	store  vectorstore.Store
	log    *logger.Logger
	prefix string
	dims   int
	loc    *time.Location
}

// New wraps a vector store. The store is shared and must outlive Storage.
func New(store vectorstore.Store, log *logger.Logger, opts Options) *Storage {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Storage{
		store:  store,
		log:    log.With("component", "storage"),
		prefix: opts.Prefix,
		dims:   opts.Dimension,
		loc:    loc,
	}
}

// Store returns the underlying vector store.
func (s *Storage) Store() vectorstore.Store {
	return s.store
}

func (s *Storage) collection(name string) string {
	return s.prefix + name
}

// Specs lists every collection this storage needs.
func (s *Storage) Specs() []vectorstore.CollectionSpec {
	return []vectorstore.CollectionSpec{
		{Name: s.collection(CollectionConversations), Dimension: s.dims, Distance: vectorstore.DistanceCosine},
		{Name: s.collection(CollectionMemories), Dimension: s.dims, Distance: vectorstore.DistanceCosine},
		{Name: s.collection(CollectionMemos), Dimension: s.dims, Distance: vectorstore.DistanceCosine},
		{Name: s.collection(CollectionHistory), Dimension: len(dummyVector), Distance: vectorstore.DistanceCosine},
		{Name: s.collection(CollectionAlarms), Dimension: len(dummyVector), Distance: vectorstore.DistanceCosine},
		{Name: s.collection(CollectionBriefings), Dimension: len(dummyVector), Distance: vectorstore.DistanceCosine},
	}
}

// EnsureCollections creates any missing collection and returns the names it created.
func (s *Storage) EnsureCollections(ctx context.Context) ([]string, error) {
	created, err := vectorstore.EnsureCollections(ctx, s.store, s.Specs()...)
	if err != nil {
		return created, err
	}
	for _, name := range created {
		s.log.Info("Created collection", "collection", name)
	}
	return created, nil
}

// Close closes the underlying store.
func (s *Storage) Close() error {
	return s.store.Close()
}

func (s *Storage) checkVector(vec []float32) error {
	if s.dims > 0 && len(vec) != s.dims {
		return fmt.Errorf("invalid embedding dimension: expected %d, got %d", s.dims, len(vec))
	}
	return nil
}

// toPayload flattens an entity into a JSON-compatible map.
func toPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}

// fromPayload decodes a payload map into dst.
func fromPayload(payload map[string]any, dst any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// timestampLayouts are tried in order; the zone-less ones are interpreted in
// the storage location.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

func (s *Storage) parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func payloadInt64(payload map[string]any, key string) (int64, error) {
	switch v := payload[key].(type) {
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("missing %s", key)
	default:
		return 0, fmt.Errorf("unexpected %s type %T", key, v)
	}
}
