// ABOUTME: Tests for the chromem-go vector store backend
// ABOUTME: Covers idempotent collections, filtered search and scroll, payload merge, and persistence
package chromem

import (
	"context"
	"errors"
	"testing"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

func newTestStore(t *testing.T, specs ...vectorstore.CollectionSpec) *Store {
	t.Helper()
	s := New(logger.Nop())
	for _, spec := range specs {
		if _, err := s.EnsureCollection(context.Background(), spec); err != nil {
			t.Fatalf("EnsureCollection(%s) error = %v", spec.Name, err)
		}
	}
	return s
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	s := New(logger.Nop())
	ctx := context.Background()
	spec := vectorstore.CollectionSpec{Name: "memories", Dimension: 3}

	created, err := vectorstore.EnsureCollections(ctx, s, spec)
	if err != nil {
		t.Fatalf("EnsureCollections() error = %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("first call created %v, want [memories]", created)
	}

	created, err = vectorstore.EnsureCollections(ctx, s, spec)
	if err != nil {
		t.Fatalf("second EnsureCollections() error = %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("second call created %v, want none", created)
	}
}

func TestSearch_FilterAndOrdering(t *testing.T) {
	s := newTestStore(t, vectorstore.CollectionSpec{Name: "conversations", Dimension: 2})
	ctx := context.Background()

	err := s.Upsert(ctx, "conversations",
		vectorstore.Point{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{"chat_id": int64(42), "user_text": "exact"}},
		vectorstore.Point{ID: "b", Vector: []float32{0.6, 0.8}, Payload: map[string]any{"chat_id": int64(42), "user_text": "near"}},
		vectorstore.Point{ID: "c", Vector: []float32{1, 0}, Payload: map[string]any{"chat_id": int64(7), "user_text": "other chat"}},
	)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	hits, err := s.Search(ctx, "conversations", []float32{1, 0}, vectorstore.Match("chat_id", int64(42)), 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits for chat 42, got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[0].Score < 0.99 {
		t.Errorf("top hit = %+v, want a with score ~1", hits[0])
	}
	if hits[1].Score > hits[0].Score {
		t.Error("hits not sorted by descending score")
	}
}

func TestSearch_LimitLargerThanCollection(t *testing.T) {
	s := newTestStore(t, vectorstore.CollectionSpec{Name: "memories", Dimension: 2})
	ctx := context.Background()

	hits, err := s.Search(ctx, "memories", []float32{1, 0}, nil, 5)
	if err != nil {
		t.Fatalf("Search() on empty collection error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}

	if err := s.Upsert(ctx, "memories", vectorstore.Point{ID: "only", Vector: []float32{0, 1}, Payload: map[string]any{"content": "x"}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	hits, err = s.Search(ctx, "memories", []float32{1, 0}, nil, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
}

func TestScroll_ActiveFilter(t *testing.T) {
	s := newTestStore(t, vectorstore.CollectionSpec{Name: "alarms", Dimension: 1})
	ctx := context.Background()

	for id, active := range map[string]bool{"on-1": true, "on-2": true, "off": false} {
		p := vectorstore.Point{ID: id, Vector: []float32{1}, Payload: map[string]any{"active": active}}
		if err := s.Upsert(ctx, "alarms", p); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	points, err := s.Scroll(ctx, "alarms", vectorstore.Match("active", true))
	if err != nil {
		t.Fatalf("Scroll() error = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 active points, got %d", len(points))
	}

	all, err := s.Scroll(ctx, "alarms", nil)
	if err != nil {
		t.Fatalf("Scroll() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 points, got %d", len(all))
	}
}

func TestSetPayload_MergesAndKeepsFilterable(t *testing.T) {
	s := newTestStore(t, vectorstore.CollectionSpec{Name: "alarms", Dimension: 1})
	ctx := context.Background()

	p := vectorstore.Point{ID: "x", Vector: []float32{1}, Payload: map[string]any{"active": true, "message": "stretch", "chat_id": int64(10000000000000)}}
	if err := s.Upsert(ctx, "alarms", p); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := s.SetPayload(ctx, "alarms", "x", map[string]any{"active": false}); err != nil {
		t.Fatalf("SetPayload() error = %v", err)
	}

	got, err := s.Get(ctx, "alarms", "x")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Payload["active"] != false || got.Payload["message"] != "stretch" {
		t.Fatalf("payload not merged: %v", got.Payload)
	}

	active, _ := s.Scroll(ctx, "alarms", vectorstore.Match("active", true))
	if len(active) != 0 {
		t.Fatalf("expected no active points after SetPayload, got %d", len(active))
	}
	byChat, _ := s.Scroll(ctx, "alarms", vectorstore.Match("chat_id", int64(10000000000000)))
	if len(byChat) != 1 {
		t.Fatalf("large chat id filter should still match after round trip, got %d", len(byChat))
	}
}

func TestGet_MissingAndDelete(t *testing.T) {
	s := newTestStore(t, vectorstore.CollectionSpec{Name: "memos", Dimension: 2})
	ctx := context.Background()

	got, err := s.Get(ctx, "memos", "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}

	if err := s.Upsert(ctx, "memos", vectorstore.Point{ID: "m1", Vector: []float32{1, 1}, Payload: map[string]any{"content": "wifi password"}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := s.Delete(ctx, "memos", "m1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, _ = s.Get(ctx, "memos", "m1")
	if got != nil {
		t.Fatal("expected memo to be deleted")
	}
}

func TestUnknownCollection(t *testing.T) {
	s := New(logger.Nop())

	err := s.Upsert(context.Background(), "ghost", vectorstore.Point{ID: "a", Vector: []float32{1}})
	if !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestPersistentStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	spec := vectorstore.CollectionSpec{Name: "history_snapshots", Dimension: 1}

	s, err := NewPersistent(logger.Nop(), dir, false)
	if err != nil {
		t.Fatalf("NewPersistent() error = %v", err)
	}
	if _, err := s.EnsureCollection(ctx, spec); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	if err := s.Upsert(ctx, spec.Name, vectorstore.Point{ID: "h", Vector: []float32{1}, Payload: map[string]any{"chat_id": int64(5)}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	reopened, err := NewPersistent(logger.Nop(), dir, false)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	created, err := reopened.EnsureCollection(ctx, spec)
	if err != nil {
		t.Fatalf("EnsureCollection() after reopen error = %v", err)
	}
	if created {
		t.Fatal("collection should already exist after reopen")
	}
	points, err := reopened.Scroll(ctx, spec.Name, nil)
	if err != nil {
		t.Fatalf("Scroll() error = %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 persisted point, got %d", len(points))
	}
}
