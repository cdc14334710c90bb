// ABOUTME: Tests for MemoryManager turn persistence, extraction cadence, context rendering, and history restore
// ABOUTME: Runs against in-memory chromem storage with exact basis-vector embeddings
package core

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
)

func newTestManager(t *testing.T, store *storage.Storage, emb *mapEmbedder, completer *stubCompleter) *MemoryManager {
	t.Helper()
	hydrator := NewContextHydrator(store, emb, DefaultContextOptions())
	var extractor *InsightExtractor
	if completer != nil {
		extractor = NewInsightExtractor(completer, emb, store, logger.Nop(), DefaultExtractorConfig())
	}
	cfg := DefaultManagerConfig()
	cfg.ExtractionTimeout = 5 * time.Second
	return NewMemoryManager(store, emb, hydrator, extractor, logger.Nop(), cfg)
}

func TestOnTurnComplete_SavesTurnAndSnapshot(t *testing.T) {
	store := newTestStorage(t)
	emb := newMapEmbedder()
	emb.set(models.TurnEmbeddingText("I moved to Busan", "Noted, Busan it is"), basis(0))
	m := newTestManager(t, store, emb, nil)
	ctx := context.Background()

	m.OnTurnComplete(ctx, 42, "I moved to Busan", "Noted, Busan it is", json.RawMessage(`[{"n":1}]`))
	m.OnTurnComplete(ctx, 42, "hello", "hi", json.RawMessage(`[{"n":1},{"n":2}]`))

	hits, err := store.SearchConversations(ctx, basis(0), 42, 3)
	if err != nil {
		t.Fatalf("SearchConversations() error = %v", err)
	}
	if len(hits) == 0 || hits[0].Item.UserText != "I moved to Busan" {
		t.Fatalf("turn not persisted: %+v", hits)
	}

	snaps, err := store.LoadAllHistorySnapshots(ctx)
	if err != nil {
		t.Fatalf("LoadAllHistorySnapshots() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected one snapshot per chat, got %d", len(snaps))
	}
	if string(snaps[0].Messages) != `[{"n":1},{"n":2}]` {
		t.Errorf("snapshot = %s, want latest log", snaps[0].Messages)
	}
	if m.TurnCount(42) != 2 {
		t.Errorf("TurnCount = %d, want 2", m.TurnCount(42))
	}
}

func TestOnTurnComplete_SnapshotSurvivesEmbeddingFailure(t *testing.T) {
	store := newTestStorage(t)
	emb := newMapEmbedder()
	emb.err = errUnreachable
	m := newTestManager(t, store, emb, nil)
	ctx := context.Background()

	m.OnTurnComplete(ctx, 7, "u", "a", json.RawMessage(`[]`))

	snap, err := store.LoadHistorySnapshot(ctx, 7)
	if err != nil || snap == nil {
		t.Fatalf("snapshot should still be saved, got %v, %v", snap, err)
	}
	if m.TurnCount(7) != 1 {
		t.Errorf("counter should still advance, got %d", m.TurnCount(7))
	}
}

func TestOnTurnComplete_NeverPanicsWhenStoreIsDown(t *testing.T) {
	m := newTestManager(t, newDownStorage(), newMapEmbedder(), nil)
	m.OnTurnComplete(context.Background(), 1, "u", "a", json.RawMessage(`[]`))
}

func TestOnTurnComplete_ExtractsEveryThirdTurn(t *testing.T) {
	store := newTestStorage(t)
	emb := newMapEmbedder()
	completer := &stubCompleter{response: "[]"}
	m := newTestManager(t, store, emb, completer)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		m.OnTurnComplete(ctx, 42, "u", "a", nil)
	}
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if completer.calls() != 0 {
		t.Fatalf("extraction ran after 2 turns")
	}

	m.OnTurnComplete(ctx, 42, "u", "a", nil)
	// A different chat keeps its own count
	m.OnTurnComplete(ctx, 99, "u", "a", nil)
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if completer.calls() != 1 {
		t.Fatalf("extraction calls = %d, want 1", completer.calls())
	}
}

func TestOnTurnComplete_ExtractionOutlivesCallerContext(t *testing.T) {
	store := newTestStorage(t)
	emb := newMapEmbedder()
	emb.set("Prefers tea over coffee", basis(3))
	completer := &stubCompleter{response: `[{"content":"Prefers tea over coffee","category":"preference","confidence":0.9}]`}
	m := newTestManager(t, store, emb, completer)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		m.OnTurnComplete(ctx, 42, "u", "a", nil)
	}
	cancel()

	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	hits, err := store.SearchInsights(context.Background(), basis(3), 1)
	if err != nil {
		t.Fatalf("SearchInsights() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("insight not saved after caller cancelled")
	}
}

func TestGetRelevantContext_RendersSectionsInOrder(t *testing.T) {
	store := newTestStorage(t)
	emb := newMapEmbedder()
	ctx := context.Background()

	insight, _ := models.NewInsight("Allergic to peanuts", models.InsightFact, 0.9)
	if _, err := store.UpsertInsight(ctx, insight, basis(0)); err != nil {
		t.Fatalf("UpsertInsight() error = %v", err)
	}
	weak, _ := models.NewInsight("Owns a bicycle", models.InsightFact, 0.9)
	if _, err := store.UpsertInsight(ctx, weak, basis(5)); err != nil {
		t.Fatalf("UpsertInsight() error = %v", err)
	}
	memo, _ := models.NewMemo(42, "Dinner reservation at 7", models.MemoCategoryMemo)
	if _, err := store.SaveMemo(ctx, memo, blend(0, 1, 0.8)); err != nil {
		t.Fatalf("SaveMemo() error = %v", err)
	}
	turn, _ := models.NewConversationTurn(42, "What should I cook?", "Maybe pasta")
	if _, err := store.UpsertConversation(ctx, turn, blend(0, 2, 0.7)); err != nil {
		t.Fatalf("UpsertConversation() error = %v", err)
	}
	// Below the 0.4 conversation floor
	faint, _ := models.NewConversationTurn(42, "Weather?", "Sunny")
	if _, err := store.UpsertConversation(ctx, faint, blend(0, 3, 0.35)); err != nil {
		t.Fatalf("UpsertConversation() error = %v", err)
	}

	emb.set("dinner plans", basis(0))
	m := newTestManager(t, store, emb, nil)

	got := m.GetRelevantContext(ctx, 42, "dinner plans")
	want := strings.Join([]string{
		InsightsHeader,
		"- Allergic to peanuts",
		MemosHeader,
		"- Dinner reservation at 7",
		ConversationsHeader,
		`- User: "What should I cook?" → Assistant: "Maybe pasta"`,
	}, "\n")
	if got != want {
		t.Errorf("GetRelevantContext() =\n%s\nwant\n%s", got, want)
	}
}

func TestGetRelevantContext_OtherChatsExcluded(t *testing.T) {
	store := newTestStorage(t)
	emb := newMapEmbedder()
	ctx := context.Background()

	memo, _ := models.NewMemo(7, "Someone else's locker code", models.MemoCategoryNote)
	if _, err := store.SaveMemo(ctx, memo, basis(0)); err != nil {
		t.Fatalf("SaveMemo() error = %v", err)
	}
	emb.set("locker", basis(0))

	m := newTestManager(t, store, emb, nil)
	if got := m.GetRelevantContext(ctx, 42, "locker"); got != "" {
		t.Errorf("expected empty context for chat 42, got %q", got)
	}
}

func TestGetRelevantContext_UnreachableStore(t *testing.T) {
	m := newTestManager(t, newDownStorage(), newMapEmbedder(), nil)
	if got := m.GetRelevantContext(context.Background(), 42, "anything"); got != "" {
		t.Errorf("GetRelevantContext() = %q, want empty", got)
	}
}

func TestGetRelevantContext_EmbeddingFailure(t *testing.T) {
	emb := newMapEmbedder()
	emb.err = errUnreachable
	m := newTestManager(t, newTestStorage(t), emb, nil)
	if got := m.GetRelevantContext(context.Background(), 42, "anything"); got != "" {
		t.Errorf("GetRelevantContext() = %q, want empty", got)
	}
}

func TestRestoreHistories_SkipsCorruptSnapshots(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.SaveHistorySnapshot(ctx, 1, json.RawMessage(`[{"role":"user"}]`)); err != nil {
		t.Fatalf("SaveHistorySnapshot() error = %v", err)
	}
	if err := store.SaveHistorySnapshot(ctx, 2, json.RawMessage(`{not json`)); err != nil {
		t.Fatalf("SaveHistorySnapshot() error = %v", err)
	}

	m := newTestManager(t, store, newMapEmbedder(), nil)
	restored := m.RestoreHistories(ctx)
	if len(restored) != 1 {
		t.Fatalf("restored %d chats, want 1", len(restored))
	}
	if string(restored[1]) != `[{"role":"user"}]` {
		t.Errorf("restored[1] = %s", restored[1])
	}
}

func TestRestoreHistories_StoreDown(t *testing.T) {
	m := newTestManager(t, newDownStorage(), newMapEmbedder(), nil)
	restored := m.RestoreHistories(context.Background())
	if restored == nil || len(restored) != 0 {
		t.Errorf("expected empty non-nil map, got %v", restored)
	}
}

func TestWait_RespectsContext(t *testing.T) {
	m := newTestManager(t, newTestStorage(t), newMapEmbedder(), nil)
	m.wg.Add(1)
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); err == nil {
		t.Fatal("expected Wait to stop at the deadline")
	}
}

func TestClose_DropsLaterTurns(t *testing.T) {
	store := newTestStorage(t)
	emb := newMapEmbedder()
	completer := &stubCompleter{response: "[]"}
	m := newTestManager(t, store, emb, completer)
	ctx := context.Background()

	m.OnTurnComplete(ctx, 42, "u", "a", json.RawMessage(`[{"n":1}]`))
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		m.OnTurnComplete(ctx, 42, "u", "a", json.RawMessage(`[{"n":2}]`))
	}
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if m.TurnCount(42) != 1 {
		t.Errorf("TurnCount = %d, want 1", m.TurnCount(42))
	}
	if completer.calls() != 0 {
		t.Errorf("extraction ran after Close, calls = %d", completer.calls())
	}
	snap, err := store.LoadHistorySnapshot(ctx, 42)
	if err != nil || snap == nil {
		t.Fatalf("LoadHistorySnapshot() = %v, %v", snap, err)
	}
	if string(snap.Messages) != `[{"n":1}]` {
		t.Errorf("snapshot = %s, want the pre-shutdown log", snap.Messages)
	}
}
