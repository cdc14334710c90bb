// ABOUTME: Tests for application wiring and the ordered startup sequence
// ABOUTME: Uses the embedded chromem store and hash embeddings so no services are needed
package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/config"
	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/scheduler"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore/chromem"
)

func testConfig() *config.Config {
	return &config.Config{
		LogMode:               "development",
		VectorStore:           config.StoreChromem,
		VectorDimension:       8,
		EmbeddingBackend:      config.EmbeddingHash,
		EmbeddingWorkers:      1,
		EmbeddingCacheEntries: 16,
		LLMProvider:           config.ProviderOpenAI,
		LLMBaseURL:            "http://127.0.0.1:1/v1",
		LLMModel:              "test-model",
		LLMTimeout:            time.Second,
		InsightEveryNTurns:    3,
		InsightMinConfidence:  0.3,
		InsightDuplicateScore: 0.85,
		ExtractionTimeout:     time.Second,
		Timezone:              "UTC",
	}
}

func newTestApp(t *testing.T, store vectorstore.Store, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithVectorStore(store)}, opts...)
	a, err := New(context.Background(), testConfig(), logger.Nop(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestStart_EnsuresCollectionsOnce(t *testing.T) {
	store := chromem.New(logger.Nop())

	first := newTestApp(t, store)
	report, err := first.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(report.CreatedCollections) != 6 {
		t.Errorf("created %v, want all six collections", report.CreatedCollections)
	}
	first.Scheduler.Stop()

	second := newTestApp(t, store)
	report, err = second.Start(context.Background())
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if len(report.CreatedCollections) != 0 {
		t.Errorf("second start created %v", report.CreatedCollections)
	}
	if err := second.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_SQLiteStoreFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.VectorStore = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	a, err := New(ctx, cfg, logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := a.Memos.SaveMemo(ctx, 42, "Passport is in the top drawer", "note"); err != nil {
		t.Fatalf("SaveMemo() error = %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	reopened, err := New(ctx, cfg, logger.Nop())
	if err != nil {
		t.Fatalf("reopen New() error = %v", err)
	}
	defer func() { _ = reopened.Shutdown(ctx) }()
	report, err := reopened.Start(ctx)
	if err != nil {
		t.Fatalf("reopen Start() error = %v", err)
	}
	if len(report.CreatedCollections) != 0 {
		t.Errorf("reopen created %v, want none", report.CreatedCollections)
	}
	memos, err := reopened.Memos.ListMemos(ctx, 42)
	if err != nil || len(memos) != 1 {
		t.Fatalf("ListMemos() = %v, %v; want the saved memo", memos, err)
	}
}

func TestStart_RestoresStateAfterRestart(t *testing.T) {
	store := chromem.New(logger.Nop())
	ctx := context.Background()

	first := newTestApp(t, store)
	if _, err := first.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first.Manager.OnTurnComplete(ctx, 42, "Remind me about the dentist", "Sure", json.RawMessage(`[{"role":"user","content":"hi"}]`))
	if _, err := first.Scheduler.CreateAlarm(ctx, 42, "Dentist", time.Now().Add(time.Hour), models.RepeatNone); err != nil {
		t.Fatalf("CreateAlarm() error = %v", err)
	}
	if err := first.Scheduler.CreateBriefing(ctx, 42, "08:00"); err != nil {
		t.Fatalf("CreateBriefing() error = %v", err)
	}
	first.Scheduler.Stop()

	second := newTestApp(t, store)
	defer second.Shutdown(ctx)
	report, err := second.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if report.Alarms != 1 || report.Briefings != 1 {
		t.Errorf("restored alarms=%d briefings=%d, want 1 and 1", report.Alarms, report.Briefings)
	}
	if _, ok := report.Histories[42]; !ok {
		t.Errorf("history for chat 42 not restored: %v", report.Histories)
	}
	if h, ok := second.History(42); !ok || !strings.Contains(string(h), `"hi"`) {
		t.Errorf("History(42) = %s, %v", h, ok)
	}
	if ids := second.HistoryChats(); len(ids) != 1 || ids[0] != 42 {
		t.Errorf("HistoryChats() = %v", ids)
	}
	if n := len(second.Scheduler.Pending()); n != 2 {
		t.Errorf("pending timers = %d, want 2", n)
	}
}

// failingStore refuses to create collections, like an unreachable Qdrant
type failingStore struct {
	vectorstore.Store
}

func (failingStore) EnsureCollection(context.Context, vectorstore.CollectionSpec) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingStore) Close() error { return nil }

func TestStart_CollectionFailureIsFatal(t *testing.T) {
	a := newTestApp(t, failingStore{})
	if _, err := a.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail")
	}
}

// captureClock records timers so the test can fire them by hand
type captureClock struct {
	mu  sync.Mutex
	fns []func()
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func (c *captureClock) Now() time.Time { return time.Now() }

func (c *captureClock) AfterFunc(_ time.Duration, f func()) scheduler.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, f)
	return noopTimer{}
}

func (c *captureClock) first() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fns[0]
}

func TestNew_CustomCallbacks(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	deliver := func(_ context.Context, _ int64, text string) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, text)
		return nil
	}
	summary := func(context.Context, int64) (string, error) { return "custom briefing", nil }
	clock := &captureClock{}

	a := newTestApp(t, chromem.New(logger.Nop()), WithDeliver(deliver), WithSummary(summary), WithClock(clock))
	if _, err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Scheduler.CreateBriefing(context.Background(), 7, "08:00"); err != nil {
		t.Fatalf("CreateBriefing() error = %v", err)
	}

	clock.first()()

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 || delivered[0] != "custom briefing" {
		t.Errorf("delivered = %v", delivered)
	}
	if a.Briefings == nil || a.LLM == nil {
		t.Error("LLM-backed components should be built from config")
	}
}

func TestNew_MissingLLMDisablesBriefings(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = config.ProviderAnthropic
	cfg.LLMAPIKey = ""

	a, err := New(context.Background(), cfg, logger.Nop(), WithVectorStore(chromem.New(logger.Nop())))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.LLM != nil || a.Briefings != nil {
		t.Error("LLM-backed components should be disabled")
	}
	if _, err := a.summarize(context.Background(), 1); !errors.Is(err, ErrNoLLM) {
		t.Errorf("summarize() error = %v, want ErrNoLLM", err)
	}
}

func TestNew_InvalidTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	if _, err := New(context.Background(), cfg, logger.Nop(), WithVectorStore(chromem.New(logger.Nop()))); err == nil {
		t.Fatal("expected timezone error")
	}
}
