// ABOUTME: Application wiring for the memory and scheduling subsystem
// ABOUTME: Builds every component from config and runs the ordered startup and shutdown sequences
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/config"
	"github.com/jerryymjo/jarvis-memory/internal/core"
	"github.com/jerryymjo/jarvis-memory/internal/embedding"
	"github.com/jerryymjo/jarvis-memory/internal/llm"
	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/scheduler"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore/chromem"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore/qdrant"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore/sqlite"
)

// ErrNoTransport is returned by the default deliver callback
var ErrNoTransport = errors.New("no delivery transport configured")

// ErrNoLLM is returned by the default summary callback when no LLM could be built
var ErrNoLLM = errors.New("LLM is not configured")

const qdrantReadyDelay = time.Second

// Option customizes App construction
type Option func(*options)

type options struct {
	deliver scheduler.DeliverFunc
	summary scheduler.SummaryFunc
	store   vectorstore.Store
	clock   scheduler.Clock
}

// WithDeliver sets how scheduled messages reach a chat.
func WithDeliver(fn scheduler.DeliverFunc) Option {
	return func(o *options) { o.deliver = fn }
}

// WithSummary replaces the LLM briefing generator.
func WithSummary(fn scheduler.SummaryFunc) Option {
	return func(o *options) { o.summary = fn }
}

// WithVectorStore uses store instead of the configured backend.
func WithVectorStore(store vectorstore.Store) Option {
	return func(o *options) { o.store = store }
}

func WithClock(clock scheduler.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// App owns the long-lived components. Every field is shared by all callers.
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Storage   *storage.Storage
	Embedder  *embedding.Service
	LLM       llm.Completer
	Manager   *core.MemoryManager
	Memos     *core.MemoService
	Briefings *core.BriefingGenerator
	Scheduler *scheduler.Scheduler

	mu        sync.RWMutex
	histories map[int64]json.RawMessage
}

// StartupReport summarizes what Start restored
type StartupReport struct {
	CreatedCollections []string
	Histories          map[int64]json.RawMessage
	Alarms             int
	Briefings          int
}

// New builds the application. It connects to the vector store but does not
// touch collections; call Start for that.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		store, err = openStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	}
	st := storage.New(store, log, storage.Options{
		Prefix:    cfg.CollectionPrefix,
		Dimension: cfg.VectorDimension,
		Location:  loc,
	})

	embedder, err := embedding.NewService(log, embeddingLoader(cfg), embedding.Options{
		Dimensions:   cfg.VectorDimension,
		Workers:      cfg.EmbeddingWorkers,
		CacheEntries: cfg.EmbeddingCacheEntries,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	completer, err := llm.New(cfg.LLMProvider, &llm.ClientConfig{
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		Model:      cfg.LLMModel,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: cfg.LLMMaxRetries,
		RetryDelay: cfg.LLMRetryDelay,
	})
	if err != nil {
		log.Warn("LLM unavailable; insight extraction and briefings are disabled", "provider", cfg.LLMProvider, "error", err)
		completer = nil
	}

	hydrator := core.NewContextHydrator(st, embedder, core.DefaultContextOptions())

	var extractor *core.InsightExtractor
	if completer != nil {
		extractor = core.NewInsightExtractor(completer, embedder, st, log, core.ExtractorConfig{
			MinConfidence:  cfg.InsightMinConfidence,
			DuplicateScore: cfg.InsightDuplicateScore,
		})
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Storage:  st,
		Embedder: embedder,
		LLM:      completer,
		Manager: core.NewMemoryManager(st, embedder, hydrator, extractor, log, core.ManagerConfig{
			EveryNTurns:       cfg.InsightEveryNTurns,
			ExtractionTimeout: cfg.ExtractionTimeout,
		}),
		Memos:     core.NewMemoService(st, embedder, log),
		histories: make(map[int64]json.RawMessage),
	}
	if completer != nil {
		a.Briefings = core.NewBriefingGenerator(completer, hydrator, log, cfg.BriefingQuery, loc)
	}

	deliver := o.deliver
	if deliver == nil {
		deliver = func(_ context.Context, chatID int64, text string) error {
			log.Warn("Dropping scheduled message", "chat_id", chatID, "chars", len(text))
			return ErrNoTransport
		}
	}
	summary := o.summary
	if summary == nil {
		summary = a.summarize
	}

	a.Scheduler = scheduler.New(st, deliver, summary, log, scheduler.Options{
		Location: loc,
		Clock:    o.clock,
	})
	return a, nil
}

func (a *App) summarize(ctx context.Context, chatID int64) (string, error) {
	if a.Briefings == nil {
		return "", ErrNoLLM
	}
	return a.Briefings.Summarize(ctx, chatID)
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore {
	case config.StoreChromem:
		if cfg.ChromemPath == "" {
			return chromem.New(log), nil
		}
		return chromem.NewPersistent(log, cfg.ChromemPath, cfg.ChromemCompress)
	case config.StoreSQLite:
		if cfg.SQLitePath == "" {
			return sqlite.OpenInMemory(ctx, log)
		}
		return sqlite.Open(ctx, log, cfg.SQLitePath)
	default:
		client, err := qdrant.New(log, qdrant.Config{
			URL:     cfg.QdrantURL,
			APIKey:  cfg.QdrantAPIKey,
			Timeout: cfg.QdrantTimeout,
		})
		if err != nil {
			return nil, err
		}
		// Not fatal here; EnsureCollections reports a store that never came up
		if err := client.WaitReady(ctx, cfg.QdrantWaitAttempts, qdrantReadyDelay); err != nil {
			log.Warn("Qdrant is not ready", "url", cfg.QdrantURL, "error", err)
		}
		return client, nil
	}
}

func embeddingLoader(cfg *config.Config) embedding.Loader {
	if cfg.EmbeddingBackend == config.EmbeddingHash {
		return func(context.Context) (embedding.Backend, error) {
			return embedding.NewHashBackend(cfg.VectorDimension), nil
		}
	}
	return func(context.Context) (embedding.Backend, error) {
		return embedding.NewOpenAIBackend(embedding.OpenAIConfig{
			BaseURL:    cfg.EmbeddingBaseURL,
			APIKey:     cfg.EmbeddingAPIKey,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.VectorDimension,
		}), nil
	}
}

// Start ensures collections, then restores histories, alarms, and briefings.
// Only the collection step can fail; the rest degrade to empty.
func (a *App) Start(ctx context.Context) (*StartupReport, error) {
	created, err := a.Storage.EnsureCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure collections: %w", err)
	}

	histories := a.Manager.RestoreHistories(ctx)
	a.mu.Lock()
	a.histories = histories
	a.mu.Unlock()

	report := &StartupReport{
		CreatedCollections: created,
		Histories:          histories,
		Alarms:             a.Scheduler.RestoreAlarms(ctx),
		Briefings:          a.Scheduler.RestoreBriefings(ctx),
	}
	a.Log.Info("Startup complete",
		"created_collections", len(created),
		"histories", len(histories),
		"alarms", report.Alarms,
		"briefings", report.Briefings)
	return report, nil
}

// History returns the message log restored for chatID at startup.
func (a *App) History(chatID int64) (json.RawMessage, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h, ok := a.histories[chatID]
	return h, ok
}

// HistoryChats returns the chat ids with a restored history, ascending.
func (a *App) HistoryChats() []int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]int64, 0, len(a.histories))
	for id := range a.histories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Shutdown stops timers, waits for in-flight extraction, and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	a.Scheduler.Stop()
	if err := a.Manager.Close(ctx); err != nil {
		a.Log.Warn("Shutdown did not wait for all extractions", "error", err)
	}
	a.Embedder.Close()
	return a.Storage.Close()
}
