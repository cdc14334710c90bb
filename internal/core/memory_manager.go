// ABOUTME: MemoryManager persists each completed turn and serves retrieval context to the assistant
// ABOUTME: Triggers background insight extraction every N turns per chat and restores chat histories at startup
package core

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
)

// ManagerConfig controls extraction cadence
type ManagerConfig struct {
	EveryNTurns       int
	ExtractionTimeout time.Duration
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{EveryNTurns: 3, ExtractionTimeout: 2 * time.Minute}
}

// MemoryManager orchestrates saving, searching, and context injection
type MemoryManager struct {
	storage   *storage.Storage
	embedder  Embedder
	hydrator  *ContextHydrator
	extractor *InsightExtractor
	log       *logger.Logger
	cfg       ManagerConfig

	mu         sync.Mutex
	turnCounts map[int64]int
	closed     bool

	wg sync.WaitGroup
}

// NewMemoryManager creates a manager. extractor may be nil to disable extraction.
func NewMemoryManager(store *storage.Storage, embedder Embedder, hydrator *ContextHydrator, extractor *InsightExtractor, log *logger.Logger, cfg ManagerConfig) *MemoryManager {
	if cfg.EveryNTurns < 1 {
		cfg.EveryNTurns = 1
	}
	return &MemoryManager{
		storage:    store,
		embedder:   embedder,
		hydrator:   hydrator,
		extractor:  extractor,
		log:        log.With("component", "memory_manager"),
		cfg:        cfg,
		turnCounts: make(map[int64]int),
	}
}

// OnTurnComplete saves the turn and the chat's message log. Each step fails
// independently and only logs.
func (m *MemoryManager) OnTurnComplete(ctx context.Context, chatID int64, userText, assistantText string, messageLog json.RawMessage) {
	if m.isClosed() {
		m.log.Warn("Turn dropped during shutdown", "chat_id", chatID)
		return
	}
	m.saveTurn(ctx, chatID, userText, assistantText)
	m.saveSnapshot(ctx, chatID, messageLog)

	count := m.incrementTurn(chatID)
	if count%m.cfg.EveryNTurns == 0 && m.extractor != nil {
		m.startExtraction(ctx, chatID, userText, assistantText)
	}
	m.log.Info("Memory saved", "chat_id", chatID, "turn", count)
}

func (m *MemoryManager) saveTurn(ctx context.Context, chatID int64, userText, assistantText string) {
	turn, err := models.NewConversationTurn(chatID, userText, assistantText)
	if err != nil {
		m.log.Warn("Skipping empty turn", "chat_id", chatID, "error", err)
		return
	}
	vector, err := m.embedder.Embed(ctx, turn.EmbeddingText())
	if err != nil {
		m.log.Error("Failed to embed turn", "chat_id", chatID, "error", err)
		return
	}
	if _, err := m.storage.UpsertConversation(ctx, turn, vector); err != nil {
		m.log.Error("Failed to save turn", "chat_id", chatID, "error", err)
	}
}

func (m *MemoryManager) saveSnapshot(ctx context.Context, chatID int64, messageLog json.RawMessage) {
	if len(messageLog) == 0 {
		return
	}
	if !json.Valid(messageLog) {
		m.log.Warn("Skipping invalid message log snapshot", "chat_id", chatID)
		return
	}
	if err := m.storage.SaveHistorySnapshot(ctx, chatID, messageLog); err != nil {
		m.log.Error("Failed to save history snapshot", "chat_id", chatID, "error", err)
	}
}

func (m *MemoryManager) incrementTurn(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnCounts[chatID]++
	return m.turnCounts[chatID]
}

// TurnCount returns how many turns the chat completed since process start.
func (m *MemoryManager) TurnCount(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turnCounts[chatID]
}

// startExtraction runs extraction off the caller's path. The goroutine keeps
// the caller's values but not its cancellation.
func (m *MemoryManager) startExtraction(ctx context.Context, chatID int64, userText, assistantText string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.log.Error("Insight extraction panicked", "chat_id", chatID, "panic", r)
			}
		}()

		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ExtractionTimeout)
		defer cancel()
		m.extractor.MaybeExtractInsights(bg, chatID, userText, assistantText)
	}()
}

func (m *MemoryManager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close rejects further turns and waits for running extractions.
func (m *MemoryManager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Wait(ctx)
}

// Wait blocks until background extractions finish or ctx ends.
func (m *MemoryManager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetRelevantContext returns the memory context for userText, or "" on any failure.
func (m *MemoryManager) GetRelevantContext(ctx context.Context, chatID int64, userText string) string {
	out, err := m.hydrator.Hydrate(ctx, chatID, userText)
	if err != nil {
		m.log.Error("Failed to get context", "chat_id", chatID, "error", err)
		return ""
	}
	return out
}

// RestoreHistories loads every chat's last message log. Snapshots whose blob
// is not valid JSON are skipped.
func (m *MemoryManager) RestoreHistories(ctx context.Context) map[int64]json.RawMessage {
	restored := make(map[int64]json.RawMessage)

	snapshots, err := m.storage.LoadAllHistorySnapshots(ctx)
	if err != nil {
		m.log.Error("Failed to restore histories", "error", err)
		return restored
	}

	for _, snap := range snapshots {
		if !json.Valid(snap.Messages) {
			m.log.Warn("Skipping corrupt history snapshot", "chat_id", snap.ChatID)
			continue
		}
		restored[snap.ChatID] = snap.Messages
		m.log.Info("Restored history", "chat_id", snap.ChatID, "bytes", len(snap.Messages))
	}
	return restored
}
