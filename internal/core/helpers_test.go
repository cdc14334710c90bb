// ABOUTME: Shared fixtures for core tests: in-memory storage, a table-driven embedder, and a stub LLM
// ABOUTME: Vectors are explicit basis vectors so similarity scores are exact
package core

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/jerryymjo/jarvis-memory/internal/llm"
	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore/chromem"
)

const testDims = 16

// basis returns the unit vector along axis i.
func basis(i int) []float32 {
	v := make([]float32, testDims)
	v[i] = 1
	return v
}

// blend returns a unit vector at cosine similarity cos to basis(i), leaning toward basis(j).
func blend(i, j int, cos float64) []float32 {
	v := make([]float32, testDims)
	v[i] = float32(cos)
	v[j] = float32(math.Sqrt(1 - cos*cos))
	return v
}

// mapEmbedder returns the configured vector for known texts and the last
// basis vector for anything else.
type mapEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func newMapEmbedder() *mapEmbedder {
	return &mapEmbedder{vectors: make(map[string][]float32)}
}

func (e *mapEmbedder) set(text string, v []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = v
}

func (e *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return basis(testDims - 1), nil
}

// stubCompleter returns a canned response and records each request.
type stubCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	requests []llm.CompletionRequest
}

func (c *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return c.response, c.err
}

func (c *stubCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s := storage.New(chromem.New(logger.Nop()), logger.Nop(), storage.Options{Dimension: testDims})
	if _, err := s.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("EnsureCollections() error = %v", err)
	}
	return s
}

var errUnreachable = errors.New("dial tcp qdrant:6333: connect: connection refused")

// downStore fails every call the way an unreachable vector database would.
type downStore struct{}

func (downStore) EnsureCollection(context.Context, vectorstore.CollectionSpec) (bool, error) {
	return false, errUnreachable
}
func (downStore) Upsert(context.Context, string, ...vectorstore.Point) error { return errUnreachable }
func (downStore) Search(context.Context, string, []float32, *vectorstore.Filter, int) ([]vectorstore.ScoredPoint, error) {
	return nil, errUnreachable
}
func (downStore) Scroll(context.Context, string, *vectorstore.Filter) ([]vectorstore.Point, error) {
	return nil, errUnreachable
}
func (downStore) Get(context.Context, string, string) (*vectorstore.Point, error) {
	return nil, errUnreachable
}
func (downStore) SetPayload(context.Context, string, string, map[string]any) error {
	return errUnreachable
}
func (downStore) Delete(context.Context, string, ...string) error { return errUnreachable }
func (downStore) Close() error                                    { return nil }

func newDownStorage() *storage.Storage {
	return storage.New(downStore{}, logger.Nop(), storage.Options{Dimension: testDims})
}
