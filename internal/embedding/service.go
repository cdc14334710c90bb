// ABOUTME: Embedding service that lazily loads a backend once and runs it on a bounded worker pool
// ABOUTME: Returns L2-normalized vectors of a fixed dimension and caches results per text
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/semaphore"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
)

// Backend turns texts into raw vectors. Implementations must not mutate
// shared state during EmbedBatch; one instance serves every caller.
type Backend interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Loader constructs the backend. It runs on first use.
type Loader func(ctx context.Context) (Backend, error)

type Options struct {
	Dimensions   int
	Workers      int
	CacheEntries int
}

// Service is the process-wide embedder.
type Service struct {
	log  *logger.Logger
	load Loader
	dims int

	mu      sync.Mutex
	backend Backend

	sem   *semaphore.Weighted
	cache *ristretto.Cache
}

func NewService(log *logger.Logger, load Loader, opts Options) (*Service, error) {
	if load == nil {
		return nil, errors.New("embedding loader required")
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", opts.Dimensions)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	s := &Service{
		log:  log.With("component", "embedding"),
		load: load,
		dims: opts.Dimensions,
		sem:  semaphore.NewWeighted(int64(opts.Workers)),
	}
	if opts.CacheEntries > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters:        int64(opts.CacheEntries) * 10,
			MaxCost:            int64(opts.CacheEntries),
			BufferItems:        64,
			IgnoreInternalCost: true, // cost counts entries, not bytes
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

func (s *Service) Dimensions() int {
	return s.dims
}

// Embed returns the normalized embedding of a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one normalized embedding per input, in order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missing []int
	for i, t := range texts {
		if v, ok := s.cached(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	backend, err := s.backendFor(ctx)
	if err != nil {
		return nil, err
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	vecs, err := s.run(ctx, backend, batch)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("embedding backend returned %d vectors for %d texts", len(vecs), len(batch))
	}

	for j, i := range missing {
		if len(vecs[j]) != s.dims {
			return nil, fmt.Errorf("embedding dimension mismatch: expected=%d got=%d", s.dims, len(vecs[j]))
		}
		v := Normalize(vecs[j])
		out[i] = v
		s.remember(texts[i], v)
	}
	return out, nil
}

// backendFor loads the backend on first use. Concurrent first callers wait
// for the single load; a failed load is retried by the next caller.
func (s *Service) backendFor(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		return s.backend, nil
	}
	s.log.Info("Loading embedding backend", "dimensions", s.dims)
	b, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedding backend: %w", err)
	}
	if b.Dimensions() != s.dims {
		return nil, fmt.Errorf("embedding backend dimension %d does not match configured %d", b.Dimensions(), s.dims)
	}
	s.backend = b
	s.log.Info("Embedding backend loaded")
	return b, nil
}

type batchResult struct {
	vecs [][]float32
	err  error
}

// run executes the backend on a worker goroutine so a slow or CPU-bound
// backend never blocks the caller past its context.
func (s *Service) run(ctx context.Context, backend Backend, batch []string) ([][]float32, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	done := make(chan batchResult, 1)
	go func() {
		defer s.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- batchResult{err: fmt.Errorf("embedding backend panic: %v", r)}
			}
		}()
		vecs, err := backend.EmbedBatch(ctx, batch)
		done <- batchResult{vecs: vecs, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("embed %d texts: %w", len(batch), r.err)
		}
		return r.vecs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) cached(text string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(text)
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float32)
	return vec, ok
}

func (s *Service) remember(text string, vec []float32) {
	if s.cache == nil {
		return
	}
	s.cache.Set(text, vec, 1)
	s.cache.Wait()
}

// Close releases the cache.
func (s *Service) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// Normalize returns vec scaled to unit length. Zero vectors are returned as is.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
