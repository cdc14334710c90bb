// ABOUTME: Backend-neutral vector store contract shared by the Qdrant and chromem adapters
// ABOUTME: Points carry a vector and a JSON-compatible payload; filters are exact payload matches
package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// Distance is the similarity metric of a collection.
type Distance string

const DistanceCosine Distance = "Cosine"

// ErrCollectionExists is returned by backends that detect a duplicate create.
// EnsureCollection implementations translate it into created=false.
var ErrCollectionExists = errors.New("collection already exists")

// CollectionSpec describes a collection to create.
type CollectionSpec struct {
	Name      string
	Dimension int
	Distance  Distance
}

// Point is a stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit. Score is cosine similarity.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Condition matches a payload field exactly.
type Condition struct {
	Key   string
	Value any
}

// Filter is a conjunction of exact-match conditions.
type Filter struct {
	Must []Condition
}

// Match builds a single-condition filter.
func Match(key string, value any) *Filter {
	return &Filter{Must: []Condition{{Key: key, Value: value}}}
}

// And returns a copy of f with one more condition.
func (f *Filter) And(key string, value any) *Filter {
	out := &Filter{}
	if f != nil {
		out.Must = append(out.Must, f.Must...)
	}
	out.Must = append(out.Must, Condition{Key: key, Value: value})
	return out
}

func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.Must) == 0
}

// Store is implemented by every vector backend. Implementations must be safe
// for concurrent use; one instance is shared process-wide.
type Store interface {
	// EnsureCollection creates the collection if absent. A concurrent
	// duplicate create reports created=false and no error.
	EnsureCollection(ctx context.Context, spec CollectionSpec) (created bool, err error)
	Upsert(ctx context.Context, collection string, points ...Point) error
	// Search returns up to limit hits ordered by descending score.
	Search(ctx context.Context, collection string, vector []float32, filter *Filter, limit int) ([]ScoredPoint, error)
	// Scroll returns every point matching filter. Vectors are not populated.
	Scroll(ctx context.Context, collection string, filter *Filter) ([]Point, error)
	// Get returns nil, nil when the point does not exist.
	Get(ctx context.Context, collection, id string) (*Point, error)
	// SetPayload merges fields into an existing point's payload.
	SetPayload(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection string, ids ...string) error
	Close() error
}

// EnsureCollections ensures every spec and returns the names newly created.
func EnsureCollections(ctx context.Context, s Store, specs ...CollectionSpec) ([]string, error) {
	var created []string
	for _, spec := range specs {
		if spec.Distance == "" {
			spec.Distance = DistanceCosine
		}
		ok, err := s.EnsureCollection(ctx, spec)
		if err != nil {
			return created, fmt.Errorf("ensure collection %s: %w", spec.Name, err)
		}
		if ok {
			created = append(created, spec.Name)
		}
	}
	return created, nil
}

// ClonePayload returns a shallow copy so callers never share payload maps.
func ClonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
