// ABOUTME: Translates backend-neutral filters into Qdrant's JSON filter language
// ABOUTME: Only exact-match "must" conditions are needed by the memory collections
package qdrant

import (
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

func translateFilter(f *vectorstore.Filter) map[string]any {
	if f.IsEmpty() {
		return nil
	}
	must := make([]any, 0, len(f.Must))
	for _, c := range f.Must {
		must = append(must, qdrantMatchCondition(c.Key, c.Value))
	}
	return map[string]any{"must": must}
}

func qdrantMatchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}
