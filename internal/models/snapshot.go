// ABOUTME: HistorySnapshot is the latest serialized message log of a chat
// ABOUTME: One snapshot exists per chat; each save overwrites the previous one
package models

import (
	"encoding/json"
	"time"
)

type HistorySnapshot struct {
	ChatID    int64           `json:"chat_id"`
	Messages  json.RawMessage `json:"messages_json"`
	Timestamp time.Time       `json:"timestamp"`
}
