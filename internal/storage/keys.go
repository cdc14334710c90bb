// ABOUTME: Deterministic point IDs for records that must exist at most once
// ABOUTME: UUIDv5 in the DNS namespace so existing deployments keep their keys
package storage

import (
	"fmt"

	"github.com/google/uuid"
)

func deterministicID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String()
}

// HistoryPointID is the single snapshot point of a chat.
func HistoryPointID(chatID int64) string {
	return deterministicID(fmt.Sprintf("history-%d", chatID))
}

// BriefingPointID is the single briefing point of a chat.
func BriefingPointID(chatID int64) string {
	return deterministicID(fmt.Sprintf("briefing-%d", chatID))
}

// AlarmPointID maps an alarm's own identifier to its point.
func AlarmPointID(alarmID string) string {
	return deterministicID("alarm-" + alarmID)
}
