package storage

import (
	"fmt"
	"strconv"
)

// Key formats are shared wire contracts with the HTTP-side services; do
// not change them without migrating both sides.

// PresenceKey -> presence:<userId>, TTL 24h refreshed on every transition.
func PresenceKey(userID string) string { return "presence:" + userID }

// PageKey -> messages:<conv>:page:<skip>:<limit>, TTL 5m.
func PageKey(conversationID string, skip, limit int64) string {
	return fmt.Sprintf("messages:%s:page:%d:%d", conversationID, skip, limit)
}

// CursorKey -> messages:<conv>:cursor:<tsMilli|latest>, TTL 5m.
func CursorKey(conversationID string, beforeMilli int64) string {
	anchor := "latest"
	if beforeMilli > 0 {
		anchor = strconv.FormatInt(beforeMilli, 10)
	}
	return fmt.Sprintf("messages:%s:cursor:%s", conversationID, anchor)
}

// AnchorKey -> messages:<conv>:anchor:<tsMilli>, TTL 5m. One-message
// window centered on a known timestamp for "jump to message" lookups.
// Kept apart from CursorKey: cursor pages hold messages strictly older
// than their timestamp, anchor pages hold the message at it.
func AnchorKey(conversationID string, atMilli int64) string {
	return fmt.Sprintf("messages:%s:anchor:%d", conversationID, atMilli)
}

// MessageKey -> message:<id>, TTL 24h.
func MessageKey(messageID string) string { return "message:" + messageID }

// ConversationIndexKey -> conversation:<conv>:messages, zset of message ids
// scored by creation time in ms, capped at 1000, TTL 7d refreshed on write.
func ConversationIndexKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}
