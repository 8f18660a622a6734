package model

import "time"

const MessageTableName = "message"

// Field names shared with the store filters so raw bson.M stays typo-safe.
const (
	MessageFieldID             = "_id"
	MessageFieldConversationID = "conversation_id"
	MessageFieldChannelID      = "channel_id"
	MessageFieldMemberID       = "member_id"
	MessageFieldDeletedUserIDs = "deleted_user_ids"
	MessageFieldCreatedAt      = "created_at"
)

// Message is the persisted message snapshot the realtime layer reads.
// Writes go through the HTTP-side CRUD services; this layer only queries
// and caches.
type Message struct {
	ID             string    `bson:"_id" json:"_id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	ChannelID      string    `bson:"channel_id,omitempty" json:"channelId,omitempty"`
	MemberID       string    `bson:"member_id" json:"memberId"`
	Content        string    `bson:"content" json:"content"`
	Type           string    `bson:"type" json:"type"` // TEXT/IMAGE/STICKER/VOTE/NOTIFY...
	ReplyMessageID string    `bson:"reply_message_id,omitempty" json:"replyMessageId,omitempty"`
	DeletedUserIDs []string  `bson:"deleted_user_ids,omitempty" json:"-"`
	IsDeleted      bool      `bson:"is_deleted" json:"isDeleted"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// CreatedAtMilli is the score used in the per-conversation ordered index.
func (m *Message) CreatedAtMilli() int64 {
	return m.CreatedAt.UnixMilli()
}
