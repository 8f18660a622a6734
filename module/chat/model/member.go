package model

import "time"

const MemberTableName = "member"

const (
	MemberFieldConversationID = "conversation_id"
	MemberFieldUserID         = "user_id"
	MemberFieldActive         = "active"
	MemberFieldLastView       = "last_view"
	MemberFieldLastViewOfCh   = "last_view_of_channels"
)

// Member is one user's membership record in a conversation. Active flips
// false when the user leaves or is removed; inactive members keep their
// history but lose read access.
type Member struct {
	ID                 string               `bson:"_id" json:"_id"`
	ConversationID     string               `bson:"conversation_id" json:"conversationId"`
	UserID             string               `bson:"user_id" json:"userId"`
	Active             bool                 `bson:"active" json:"active"`
	LastView           time.Time            `bson:"last_view" json:"lastView"`
	LastViewOfChannels map[string]time.Time `bson:"last_view_of_channels,omitempty" json:"lastViewOfChannels,omitempty"`
}
