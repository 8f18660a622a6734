// Package chat declares the collaborator ports the realtime layer depends
// on. The socket/cache code only sees these contracts; the Mongo-backed
// implementations live in module/chat/store.
package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/DoraeChat/DoraeChat-BE-sub000/module/chat/model"
)

// ErrNotAMember is returned on history reads by users who are not active
// members of the conversation. Surfaced to HTTP-side callers, never to the
// socket transport.
var ErrNotAMember = errors.New("user is not an active member of the conversation")

// PageQuery selects one history window, newest-first. Cursor mode when
// Before is non-nil, offset mode otherwise.
type PageQuery struct {
	ConversationID string
	ChannelID      string
	UserID         string // personal deletes by this user are excluded
	Skip           int64
	Limit          int64
	Before         *time.Time
}

// MessageStore is the persistent source of truth for message history.
type MessageStore interface {
	// ListPage returns up to Limit messages newest-first. Cursor mode
	// returns only messages strictly older than Before.
	ListPage(ctx context.Context, q PageQuery) ([]model.Message, error)
	GetByID(ctx context.Context, id string) (*model.Message, error)
}

// MembershipStore answers the active-member check guarding history reads.
type MembershipStore interface {
	IsActiveMember(ctx context.Context, conversationID, userID string) (bool, error)
}

// LastViewStore records "user has seen this conversation/channel up to now"
// and returns the timestamp it stored.
type LastViewStore interface {
	UpdateLastView(ctx context.Context, conversationID, channelID, userID string) (time.Time, error)
}
