// Package msgcache is the read-through cache tier in front of the
// persistent message store. It is time-expired only: nothing here
// invalidates on new/edited/deleted messages — immediate consistency for
// live clients comes from the websocket fan-out, not from this cache.
package msgcache

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/DoraeChat/DoraeChat-BE-sub000/logger"
	"github.com/DoraeChat/DoraeChat-BE-sub000/module/chat"
	"github.com/DoraeChat/DoraeChat-BE-sub000/module/chat/model"
	"github.com/DoraeChat/DoraeChat-BE-sub000/service/storage"
)

const (
	pageTTL    = 5 * time.Minute
	messageTTL = 24 * time.Hour
	indexTTL   = 7 * 24 * time.Hour
	indexCap   = 1000
)

var ErrInvalidQuery = errors.New("conversation id and user id are required")

// PageOptions selects one history window. Cursor mode when Before is set,
// offset mode otherwise.
type PageOptions struct {
	Skip   int64
	Limit  int64
	Before *time.Time
}

// Tier serves conversation-history pages cache-first and keeps the
// per-message keys and ordered index warm after every store read.
type Tier struct {
	cache   storage.Cache
	store   chat.MessageStore
	members chat.MembershipStore
}

func NewTier(cache storage.Cache, store chat.MessageStore, members chat.MembershipStore) *Tier {
	return &Tier{cache: cache, store: store, members: members}
}

// GetPage returns one page of conversation history, oldest-first. The
// caller must be an active member. Store failures propagate; cache
// failures fall back to the store.
func (t *Tier) GetPage(ctx context.Context, conversationID, userID string, opt PageOptions) ([]model.Message, error) {
	if conversationID == "" || userID == "" {
		return nil, ErrInvalidQuery
	}

	ok, err := t.members.IsActiveMember(ctx, conversationID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "msgcache: membership check")
	}
	if !ok {
		return nil, chat.ErrNotAMember
	}

	key := storage.PageKey(conversationID, opt.Skip, opt.Limit)
	if opt.Before != nil {
		key = storage.CursorKey(conversationID, opt.Before.UnixMilli())
	}

	var page []model.Message
	found, cerr := t.cache.GetJSON(ctx, key, &page)
	if cerr != nil {
		logger.Warnf("[msgcache] page read conv=%s: %v", conversationID, cerr)
	}
	if found {
		return page, nil
	}

	msgs, err := t.store.ListPage(ctx, chat.PageQuery{
		ConversationID: conversationID,
		UserID:         userID,
		Skip:           opt.Skip,
		Limit:          opt.Limit,
		Before:         opt.Before,
	})
	if err != nil {
		return nil, err
	}
	reverse(msgs) // store returns newest-first, callers read oldest-first

	if len(msgs) > 0 {
		if err := t.cache.SetJSON(ctx, key, msgs, pageTTL); err != nil {
			logger.Warnf("[msgcache] page write conv=%s: %v", conversationID, err)
		}
		t.sync(ctx, conversationID, msgs)
	}
	return msgs, nil
}

// GetMessage is the O(1) point lookup fed by sync. Falls back to the store
// and warms the key on a miss.
func (t *Tier) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	if messageID == "" {
		return nil, ErrInvalidQuery
	}

	var m model.Message
	found, cerr := t.cache.GetJSON(ctx, storage.MessageKey(messageID), &m)
	if cerr != nil {
		logger.Warnf("[msgcache] message read id=%s: %v", messageID, cerr)
	}
	if found {
		return &m, nil
	}

	got, err := t.store.GetByID(ctx, messageID)
	if err != nil || got == nil {
		return got, err
	}
	if err := t.cache.SetJSON(ctx, storage.MessageKey(messageID), got, messageTTL); err != nil {
		logger.Warnf("[msgcache] message write id=%s: %v", messageID, err)
	}
	return got, nil
}

// sync runs after every productive store read. Best effort: every failure
// is logged and swallowed, the read already succeeded.
func (t *Tier) sync(ctx context.Context, conversationID string, msgs []model.Message) {
	idxKey := storage.ConversationIndexKey(conversationID)

	for i := range msgs {
		m := &msgs[i]
		if err := t.cache.SetJSON(ctx, storage.MessageKey(m.ID), m, messageTTL); err != nil {
			logger.Warnf("[msgcache] sync message id=%s: %v", m.ID, err)
		}
		if err := t.cache.ZAddMember(ctx, idxKey, m.ID, float64(m.CreatedAtMilli())); err != nil {
			logger.Warnf("[msgcache] sync index conv=%s: %v", conversationID, err)
		}
		// one-message window at the message's own timestamp for "jump to
		// message" lookups. Must not live under CursorKey: a cursor read
		// with before == createdAt would hit it and get the message at the
		// boundary instead of the strictly-older window.
		anchored := storage.AnchorKey(conversationID, m.CreatedAtMilli())
		if err := t.cache.SetJSON(ctx, anchored, []model.Message{*m}, pageTTL); err != nil {
			logger.Warnf("[msgcache] sync anchor conv=%s: %v", conversationID, err)
		}
	}

	if err := t.cache.ZTrimKeepHighest(ctx, idxKey, indexCap); err != nil {
		logger.Warnf("[msgcache] trim index conv=%s: %v", conversationID, err)
	}
	if err := t.cache.Expire(ctx, idxKey, indexTTL); err != nil {
		logger.Warnf("[msgcache] refresh index ttl conv=%s: %v", conversationID, err)
	}
}

func reverse(msgs []model.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
