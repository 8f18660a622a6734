package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/DoraeChat/DoraeChat-BE-sub000/module/chat/model"
)

// MemberStore implements chat.MembershipStore and chat.LastViewStore on top
// of the member collection owned by the HTTP-side CRUD services.
type MemberStore struct {
	coll  *mongo.Collection
	clock func() time.Time
}

func NewMemberStore(db *mongo.Database) *MemberStore {
	return &MemberStore{coll: db.Collection(model.MemberTableName), clock: time.Now}
}

func (s *MemberStore) IsActiveMember(ctx context.Context, conversationID, userID string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{
		model.MemberFieldConversationID: conversationID,
		model.MemberFieldUserID:         userID,
		model.MemberFieldActive:         true,
	})
	if err != nil {
		return false, errors.Wrap(err, "member store: active check")
	}
	return n > 0, nil
}

// UpdateLastView stamps the member's last-view cursor. When channelID is
// set the per-channel cursor is stamped instead of the conversation one.
func (s *MemberStore) UpdateLastView(ctx context.Context, conversationID, channelID, userID string) (time.Time, error) {
	now := s.clock()

	field := model.MemberFieldLastView
	if channelID != "" {
		field = model.MemberFieldLastViewOfCh + "." + channelID
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{
			model.MemberFieldConversationID: conversationID,
			model.MemberFieldUserID:         userID,
			model.MemberFieldActive:         true,
		},
		bson.M{"$set": bson.M{field: now}},
	)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "member store: update last view")
	}
	if res.MatchedCount == 0 {
		return time.Time{}, mongo.ErrNoDocuments
	}
	return now, nil
}
