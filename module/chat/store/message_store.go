package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/DoraeChat/DoraeChat-BE-sub000/module/chat"
	"github.com/DoraeChat/DoraeChat-BE-sub000/module/chat/model"
)

// MessageStore is the Mongo implementation of chat.MessageStore.
type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{coll: db.Collection(model.MessageTableName)}
}

func (s *MessageStore) ListPage(ctx context.Context, q chat.PageQuery) ([]model.Message, error) {
	filter := bson.M{
		model.MessageFieldConversationID: q.ConversationID,
		// messages the reader deleted for themselves are invisible to them
		model.MessageFieldDeletedUserIDs: bson.M{"$ne": q.UserID},
	}
	if q.ChannelID != "" {
		filter[model.MessageFieldChannelID] = q.ChannelID
	}
	if q.Before != nil {
		filter[model.MessageFieldCreatedAt] = bson.M{"$lt": *q.Before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: model.MessageFieldCreatedAt, Value: -1}}).
		SetSkip(q.Skip).
		SetLimit(q.Limit)

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "message store: find page")
	}
	defer cur.Close(ctx)

	var out []model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "message store: decode page")
	}
	return out, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	err := s.coll.FindOne(ctx, bson.M{model.MessageFieldID: id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "message store: find by id")
	}
	return &m, nil
}
