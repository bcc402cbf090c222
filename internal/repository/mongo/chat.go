package mongo

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social-service/internal/models"
)

type ConversationRepository struct {
	coll *mongo.Collection
}

func NewConversationRepository(c *MongoClient) *ConversationRepository {
	return &ConversationRepository{coll: c.Collection(conversationsCollection)}
}

// FindOrCreatePrivate upserts on the unique pair key, so two concurrent first
// messages between the same users still end up in one conversation.
func (r *ConversationRepository) FindOrCreatePrivate(ctx context.Context, a, b string) (*models.Conversation, error) {
	key := models.PrivatePairKey(a, b)
	members := []string{a, b}
	sort.Strings(members)
	ts := now()

	update := bson.M{"$setOnInsert": bson.M{
		"_id":       uuid.NewString(),
		"type":      models.ConversationPrivate,
		"members":   members,
		"pairKey":   key,
		"createdAt": ts,
		"updatedAt": ts,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv models.Conversation
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"pairKey": key}, update, opts).Decode(&conv)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the upsert race; the winner's document is there now.
		return findOne[models.Conversation](ctx, r.coll, bson.M{"pairKey": key})
	}
	if err != nil {
		return nil, fmt.Errorf("upsert private conversation: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert conversation: %w", translate(err))
	}
	return nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	return findOne[models.Conversation](ctx, r.coll, bson.M{"_id": id})
}

func (r *ConversationRepository) ListGroupsForMember(ctx context.Context, userID string) ([]models.Conversation, error) {
	return findAll[models.Conversation](ctx, r.coll,
		bson.M{"type": models.ConversationGroup, "members": userID},
		options.Find().SetSort(oldestFirst))
}

func (r *ConversationRepository) DeleteWithMember(ctx context.Context, userID string) (int64, error) {
	return deleteMany(ctx, r.coll, bson.M{"members": userID})
}

// MessageRepository keeps chat history in MongoDB when Scylla is disabled.
type MessageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(c *MongoClient) *MessageRepository {
	return &MessageRepository{coll: c.Collection(messagesCollection)}
}

func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("insert message: %w", translate(err))
	}
	return nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	return findAll[models.Message](ctx, r.coll,
		bson.M{"conversationId": conversationID},
		options.Find().SetSort(oldestFirst))
}

func (r *MessageRepository) DeleteBySender(ctx context.Context, senderID string) ([]models.Message, error) {
	filter := bson.M{"senderId": senderID}
	msgs, err := findAll[models.Message](ctx, r.coll, filter)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}
	if _, err := deleteMany(ctx, r.coll, filter); err != nil {
		return nil, err
	}
	return msgs, nil
}
