// Package mongo implements the document repositories on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"social-service/internal/config"
	"social-service/internal/pagination"
	"social-service/internal/repository"
	"social-service/internal/util"
)

const (
	usersCollection         = "users"
	friendshipsCollection   = "friendships"
	postsCollection         = "posts"
	commentsCollection      = "comments"
	reactsCollection        = "reacts"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

var (
	_ repository.UserRepository         = (*UserRepository)(nil)
	_ repository.FriendshipRepository   = (*FriendshipRepository)(nil)
	_ repository.PostRepository         = (*PostRepository)(nil)
	_ repository.CommentRepository      = (*CommentRepository)(nil)
	_ repository.ReactRepository        = (*ReactRepository)(nil)
	_ repository.ConversationRepository = (*ConversationRepository)(nil)
	_ repository.MessageRepository      = (*MessageRepository)(nil)
)

// caseInsensitive makes email matching and uniqueness ignore case.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

type MongoClient struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongoClient(ctx context.Context, cfg config.MongoConfig) (*MongoClient, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mc := &MongoClient{Client: client, DB: client.Database(cfg.Database)}
	if err := mc.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	util.Info("MongoDB client initialized", zap.String("database", cfg.Database))
	return mc, nil
}

// EnsureIndexes creates the indexes the repositories rely on for uniqueness
// and for their hot lookups.
func (c *MongoClient) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetCollation(caseInsensitive)},
			{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		friendshipsCollection: {
			{Keys: bson.D{{Key: "requestFromId", Value: 1}, {Key: "requestToId", Value: 1}}},
			{Keys: bson.D{{Key: "requestToId", Value: 1}, {Key: "status", Value: 1}}},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "privacy", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "ref.refType", Value: 1}, {Key: "ref.refId", Value: 1}}},
			{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		},
		reactsCollection: {
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		conversationsCollection: {
			{Keys: bson.D{{Key: "pairKey", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "members", Value: 1}, {Key: "type", Value: 1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "senderId", Value: 1}}},
		},
	}

	for name, specs := range indexes {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (c *MongoClient) Collection(name string) *mongo.Collection {
	return c.DB.Collection(name)
}

func (c *MongoClient) HealthCheck(ctx context.Context) error {
	if err := c.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping failed: %w", err)
	}
	return nil
}

func (c *MongoClient) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		util.Error("failed to close MongoDB client", zap.Error(err))
		return err
	}
	util.Info("MongoDB client closed")
	return nil
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findPage[T any](ctx context.Context, coll *mongo.Collection, filter any, sort bson.D, p pagination.Params) (*pagination.Page[T], error) {
	p = p.Normalize()

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, err := findAll[T](ctx, coll, filter, options.Find().
		SetSort(sort).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Limit)))
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, p), nil
}

func replaceByID(ctx context.Context, coll *mongo.Collection, id string, doc any) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func deleteMany(ctx context.Context, coll *mongo.Collection, filter any) (int64, error) {
	res, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func now() time.Time {
	return time.Now().UTC()
}
