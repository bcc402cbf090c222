package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"social-service/internal/models"
	"social-service/internal/repository"
)

type FriendshipRepository struct {
	coll *mongo.Collection
}

func NewFriendshipRepository(c *MongoClient) *FriendshipRepository {
	return &FriendshipRepository{coll: c.Collection(friendshipsCollection)}
}

func pairFilter(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"requestFromId": a, "requestToId": b},
		bson.M{"requestFromId": b, "requestToId": a},
	}}
}

func (r *FriendshipRepository) Create(ctx context.Context, f *models.Friendship) error {
	if _, err := r.coll.InsertOne(ctx, f); err != nil {
		return fmt.Errorf("insert friendship: %w", translate(err))
	}
	return nil
}

func (r *FriendshipRepository) FindBetween(ctx context.Context, a, b string, statuses ...models.FriendshipStatus) (*models.Friendship, error) {
	filter := pairFilter(a, b)
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return findOne[models.Friendship](ctx, r.coll, filter)
}

func (r *FriendshipRepository) FindDirected(ctx context.Context, fromID, toID string, status models.FriendshipStatus) (*models.Friendship, error) {
	return findOne[models.Friendship](ctx, r.coll, bson.M{
		"requestFromId": fromID,
		"requestToId":   toID,
		"status":        status,
	})
}

func (r *FriendshipRepository) UpdateStatus(ctx context.Context, id string, status models.FriendshipStatus) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":    status,
		"updatedAt": now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *FriendshipRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id)
}

func (r *FriendshipRepository) ListForUser(ctx context.Context, userID string, status models.FriendshipStatus) ([]models.Friendship, error) {
	filter := bson.M{"status": status, "requestToId": userID}
	if status == models.FriendshipAccepted {
		filter = bson.M{"status": status, "$or": bson.A{
			bson.M{"requestFromId": userID},
			bson.M{"requestToId": userID},
		}}
	}
	return findAll[models.Friendship](ctx, r.coll, filter)
}

func (r *FriendshipRepository) DeleteInvolving(ctx context.Context, userID string) (int64, error) {
	return deleteMany(ctx, r.coll, bson.M{"$or": bson.A{
		bson.M{"requestFromId": userID},
		bson.M{"requestToId": userID},
	}})
}

func (r *FriendshipRepository) DeleteRejectedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteMany(ctx, r.coll, bson.M{
		"status":    models.FriendshipRejected,
		"updatedAt": bson.M{"$lt": cutoff},
	})
}
