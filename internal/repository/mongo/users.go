package mongo

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social-service/internal/models"
	"social-service/internal/pagination"
)

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(c *MongoClient) *UserRepository {
	return &UserRepository{coll: c.Collection(usersCollection)}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.coll.FindOne(ctx, bson.M{"email": email}, options.FindOne().SetCollation(caseInsensitive)).Decode(&u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) FindByGoogleIdentity(ctx context.Context, googleID, email string) (*models.User, error) {
	var u models.User
	err := r.coll.FindOne(ctx,
		bson.M{"googleId": googleID, "email": email},
		options.FindOne().SetCollation(caseInsensitive),
	).Decode(&u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return findAll[models.User](ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *UserRepository) List(ctx context.Context, p pagination.Params) (*pagination.Page[models.User], error) {
	return findPage[models.User](ctx, r.coll, bson.M{}, bson.D{{Key: "createdAt", Value: 1}}, p)
}

func (r *UserRepository) SearchByName(ctx context.Context, name, viewerID string, limit int) ([]models.User, error) {
	pattern := containsFold(name)
	filter := bson.M{
		"$or": bson.A{
			bson.M{"firstName": pattern},
			bson.M{"lastName": pattern},
		},
		"blockList": bson.M{"$ne": viewerID},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findAll[models.User](ctx, r.coll, filter, opts)
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return replaceByID(ctx, r.coll, user.ID, user)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id)
}

func containsFold(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}
