package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social-service/internal/models"
	"social-service/internal/pagination"
	"social-service/internal/repository"
)

var (
	newestFirst = bson.D{{Key: "createdAt", Value: -1}}
	oldestFirst = bson.D{{Key: "createdAt", Value: 1}}
)

type PostRepository struct {
	coll *mongo.Collection
}

func NewPostRepository(c *MongoClient) *PostRepository {
	return &PostRepository{coll: c.Collection(postsCollection)}
}

func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("insert post: %w", translate(err))
	}
	return nil
}

func (r *PostRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	return findOne[models.Post](ctx, r.coll, bson.M{"_id": id})
}

func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	return replaceByID(ctx, r.coll, post.ID, post)
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id)
}

// Feed selects other users' posts that are public, friends-only from a
// friend or tagging the viewer, or only-me tagging the viewer.
func (r *PostRepository) Feed(ctx context.Context, q repository.FeedQuery, p pagination.Params) (*pagination.Page[models.Post], error) {
	friends := q.FriendIDs
	if friends == nil {
		friends = []string{}
	}
	filter := bson.M{
		"ownerId": bson.M{"$ne": q.ViewerID},
		"$or": bson.A{
			bson.M{"privacy": models.PrivacyPublic},
			bson.M{"privacy": models.PrivacyFriends, "ownerId": bson.M{"$in": friends}},
			bson.M{"privacy": models.PrivacyFriends, "tags": q.ViewerID},
			bson.M{"privacy": models.PrivacyOnlyMe, "tags": q.ViewerID},
		},
	}
	return findPage[models.Post](ctx, r.coll, filter, newestFirst, p)
}

func (r *PostRepository) ListByOwner(ctx context.Context, ownerID string, p pagination.Params) (*pagination.Page[models.Post], error) {
	return findPage[models.Post](ctx, r.coll, bson.M{"ownerId": ownerID}, newestFirst, p)
}

func (r *PostRepository) FindAllByOwner(ctx context.Context, ownerID string) ([]models.Post, error) {
	return findAll[models.Post](ctx, r.coll, bson.M{"ownerId": ownerID}, options.Find().SetSort(newestFirst))
}

func (r *PostRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteMany(ctx, r.coll, bson.M{"ownerId": ownerID})
}

type CommentRepository struct {
	coll *mongo.Collection
}

func NewCommentRepository(c *MongoClient) *CommentRepository {
	return &CommentRepository{coll: c.Collection(commentsCollection)}
}

func (r *CommentRepository) Create(ctx context.Context, c *models.Comment) error {
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert comment: %w", translate(err))
	}
	return nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	return findOne[models.Comment](ctx, r.coll, bson.M{"_id": id})
}

func (r *CommentRepository) Update(ctx context.Context, c *models.Comment) error {
	return replaceByID(ctx, r.coll, c.ID, c)
}

func (r *CommentRepository) ListByParent(ctx context.Context, ref models.ParentRef) ([]models.Comment, error) {
	return findAll[models.Comment](ctx, r.coll,
		bson.M{"ref.refType": ref.Kind, "ref.refId": ref.ID},
		options.Find().SetSort(oldestFirst))
}

func (r *CommentRepository) ListByParents(ctx context.Context, kind models.RefKind, ids []string) ([]models.Comment, error) {
	if len(ids) == 0 {
		return []models.Comment{}, nil
	}
	return findAll[models.Comment](ctx, r.coll,
		bson.M{"ref.refType": kind, "ref.refId": bson.M{"$in": ids}},
		options.Find().SetSort(oldestFirst))
}

func (r *CommentRepository) FindAllByOwner(ctx context.Context, ownerID string) ([]models.Comment, error) {
	return findAll[models.Comment](ctx, r.coll, bson.M{"ownerId": ownerID}, options.Find().SetSort(oldestFirst))
}

func (r *CommentRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return deleteMany(ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}})
}

type ReactRepository struct {
	coll *mongo.Collection
}

func NewReactRepository(c *MongoClient) *ReactRepository {
	return &ReactRepository{coll: c.Collection(reactsCollection)}
}

func (r *ReactRepository) Create(ctx context.Context, react *models.React) error {
	if _, err := r.coll.InsertOne(ctx, react); err != nil {
		return fmt.Errorf("insert react: %w", translate(err))
	}
	return nil
}

func (r *ReactRepository) FindByPostAndUser(ctx context.Context, postID, userID string) (*models.React, error) {
	return findOne[models.React](ctx, r.coll, bson.M{"postId": postID, "userId": userID})
}

func (r *ReactRepository) UpdateType(ctx context.Context, id string, t models.ReactType) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"type":      t,
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

func (r *ReactRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id)
}

func (r *ReactRepository) ListByPost(ctx context.Context, postID string) ([]models.React, error) {
	return findAll[models.React](ctx, r.coll, bson.M{"postId": postID}, options.Find().SetSort(oldestFirst))
}

func (r *ReactRepository) DeleteByPosts(ctx context.Context, postIDs []string) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	return deleteMany(ctx, r.coll, bson.M{"postId": bson.M{"$in": postIDs}})
}

func (r *ReactRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return deleteMany(ctx, r.coll, bson.M{"userId": userID})
}
