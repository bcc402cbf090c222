// Package repository declares the storage contracts the services depend on.
// Implementations live in the mongo, scylla, redis and memory subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"social-service/internal/models"
	"social-service/internal/pagination"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByGoogleIdentity(ctx context.Context, googleID, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	List(ctx context.Context, p pagination.Params) (*pagination.Page[models.User], error)
	// SearchByName matches first or last name case-insensitively, skipping
	// users whose block list contains viewerID.
	SearchByName(ctx context.Context, name, viewerID string, limit int) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type FriendshipRepository interface {
	Create(ctx context.Context, f *models.Friendship) error
	// FindBetween returns the friendship linking a and b in either direction,
	// restricted to statuses when given.
	FindBetween(ctx context.Context, a, b string, statuses ...models.FriendshipStatus) (*models.Friendship, error)
	FindDirected(ctx context.Context, fromID, toID string, status models.FriendshipStatus) (*models.Friendship, error)
	UpdateStatus(ctx context.Context, id string, status models.FriendshipStatus) error
	Delete(ctx context.Context, id string) error
	// ListForUser returns accepted friendships in both directions, or
	// incoming requests for any other status.
	ListForUser(ctx context.Context, userID string, status models.FriendshipStatus) ([]models.Friendship, error)
	DeleteInvolving(ctx context.Context, userID string) (int64, error)
	DeleteRejectedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FeedQuery selects the posts a viewer may see in the home feed.
type FeedQuery struct {
	ViewerID  string
	FriendIDs []string
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id string) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
	Feed(ctx context.Context, q FeedQuery, p pagination.Params) (*pagination.Page[models.Post], error)
	ListByOwner(ctx context.Context, ownerID string, p pagination.Params) (*pagination.Page[models.Post], error)
	FindAllByOwner(ctx context.Context, ownerID string) ([]models.Post, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, c *models.Comment) error
	FindByID(ctx context.Context, id string) (*models.Comment, error)
	Update(ctx context.Context, c *models.Comment) error
	ListByParent(ctx context.Context, ref models.ParentRef) ([]models.Comment, error)
	ListByParents(ctx context.Context, kind models.RefKind, ids []string) ([]models.Comment, error)
	FindAllByOwner(ctx context.Context, ownerID string) ([]models.Comment, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

type ReactRepository interface {
	Create(ctx context.Context, r *models.React) error
	FindByPostAndUser(ctx context.Context, postID, userID string) (*models.React, error)
	UpdateType(ctx context.Context, id string, t models.ReactType) error
	Delete(ctx context.Context, id string) error
	ListByPost(ctx context.Context, postID string) ([]models.React, error)
	DeleteByPosts(ctx context.Context, postIDs []string) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type ConversationRepository interface {
	// FindOrCreatePrivate returns the private conversation of a and b,
	// creating it atomically on first use.
	FindOrCreatePrivate(ctx context.Context, a, b string) (*models.Conversation, error)
	Create(ctx context.Context, c *models.Conversation) error
	FindByID(ctx context.Context, id string) (*models.Conversation, error)
	ListGroupsForMember(ctx context.Context, userID string) ([]models.Conversation, error)
	DeleteWithMember(ctx context.Context, userID string) (int64, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	// ListByConversation returns messages oldest first.
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// DeleteBySender removes every message sent by senderID and returns them.
	DeleteBySender(ctx context.Context, senderID string) ([]models.Message, error)
}
