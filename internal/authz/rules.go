// Package authz holds the visibility and friendship decisions shared by the
// post, comment, react and chat flows.
package authz

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"social-service/internal/apperror"
	"social-service/internal/models"
	"social-service/internal/repository"
)

const maxConcurrentChecks = 8

type FriendshipReader interface {
	FindBetween(ctx context.Context, a, b string, statuses ...models.FriendshipStatus) (*models.Friendship, error)
}

type Rules struct {
	friendships FriendshipReader
}

func NewRules(friendships FriendshipReader) *Rules {
	return &Rules{friendships: friendships}
}

// IsFriend reports whether an accepted friendship links a and b in either direction.
func (r *Rules) IsFriend(ctx context.Context, a, b string) (bool, error) {
	_, err := r.friendships.FindBetween(ctx, a, b, models.FriendshipAccepted)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup friendship: %w", err)
	}
	return true, nil
}

// PostAvailability returns nil when viewerID may see post.
func (r *Rules) PostAvailability(ctx context.Context, post *models.Post, viewerID string) error {
	switch post.Privacy {
	case models.PrivacyPublic, "":
		return nil
	case models.PrivacyFriends:
		if post.OwnerID == viewerID || post.IsTagged(viewerID) {
			return nil
		}
		friend, err := r.IsFriend(ctx, viewerID, post.OwnerID)
		if err != nil {
			return err
		}
		if friend {
			return nil
		}
		return apperror.Forbidden("Invalid Post Privacy Setting - Only Friends Can View This Post")
	case models.PrivacyOnlyMe:
		if post.OwnerID == viewerID || post.IsTagged(viewerID) {
			return nil
		}
		return apperror.Forbidden("Invalid Post Privacy Setting - Only The Owner Can View This Post")
	}
	return apperror.Forbidden("Invalid Post Privacy Setting")
}

// ValidateTags rejects duplicates, self tags and non-friends, checking every
// tag individually. It returns the tags unchanged when all pass.
func (r *Rules) ValidateTags(ctx context.Context, ownerID string, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}

	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, dup := seen[tag]; dup {
			return nil, apperror.BadRequest("Duplicate tags detected")
		}
		seen[tag] = struct{}{}
	}
	if _, self := seen[ownerID]; self {
		return nil, apperror.BadRequest("You cannot tag yourself")
	}

	results := make([]bool, len(tags))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	for i, tag := range tags {
		g.Go(func() error {
			ok, err := r.IsFriend(gctx, ownerID, tag)
			results[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, ok := range results {
		if !ok {
			return nil, apperror.BadRequest("Invalid Friends in tags - Can only tag your friends", apperror.Context{"invalidData": tags[i]})
		}
	}

	return append([]string(nil), tags...), nil
}
