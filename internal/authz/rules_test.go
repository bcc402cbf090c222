package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/apperror"
	"social-service/internal/models"
	"social-service/internal/repository/memory"
)

func befriend(t *testing.T, repo *memory.FriendshipRepository, id, from, to string, status models.FriendshipStatus) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.Friendship{
		ID: id, RequestFromID: from, RequestToID: to, Status: status,
	}))
}

func TestIsFriendBothDirections(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFriendshipRepository()
	rules := NewRules(repo)

	befriend(t, repo, "f1", "a", "b", models.FriendshipAccepted)
	befriend(t, repo, "f2", "a", "c", models.FriendshipPending)

	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		ok, err := rules.IsFriend(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := rules.IsFriend(ctx, "a", "c")
	require.NoError(t, err)
	assert.False(t, ok, "pending is not friendship")
}

func TestPostAvailability(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFriendshipRepository()
	rules := NewRules(repo)
	befriend(t, repo, "f1", "owner", "friend", models.FriendshipAccepted)

	public := &models.Post{OwnerID: "owner", Privacy: models.PrivacyPublic}
	friends := &models.Post{OwnerID: "owner", Privacy: models.PrivacyFriends, Tags: []string{"tagged"}}
	onlyMe := &models.Post{OwnerID: "owner", Privacy: models.PrivacyOnlyMe, Tags: []string{"tagged"}}

	assert.NoError(t, rules.PostAvailability(ctx, public, "stranger"))

	assert.NoError(t, rules.PostAvailability(ctx, friends, "friend"))
	assert.NoError(t, rules.PostAvailability(ctx, friends, "tagged"))
	assert.NoError(t, rules.PostAvailability(ctx, friends, "owner"), "owners always see their friends-only posts")
	err := rules.PostAvailability(ctx, friends, "stranger")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	assert.Contains(t, err.Error(), "Only Friends Can View This Post")

	assert.NoError(t, rules.PostAvailability(ctx, onlyMe, "owner"))
	assert.NoError(t, rules.PostAvailability(ctx, onlyMe, "tagged"))
	err = rules.PostAvailability(ctx, onlyMe, "friend")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	assert.Contains(t, err.Error(), "Only The Owner Can View This Post")
}

func TestValidateTags(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFriendshipRepository()
	rules := NewRules(repo)
	befriend(t, repo, "f1", "me", "b", models.FriendshipAccepted)
	befriend(t, repo, "f2", "c", "me", models.FriendshipAccepted)
	befriend(t, repo, "f3", "me", "d", models.FriendshipPending)

	tags, err := rules.ValidateTags(ctx, "me", []string{"b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, tags)

	tags, err = rules.ValidateTags(ctx, "me", nil)
	require.NoError(t, err)
	assert.Empty(t, tags)

	_, err = rules.ValidateTags(ctx, "me", []string{"b", "b"})
	assert.EqualError(t, err, "bad request: Duplicate tags detected")

	_, err = rules.ValidateTags(ctx, "me", []string{"b", "me"})
	assert.EqualError(t, err, "bad request: You cannot tag yourself")

	_, err = rules.ValidateTags(ctx, "me", []string{"b", "d"})
	assert.EqualError(t, err, "bad request: Invalid Friends in tags - Can only tag your friends")

	_, err = rules.ValidateTags(ctx, "me", []string{"stranger"})
	assert.True(t, errors.Is(err, apperror.ErrBadRequest))
}
