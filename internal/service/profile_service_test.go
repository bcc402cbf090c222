package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/mailer"
	"social-service/internal/models"
	"social-service/internal/pagination"
	"social-service/internal/repository"
	"social-service/internal/storage"
)

func TestFriendRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")

	err := e.profileSvc.SendFriendRequest(ctx, alice, alice.ID)
	assert.Equal(t, "You can't add yourself as a friend", messageOf(t, err))
	err = e.profileSvc.SendFriendRequest(ctx, alice, "missing")
	assert.Equal(t, "Invalid User ID", messageOf(t, err))

	require.NoError(t, e.profileSvc.SendFriendRequest(ctx, alice, bob.ID))
	err = e.profileSvc.SendFriendRequest(ctx, alice, bob.ID)
	assert.Equal(t, "You have already sent a friend request to this user.", messageOf(t, err))
	err = e.profileSvc.SendFriendRequest(ctx, bob, alice.ID)
	assert.Equal(t, "This user has already sent you a friend request, please respond to it.", messageOf(t, err))

	pending, err := e.profileSvc.FriendsAndGroups(ctx, bob.ID, models.FriendshipPending)
	require.NoError(t, err)
	require.Len(t, pending.Friends, 1)
	assert.Equal(t, alice.ID, pending.Friends[0].ID)

	err = e.profileSvc.RespondFriendRequest(ctx, alice.ID, &RespondFriendRequest{FriendID: bob.ID, Status: models.FriendshipAccepted})
	assert.Equal(t, "No Friend Request Found For This User", messageOf(t, err))

	require.NoError(t, e.profileSvc.RespondFriendRequest(ctx, bob.ID, &RespondFriendRequest{FriendID: alice.ID, Status: models.FriendshipAccepted}))
	err = e.profileSvc.SendFriendRequest(ctx, bob, alice.ID)
	assert.Equal(t, "You are already friends", messageOf(t, err))

	for _, id := range []string{alice.ID, bob.ID} {
		list, err := e.profileSvc.FriendsAndGroups(ctx, id, "")
		require.NoError(t, err)
		assert.Len(t, list.Friends, 1)
		assert.Empty(t, list.Groups)
	}

	require.NoError(t, e.profileSvc.RemoveFriend(ctx, bob.ID, alice.ID))
	err = e.profileSvc.RemoveFriend(ctx, bob.ID, alice.ID)
	assert.Equal(t, "No FriendShip Found For This User", messageOf(t, err))
}

func TestRejectedRequestIsReplaced(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")

	require.NoError(t, e.profileSvc.SendFriendRequest(ctx, alice, bob.ID))
	require.NoError(t, e.profileSvc.RespondFriendRequest(ctx, bob.ID, &RespondFriendRequest{FriendID: alice.ID, Status: models.FriendshipRejected}))

	require.NoError(t, e.profileSvc.SendFriendRequest(ctx, bob, alice.ID))
	f, err := e.friendships.FindBetween(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipPending, f.Status)
	assert.Equal(t, bob.ID, f.RequestFromID)

	_, err = e.friendships.FindBetween(ctx, alice.ID, bob.ID, models.FriendshipRejected)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestBlocking(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")
	e.befriend(t, alice, bob)

	err := e.profileSvc.BlockUser(ctx, alice, alice.ID)
	assert.Equal(t, "You can't block yourself", messageOf(t, err))

	require.NoError(t, e.profileSvc.BlockUser(ctx, alice, bob.ID))
	err = e.profileSvc.BlockUser(ctx, alice, bob.ID)
	assert.Equal(t, "You have already blocked this user", messageOf(t, err))

	_, err = e.friendships.FindBetween(ctx, alice.ID, bob.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound), "blocking drops the friendship")

	blocked, err := e.profileSvc.BlockedUsers(ctx, alice)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, bob.ID, blocked[0].ID)

	err = e.profileSvc.SendFriendRequest(ctx, bob, alice.ID)
	assert.Equal(t, "You cannot send friend request to this user", messageOf(t, err))
	err = e.profileSvc.SendFriendRequest(ctx, alice, bob.ID)
	assert.Equal(t, "You have blocked this user, unblock to send friend request", messageOf(t, err))

	found, err := e.profileSvc.SearchUsers(ctx, bob, "ali")
	require.NoError(t, err)
	assert.Empty(t, found, "users who blocked the caller are hidden")

	require.NoError(t, e.profileSvc.UnblockUser(ctx, alice, bob.ID))
	err = e.profileSvc.UnblockUser(ctx, alice, bob.ID)
	assert.Equal(t, "This user is not in your block list", messageOf(t, err))

	found, err = e.profileSvc.SearchUsers(ctx, bob, "ali")
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = e.profileSvc.SearchUsers(ctx, bob, "  ")
	assert.Equal(t, "Please provide a name to search for", messageOf(t, err))

	_, err = e.profileSvc.SearchUsers(ctx, bob, "{$ne: 1}")
	assert.Equal(t, "Invalid search query", messageOf(t, err))
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob, carol, dave := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob"), e.verifiedUser(t, "Carol"), e.verifiedUser(t, "Dave")
	e.befriend(t, alice, bob)
	e.befriend(t, carol, alice)

	_, err := e.profileSvc.CreateGroup(ctx, alice, &CreateGroupRequest{Members: []string{bob.ID, carol.ID}})
	assert.Equal(t, "Group name is required", messageOf(t, err))
	_, err = e.profileSvc.CreateGroup(ctx, alice, &CreateGroupRequest{Name: "g", Members: []string{bob.ID}})
	assert.Equal(t, "At least two members are required", messageOf(t, err))
	_, err = e.profileSvc.CreateGroup(ctx, alice, &CreateGroupRequest{Name: "g", Members: []string{bob.ID, alice.ID}})
	assert.Equal(t, "You cannot add yourself to the group", messageOf(t, err))
	_, err = e.profileSvc.CreateGroup(ctx, alice, &CreateGroupRequest{Name: "g", Members: []string{bob.ID, dave.ID}})
	assert.Equal(t, "You can only add friends to the group. Dave is not your friend.", messageOf(t, err))

	group, err := e.profileSvc.CreateGroup(ctx, alice, &CreateGroupRequest{Name: "Trip", Members: []string{bob.ID, carol.ID}})
	require.NoError(t, err)
	assert.Equal(t, models.ConversationGroup, group.Type)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID, carol.ID}, group.Members)

	list, err := e.profileSvc.FriendsAndGroups(ctx, bob.ID, models.FriendshipAccepted)
	require.NoError(t, err)
	require.Len(t, list.Groups, 1)
	assert.Equal(t, "Trip", list.Groups[0].Name)

	require.NoError(t, e.profileSvc.BlockUser(ctx, e.reload(t, carol.ID), alice.ID))
	_, err = e.profileSvc.CreateGroup(ctx, alice, &CreateGroupRequest{Name: "g", Members: []string{bob.ID, carol.ID}})
	assert.Equal(t, "Carol has blocked you", messageOf(t, err))
}

func TestProfileReadAndUpdate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.verifiedUser(t, "Alice")

	_, err := e.profileSvc.UpdateProfile(ctx, alice.ID, &UpdateProfileRequest{})
	assert.Equal(t, "At least one field must be provided for update", messageOf(t, err))

	phone, name := "5559876543", "Alicia"
	updated, err := e.profileSvc.UpdateProfile(ctx, alice.ID, &UpdateProfileRequest{FirstName: &name, PhoneNumber: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.FirstName)

	obj, err := e.profileSvc.UploadImage(ctx, e.reload(t, alice.ID), SlotProfile, file("me.png", "png"))
	require.NoError(t, err)
	assert.Contains(t, obj.Key, alice.ID+"/profile-pictures/")

	profile, err := e.profileSvc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, phone, profile.PhoneNumber)
	assert.Equal(t, obj.Key, profile.ProfileImage)
	assert.NotEmpty(t, profile.ProfileImageURL)
	assert.Empty(t, profile.CoverPicURL)

	second, err := e.profileSvc.UploadImage(ctx, e.reload(t, alice.ID), SlotProfile, file("me2.png", "png2"))
	require.NoError(t, err)
	assert.False(t, e.store.Has(obj.Key), "replaced picture is deleted")
	assert.True(t, e.store.Has(second.Key))

	page, err := e.profileSvc.ListProfiles(ctx, pagination.Params{Page: 0, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalItems)
	assert.Equal(t, 1, page.CurrentPage)
}

func TestRenewSignedURL(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")

	_, err := e.profileSvc.RenewSignedURL(ctx, alice, &SignedURLRequest{})
	assert.Equal(t, "Key and keyType are required", messageOf(t, err))

	obj, err := e.profileSvc.UploadImage(ctx, alice, SlotCover, file("cover.png", "c"))
	require.NoError(t, err)
	url, err := e.profileSvc.RenewSignedURL(ctx, alice, &SignedURLRequest{Key: obj.Key, KeyType: KeyCoverImage})
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	_, err = e.profileSvc.RenewSignedURL(ctx, alice, &SignedURLRequest{Key: obj.Key, KeyType: KeyProfileImage})
	assert.Equal(t, "Invalid profile image key for this user", messageOf(t, err))

	post, err := e.postSvc.AddPost(ctx, bob, &AddPostRequest{}, []storage.File{file("p.png", "p")})
	require.NoError(t, err)
	_, err = e.profileSvc.RenewSignedURL(ctx, alice, &SignedURLRequest{Key: post.Attachments[0], KeyType: KeyPostImage})
	assert.Equal(t, "Invalid post image key for this user", messageOf(t, err))
	_, err = e.profileSvc.RenewSignedURL(ctx, bob, &SignedURLRequest{Key: post.Attachments[0], KeyType: KeyPostImage})
	assert.NoError(t, err)
}

func TestChangeEmail(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.verifiedUser(t, "Alice")
	e.verifiedUser(t, "Bob")

	require.NoError(t, e.profileSvc.UpdateEmail(ctx, alice))
	code := e.notifier.lastCode(t, "alice@x.com", mailer.KindChangeEmail)

	err := e.profileSvc.ChangeEmail(ctx, e.reload(t, alice.ID), &ChangeEmailRequest{NewEmail: "alice@x.com", OTP: code})
	assert.Equal(t, "New email must be different from current", messageOf(t, err))
	err = e.profileSvc.ChangeEmail(ctx, e.reload(t, alice.ID), &ChangeEmailRequest{NewEmail: "bob@x.com", OTP: code})
	assert.Equal(t, "Email is already in use", messageOf(t, err))

	require.NoError(t, e.profileSvc.ChangeEmail(ctx, e.reload(t, alice.ID), &ChangeEmailRequest{NewEmail: "alice2@x.com", OTP: code}))
	stored := e.reload(t, alice.ID)
	assert.Equal(t, "alice2@x.com", stored.Email)
	assert.False(t, stored.IsEmailVerified)
	assert.Equal(t, -1, stored.FindOTP(models.OTPChangeEmail))

	verify := e.notifier.lastCode(t, "alice2@x.com", mailer.KindVerify)
	_, err = e.authSvc.ConfirmEmail(ctx, &ConfirmEmailRequest{Email: "alice2@x.com", OTP: verify})
	require.NoError(t, err)

	err = e.profileSvc.ResendVerifyOTP(ctx, e.reload(t, alice.ID))
	assert.Equal(t, "Email is already verified", messageOf(t, err))
	err = e.profileSvc.ResendResetOTP(ctx, &ResendResetRequest{Email: "nobody@x.com"})
	assert.Equal(t, "Invalid Email", messageOf(t, err))
}

func TestDeactivateAccount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.verifiedUser(t, "Alice")
	p := e.login(t, "alice@x.com")

	require.NoError(t, e.profileSvc.DeactivateAccount(ctx, p))
	assert.True(t, e.reload(t, alice.ID).Deactivation.Deactivated)
	assert.Contains(t, e.notifier.kinds("alice@x.com"), mailer.KindAccountDeactivated)

	revoked, err := e.revocations.IsAccessRevoked(ctx, p.TokenID())
	require.NoError(t, err)
	assert.True(t, revoked)

	err = e.profileSvc.DeactivateAccount(ctx, p)
	assert.Equal(t, "Account is already deactivated", messageOf(t, err))

	e.login(t, "alice@x.com")
	assert.False(t, e.reload(t, alice.ID).Deactivation.Deactivated, "login reactivates")
}

func TestDeleteProfileCascade(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")
	e.befriend(t, alice, bob)

	alicePost, err := e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "hi"}, []storage.File{file("a.png", "a")})
	require.NoError(t, err)
	bobPost, err := e.postSvc.AddPost(ctx, bob, &AddPostRequest{Description: "yo"}, nil)
	require.NoError(t, err)

	bobOnAlice, err := e.commentSvc.AddComment(ctx, bob, &AddCommentRequest{Content: "nice", RefKind: models.RefPost, RefID: alicePost.ID}, nil)
	require.NoError(t, err)
	aliceOnBob, err := e.commentSvc.AddComment(ctx, alice, &AddCommentRequest{Content: "thanks", RefKind: models.RefPost, RefID: bobPost.ID}, nil)
	require.NoError(t, err)
	bobReply, err := e.commentSvc.AddComment(ctx, bob, &AddCommentRequest{Content: "np", RefKind: models.RefComment, RefID: aliceOnBob.ID}, nil)
	require.NoError(t, err)
	_, err = e.reactSvc.React(ctx, alice, &ReactRequest{PostID: bobPost.ID, Type: models.ReactLike})
	require.NoError(t, err)
	_, err = e.reactSvc.React(ctx, bob, &ReactRequest{PostID: alicePost.ID, Type: models.ReactLike})
	require.NoError(t, err)

	p := e.login(t, "alice@x.com")
	require.NoError(t, e.profileSvc.DeleteProfile(ctx, p))

	_, err = e.users.FindByID(ctx, alice.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	_, err = e.posts.FindByID(ctx, alicePost.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	for _, id := range []string{bobOnAlice.ID, aliceOnBob.ID, bobReply.ID} {
		_, err = e.comments.FindByID(ctx, id)
		assert.True(t, errors.Is(err, repository.ErrNotFound), "comment %s", id)
	}
	reacts, err := e.reacts.ListByPost(ctx, bobPost.ID)
	require.NoError(t, err)
	assert.Empty(t, reacts)
	_, err = e.friendships.FindBetween(ctx, alice.ID, bob.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.False(t, e.store.Has(alicePost.Attachments[0]))

	_, err = e.posts.FindByID(ctx, bobPost.ID)
	assert.NoError(t, err, "other users' posts survive")
}
