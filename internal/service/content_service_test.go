package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/apperror"
	"social-service/internal/models"
	"social-service/internal/pagination"
	"social-service/internal/repository"
	"social-service/internal/storage"
)

func TestFriendGatedPost(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")

	post, err := e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "friends only", Privacy: models.PrivacyFriends}, nil)
	require.NoError(t, err)

	_, err = e.postSvc.PostWithComments(ctx, bob.ID, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	feed, err := e.postSvc.Feed(ctx, bob, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, feed.Items)

	e.befriend(t, alice, bob)

	got, err := e.postSvc.PostWithComments(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	feed, err = e.postSvc.Feed(ctx, bob, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)

	own, err := e.postSvc.PostWithComments(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "friends only", own.Description)
}

func TestAddPostValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")

	_, err := e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "  "}, nil)
	assert.Equal(t, "Either description or attachments are required", messageOf(t, err))

	_, err = e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "x", Tags: []string{bob.ID}}, nil)
	assert.Equal(t, "Invalid Friends in tags - Can only tag your friends", messageOf(t, err))

	e.befriend(t, alice, bob)
	post, err := e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "x", Tags: []string{bob.ID}}, []storage.File{file("a.png", "a"), file("b.png", "b")})
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, post.Tags)
	assert.Len(t, post.Attachments, 2)
	assert.Len(t, post.AttachmentURLs, 2)
	assert.True(t, post.AllowComments)
	assert.Equal(t, models.PrivacyPublic, post.Privacy)

	mine, err := e.postSvc.MyPosts(ctx, alice, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.TotalItems)
}

func TestUpdateAndDeletePost(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")

	post, err := e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "v1"}, []storage.File{file("old.png", "o")})
	require.NoError(t, err)
	oldKey := post.Attachments[0]

	desc := "v2"
	_, err = e.postSvc.UpdatePost(ctx, bob, post.ID, &UpdatePostRequest{Description: &desc}, nil)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	assert.Equal(t, "Unauthorized to update this post", messageOf(t, err))

	updated, err := e.postSvc.UpdatePost(ctx, alice, post.ID, &UpdatePostRequest{Description: &desc}, []storage.File{file("new.png", "n")})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Description)
	require.Len(t, updated.Attachments, 1)
	assert.NotEqual(t, oldKey, updated.Attachments[0])
	assert.False(t, e.store.Has(oldKey))

	attachment := file("c.png", "c")
	comment, err := e.commentSvc.AddComment(ctx, bob, &AddCommentRequest{Content: "c", RefKind: models.RefPost, RefID: post.ID}, &attachment)
	require.NoError(t, err)
	reply, err := e.commentSvc.AddComment(ctx, alice, &AddCommentRequest{Content: "r", RefKind: models.RefComment, RefID: comment.ID}, nil)
	require.NoError(t, err)
	_, err = e.reactSvc.React(ctx, bob, &ReactRequest{PostID: post.ID, Type: models.ReactLike})
	require.NoError(t, err)

	err = e.postSvc.DeletePost(ctx, bob, post.ID)
	assert.Equal(t, "Unauthorized to delete this post", messageOf(t, err))

	require.NoError(t, e.postSvc.DeletePost(ctx, alice, post.ID))
	for _, id := range []string{comment.ID, reply.ID} {
		_, err := e.comments.FindByID(ctx, id)
		assert.True(t, errors.Is(err, repository.ErrNotFound))
	}
	reacts, err := e.reacts.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, reacts)
	assert.False(t, e.store.Has(updated.Attachments[0]))
	assert.False(t, e.store.Has(comment.Attachment))

	_, err = e.postSvc.PostWithComments(ctx, alice.ID, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestCommentThreads(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob, eve := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob"), e.verifiedUser(t, "Eve")
	e.befriend(t, alice, bob)

	post, err := e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "p", Privacy: models.PrivacyFriends}, nil)
	require.NoError(t, err)

	_, err = e.commentSvc.AddComment(ctx, bob, &AddCommentRequest{RefKind: models.RefPost, RefID: post.ID}, nil)
	assert.Equal(t, "Content or attachment is required", messageOf(t, err))
	_, err = e.commentSvc.AddComment(ctx, eve, &AddCommentRequest{Content: "hi", RefKind: models.RefPost, RefID: post.ID}, nil)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	top, err := e.commentSvc.AddComment(ctx, bob, &AddCommentRequest{Content: "top", RefKind: models.RefPost, RefID: post.ID}, nil)
	require.NoError(t, err)
	reply, err := e.commentSvc.AddComment(ctx, alice, &AddCommentRequest{Content: "reply", RefKind: models.RefComment, RefID: top.ID}, nil)
	require.NoError(t, err)
	deep, err := e.commentSvc.AddComment(ctx, bob, &AddCommentRequest{Content: "deep", RefKind: models.RefComment, RefID: reply.ID}, nil)
	require.NoError(t, err)

	_, err = e.commentSvc.AddComment(ctx, eve, &AddCommentRequest{Content: "sneaky", RefKind: models.RefComment, RefID: deep.ID}, nil)
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "replies are gated by the root post")

	threads, err := e.commentSvc.CommentsOf(ctx, bob.ID, models.ParentRef{Kind: models.RefPost, ID: post.ID})
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, reply.ID, threads[0].Replies[0].ID)

	withComments, err := e.postSvc.PostWithComments(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	require.Len(t, withComments.Comments, 1)

	byID, err := e.commentSvc.CommentByID(ctx, alice.ID, reply.ID)
	require.NoError(t, err)
	require.Len(t, byID.Replies, 1)
	assert.Equal(t, deep.ID, byID.Replies[0].ID)

	_, err = e.commentSvc.Replies(ctx, eve.ID, top.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = e.commentSvc.CommentsOf(ctx, bob.ID, models.ParentRef{Kind: models.RefPost, ID: "missing"})
	assert.Equal(t, "Invalid refId - Post or Comment not found", messageOf(t, err))

	content := "edited"
	_, err = e.commentSvc.UpdateComment(ctx, alice, top.ID, &UpdateCommentRequest{Content: &content}, nil)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	edited, err := e.commentSvc.UpdateComment(ctx, bob, top.ID, &UpdateCommentRequest{Content: &content}, nil)
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Content)

	require.NoError(t, e.commentSvc.DeleteComment(ctx, bob, top.ID))
	for _, id := range []string{top.ID, reply.ID, deep.ID} {
		_, err := e.comments.FindByID(ctx, id)
		assert.True(t, errors.Is(err, repository.ErrNotFound))
	}
	err = e.commentSvc.DeleteComment(ctx, bob, top.ID)
	assert.Equal(t, "Comment not found", messageOf(t, err))
}

func TestCommentsDisabled(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.verifiedUser(t, "Alice")
	off := false

	post, err := e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "quiet", AllowComments: &off}, nil)
	require.NoError(t, err)
	_, err = e.commentSvc.AddComment(ctx, alice, &AddCommentRequest{Content: "x", RefKind: models.RefPost, RefID: post.ID}, nil)
	assert.Equal(t, "Invalid Post ID or Comments are disabled for this post", messageOf(t, err))
}

func TestReactToggle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")

	post, err := e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "p"}, nil)
	require.NoError(t, err)

	_, err = e.reactSvc.React(ctx, bob, &ReactRequest{PostID: "missing", Type: models.ReactLike})
	assert.Equal(t, "Invalid Post ID", messageOf(t, err))

	out, err := e.reactSvc.React(ctx, bob, &ReactRequest{PostID: post.ID, Type: models.ReactLike})
	require.NoError(t, err)
	assert.Equal(t, ReactCreated, out.Action)

	out, err = e.reactSvc.React(ctx, bob, &ReactRequest{PostID: post.ID, Type: models.ReactDislike})
	require.NoError(t, err)
	assert.Equal(t, ReactUpdated, out.Action)
	assert.Equal(t, models.ReactDislike, out.React.Type)

	reacts, err := e.reactSvc.ReactsOf(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	require.Len(t, reacts, 1)
	assert.Equal(t, models.ReactDislike, reacts[0].Type)

	out, err = e.reactSvc.React(ctx, bob, &ReactRequest{PostID: post.ID, Type: models.ReactDislike})
	require.NoError(t, err)
	assert.Equal(t, ReactRemoved, out.Action)
	assert.Nil(t, out.React)

	reacts, err = e.reactSvc.ReactsOf(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Empty(t, reacts)
}

func TestReactsOnPrivatePost(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, bob := e.verifiedUser(t, "Alice"), e.verifiedUser(t, "Bob")

	post, err := e.postSvc.AddPost(ctx, alice, &AddPostRequest{Description: "me", Privacy: models.PrivacyOnlyMe}, nil)
	require.NoError(t, err)

	_, err = e.reactSvc.React(ctx, bob, &ReactRequest{PostID: post.ID, Type: models.ReactLike})
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	_, err = e.reactSvc.ReactsOf(ctx, bob.ID, "missing")
	assert.Equal(t, "Invalid Post ID or Post is not available for your account", messageOf(t, err))
}
