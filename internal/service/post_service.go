package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/authz"
	"social-service/internal/models"
	"social-service/internal/pagination"
	"social-service/internal/repository"
	"social-service/internal/storage"
	"social-service/internal/util"
)

type AddPostRequest struct {
	Description   string         `json:"description"`
	AllowComments *bool          `json:"allowComments"`
	Tags          []string       `json:"tags"`
	Privacy       models.Privacy `json:"privacy"`
}

type UpdatePostRequest struct {
	Description   *string         `json:"description"`
	AllowComments *bool           `json:"allowComments"`
	Tags          []string        `json:"tags"`
	Privacy       *models.Privacy `json:"privacy"`
}

// PostView is a post with signed URLs for its attachments.
type PostView struct {
	models.Post
	AttachmentURLs []string `json:"attachmentUrls"`
}

type PostWithComments struct {
	PostView
	Comments []models.CommentThread `json:"comments"`
}

type PostService struct {
	posts       repository.PostRepository
	comments    repository.CommentRepository
	reacts      repository.ReactRepository
	friendships repository.FriendshipRepository
	rules       *authz.Rules
	store       storage.ObjectStore
	urlExpiry   time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewPostService(d Deps) *PostService {
	return &PostService{
		posts:       d.Posts,
		comments:    d.Comments,
		reacts:      d.Reacts,
		friendships: d.Friendships,
		rules:       d.Rules,
		store:       d.Storage,
		urlExpiry:   d.SignedURLExpiry,
		logger:      d.Logger,
		now:         time.Now,
	}
}

func (s *PostService) AddPost(ctx context.Context, me *models.User, req *AddPostRequest, files []storage.File) (*PostView, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" && len(files) == 0 {
		return nil, apperror.BadRequest("Either description or attachments are required")
	}
	privacy := req.Privacy
	if privacy == "" {
		privacy = models.PrivacyPublic
	}
	if !privacy.Valid() {
		return nil, apperror.BadRequest("Invalid privacy setting", apperror.Context{"invalidData": privacy})
	}
	tags, err := s.rules.ValidateTags(ctx, me.ID, req.Tags)
	if err != nil {
		return nil, err
	}

	objs, err := storage.UploadAll(ctx, s.store, files, postPrefix(me.ID))
	if err != nil {
		return nil, fmt.Errorf("upload attachments: %w", err)
	}

	allowComments := true
	if req.AllowComments != nil {
		allowComments = *req.AllowComments
	}
	now := s.now().UTC()
	post := &models.Post{
		ID:            uuid.NewString(),
		Description:   desc,
		Attachments:   storage.Keys(objs),
		OwnerID:       me.ID,
		AllowComments: allowComments,
		Tags:          tags,
		Privacy:       privacy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		deleteBlobs(ctx, s.store, s.logger, post.Attachments)
		return nil, fmt.Errorf("create post: %w", err)
	}

	urls := make([]string, len(objs))
	for i, o := range objs {
		urls[i] = o.URL
	}
	return &PostView{Post: *post, AttachmentURLs: urls}, nil
}

// Feed pages through other users' posts visible to me, newest first.
func (s *PostService) Feed(ctx context.Context, me *models.User, p pagination.Params) (*pagination.Page[PostView], error) {
	list, err := s.friendships.ListForUser(ctx, me.ID, models.FriendshipAccepted)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	friendIDs := make([]string, 0, len(list))
	for _, f := range list {
		friendIDs = append(friendIDs, f.Other(me.ID))
	}

	page, err := s.posts.Feed(ctx, repository.FeedQuery{ViewerID: me.ID, FriendIDs: friendIDs}, p.Normalize())
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	return s.viewPage(ctx, page)
}

func (s *PostService) MyPosts(ctx context.Context, me *models.User, p pagination.Params) (*pagination.Page[PostView], error) {
	page, err := s.posts.ListByOwner(ctx, me.ID, p.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return s.viewPage(ctx, page)
}

func (s *PostService) PostWithComments(ctx context.Context, viewerID, postID string) (*PostWithComments, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Post not found")
		}
		return nil, err
	}
	if err := s.rules.PostAvailability(ctx, post, viewerID); err != nil {
		return nil, err
	}

	threads, err := threadsOf(ctx, s.comments, models.ParentRef{Kind: models.RefPost, ID: post.ID})
	if err != nil {
		return nil, err
	}
	view, err := s.view(ctx, *post)
	if err != nil {
		return nil, err
	}
	return &PostWithComments{PostView: view, Comments: threads}, nil
}

func (s *PostService) ownedPost(ctx context.Context, me *models.User, postID, denied string) (*models.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Post not found")
		}
		return nil, err
	}
	if post.OwnerID != me.ID {
		return nil, apperror.Forbidden(denied)
	}
	return post, nil
}

// UpdatePost applies the given fields. New files replace every previous
// attachment.
func (s *PostService) UpdatePost(ctx context.Context, me *models.User, postID string, req *UpdatePostRequest, files []storage.File) (*PostView, error) {
	post, err := s.ownedPost(ctx, me, postID, "Unauthorized to update this post")
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		post.Description = strings.TrimSpace(*req.Description)
	}
	if req.AllowComments != nil {
		post.AllowComments = *req.AllowComments
	}
	if req.Privacy != nil {
		if !req.Privacy.Valid() {
			return nil, apperror.BadRequest("Invalid privacy setting", apperror.Context{"invalidData": *req.Privacy})
		}
		post.Privacy = *req.Privacy
	}
	if req.Tags != nil {
		if post.Tags, err = s.rules.ValidateTags(ctx, me.ID, req.Tags); err != nil {
			return nil, err
		}
	}

	if post.Description == "" && len(post.Attachments) == 0 && len(files) == 0 {
		return nil, apperror.BadRequest("Either description or attachments are required")
	}

	var replaced []string
	if len(files) > 0 {
		objs, err := storage.UploadAll(ctx, s.store, files, postPrefix(me.ID))
		if err != nil {
			return nil, fmt.Errorf("upload attachments: %w", err)
		}
		replaced, post.Attachments = post.Attachments, storage.Keys(objs)
	}

	post.UpdatedAt = s.now().UTC()
	if err := s.posts.Update(ctx, post); err != nil {
		if len(files) > 0 {
			deleteBlobs(ctx, s.store, s.logger, post.Attachments)
		}
		return nil, fmt.Errorf("update post: %w", err)
	}
	deleteBlobs(ctx, s.store, s.logger, replaced)

	view, err := s.view(ctx, *post)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// DeletePost removes the post, its whole comment tree, its reacts and every
// blob they referenced.
func (s *PostService) DeletePost(ctx context.Context, me *models.User, postID string) error {
	post, err := s.ownedPost(ctx, me, postID, "Unauthorized to delete this post")
	if err != nil {
		return err
	}

	tree, err := commentTree(ctx, s.comments, models.RefPost, []string{post.ID})
	if err != nil {
		return err
	}
	blobs := append([]string(nil), post.Attachments...)
	ids := make([]string, 0, len(tree))
	for _, c := range tree {
		ids = append(ids, c.ID)
		if c.Attachment != "" {
			blobs = append(blobs, c.Attachment)
		}
	}

	if _, err := s.comments.DeleteMany(ctx, ids); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	if _, err := s.reacts.DeleteByPosts(ctx, []string{post.ID}); err != nil {
		return fmt.Errorf("delete reacts: %w", err)
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	deleteBlobs(ctx, s.store, s.logger, blobs)

	s.logger.Info("Post deleted",
		util.String("post_id", post.ID),
		util.Int("comments", len(ids)),
		util.Int("blobs", len(blobs)))
	return nil
}

func (s *PostService) view(ctx context.Context, post models.Post) (PostView, error) {
	urls := make([]string, 0, len(post.Attachments))
	for _, key := range post.Attachments {
		u, err := s.store.SignedURL(ctx, key, s.urlExpiry)
		if err != nil {
			return PostView{}, fmt.Errorf("sign attachment: %w", err)
		}
		urls = append(urls, u)
	}
	return PostView{Post: post, AttachmentURLs: urls}, nil
}

func (s *PostService) viewPage(ctx context.Context, page *pagination.Page[models.Post]) (*pagination.Page[PostView], error) {
	items := make([]PostView, 0, len(page.Items))
	for _, post := range page.Items {
		v, err := s.view(ctx, post)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return &pagination.Page[PostView]{
		Items:       items,
		TotalItems:  page.TotalItems,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		HasNextPage: page.HasNextPage,
		HasPrevPage: page.HasPrevPage,
	}, nil
}

// deleteBlobs removes keys after the documents referencing them are gone.
// Failures are logged only.
func deleteBlobs(ctx context.Context, store storage.ObjectStore, logger *zap.Logger, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := store.DeleteMany(context.WithoutCancel(ctx), keys); err != nil {
		logger.Warn("Failed to delete blobs", util.Int("count", len(keys)), util.ErrorField(err))
	}
}
