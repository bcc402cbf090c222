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
	"social-service/internal/repository"
	"social-service/internal/storage"
)

// maxThreadDepth bounds the walk from a reply up to its post.
const maxThreadDepth = 256

type AddCommentRequest struct {
	Content string         `json:"content"`
	RefKind models.RefKind `json:"refType"`
	RefID   string         `json:"refId"`
	Tags    []string       `json:"tags"`
}

type UpdateCommentRequest struct {
	Content *string  `json:"content"`
	Tags    []string `json:"tags"`
}

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	rules    *authz.Rules
	store    storage.ObjectStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewCommentService(d Deps) *CommentService {
	return &CommentService{
		comments: d.Comments,
		posts:    d.Posts,
		rules:    d.Rules,
		store:    d.Storage,
		logger:   d.Logger,
		now:      time.Now,
	}
}

// commentTree returns every comment below the given parents, breadth first.
func commentTree(ctx context.Context, comments repository.CommentRepository, kind models.RefKind, ids []string) ([]models.Comment, error) {
	var all []models.Comment
	for len(ids) > 0 {
		level, err := comments.ListByParents(ctx, kind, ids)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		all = append(all, level...)

		kind = models.RefComment
		ids = make([]string, 0, len(level))
		for _, c := range level {
			ids = append(ids, c.ID)
		}
	}
	return all, nil
}

// threadsOf lists the comments under ref, each with its direct replies.
func threadsOf(ctx context.Context, comments repository.CommentRepository, ref models.ParentRef) ([]models.CommentThread, error) {
	top, err := comments.ListByParent(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	threads := make([]models.CommentThread, 0, len(top))
	if len(top) == 0 {
		return threads, nil
	}

	ids := make([]string, len(top))
	for i, c := range top {
		ids[i] = c.ID
	}
	replies, err := comments.ListByParents(ctx, models.RefComment, ids)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	byParent := make(map[string][]models.Comment, len(top))
	for _, r := range replies {
		byParent[r.Parent.ID] = append(byParent[r.Parent.ID], r)
	}

	for _, c := range top {
		rs := byParent[c.ID]
		if rs == nil {
			rs = []models.Comment{}
		}
		threads = append(threads, models.CommentThread{Comment: c, Replies: rs})
	}
	return threads, nil
}

// rootPost follows parent links from c up to the post the thread hangs off.
func (s *CommentService) rootPost(ctx context.Context, c *models.Comment) (*models.Post, error) {
	ref := c.Parent
	for range maxThreadDepth {
		if ref.Kind == models.RefPost {
			post, err := s.posts.FindByID(ctx, ref.ID)
			if err != nil {
				return nil, missing(err, "Related post not found")
			}
			return post, nil
		}
		parent, err := s.comments.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, missing(err, "Parent comment not found")
		}
		ref = parent.Parent
	}
	return nil, fmt.Errorf("comment %s: thread deeper than %d", c.ID, maxThreadDepth)
}

// resolveRef returns the post a new comment on ref would belong to.
func (s *CommentService) resolveRef(ctx context.Context, ref models.ParentRef) (*models.Post, error) {
	switch ref.Kind {
	case models.RefPost:
		post, err := s.posts.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, missing(err, "Invalid refId - Post or Comment not found")
		}
		return post, nil
	case models.RefComment:
		parent, err := s.comments.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, missing(err, "Invalid refId - Post or Comment not found")
		}
		return s.rootPost(ctx, parent)
	}
	return nil, apperror.BadRequest("Invalid refId - Post or Comment not found")
}

func (s *CommentService) AddComment(ctx context.Context, me *models.User, req *AddCommentRequest, file *storage.File) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" && file == nil {
		return nil, apperror.BadRequest("Content or attachment is required")
	}
	ref := models.ParentRef{Kind: req.RefKind, ID: req.RefID}
	if !ref.Valid() {
		return nil, apperror.BadRequest("Invalid refId - Post or Comment not found")
	}

	var post *models.Post
	switch ref.Kind {
	case models.RefPost:
		p, err := s.posts.FindByID(ctx, ref.ID)
		if err != nil || !p.AllowComments {
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			return nil, apperror.BadRequest("Invalid Post ID or Comments are disabled for this post")
		}
		post = p
	default:
		parent, err := s.comments.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, missing(err, "Invalid Comment ID")
		}
		if post, err = s.rootPost(ctx, parent); err != nil {
			return nil, err
		}
		if !post.AllowComments {
			return nil, apperror.BadRequest("Invalid Post ID or Comments are disabled for this post")
		}
	}
	if err := s.rules.PostAvailability(ctx, post, me.ID); err != nil {
		return nil, err
	}

	tags, err := s.rules.ValidateTags(ctx, me.ID, req.Tags)
	if err != nil {
		return nil, err
	}

	var attachment string
	if file != nil {
		obj, err := s.store.Upload(ctx, *file, commentPrefix(me.ID))
		if err != nil {
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
		attachment = obj.Key
	}

	now := s.now().UTC()
	c := &models.Comment{
		ID:         uuid.NewString(),
		Content:    content,
		Attachment: attachment,
		OwnerID:    me.ID,
		Parent:     ref,
		Tags:       tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		if attachment != "" {
			deleteBlobs(ctx, s.store, s.logger, []string{attachment})
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, me *models.User, id string, req *UpdateCommentRequest, file *storage.File) (*models.Comment, error) {
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, missing(err, "Invalid Comment ID")
	}
	if c.OwnerID != me.ID {
		return nil, apperror.Forbidden("Unauthorized")
	}

	if req.Content != nil {
		c.Content = strings.TrimSpace(*req.Content)
	}
	if req.Tags != nil {
		if c.Tags, err = s.rules.ValidateTags(ctx, me.ID, req.Tags); err != nil {
			return nil, err
		}
	}
	if c.Content == "" && c.Attachment == "" && file == nil {
		return nil, apperror.BadRequest("Content or attachment is required")
	}

	var replaced string
	if file != nil {
		obj, err := s.store.Upload(ctx, *file, commentPrefix(me.ID))
		if err != nil {
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
		replaced, c.Attachment = c.Attachment, obj.Key
	}

	c.UpdatedAt = s.now().UTC()
	if err := s.comments.Update(ctx, c); err != nil {
		if file != nil {
			deleteBlobs(ctx, s.store, s.logger, []string{c.Attachment})
		}
		return nil, fmt.Errorf("update comment: %w", err)
	}
	if replaced != "" {
		deleteBlobs(ctx, s.store, s.logger, []string{replaced})
	}
	return c, nil
}

// DeleteComment removes the comment with all of its replies and their blobs.
func (s *CommentService) DeleteComment(ctx context.Context, me *models.User, id string) error {
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Comment not found")
		}
		return err
	}
	if c.OwnerID != me.ID {
		return apperror.Forbidden("Unauthorized")
	}

	tree, err := commentTree(ctx, s.comments, models.RefComment, []string{c.ID})
	if err != nil {
		return err
	}
	ids := []string{c.ID}
	var blobs []string
	if c.Attachment != "" {
		blobs = append(blobs, c.Attachment)
	}
	for _, r := range tree {
		ids = append(ids, r.ID)
		if r.Attachment != "" {
			blobs = append(blobs, r.Attachment)
		}
	}

	if _, err := s.comments.DeleteMany(ctx, ids); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	deleteBlobs(ctx, s.store, s.logger, blobs)
	return nil
}

// CommentsOf lists the comments directly under ref with their replies.
func (s *CommentService) CommentsOf(ctx context.Context, viewerID string, ref models.ParentRef) ([]models.CommentThread, error) {
	if !ref.Valid() {
		return nil, apperror.BadRequest("Invalid refId - Post or Comment not found")
	}
	post, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.rules.PostAvailability(ctx, post, viewerID); err != nil {
		return nil, err
	}
	return threadsOf(ctx, s.comments, ref)
}

func (s *CommentService) visibleComment(ctx context.Context, viewerID, id string) (*models.Comment, error) {
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Comment not found")
		}
		return nil, err
	}
	post, err := s.rootPost(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := s.rules.PostAvailability(ctx, post, viewerID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CommentService) CommentByID(ctx context.Context, viewerID, id string) (*models.CommentThread, error) {
	c, err := s.visibleComment(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	replies, err := s.comments.ListByParent(ctx, models.ParentRef{Kind: models.RefComment, ID: c.ID})
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	if replies == nil {
		replies = []models.Comment{}
	}
	return &models.CommentThread{Comment: *c, Replies: replies}, nil
}

func (s *CommentService) Replies(ctx context.Context, viewerID, id string) ([]models.Comment, error) {
	c, err := s.visibleComment(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	replies, err := s.comments.ListByParent(ctx, models.ParentRef{Kind: models.RefComment, ID: c.ID})
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	if replies == nil {
		replies = []models.Comment{}
	}
	return replies, nil
}
