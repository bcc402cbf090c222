package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"social-service/internal/apperror"
	"social-service/internal/authz"
	"social-service/internal/models"
	"social-service/internal/repository"
)

type ReactRequest struct {
	PostID string           `json:"postId" validate:"required"`
	Type   models.ReactType `json:"type" validate:"required,oneof=like dislike"`
}

// ReactOutcome says what a toggle did. React is nil when it was removed.
type ReactOutcome struct {
	Action string        `json:"action"`
	React  *models.React `json:"react,omitempty"`
}

const (
	ReactCreated = "created"
	ReactUpdated = "updated"
	ReactRemoved = "removed"
)

type ReactService struct {
	reacts repository.ReactRepository
	posts  repository.PostRepository
	rules  *authz.Rules
	now    func() time.Time
}

func NewReactService(d Deps) *ReactService {
	return &ReactService{reacts: d.Reacts, posts: d.Posts, rules: d.Rules, now: time.Now}
}

// React toggles me's react on a post. Sending the current type again removes
// it; another type switches it.
func (s *ReactService) React(ctx context.Context, me *models.User, req *ReactRequest) (*ReactOutcome, error) {
	if !req.Type.Valid() {
		return nil, apperror.BadRequest("Invalid react type", apperror.Context{"invalidData": req.Type})
	}
	post, err := s.posts.FindByID(ctx, req.PostID)
	if err != nil {
		return nil, missing(err, "Invalid Post ID")
	}
	if err := s.rules.PostAvailability(ctx, post, me.ID); err != nil {
		return nil, err
	}

	existing, err := s.reacts.FindByPostAndUser(ctx, post.ID, me.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("lookup react: %w", err)
	case existing.Type == req.Type:
		if err := s.reacts.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("delete react: %w", err)
		}
		return &ReactOutcome{Action: ReactRemoved}, nil
	default:
		if err := s.reacts.UpdateType(ctx, existing.ID, req.Type); err != nil {
			return nil, fmt.Errorf("update react: %w", err)
		}
		existing.Type = req.Type
		existing.UpdatedAt = s.now().UTC()
		return &ReactOutcome{Action: ReactUpdated, React: existing}, nil
	}

	now := s.now().UTC()
	r := &models.React{
		ID:        uuid.NewString(),
		PostID:    post.ID,
		UserID:    me.ID,
		Type:      req.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reacts.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create react: %w", err)
	}
	return &ReactOutcome{Action: ReactCreated, React: r}, nil
}

func (s *ReactService) ReactsOf(ctx context.Context, viewerID, postID string) ([]models.React, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, missing(err, "Invalid Post ID or Post is not available for your account")
	}
	if err := s.rules.PostAvailability(ctx, post, viewerID); err != nil {
		return nil, err
	}
	reacts, err := s.reacts.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list reacts: %w", err)
	}
	if reacts == nil {
		reacts = []models.React{}
	}
	return reacts, nil
}
