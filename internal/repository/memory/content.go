package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"social-service/internal/models"
	"social-service/internal/pagination"
	"social-service/internal/repository"
)

type PostRepository struct {
	mu    sync.RWMutex
	posts map[string]models.Post
}

func NewPostRepository() *PostRepository {
	return &PostRepository{posts: make(map[string]models.Post)}
}

func clonePost(p models.Post) models.Post {
	p.Attachments = append([]string(nil), p.Attachments...)
	p.Tags = append([]string(nil), p.Tags...)
	return p
}

func (r *PostRepository) Create(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[post.ID]; ok {
		return repository.ErrDuplicate
	}
	r.posts[post.ID] = clonePost(*post)
	return nil
}

func (r *PostRepository) FindByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := clonePost(p)
	return &c, nil
}

func (r *PostRepository) Update(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[post.ID]; !ok {
		return repository.ErrNotFound
	}
	r.posts[post.ID] = clonePost(*post)
	return nil
}

func (r *PostRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

// newestFirst returns the posts matching keep, most recent first.
func (r *PostRepository) newestFirst(keep func(models.Post) bool) []models.Post {
	var out []models.Post
	for _, p := range r.posts {
		if keep(p) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *PostRepository) Feed(_ context.Context, q repository.FeedQuery, p pagination.Params) (*pagination.Page[models.Post], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := r.newestFirst(func(post models.Post) bool {
		if post.OwnerID == q.ViewerID {
			return false
		}
		switch post.Privacy {
		case models.PrivacyPublic:
			return true
		case models.PrivacyFriends:
			return containsString(q.FriendIDs, post.OwnerID) || post.IsTagged(q.ViewerID)
		default:
			return post.IsTagged(q.ViewerID)
		}
	})
	return pagination.Slice(posts, p), nil
}

func (r *PostRepository) ListByOwner(_ context.Context, ownerID string, p pagination.Params) (*pagination.Page[models.Post], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := r.newestFirst(func(post models.Post) bool { return post.OwnerID == ownerID })
	return pagination.Slice(posts, p), nil
}

func (r *PostRepository) FindAllByOwner(_ context.Context, ownerID string) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.newestFirst(func(post models.Post) bool { return post.OwnerID == ownerID }), nil
}

func (r *PostRepository) DeleteByOwner(_ context.Context, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, p := range r.posts {
		if p.OwnerID == ownerID {
			delete(r.posts, id)
			n++
		}
	}
	return n, nil
}

type CommentRepository struct {
	mu       sync.RWMutex
	comments map[string]models.Comment
}

func NewCommentRepository() *CommentRepository {
	return &CommentRepository{comments: make(map[string]models.Comment)}
}

func cloneComment(c models.Comment) models.Comment {
	c.Tags = append([]string(nil), c.Tags...)
	return c
}

func oldestFirst(list []models.Comment) []models.Comment {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

func (r *CommentRepository) Create(_ context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.comments[c.ID]; ok {
		return repository.ErrDuplicate
	}
	r.comments[c.ID] = cloneComment(*c)
	return nil
}

func (r *CommentRepository) FindByID(_ context.Context, id string) (*models.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneComment(c)
	return &cp, nil
}

func (r *CommentRepository) Update(_ context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.comments[c.ID]; !ok {
		return repository.ErrNotFound
	}
	r.comments[c.ID] = cloneComment(*c)
	return nil
}

func (r *CommentRepository) ListByParent(ctx context.Context, ref models.ParentRef) ([]models.Comment, error) {
	return r.ListByParents(ctx, ref.Kind, []string{ref.ID})
}

func (r *CommentRepository) ListByParents(_ context.Context, kind models.RefKind, ids []string) ([]models.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Comment
	for _, c := range r.comments {
		if c.Parent.Kind == kind && containsString(ids, c.Parent.ID) {
			out = append(out, cloneComment(c))
		}
	}
	return oldestFirst(out), nil
}

func (r *CommentRepository) FindAllByOwner(_ context.Context, ownerID string) ([]models.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Comment
	for _, c := range r.comments {
		if c.OwnerID == ownerID {
			out = append(out, cloneComment(c))
		}
	}
	return oldestFirst(out), nil
}

func (r *CommentRepository) DeleteMany(_ context.Context, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := r.comments[id]; ok {
			delete(r.comments, id)
			n++
		}
	}
	return n, nil
}

type ReactRepository struct {
	mu     sync.RWMutex
	reacts map[string]models.React
}

func NewReactRepository() *ReactRepository {
	return &ReactRepository{reacts: make(map[string]models.React)}
}

func (r *ReactRepository) Create(_ context.Context, react *models.React) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reacts {
		if existing.PostID == react.PostID && existing.UserID == react.UserID {
			return repository.ErrDuplicate
		}
	}
	r.reacts[react.ID] = *react
	return nil
}

func (r *ReactRepository) FindByPostAndUser(_ context.Context, postID, userID string) (*models.React, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, react := range r.reacts {
		if react.PostID == postID && react.UserID == userID {
			found := react
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ReactRepository) UpdateType(_ context.Context, id string, t models.ReactType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	react, ok := r.reacts[id]
	if !ok {
		return repository.ErrNotFound
	}
	react.Type = t
	react.UpdatedAt = time.Now().UTC()
	r.reacts[id] = react
	return nil
}

func (r *ReactRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reacts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.reacts, id)
	return nil
}

func (r *ReactRepository) ListByPost(_ context.Context, postID string) ([]models.React, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.React
	for _, react := range r.reacts {
		if react.PostID == postID {
			out = append(out, react)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ReactRepository) DeleteByPosts(_ context.Context, postIDs []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, react := range r.reacts {
		if containsString(postIDs, react.PostID) {
			delete(r.reacts, id)
			n++
		}
	}
	return n, nil
}

func (r *ReactRepository) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, react := range r.reacts {
		if react.UserID == userID {
			delete(r.reacts, id)
			n++
		}
	}
	return n, nil
}
