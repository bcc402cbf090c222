package memory

import (
	"context"
	"sync"
	"time"

	"social-service/internal/models"
	"social-service/internal/repository"
)

type FriendshipRepository struct {
	mu      sync.RWMutex
	records map[string]models.Friendship
}

func NewFriendshipRepository() *FriendshipRepository {
	return &FriendshipRepository{records: make(map[string]models.Friendship)}
}

func (r *FriendshipRepository) Create(_ context.Context, f *models.Friendship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[f.ID]; ok {
		return repository.ErrDuplicate
	}
	r.records[f.ID] = *f
	return nil
}

func statusIn(s models.FriendshipStatus, statuses []models.FriendshipStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

func (r *FriendshipRepository) FindBetween(_ context.Context, a, b string, statuses ...models.FriendshipStatus) (*models.Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.records {
		if f.Involves(a, b) && statusIn(f.Status, statuses) {
			found := f
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *FriendshipRepository) FindDirected(_ context.Context, fromID, toID string, status models.FriendshipStatus) (*models.Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.records {
		if f.RequestFromID == fromID && f.RequestToID == toID && f.Status == status {
			found := f
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *FriendshipRepository) UpdateStatus(_ context.Context, id string, status models.FriendshipStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.Status = status
	f.UpdatedAt = time.Now().UTC()
	r.records[id] = f
	return nil
}

func (r *FriendshipRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *FriendshipRepository) ListForUser(_ context.Context, userID string, status models.FriendshipStatus) ([]models.Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Friendship
	for _, f := range r.records {
		if f.Status != status {
			continue
		}
		if status == models.FriendshipAccepted {
			if f.RequestFromID == userID || f.RequestToID == userID {
				out = append(out, f)
			}
		} else if f.RequestToID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *FriendshipRepository) DeleteInvolving(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, f := range r.records {
		if f.RequestFromID == userID || f.RequestToID == userID {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

func (r *FriendshipRepository) DeleteRejectedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, f := range r.records {
		if f.Status == models.FriendshipRejected && f.UpdatedAt.Before(cutoff) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}
