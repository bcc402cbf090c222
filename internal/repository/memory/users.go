// Package memory provides in-process implementations of the repository and
// token store contracts, used in development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"social-service/internal/models"
	"social-service/internal/pagination"
	"social-service/internal/repository"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
	order []string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]models.User)}
}

func cloneUser(u models.User) models.User {
	u.OTPs = append([]models.OTPRecord(nil), u.OTPs...)
	u.BlockList = append([]string(nil), u.BlockList...)
	if u.PhoneEncrypted != nil {
		enc := *u.PhoneEncrypted
		u.PhoneEncrypted = &enc
	}
	return u
}

func (r *UserRepository) emailTaken(email, exceptID string) bool {
	for id, u := range r.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok || r.emailTaken(user.Email, "") {
		return repository.ErrDuplicate
	}
	r.users[user.ID] = cloneUser(*user)
	r.order = append(r.order, user.ID)
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneUser(u)
	return &c, nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) FindByGoogleIdentity(_ context.Context, googleID, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.GoogleID == googleID && strings.EqualFold(u.Email, email) {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *UserRepository) List(_ context.Context, p pagination.Params) (*pagination.Page[models.User], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]models.User, 0, len(r.order))
	for _, id := range r.order {
		if u, ok := r.users[id]; ok {
			all = append(all, cloneUser(u))
		}
	}
	return pagination.Slice(all, p), nil
}

func (r *UserRepository) SearchByName(_ context.Context, name, viewerID string, limit int) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(name)
	var out []models.User
	for _, id := range r.order {
		u, ok := r.users[id]
		if !ok || u.HasBlocked(viewerID) {
			continue
		}
		if strings.Contains(strings.ToLower(u.FirstName), needle) || strings.Contains(strings.ToLower(u.LastName), needle) {
			out = append(out, cloneUser(u))
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *UserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return repository.ErrDuplicate
	}
	r.users[user.ID] = cloneUser(*user)
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	r.order = removeString(r.order, id)
	return nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedCopy(list []string) []string {
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}
