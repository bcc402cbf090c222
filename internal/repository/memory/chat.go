package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"social-service/internal/models"
	"social-service/internal/repository"
)

type ConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation
	byPair        map[string]string
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		conversations: make(map[string]models.Conversation),
		byPair:        make(map[string]string),
	}
}

func cloneConversation(c models.Conversation) models.Conversation {
	c.Members = append([]string(nil), c.Members...)
	return c
}

func (r *ConversationRepository) FindOrCreatePrivate(_ context.Context, a, b string) (*models.Conversation, error) {
	key := models.PrivatePairKey(a, b)

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPair[key]; ok {
		c := cloneConversation(r.conversations[id])
		return &c, nil
	}

	now := time.Now().UTC()
	c := models.Conversation{
		ID:        uuid.NewString(),
		Type:      models.ConversationPrivate,
		Members:   sortedCopy([]string{a, b}),
		PairKey:   key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.conversations[c.ID] = c
	r.byPair[key] = c.ID
	out := cloneConversation(c)
	return &out, nil
}

func (r *ConversationRepository) Create(_ context.Context, c *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[c.ID]; ok {
		return repository.ErrDuplicate
	}
	if c.PairKey != "" {
		if _, ok := r.byPair[c.PairKey]; ok {
			return repository.ErrDuplicate
		}
		r.byPair[c.PairKey] = c.ID
	}
	r.conversations[c.ID] = cloneConversation(*c)
	return nil
}

func (r *ConversationRepository) FindByID(_ context.Context, id string) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneConversation(c)
	return &out, nil
}

func (r *ConversationRepository) ListGroupsForMember(_ context.Context, userID string) ([]models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Conversation
	for _, c := range r.conversations {
		if c.Type == models.ConversationGroup && c.HasMember(userID) {
			out = append(out, cloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ConversationRepository) DeleteWithMember(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, c := range r.conversations {
		if c.HasMember(userID) {
			delete(r.conversations, id)
			if c.PairKey != "" {
				delete(r.byPair, c.PairKey)
			}
			n++
		}
	}
	return n, nil
}

type MessageRepository struct {
	mu       sync.RWMutex
	messages []models.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{}
}

func (r *MessageRepository) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *m
	cp.Attachments = append([]string(nil), m.Attachments...)
	r.messages = append(r.messages, cp)
	return nil
}

func (r *MessageRepository) ListByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MessageRepository) DeleteBySender(_ context.Context, senderID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []models.Message
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.SenderID == senderID {
			removed = append(removed, m)
		} else {
			kept = append(kept, m)
		}
	}
	r.messages = kept
	return removed, nil
}
