// Package chat routes real-time messages between authenticated connections.
// A Registry records which connections each user holds, the Hub owns the
// rooms of this process and the Service applies the conversation rules.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/models"
	"social-service/internal/repository"
	"social-service/internal/token"
)

var (
	ErrInvalidGroup  = apperror.BadRequest("Invalid Group ID")
	ErrNotAMember    = apperror.Forbidden("You are not a member of this group")
	ErrInvalidTarget = apperror.BadRequest("Invalid target user")
	ErrBlocked       = apperror.Forbidden("You cannot message this user")
	ErrEmptyMessage  = apperror.BadRequest("Message text is required")
)

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type Options struct {
	// EnforceGroupMembership rejects group joins from non-members.
	EnforceGroupMembership bool
}

type Service struct {
	registry      Registry
	hub           *Hub
	users         UserFinder
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	opts          Options
	logger        *zap.Logger
	now           func() time.Time
}

func NewService(
	registry Registry,
	hub *Hub,
	users UserFinder,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	opts Options,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:      registry,
		hub:           hub,
		users:         users,
		conversations: conversations,
		messages:      messages,
		opts:          opts,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Service) Hub() *Hub { return s.hub }

// Connect registers an authenticated connection and acknowledges it.
func (s *Service) Connect(ctx context.Context, principal *token.Principal, peer Peer) error {
	if err := s.registry.Add(ctx, principal.User.ID, peer.ID()); err != nil {
		return fmt.Errorf("register connection: %w", err)
	}
	s.hub.Attach(peer)
	peer.Send(Event{Event: EventConnected, Data: map[string]any{"user": principal.User.Identity()}})

	s.logger.Debug("chat connection opened",
		zap.String("user_id", principal.User.ID),
		zap.String("conn_id", peer.ID()))
	return nil
}

// Disconnect forgets the connection and tells everyone else about it.
func (s *Service) Disconnect(ctx context.Context, userID, connID string) {
	remaining, err := s.registry.Remove(ctx, userID, connID)
	if err != nil {
		s.logger.Warn("failed to remove chat connection",
			zap.String("user_id", userID),
			zap.String("conn_id", connID),
			zap.Error(err))
	}
	s.hub.Detach(connID)
	s.hub.BroadcastExcept(connID, Event{
		Event: EventUserDisconnected,
		Data:  map[string]string{"_id": userID, "socketId": connID},
	})

	s.logger.Debug("chat connection closed",
		zap.String("user_id", userID),
		zap.String("conn_id", connID),
		zap.Int("remaining", remaining))
}

// JoinPrivate puts connID into the room of the private conversation between
// userID and targetID, creating the conversation on first contact.
func (s *Service) JoinPrivate(ctx context.Context, userID, connID, targetID string) (*models.Conversation, error) {
	if targetID == "" || targetID == userID {
		return nil, ErrInvalidTarget
	}
	if err := s.checkTarget(ctx, userID, targetID); err != nil {
		return nil, err
	}

	conv, err := s.conversations.FindOrCreatePrivate(ctx, userID, targetID)
	if err != nil {
		return nil, fmt.Errorf("find private conversation: %w", err)
	}
	s.hub.Join(conv.ID, connID)
	return conv, nil
}

func (s *Service) checkTarget(ctx context.Context, userID, targetID string) error {
	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidTarget
		}
		return fmt.Errorf("find target user: %w", err)
	}
	if target.HasBlocked(userID) {
		return ErrBlocked
	}

	self, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find sender: %w", err)
	}
	if self.HasBlocked(targetID) {
		return ErrBlocked
	}
	return nil
}

func (s *Service) SendPrivate(ctx context.Context, userID, connID, targetID, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	conv, err := s.JoinPrivate(ctx, userID, connID, targetID)
	if err != nil {
		return nil, err
	}
	return s.deliver(ctx, conv, userID, text)
}

func (s *Service) PrivateHistory(ctx context.Context, userID, connID, targetID string) ([]models.Message, error) {
	conv, err := s.JoinPrivate(ctx, userID, connID, targetID)
	if err != nil {
		return nil, err
	}
	return s.history(ctx, connID, conv.ID, EventChatHistory)
}

// JoinGroup puts connID into the room of an existing group conversation.
func (s *Service) JoinGroup(ctx context.Context, userID, connID, groupID string) (*models.Conversation, error) {
	if groupID == "" {
		return nil, ErrInvalidGroup
	}
	conv, err := s.conversations.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidGroup
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	if conv.Type != models.ConversationGroup {
		return nil, ErrInvalidGroup
	}
	if s.opts.EnforceGroupMembership && !conv.HasMember(userID) {
		return nil, ErrNotAMember
	}
	s.hub.Join(conv.ID, connID)
	return conv, nil
}

func (s *Service) SendGroup(ctx context.Context, userID, connID, groupID, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	conv, err := s.JoinGroup(ctx, userID, connID, groupID)
	if err != nil {
		return nil, err
	}
	return s.deliver(ctx, conv, userID, text)
}

func (s *Service) GroupHistory(ctx context.Context, userID, connID, groupID string) ([]models.Message, error) {
	conv, err := s.JoinGroup(ctx, userID, connID, groupID)
	if err != nil {
		return nil, err
	}
	return s.history(ctx, connID, conv.ID, EventGroupHistory)
}

// deliver persists the message before fanning it out to the room.
func (s *Service) deliver(ctx context.Context, conv *models.Conversation, senderID, text string) (*models.Message, error) {
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	s.hub.Broadcast(conv.ID, Event{Event: EventMessageSent, Data: msg})
	return msg, nil
}

func (s *Service) history(ctx context.Context, connID, conversationID, event string) ([]models.Message, error) {
	msgs, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	s.hub.Send(connID, Event{Event: event, Data: msgs})
	return msgs, nil
}
