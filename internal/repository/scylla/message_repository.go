package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/util"
)

type MessageRepository struct {
	client *ScyllaClient
}

func NewMessageRepository(client *ScyllaClient) *MessageRepository {
	return &MessageRepository{client: client}
}

// Create writes the message to both tables in one logged batch.
func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(stmtInsertMessage, m.ConversationID, m.CreatedAt, m.ID, m.SenderID, m.Text, m.Attachments)
	batch.Query(stmtInsertMessageBySender, m.SenderID, m.CreatedAt, m.ID, m.ConversationID)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to store message",
			zap.String("conversation_id", m.ConversationID),
			zap.String("message_id", m.ID),
			zap.Error(err))
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	iter := r.client.Query(stmtListByConversation, conversationID).WithContext(ctx).Iter()

	out := []models.Message{}
	var (
		id, sender, body string
		attachments      []string
		createdAt        time.Time
	)
	for iter.Scan(&id, &sender, &body, &attachments, &createdAt) {
		out = append(out, models.Message{
			ID:             id,
			ConversationID: conversationID,
			SenderID:       sender,
			Text:           body,
			Attachments:    append([]string(nil), attachments...),
			CreatedAt:      createdAt,
		})
		attachments = nil
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}

// DeleteBySender reads the sender index, loads each message body so callers
// can clean up attachments, then deletes both sides.
func (r *MessageRepository) DeleteBySender(ctx context.Context, senderID string) ([]models.Message, error) {
	iter := r.client.Query(stmtListBySender, senderID).WithContext(ctx).Iter()

	var (
		refs               []models.Message
		id, conversationID string
		createdAt          time.Time
	)
	for iter.Scan(&id, &conversationID, &createdAt) {
		refs = append(refs, models.Message{ID: id, ConversationID: conversationID, SenderID: senderID, CreatedAt: createdAt})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list sender messages: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	batch := r.client.Session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for i := range refs {
		m := &refs[i]
		err := r.client.Query(stmtGetMessage, m.ConversationID, m.CreatedAt, m.ID).
			WithContext(ctx).Scan(&m.Text, &m.Attachments)
		if err != nil && !errors.Is(err, gocql.ErrNotFound) {
			return nil, fmt.Errorf("failed to load message %s: %w", m.ID, err)
		}
		batch.Query(stmtDeleteMessage, m.ConversationID, m.CreatedAt, m.ID)
	}
	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		return nil, fmt.Errorf("failed to delete sender messages: %w", err)
	}
	if err := r.client.ExecuteWithRetry(ctx, r.client.Query(stmtDeleteBySender, senderID), 2); err != nil {
		return nil, fmt.Errorf("failed to delete sender index: %w", err)
	}

	util.Info("Messages deleted for sender",
		zap.String("sender_id", senderID),
		zap.Int("count", len(refs)))
	return refs, nil
}
