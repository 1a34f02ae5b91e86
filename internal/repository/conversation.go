package repository

import (
	"context"
	"time"

	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	conversationColumns = `id, user_id, title, created_at, updated_at`
	messageColumns      = `id, conversation_id, role, content, metadata, sent_at`
	// user before assistant when two messages share a timestamp
	messageOrder = `sent_at ASC, role DESC, id ASC`
)

type ConversationRepository interface {
	Create(ctx context.Context, c *models.Conversation) error
	GetByID(ctx context.Context, userID, id string) (*models.Conversation, error)
	List(ctx context.Context, userID string, page Page) ([]*models.Conversation, int, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, userID, id string) error
	AppendMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
	RecentMessages(ctx context.Context, conversationID string, n int) ([]*models.Message, error)
}

type conversationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewConversationRepository(db *sqlx.DB, logger *zap.Logger) ConversationRepository {
	return &conversationRepository{db: db, logger: logger.Named("conversation_repo")}
}

func (r *conversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	query := r.db.Rebind(`INSERT INTO conversations (` + conversationColumns + `) VALUES (?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
	return translate(err)
}

func (r *conversationRepository) GetByID(ctx context.Context, userID, id string) (*models.Conversation, error) {
	var c models.Conversation
	query := r.db.Rebind(`SELECT ` + conversationColumns + ` FROM conversations WHERE id = ? AND user_id = ?`)
	if err := r.db.GetContext(ctx, &c, query, id, userID); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *conversationRepository) List(ctx context.Context, userID string, page Page) ([]*models.Conversation, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM conversations WHERE user_id = ?`), userID); err != nil {
		return nil, 0, err
	}

	query := r.db.Rebind(`SELECT ` + conversationColumns + ` FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`)
	conversations := []*models.Conversation{}
	if err := r.db.SelectContext(ctx, &conversations, query, userID, page.Limit, page.Offset); err != nil {
		return nil, 0, err
	}
	return conversations, total, nil
}

func (r *conversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE conversations SET updated_at = ? WHERE id = ?`), at, id)
	return err
}

// Delete removes the conversation; its messages go with it through the foreign key cascade.
func (r *conversationRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM conversations WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

func (r *conversationRepository) AppendMessage(ctx context.Context, m *models.Message) error {
	if len(m.Metadata) == 0 {
		m.Metadata = []byte(`{}`)
	}
	query := r.db.Rebind(`INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, m.ID, m.ConversationID, m.Role, m.Content, m.Metadata, m.Timestamp)
	return translate(err)
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY ` + messageOrder + ` LIMIT ?`)
	messages := []*models.Message{}
	if err := r.db.SelectContext(ctx, &messages, query, conversationID, limit); err != nil {
		return nil, err
	}
	return messages, nil
}

// RecentMessages returns the last n messages, oldest first.
func (r *conversationRepository) RecentMessages(ctx context.Context, conversationID string, n int) ([]*models.Message, error) {
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?
		ORDER BY sent_at DESC, role ASC, id DESC LIMIT ?`)
	messages := []*models.Message{}
	if err := r.db.SelectContext(ctx, &messages, query, conversationID, n); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
