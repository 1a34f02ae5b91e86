package repository

import (
	"context"

	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const feedbackColumns = `id, user_id, pattern_id, message_id, feedback_type, score, corrected_response, created_at`

// FeedbackRepository is the append-only feedback log.
type FeedbackRepository interface {
	Create(ctx context.Context, event *models.FeedbackEvent) error
	List(ctx context.Context, userID string, limit int) ([]*models.FeedbackEvent, error)
	CountByType(ctx context.Context, userID string) (map[models.FeedbackType]int, error)
}

type feedbackRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewFeedbackRepository(db *sqlx.DB, logger *zap.Logger) FeedbackRepository {
	return &feedbackRepository{db: db, logger: logger.Named("feedback_repo")}
}

func (r *feedbackRepository) Create(ctx context.Context, e *models.FeedbackEvent) error {
	query := r.db.Rebind(`INSERT INTO learning_feedback (` + feedbackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.PatternID, e.MessageID, e.Type, e.Score, e.CorrectedResponse, e.CreatedAt)
	return translate(err)
}

func (r *feedbackRepository) List(ctx context.Context, userID string, limit int) ([]*models.FeedbackEvent, error) {
	query := r.db.Rebind(`SELECT ` + feedbackColumns + ` FROM learning_feedback WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
	events := []*models.FeedbackEvent{}
	if err := r.db.SelectContext(ctx, &events, query, userID, limit); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *feedbackRepository) CountByType(ctx context.Context, userID string) (map[models.FeedbackType]int, error) {
	var rows []struct {
		Type  models.FeedbackType `db:"feedback_type"`
		Count int                 `db:"count"`
	}
	query := r.db.Rebind(`SELECT feedback_type, COUNT(*) AS count FROM learning_feedback WHERE user_id = ? GROUP BY feedback_type`)
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	counts := map[models.FeedbackType]int{
		models.FeedbackPositive:   0,
		models.FeedbackNegative:   0,
		models.FeedbackCorrection: 0,
	}
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}
