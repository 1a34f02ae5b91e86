package repository

import (
	"context"
	"fmt"

	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const modelColumns = `id, user_id, training_job_id, name, version, status, accuracy, specialization, is_active, performance_metrics, created_at`

type ModelRepository interface {
	GetByID(ctx context.Context, userID, id string) (*models.Model, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Model, error)
	GetActive(ctx context.Context, userID string) (*models.Model, error)
	NextVersion(ctx context.Context, userID string) (int, error)
	Activate(ctx context.Context, userID, id string) error
	Archive(ctx context.Context, userID, id string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

type modelRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewModelRepository(db *sqlx.DB, logger *zap.Logger) ModelRepository {
	return &modelRepository{db: db, logger: logger.Named("model_repo")}
}

func insertModel(ctx context.Context, tx *sqlx.Tx, m *models.Model) error {
	if len(m.PerformanceMetrics) == 0 {
		m.PerformanceMetrics = []byte(`{}`)
	}
	query := tx.Rebind(`INSERT INTO models (` + modelColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := tx.ExecContext(ctx, query,
		m.ID, m.UserID, m.TrainingJobID, m.Name, m.Version, m.Status, m.Accuracy, m.Specialization,
		m.IsActive, m.PerformanceMetrics, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert model: %w", translate(err))
	}
	return nil
}

func (r *modelRepository) GetByID(ctx context.Context, userID, id string) (*models.Model, error) {
	var m models.Model
	query := r.db.Rebind(`SELECT ` + modelColumns + ` FROM models WHERE id = ? AND user_id = ?`)
	if err := r.db.GetContext(ctx, &m, query, id, userID); err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *modelRepository) ListByUser(ctx context.Context, userID string) ([]*models.Model, error) {
	query := r.db.Rebind(`SELECT ` + modelColumns + ` FROM models WHERE user_id = ? ORDER BY created_at DESC, version DESC`)
	list := []*models.Model{}
	if err := r.db.SelectContext(ctx, &list, query, userID); err != nil {
		return nil, err
	}
	return list, nil
}

// GetActive returns the user's active model or ErrNotFound.
func (r *modelRepository) GetActive(ctx context.Context, userID string) (*models.Model, error) {
	var m models.Model
	query := r.db.Rebind(`SELECT ` + modelColumns + ` FROM models WHERE user_id = ? AND is_active = ?`)
	if err := r.db.GetContext(ctx, &m, query, userID, true); err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *modelRepository) NextVersion(ctx context.Context, userID string) (int, error) {
	var v int
	if err := r.db.GetContext(ctx, &v, r.db.Rebind(`SELECT COALESCE(MAX(version), 0) + 1 FROM models WHERE user_id = ?`), userID); err != nil {
		return 0, err
	}
	return v, nil
}

// Activate makes id the user's only active model. Archived models cannot be activated.
func (r *modelRepository) Activate(ctx context.Context, userID, id string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE models SET is_active = ? WHERE user_id = ? AND is_active = ?`),
			false, userID, true); err != nil {
			return fmt.Errorf("deactivate models: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE models SET is_active = ?, status = ? WHERE id = ? AND user_id = ? AND status <> ?`),
			true, models.ModelDeployed, id, userID, models.ModelArchived)
		if err != nil {
			return fmt.Errorf("activate model: %w", translate(err))
		}
		return expectOne(res, ErrNotFound)
	})
}

func (r *modelRepository) Archive(ctx context.Context, userID, id string) error {
	query := r.db.Rebind(`UPDATE models SET status = ?, is_active = ? WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, models.ModelArchived, false, id, userID)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

func (r *modelRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM models WHERE user_id = ?`), userID); err != nil {
		return 0, err
	}
	return n, nil
}
