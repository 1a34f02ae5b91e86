package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Page is an offset-based window over a listing.
type Page struct {
	Limit  int
	Offset int
}

const trainingDataColumns = `id, user_id, input, output, category, quality_score, tags, used_in_training, created_at`

// TrainingDataRepository handles database operations for the training_data table.
type TrainingDataRepository interface {
	Create(ctx context.Context, example *models.TrainingExample) error
	CreateBatch(ctx context.Context, examples []*models.TrainingExample) error
	GetByID(ctx context.Context, userID, id string) (*models.TrainingExample, error)
	List(ctx context.Context, filter models.TrainingDataFilter, page Page) ([]*models.TrainingExample, int, error)
	ListCandidates(ctx context.Context, userID string, limit int) ([]*models.TrainingExample, error)
	CountEligible(ctx context.Context, userID string, minQuality float64) (int, error)
	ListEligible(ctx context.Context, userID string, minQuality float64, limit int) ([]*models.TrainingExample, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, example *models.TrainingExample) error
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (*models.TrainingDataStats, error)
}

type trainingDataRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTrainingDataRepository creates a new training data repository.
func NewTrainingDataRepository(db *sqlx.DB, logger *zap.Logger) TrainingDataRepository {
	return &trainingDataRepository{db: db, logger: logger.Named("training_data_repo")}
}

const insertTrainingData = `
	INSERT INTO training_data (` + trainingDataColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (r *trainingDataRepository) Create(ctx context.Context, e *models.TrainingExample) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(insertTrainingData),
		e.ID, e.UserID, e.Input, e.Output, e.Category, e.QualityScore, e.Tags, e.UsedInTraining, e.CreatedAt)
	return translate(err)
}

// CreateBatch inserts all examples or none of them.
func (r *trainingDataRepository) CreateBatch(ctx context.Context, examples []*models.TrainingExample) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(insertTrainingData))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range examples {
			if _, err := stmt.ExecContext(ctx,
				e.ID, e.UserID, e.Input, e.Output, e.Category, e.QualityScore, e.Tags, e.UsedInTraining, e.CreatedAt); err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

func (r *trainingDataRepository) GetByID(ctx context.Context, userID, id string) (*models.TrainingExample, error) {
	var e models.TrainingExample
	query := r.db.Rebind(`SELECT ` + trainingDataColumns + ` FROM training_data WHERE id = ? AND user_id = ?`)
	if err := r.db.GetContext(ctx, &e, query, id, userID); err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

// List returns one page of examples matching filter together with the total match count.
func (r *trainingDataRepository) List(ctx context.Context, filter models.TrainingDataFilter, page Page) ([]*models.TrainingExample, int, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{filter.UserID}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.MinQuality != nil {
		where = append(where, "quality_score >= ?")
		args = append(args, *filter.MinQuality)
	}
	if filter.Used != nil {
		where = append(where, "used_in_training = ?")
		args = append(args, *filter.Used)
	}
	if filter.Search != "" {
		where = append(where, "(LOWER(input) LIKE ? OR LOWER(output) LIKE ?)")
		like := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, like, like)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM training_data WHERE `+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count training data: %w", err)
	}

	query := r.db.Rebind(`SELECT ` + trainingDataColumns + ` FROM training_data WHERE ` + clause +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	examples := []*models.TrainingExample{}
	if err := r.db.SelectContext(ctx, &examples, query, append(args, page.Limit, page.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("list training data: %w", err)
	}
	return examples, total, nil
}

// ListCandidates returns the newest examples first; ties on created_at are broken by id.
func (r *trainingDataRepository) ListCandidates(ctx context.Context, userID string, limit int) ([]*models.TrainingExample, error) {
	query := r.db.Rebind(`SELECT ` + trainingDataColumns + ` FROM training_data WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
	examples := []*models.TrainingExample{}
	if err := r.db.SelectContext(ctx, &examples, query, userID, limit); err != nil {
		return nil, err
	}
	return examples, nil
}

func (r *trainingDataRepository) CountEligible(ctx context.Context, userID string, minQuality float64) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM training_data WHERE user_id = ? AND quality_score >= ? AND used_in_training = ?`)
	if err := r.db.GetContext(ctx, &count, query, userID, minQuality, false); err != nil {
		return 0, err
	}
	return count, nil
}

// ListEligible returns unused examples at or above minQuality, best first.
func (r *trainingDataRepository) ListEligible(ctx context.Context, userID string, minQuality float64, limit int) ([]*models.TrainingExample, error) {
	query := r.db.Rebind(`SELECT ` + trainingDataColumns + ` FROM training_data
		WHERE user_id = ? AND quality_score >= ? AND used_in_training = ?
		ORDER BY quality_score DESC, created_at DESC LIMIT ?`)
	examples := []*models.TrainingExample{}
	if err := r.db.SelectContext(ctx, &examples, query, userID, minQuality, false, limit); err != nil {
		return nil, err
	}
	return examples, nil
}

func (r *trainingDataRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM training_data WHERE user_id = ?`), userID); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *trainingDataRepository) Update(ctx context.Context, e *models.TrainingExample) error {
	query := r.db.Rebind(`UPDATE training_data SET input = ?, output = ?, category = ?, quality_score = ?, tags = ?
		WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, e.Input, e.Output, e.Category, e.QualityScore, e.Tags, e.ID, e.UserID)
	if err != nil {
		return translate(err)
	}
	return expectOne(res, ErrNotFound)
}

func (r *trainingDataRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM training_data WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

// Stats aggregates a user's training data.
func (r *trainingDataRepository) Stats(ctx context.Context, userID string) (*models.TrainingDataStats, error) {
	var totals struct {
		Total   int     `db:"total"`
		Used    int     `db:"used"`
		Average float64 `db:"average"`
	}
	query := r.db.Rebind(`
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN used_in_training = ? THEN 1 ELSE 0 END), 0) AS used,
		       COALESCE(AVG(quality_score), 0) AS average
		FROM training_data WHERE user_id = ?`)
	if err := r.db.GetContext(ctx, &totals, query, true, userID); err != nil {
		return nil, fmt.Errorf("training data totals: %w", err)
	}

	stats := &models.TrainingDataStats{
		Total:               totals.Total,
		Used:                totals.Used,
		Unused:              totals.Total - totals.Used,
		AverageQuality:      totals.Average,
		ByCategory:          map[string]int{},
		QualityDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	var categories []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	query = r.db.Rebind(`SELECT category, COUNT(*) AS count FROM training_data WHERE user_id = ? GROUP BY category`)
	if err := r.db.SelectContext(ctx, &categories, query, userID); err != nil {
		return nil, fmt.Errorf("training data by category: %w", err)
	}
	for _, c := range categories {
		name := c.Category
		if name == "" {
			name = "uncategorized"
		}
		stats.ByCategory[name] += c.Count
	}

	var buckets []struct {
		Bucket int `db:"bucket"`
		Count  int `db:"count"`
	}
	query = r.db.Rebind(`SELECT CAST(ROUND(quality_score) AS INTEGER) AS bucket, COUNT(*) AS count
		FROM training_data WHERE user_id = ? GROUP BY CAST(ROUND(quality_score) AS INTEGER)`)
	if err := r.db.SelectContext(ctx, &buckets, query, userID); err != nil {
		return nil, fmt.Errorf("training data quality distribution: %w", err)
	}
	for _, b := range buckets {
		stats.QualityDistribution[b.Bucket] += b.Count
	}

	return stats, nil
}
