package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const patternColumns = `id, user_id, input_pattern, response_pattern, category, confidence, use_count, created_at, updated_at`

type PatternRepository interface {
	Create(ctx context.Context, p *models.Pattern) error
	GetByID(ctx context.Context, userID, id string) (*models.Pattern, error)
	List(ctx context.Context, userID string, filter models.PatternFilter) ([]*models.Pattern, error)
	FindMatch(ctx context.Context, userID string, m models.PatternMatch) (*models.Pattern, error)
	Update(ctx context.Context, p *models.Pattern) error
	UpdateConfidence(ctx context.Context, userID, id string, confidence float64, response *string) error
	IncrementUseCount(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string, highConfidence float64) (*models.PatternStats, error)
}

type patternRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPatternRepository(db *sqlx.DB, logger *zap.Logger) PatternRepository {
	return &patternRepository{db: db, logger: logger.Named("pattern_repo")}
}

func (r *patternRepository) Create(ctx context.Context, p *models.Pattern) error {
	query := r.db.Rebind(`INSERT INTO learning_patterns (` + patternColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.InputPattern, p.ResponsePattern, p.Category, p.Confidence, p.UseCount, p.CreatedAt, p.UpdatedAt)
	return translate(err)
}

func (r *patternRepository) GetByID(ctx context.Context, userID, id string) (*models.Pattern, error) {
	var p models.Pattern
	query := r.db.Rebind(`SELECT ` + patternColumns + ` FROM learning_patterns WHERE id = ? AND user_id = ?`)
	if err := r.db.GetContext(ctx, &p, query, id, userID); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// List returns the user's patterns ordered by confidence, most recently updated first on ties.
func (r *patternRepository) List(ctx context.Context, userID string, filter models.PatternFilter) ([]*models.Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM learning_patterns WHERE user_id = ? AND confidence >= ?`
	args := []interface{}{userID, filter.MinConfidence}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY confidence DESC, updated_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	patterns := []*models.Pattern{}
	if err := r.db.SelectContext(ctx, &patterns, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return patterns, nil
}

// likeEscaper escapes LIKE wildcards with a backslash.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapedInput is the stored input lower-cased and trimmed, with its LIKE
// wildcards escaped so it can be used as a pattern.
const escapedInput = `REPLACE(REPLACE(REPLACE(LOWER(TRIM(input_pattern)), '\', '\\'), '%', '\%'), '_', '\_')`

// FindMatch returns the highest-confidence pattern, most recently updated on
// ties, whose input contains m.Head or is contained in m.Message. Both strings
// are expected lower-cased and trimmed. ErrNotFound means no pattern matches.
func (r *patternRepository) FindMatch(ctx context.Context, userID string, m models.PatternMatch) (*models.Pattern, error) {
	query := r.db.Rebind(`SELECT ` + patternColumns + ` FROM learning_patterns
		WHERE user_id = ? AND confidence >= ? AND TRIM(input_pattern) <> ''
		  AND (LOWER(TRIM(input_pattern)) LIKE CAST(? AS TEXT) ESCAPE '\'
		       OR CAST(? AS TEXT) LIKE ('%' || ` + escapedInput + ` || '%') ESCAPE '\')
		ORDER BY confidence DESC, updated_at DESC, id DESC
		LIMIT 1`)

	var p models.Pattern
	err := r.db.GetContext(ctx, &p, query, userID, m.MinConfidence, "%"+likeEscaper.Replace(m.Head)+"%", m.Message)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *patternRepository) Update(ctx context.Context, p *models.Pattern) error {
	query := r.db.Rebind(`UPDATE learning_patterns SET response_pattern = ?, category = ?, confidence = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, p.ResponsePattern, p.Category, p.Confidence, p.UpdatedAt, p.ID, p.UserID)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

// UpdateConfidence sets the confidence and, when response is non-nil, replaces the response text.
func (r *patternRepository) UpdateConfidence(ctx context.Context, userID, id string, confidence float64, response *string) error {
	now := time.Now().UTC()
	var (
		res sql.Result
		err error
	)
	if response != nil {
		query := r.db.Rebind(`UPDATE learning_patterns SET confidence = ?, response_pattern = ?, updated_at = ? WHERE id = ? AND user_id = ?`)
		res, err = r.db.ExecContext(ctx, query, confidence, *response, now, id, userID)
	} else {
		query := r.db.Rebind(`UPDATE learning_patterns SET confidence = ?, updated_at = ? WHERE id = ? AND user_id = ?`)
		res, err = r.db.ExecContext(ctx, query, confidence, now, id, userID)
	}
	if err != nil {
		return fmt.Errorf("update pattern confidence: %w", err)
	}
	return expectOne(res, ErrNotFound)
}

func (r *patternRepository) IncrementUseCount(ctx context.Context, userID, id string) error {
	query := r.db.Rebind(`UPDATE learning_patterns SET use_count = use_count + 1, updated_at = ? WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, userID)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

func (r *patternRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM learning_patterns WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

func (r *patternRepository) Stats(ctx context.Context, userID string, highConfidence float64) (*models.PatternStats, error) {
	var totals struct {
		Total   int     `db:"total"`
		Average float64 `db:"average"`
		High    int     `db:"high"`
		Uses    int     `db:"uses"`
	}
	query := r.db.Rebind(`
		SELECT COUNT(*) AS total,
		       COALESCE(AVG(confidence), 0) AS average,
		       COALESCE(SUM(CASE WHEN confidence >= ? THEN 1 ELSE 0 END), 0) AS high,
		       COALESCE(SUM(use_count), 0) AS uses
		FROM learning_patterns WHERE user_id = ?`)
	if err := r.db.GetContext(ctx, &totals, query, highConfidence, userID); err != nil {
		return nil, fmt.Errorf("pattern totals: %w", err)
	}

	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	query = r.db.Rebind(`SELECT category, COUNT(*) AS count FROM learning_patterns WHERE user_id = ? GROUP BY category`)
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("patterns by category: %w", err)
	}

	stats := &models.PatternStats{
		Total:             totals.Total,
		AverageConfidence: totals.Average,
		HighConfidence:    totals.High,
		TotalUses:         totals.Uses,
		ByCategory:        make(map[string]int, len(rows)),
	}
	for _, row := range rows {
		stats.ByCategory[row.Category] = row.Count
	}
	return stats, nil
}
