package repository

import (
	"context"
	"time"

	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const memoryColumns = `id, user_id, content, memory_type, importance, tags, encrypted, access_count, created_at, last_accessed_at`

type MemoryRepository interface {
	Create(ctx context.Context, m *models.BrainMemory) error
	List(ctx context.Context, userID string, filter models.MemoryFilter) ([]*models.BrainMemory, error)
	Touch(ctx context.Context, userID string, ids []string, at time.Time) error
	Delete(ctx context.Context, userID, id string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

type memoryRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMemoryRepository(db *sqlx.DB, logger *zap.Logger) MemoryRepository {
	return &memoryRepository{db: db, logger: logger.Named("memory_repo")}
}

func (r *memoryRepository) Create(ctx context.Context, m *models.BrainMemory) error {
	query := r.db.Rebind(`INSERT INTO brain_memories (` + memoryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.UserID, m.Content, m.MemoryType, m.Importance, m.Tags, m.Encrypted, m.AccessCount, m.CreatedAt, m.LastAccessedAt)
	return translate(err)
}

// List returns memories by importance, newest first on ties. Limit 0 means no limit.
func (r *memoryRepository) List(ctx context.Context, userID string, filter models.MemoryFilter) ([]*models.BrainMemory, error) {
	query := `SELECT ` + memoryColumns + ` FROM brain_memories WHERE user_id = ?`
	args := []interface{}{userID}
	if filter.MemoryType != "" {
		query += ` AND memory_type = ?`
		args = append(args, filter.MemoryType)
	}
	query += ` ORDER BY importance DESC, created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	memories := []*models.BrainMemory{}
	if err := r.db.SelectContext(ctx, &memories, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return memories, nil
}

// Touch records a read of the given memories.
func (r *memoryRepository) Touch(ctx context.Context, userID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE brain_memories SET access_count = access_count + 1, last_accessed_at = ?
		WHERE user_id = ? AND id IN (?)`, at, userID, ids)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	return err
}

func (r *memoryRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM brain_memories WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

func (r *memoryRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM brain_memories WHERE user_id = ?`), userID); err != nil {
		return 0, err
	}
	return n, nil
}
