package service

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/crypto"
	"github.com/hanzong05/aimddlwr/internal/matching"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
)

const (
	minMemoryLength     = 3
	defaultImportance   = 5
	defaultMemoryType   = "fact"
	defaultMemoryLimit  = 20
	maxMemoryLimit      = 100
	memorySearchWindow  = 500
	maxMemoryTypeLength = 32
)

type MemoryInput struct {
	Content    string   `json:"content" binding:"required"`
	MemoryType string   `json:"memoryType"`
	Importance *int     `json:"importance" binding:"omitempty,min=1,max=10"`
	Tags       []string `json:"tags"`
}

type MemoryQuery struct {
	Query      string
	MemoryType string
	Limit      int
}

type MemoryService interface {
	Create(ctx context.Context, userID string, in MemoryInput) (*models.BrainMemory, error)
	List(ctx context.Context, userID string, q MemoryQuery) ([]*models.BrainMemory, error)
	Delete(ctx context.Context, userID, id string) error
}

type memoryService struct {
	memories   repository.MemoryRepository
	users      repository.UserRepository
	keyManager *crypto.KeyManager
	logger     *zap.Logger
}

// NewMemoryService builds a MemoryService. A nil keyManager stores content in plain text.
func NewMemoryService(memories repository.MemoryRepository, users repository.UserRepository,
	keyManager *crypto.KeyManager, logger *zap.Logger) MemoryService {
	return &memoryService{memories: memories, users: users, keyManager: keyManager, logger: logger.Named("memory")}
}

func (s *memoryService) Create(ctx context.Context, userID string, in MemoryInput) (*models.BrainMemory, error) {
	content := strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(content) < minMemoryLength {
		return nil, apperr.Validation("Content must be at least 3 characters")
	}
	importance := defaultImportance
	if in.Importance != nil {
		importance = *in.Importance
	}
	if importance < 1 || importance > 10 {
		return nil, apperr.Validation("Importance must be between 1 and 10")
	}
	memoryType := strings.ToLower(strings.TrimSpace(in.MemoryType))
	if memoryType == "" {
		memoryType = defaultMemoryType
	}
	if len(memoryType) > maxMemoryTypeLength {
		return nil, apperr.Validation("Memory type is too long")
	}

	m := &models.BrainMemory{
		ID:         uuid.NewString(),
		UserID:     userID,
		Content:    content,
		MemoryType: memoryType,
		Importance: importance,
		Tags:       models.NewTags(in.Tags...),
		CreatedAt:  now(),
	}

	stored := *m
	if s.keyManager.Enabled() {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, apperr.Upstream("Failed to load user", err)
		}
		// accounts created before a master key was configured have no data key
		if user.DKEncrypted != "" {
			sealed, err := s.keyManager.EncryptFor(userID, user.DKEncrypted, content)
			if err != nil {
				return nil, apperr.Upstream("Failed to encrypt memory", err)
			}
			stored.Content = sealed
			stored.Encrypted = true
		}
	}

	if err := s.memories.Create(ctx, &stored); err != nil {
		return nil, apperr.Upstream("Failed to save memory", err)
	}
	m.Encrypted = stored.Encrypted
	return m, nil
}

type rankedMemory struct {
	memory  *models.BrainMemory
	overlap int
}

// List returns memories by importance, or, when q.Query is set, the memories
// sharing keywords with it ranked by overlap and then importance.
func (s *memoryService) List(ctx context.Context, userID string, q MemoryQuery) ([]*models.BrainMemory, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultMemoryLimit
	}
	if limit > maxMemoryLimit {
		limit = maxMemoryLimit
	}
	query := strings.TrimSpace(q.Query)

	filter := models.MemoryFilter{MemoryType: strings.ToLower(strings.TrimSpace(q.MemoryType)), Limit: limit}
	if query != "" {
		filter.Limit = memorySearchWindow
	}
	memories, err := s.memories.List(ctx, userID, filter)
	if err != nil {
		return nil, apperr.Upstream("Failed to load memories", err)
	}
	if err := s.decrypt(ctx, userID, memories); err != nil {
		return nil, err
	}
	if query == "" {
		return memories, nil
	}

	terms := matching.Tokenize(query)
	ranked := make([]rankedMemory, 0, len(memories))
	for _, m := range memories {
		if n := overlap(terms, m); n > 0 {
			ranked = append(ranked, rankedMemory{memory: m, overlap: n})
		}
	}
	// stable: the repository order (importance, then newest) breaks ties
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].overlap != ranked[j].overlap {
			return ranked[i].overlap > ranked[j].overlap
		}
		return ranked[i].memory.Importance > ranked[j].memory.Importance
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]*models.BrainMemory, 0, len(ranked))
	ids := make([]string, 0, len(ranked))
	accessed := now()
	for _, r := range ranked {
		r.memory.AccessCount++
		r.memory.LastAccessedAt = &accessed
		out = append(out, r.memory)
		ids = append(ids, r.memory.ID)
	}
	if err := s.memories.Touch(ctx, userID, ids, accessed); err != nil {
		s.logger.Warn("Failed to record memory access", zap.String("user_id", userID), zap.Error(err))
	}
	return out, nil
}

func overlap(terms []string, m *models.BrainMemory) int {
	have := make(map[string]struct{})
	for _, t := range matching.Tokenize(m.Content) {
		have[t] = struct{}{}
	}
	for _, t := range m.Tags {
		have[strings.ToLower(t)] = struct{}{}
	}
	n := 0
	for _, t := range terms {
		if _, ok := have[t]; ok {
			n++
		}
	}
	return n
}

func (s *memoryService) decrypt(ctx context.Context, userID string, memories []*models.BrainMemory) error {
	var wrapped string
	loaded := false
	for _, m := range memories {
		if !m.Encrypted {
			continue
		}
		if !s.keyManager.Enabled() {
			return apperr.Upstream("Failed to read memories", crypto.ErrDataKeyMissing)
		}
		if !loaded {
			user, err := s.users.GetByID(ctx, userID)
			if err != nil {
				return apperr.Upstream("Failed to load user", err)
			}
			wrapped, loaded = user.DKEncrypted, true
		}
		plain, err := s.keyManager.DecryptFor(userID, wrapped, m.Content)
		if err != nil {
			return apperr.Upstream("Failed to decrypt memory", err)
		}
		m.Content = plain
	}
	return nil
}

func (s *memoryService) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return apperr.NotFound("Memory not found")
	}
	if err := s.memories.Delete(ctx, userID, id); err != nil {
		return lookupErr(err, "Memory not found", "Failed to delete memory")
	}
	return nil
}
