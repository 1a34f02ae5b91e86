package service

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
)

const (
	maxMessageLength     = 4000
	conversationTitleLen = 50
	maxConversationLimit = 100
	conversationMessages = 500
	defaultHistoryTurns  = 6
)

type ChatInput struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversationId"`
}

type ChatResult struct {
	Response       string  `json:"response"`
	ConversationID string  `json:"conversationId"`
	MessageID      string  `json:"messageId"`
	Confidence     float64 `json:"confidence"`
	Source         Source  `json:"source"`
	Category       string  `json:"category"`
	Learned        bool    `json:"learned"`
	PatternID      string  `json:"patternId,omitempty"`
}

type ConversationPage struct {
	Conversations []*models.Conversation `json:"conversations"`
	Pagination    Pagination             `json:"pagination"`
}

type ConversationDetail struct {
	*models.Conversation
	Messages []*models.Message `json:"messages"`
}

type ChatService interface {
	Send(ctx context.Context, userID string, in ChatInput) (*ChatResult, error)
	ListConversations(ctx context.Context, userID string, page, limit int) (*ConversationPage, error)
	GetConversation(ctx context.Context, userID, id string) (*ConversationDetail, error)
	DeleteConversation(ctx context.Context, userID, id string) error
}

type chatService struct {
	conversations repository.ConversationRepository
	selector      *Selector
	historyTurns  int
	logger        *zap.Logger
}

func NewChatService(conversations repository.ConversationRepository, selector *Selector, historyTurns int, logger *zap.Logger) ChatService {
	if historyTurns <= 0 {
		historyTurns = defaultHistoryTurns
	}
	return &chatService{
		conversations: conversations,
		selector:      selector,
		historyTurns:  historyTurns,
		logger:        logger.Named("chat"),
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (s *chatService) Send(ctx context.Context, userID string, in ChatInput) (*ChatResult, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, apperr.Validation("Message is required")
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		return nil, apperr.Validation("Message must be at most 4000 characters")
	}

	conv, err := s.conversation(ctx, userID, in.ConversationID, message)
	if err != nil {
		return nil, err
	}

	recent, err := s.conversations.RecentMessages(ctx, conv.ID, s.historyTurns)
	if err != nil {
		return nil, apperr.Upstream("Failed to load conversation history", err)
	}
	history := make([]models.ChatTurn, 0, len(recent))
	for _, m := range recent {
		history = append(history, models.ChatTurn{Role: m.Role, Content: m.Content})
	}

	userMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        message,
		Timestamp:      now(),
	}
	if err := s.conversations.AppendMessage(ctx, userMsg); err != nil {
		return nil, apperr.Upstream("Failed to save message", err)
	}

	reply, err := s.selector.Select(ctx, userID, message, history)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(replyMetadata{
		Confidence: reply.Confidence,
		Source:     reply.Source,
		Category:   reply.Category,
		PatternID:  reply.PatternID,
		ExampleID:  reply.ExampleID,
	})
	if err != nil {
		return nil, apperr.Upstream("Failed to save reply", err)
	}
	assistantMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        reply.Content,
		Metadata:       types.JSONText(metadata),
		Timestamp:      now(),
	}
	if err := s.conversations.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, apperr.Upstream("Failed to save reply", err)
	}
	if err := s.conversations.Touch(ctx, conv.ID, assistantMsg.Timestamp); err != nil {
		s.logger.Warn("Failed to touch conversation", zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	return &ChatResult{
		Response:       reply.Content,
		ConversationID: conv.ID,
		MessageID:      assistantMsg.ID,
		Confidence:     reply.Confidence,
		Source:         reply.Source,
		Category:       reply.Category,
		Learned:        reply.Learned,
		PatternID:      reply.PatternID,
	}, nil
}

type replyMetadata struct {
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
	Category   string  `json:"category"`
	PatternID  string  `json:"patternId,omitempty"`
	ExampleID  string  `json:"exampleId,omitempty"`
}

// conversation loads the caller's conversation or starts a new one titled after message.
func (s *chatService) conversation(ctx context.Context, userID, id, message string) (*models.Conversation, error) {
	if id != "" {
		if !validID(id) {
			return nil, apperr.NotFound("Conversation not found")
		}
		conv, err := s.conversations.GetByID(ctx, userID, id)
		if err != nil {
			return nil, lookupErr(err, "Conversation not found", "Failed to load conversation")
		}
		return conv, nil
	}

	ts := now()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     truncateRunes(message, conversationTitleLen),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, apperr.Upstream("Failed to create conversation", err)
	}
	return conv, nil
}

func (s *chatService) ListConversations(ctx context.Context, userID string, page, limit int) (*ConversationPage, error) {
	p := NewPagination(page, limit, maxConversationLimit)
	convs, total, err := s.conversations.List(ctx, userID, p.window())
	if err != nil {
		return nil, apperr.Upstream("Failed to load conversations", err)
	}
	p.setTotal(total)
	return &ConversationPage{Conversations: convs, Pagination: p}, nil
}

func (s *chatService) GetConversation(ctx context.Context, userID, id string) (*ConversationDetail, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Conversation not found")
	}
	conv, err := s.conversations.GetByID(ctx, userID, id)
	if err != nil {
		return nil, lookupErr(err, "Conversation not found", "Failed to load conversation")
	}
	messages, err := s.conversations.ListMessages(ctx, conv.ID, conversationMessages)
	if err != nil {
		return nil, apperr.Upstream("Failed to load messages", err)
	}
	return &ConversationDetail{Conversation: conv, Messages: messages}, nil
}

func (s *chatService) DeleteConversation(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return apperr.NotFound("Conversation not found")
	}
	if err := s.conversations.Delete(ctx, userID, id); err != nil {
		return lookupErr(err, "Conversation not found", "Failed to delete conversation")
	}
	return nil
}
