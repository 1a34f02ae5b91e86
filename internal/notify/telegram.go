package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hanzong05/aimddlwr/internal/models"
	"go.uber.org/zap"
)

// Telegram posts training notices to one chat through the Bot API.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegram authorises the bot token against the Bot API.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	return newTelegram(token, tgbotapi.APIEndpoint, chatID, logger)
}

func newTelegram(token, endpoint string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}
	logger = logger.Named("telegram")
	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Telegram{api: api, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) TrainingCompleted(_ context.Context, job *models.TrainingJob, model *models.Model) {
	text := fmt.Sprintf(
		"✅ Training finished\n\nJob: %s\nSpecialization: %s\nEpochs: %d\nExamples: %d\nModel: %s (accuracy %.1f%%)",
		job.ID, job.Specialization, job.Epochs, job.TrainingDataCount, model.Name, model.Accuracy*100,
	)
	t.send(text, zap.String("job_id", job.ID))
}

func (t *Telegram) TrainingFailed(_ context.Context, job *models.TrainingJob, reason string) {
	text := fmt.Sprintf("❌ Training failed\n\nJob: %s\nSpecialization: %s\nReason: %s", job.ID, job.Specialization, reason)
	t.send(text, zap.String("job_id", job.ID))
}

func (t *Telegram) send(text string, fields ...zap.Field) {
	if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.logger.Error("Failed to send notification", append(fields, zap.Int64("chat_id", t.chatID), zap.Error(err))...)
		return
	}
	t.logger.Debug("Notification sent", fields...)
}
