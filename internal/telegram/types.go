package telegram

import (
	"context"
	"crypto-alert-bot/internal/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
	// APIEndpoint overrides the Bot API URL template, e.g. for a local server.
	APIEndpoint string
}

// AlertManager is the part of the alert service the bot drives.
type AlertManager interface {
	CreateAlert(ctx context.Context, userID, symbol string, alertType types.AlertType, condition types.ConditionType, value float64, message string) (int64, error)
	ListForUser(ctx context.Context, userID string) ([]types.Alert, error)
	Delete(ctx context.Context, alertID int64, userID string) (bool, error)
}

// Recorder counts bot activity. *metrics.Metrics implements it.
type Recorder interface {
	MessageHandled()
	CommandProcessed()
	ChatSeen(chatID int64, chatName string)
	NotificationSent()
	NotificationFailed()
}

type noopRecorder struct{}

func (noopRecorder) MessageHandled()        {}
func (noopRecorder) CommandProcessed()      {}
func (noopRecorder) ChatSeen(int64, string) {}
func (noopRecorder) NotificationSent()      {}
func (noopRecorder) NotificationFailed()    {}

// Bot telegram interaction client
type Bot struct {
	Bot     *tgbotapi.BotAPI
	Config  BotConfig
	alerts  AlertManager
	metrics Recorder
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}
