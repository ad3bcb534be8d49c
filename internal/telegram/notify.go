package telegram

import (
	"context"
	"crypto-alert-bot/internal/types"
	"crypto-alert-bot/lib/helpers"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Notify delivers each event to the chat whose ID is the alert's user_id.
// Owners that are not chat IDs, such as API users, are skipped.
func (b *Bot) Notify(ctx context.Context, events []types.TriggeredAlertEvent) {
	for _, event := range events {
		if ctx.Err() != nil {
			log.WithField("pending", len(events)).Warn("Notification dispatch interrupted")
			return
		}

		entry := log.WithFields(log.Fields{"event_id": event.EventID, "alert_id": event.AlertID, "user_id": event.UserID})

		chatID, err := strconv.ParseInt(event.UserID, 10, 64)
		if err != nil {
			entry.Debug("Alert owner is not a chat, notification skipped")
			continue
		}

		if err := b.SendMessage(Message{ChatID: chatID, Text: formatNotification(event)}); err != nil {
			b.metrics.NotificationFailed()
			entry.WithError(err).Error("Failed to deliver alert notification")
			continue
		}

		b.metrics.NotificationSent()
		entry.Info("🔔 Alert notification sent")
	}
}

func formatNotification(event types.TriggeredAlertEvent) string {
	var text strings.Builder
	text.WriteString(bold(md("🚨 ALERT TRIGGERED!")))
	text.WriteString("\n\n")
	text.WriteString(md("📊 Symbol: %s", event.Symbol) + "\n")
	text.WriteString(md("💰 Price: $%s", helpers.FormatNumber(event.Price, 2)) + "\n")
	text.WriteString(md("🔔 Message: %s", event.Message) + "\n")
	text.WriteString(md("⏰ Time: %s", event.Timestamp.Format("15:04:05")))
	return text.String()
}
