package telegram

import (
	"context"
	"crypto-alert-bot/internal/alert"
	"crypto-alert-bot/internal/price"
	"crypto-alert-bot/internal/types"
	"crypto-alert-bot/lib/helpers"
	"crypto-alert-bot/lib/translation"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// maxListedAlerts caps the /myalerts reply.
const maxListedAlerts = 10

// NewBot creates new telegram bot
func NewBot(c BotConfig, alerts AlertManager, rec Recorder) (*Bot, error) {
	endpoint := c.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(c.Token, endpoint, &http.Client{})
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug
	if rec == nil {
		rec = noopRecorder{}
	}

	return &Bot{
		Bot:     bot,
		Config:  c,
		alerts:  alerts,
		metrics: rec,
	}, nil
}

// GetUpdatesChannel gets new updates updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
}

// md translates msgID, formats it and escapes the result for MarkdownV2.
func md(msgID string, vars ...interface{}) string {
	return helpers.EscapeMarkdownV2(translation.Translate(msgID, vars...))
}

func bold(s string) string {
	return "*" + s + "*"
}

// HandleUpdate processes Telegram updates and returns the reply text.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) string {
	log.Debugf("received command: %s", u.Message.Command())

	userID := ""
	if u.Message.From != nil {
		userID = strconv.FormatInt(u.Message.From.ID, 10)
	}
	args := strings.Fields(u.Message.CommandArguments())

	switch u.Message.Command() {
	case "start":
		return b.startText()
	case "createalert":
		return b.handleCreateAlert(ctx, userID, args)
	case "myalerts":
		return b.handleMyAlerts(ctx, userID)
	case "deletealert":
		return b.handleDeleteAlert(ctx, userID, args)
	}
	return b.helpText()
}

func (b *Bot) startText() string {
	var text strings.Builder
	text.WriteString(bold(md("🚀 Welcome to the Crypto Alert Bot!")))
	text.WriteString("\n\n")
	text.WriteString(md("I watch the market for you and message you when your price, percentage or volume alert triggers."))
	text.WriteString("\n\n")
	text.WriteString(md("Use /help to see all available commands."))
	return text.String()
}

func (b *Bot) helpText() string {
	var text strings.Builder
	text.WriteString(bold(md("🔔 Alert Management:")))
	text.WriteString("\n")
	text.WriteString(md("• /createalert <symbol> <type> <condition> <value> - Create an alert"))
	text.WriteString("\n")
	text.WriteString(md("• /myalerts - Show your alerts"))
	text.WriteString("\n")
	text.WriteString(md("• /deletealert <id> - Delete an alert"))
	text.WriteString("\n\n")
	text.WriteString(bold(md("💡 Examples:")))
	text.WriteString("\n")
	for _, example := range []string{
		"/createalert BTC/USDT PRICE ABOVE 120000",
		"/createalert ETH/USDT PERCENTAGE GAIN 5",
		"/createalert BNB/USDT VOLUME SPIKE 1000000",
	} {
		text.WriteString("• `" + helpers.EscapeMarkdownV2(example) + "`\n")
	}
	return text.String()
}

func (b *Bot) createUsage() string {
	return md("❌ Format: /createalert <symbol> <type> <condition> <value> [message]\n\nExample:\n• /createalert BTC/USDT PRICE ABOVE 120000")
}

func (b *Bot) handleCreateAlert(ctx context.Context, userID string, args []string) string {
	if len(args) < 4 {
		return b.createUsage()
	}

	symbol, ok := price.NormalizeSymbol(args[0])
	if !ok {
		symbol = strings.ToUpper(args[0])
	}
	alertType := types.AlertType(strings.ToUpper(args[1]))
	condition := types.ConditionType(strings.ToUpper(args[2]))
	value, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return md("❌ Error: %s", "value must be a number")
	}
	message := strings.Join(args[4:], " ")

	id, err := b.alerts.CreateAlert(ctx, userID, symbol, alertType, condition, value, message)
	if alert.IsValidation(err) {
		return md("❌ Error: %s", err.Error())
	}
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to create alert")
		return md("❌ Failed to create alert, please try again later")
	}

	return md("✅ Alert created!\nID: %d\nSymbol: %s\nType: %s %s %s",
		id, symbol, alertType, condition, strconv.FormatFloat(value, 'f', -1, 64))
}

func (b *Bot) handleMyAlerts(ctx context.Context, userID string) string {
	alerts, err := b.alerts.ListForUser(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to list alerts")
		return md("❌ Failed to fetch alerts")
	}
	if len(alerts) == 0 {
		return md("📭 You have no alerts yet")
	}

	var text strings.Builder
	text.WriteString(bold(md("🔔 Your alerts (%d total):", len(alerts))))
	text.WriteString("\n\n")

	for i, a := range alerts {
		if i >= maxListedAlerts {
			break
		}
		status := md("🟢 Active")
		if !a.IsActive {
			status = md("🔴 Triggered")
		}
		text.WriteString(bold(md("ID %d:", a.ID)) + " " + helpers.EscapeMarkdownV2(a.Symbol) + "\n")
		text.WriteString(md("• Type: %s %s", a.AlertType, a.ConditionType) + "\n")
		text.WriteString(md("• Target: %s", formatThreshold(a)) + "\n")
		text.WriteString(md("• Status: ") + status + "\n")
		text.WriteString(md("• Created: %s", humanize.Time(a.CreatedAt)) + "\n\n")
	}
	return text.String()
}

func formatThreshold(a types.Alert) string {
	switch a.AlertType {
	case types.AlertTypePrice:
		return "$" + helpers.FormatPriceUS(a.TargetPrice, false)
	case types.AlertTypePercentage:
		return strconv.FormatFloat(a.PercentageChange, 'f', -1, 64) + "%"
	case types.AlertTypeVolume:
		return "$" + helpers.FormatNumber(a.VolumeThreshold, 0)
	}
	return fmt.Sprint(a.Threshold())
}

func (b *Bot) handleDeleteAlert(ctx context.Context, userID string, args []string) string {
	usage := md("❌ Format: /deletealert <alert_id>\nExample: /deletealert 123")
	if len(args) == 0 {
		return usage
	}
	alertID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return usage
	}

	deleted, err := b.alerts.Delete(ctx, alertID, userID)
	if err != nil {
		log.WithError(err).WithField("alert_id", alertID).Error("Failed to delete alert")
		return md("❌ Failed to delete alert, please try again later")
	}
	if !deleted {
		return md("❌ Alert not found or not yours")
	}
	return md("✅ Alert %d deleted!", alertID)
}
