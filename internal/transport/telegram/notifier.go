// Package telegram pushes alert notifications to monitor owners over a
// Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/oops"

	alertdomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
)

// Notifier delivers alerts as formatted Telegram messages.
type Notifier struct {
	bot *bot.Bot
}

// NewNotifier wraps an initialized bot.
func NewNotifier(b *bot.Bot) *Notifier {
	return &Notifier{bot: b}
}

// Notify sends one alert to the given chat.
func (n *Notifier) Notify(ctx context.Context, alert *alertdomain.Alert, chatID int64) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      FormatAlert(alert),
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		return oops.With("alert_id", alert.ID, "chat_id", chatID, "context", "failed to send alert notification").Wrap(err)
	}
	return nil
}

var severityEmoji = map[alertdomain.SeverityLevel]string{
	alertdomain.SeverityLevelLow:      "ℹ️",
	alertdomain.SeverityLevelMedium:   "⚠️",
	alertdomain.SeverityLevelHigh:     "🔴",
	alertdomain.SeverityLevelCritical: "🚨",
}

// FormatAlert renders an alert as a Telegram Markdown message.
func FormatAlert(alert *alertdomain.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s Alert*\n\n", severityEmoji[alert.Severity], strings.ToUpper(alert.Severity.String()))
	fmt.Fprintf(&b, "*%s*\n\n", bot.EscapeMarkdown(alert.Title))
	fmt.Fprintf(&b, "%s\n\n", bot.EscapeMarkdown(truncate(alert.Summary, 500)))
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", alert.ConfidenceScore*100)

	if len(alert.Sources) > 0 {
		b.WriteString("\nTop sources:\n")
		for i, src := range alert.Sources {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "• [%s](%s)\n", bot.EscapeMarkdown(src.Title), src.URL)
		}
	}
	return b.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary so multibyte text is never split.
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
