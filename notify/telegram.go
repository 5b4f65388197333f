// Package notify sends end-of-run backtest summaries. Grounded on the
// teacher's bot/telegram.go (env-configured token/chat ID, StatsProvider
// interface) and re-targeted from live trading stats to a finished
// engine.Report.
package notify

import (
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polyforge/engine"
)

// Telegram posts one message per finished backtest to a configured chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramFromEnv builds a Telegram notifier from TELEGRAM_BOT_TOKEN and
// TELEGRAM_CHAT_ID. Returns (nil, nil) when the token is unset, so callers
// can treat notification as optional without special-casing every call
// site.
func NewTelegramFromEnv() (*Telegram, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: create telegram bot: %w", err)
	}

	var chatID int64
	if _, err := fmt.Sscanf(os.Getenv("TELEGRAM_CHAT_ID"), "%d", &chatID); err != nil {
		return nil, fmt.Errorf("notify: TELEGRAM_CHAT_ID is required alongside TELEGRAM_BOT_TOKEN: %w", err)
	}

	return &Telegram{bot: bot, chatID: chatID}, nil
}

// NotifyReportFinished sends a one-message summary of a completed backtest.
// A nil receiver is a no-op, matching the optional-notifier pattern used
// throughout this package.
func (t *Telegram) NotifyReportFinished(manifestName string, report *engine.Report) error {
	if t == nil {
		return nil
	}

	text := fmt.Sprintf(
		"Backtest finished: %s\nFinal equity: %s\nTotal return: %.2f%%\nMax drawdown: %.2f%%\nFills: %d\nDeclined orders: %d",
		manifestName,
		report.FinalEquity.String(),
		report.TotalReturn*100,
		report.MaxDrawdown*100,
		len(report.Fills),
		report.DeclinedOrders,
	)

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		log.Error().Err(err).Msg("notify: failed to send telegram message")
		return fmt.Errorf("notify: send telegram message: %w", err)
	}
	return nil
}
