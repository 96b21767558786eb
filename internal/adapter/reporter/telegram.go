package reporter

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/semmidev/alipan-runner/internal/config"
	"github.com/semmidev/alipan-runner/internal/domain"
)

type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(cfg *config.TelegramConfig) (*Telegram, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		bot:    bot,
		chatID: cfg.ChatID,
	}, nil
}

// Report sends one message per summary. The Bot API client has no context
// support, so a send in progress is not cancelled.
func (t *Telegram) Report(_ context.Context, summary domain.IterationSummary) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatSummary(summary))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram report: %w", err)
	}
	return nil
}

func FormatSummary(s domain.IterationSummary) string {
	var b strings.Builder

	title := "🧹 Drive cleaned"
	if s.DryRun {
		title = "🔎 Drive cleanup (dry run)"
	}
	fmt.Fprintf(&b, "%s\n\n", title)
	fmt.Fprintf(&b, "🔁 Iteration: %d\n", s.Iteration)
	fmt.Fprintf(&b, "💽 Drive: %s\n", s.DriveID)
	fmt.Fprintf(&b, "📁 Files: %d", s.Listed)
	if s.Failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.Failed)
	}
	fmt.Fprintf(&b, "\n📊 Reclaimed: %s\n", humanize.IBytes(uint64(max(s.RemovedBytes, 0))))
	fmt.Fprintf(&b, "📦 Free: %s of %s",
		humanize.IBytes(uint64(max(s.Capacity.FreeSize(), 0))),
		humanize.IBytes(uint64(max(s.Capacity.TotalSize, 0))))

	return b.String()
}
