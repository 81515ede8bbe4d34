// Package notify sends a Telegram summary of a batch run, the same bridge
// the teacher uses to push inbox messages to a chat (internal/telegram),
// pointed at batch-run outcomes instead of mail messages.
package notify

import (
	"fmt"
	"os"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/corvid-labs/smoketest/internal/batchrun"
)

// Config is the bot credentials, read from the environment rather than a
// town-root config file since this tool has no notion of one.
type Config struct {
	Token  string
	ChatID int64
}

// ConfigFromEnv reads SMOKETEST_TELEGRAM_TOKEN and SMOKETEST_TELEGRAM_CHAT_ID.
func ConfigFromEnv() (Config, error) {
	token := os.Getenv("SMOKETEST_TELEGRAM_TOKEN")
	if token == "" {
		return Config{}, fmt.Errorf("SMOKETEST_TELEGRAM_TOKEN is not set")
	}
	chatIDStr := os.Getenv("SMOKETEST_TELEGRAM_CHAT_ID")
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("parsing SMOKETEST_TELEGRAM_CHAT_ID: %w", err)
	}
	return Config{Token: token, ChatID: chatID}, nil
}

// BatchFailures sends a message summarizing a batch run's failed and flaky
// outcomes. It is a no-op (returning nil) when nothing failed and nothing
// was flaky.
func BatchFailures(result batchrun.Result) error {
	failed := result.Failed()
	flaky := result.Flaky()
	if len(failed) == 0 && len(flaky) == 0 {
		return nil
	}

	cfg, err := ConfigFromEnv()
	if err != nil {
		return err
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return fmt.Errorf("creating telegram bot: %w", err)
	}

	msg := tgbotapi.NewMessage(cfg.ChatID, FormatBatchSummary(result))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// FormatBatchSummary renders a batch Result as a MarkdownV2 message, escaping
// test IDs and error text the same way the teacher escapes message bodies
// before handing them to the bot API.
func FormatBatchSummary(result batchrun.Result) string {
	passed := len(result.Passed())
	failed := result.Failed()
	flaky := result.Flaky()

	text := fmt.Sprintf("*Smoke test batch*\n%d passed, %d failed, %d flaky\n",
		passed, len(failed), len(flaky))

	for _, o := range failed {
		reason := "validation failed"
		if o.Final.Error != nil {
			reason = o.Final.Error.Message
		}
		text += fmt.Sprintf("\n❌ %s: %s",
			tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, o.TestID),
			tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, reason),
		)
	}
	for _, o := range flaky {
		text += fmt.Sprintf("\n⚠️ %s: flaky across %d attempt(s)",
			tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, o.TestID),
			len(o.Attempts),
		)
	}

	if len(text) > 4000 {
		text = text[:3997] + "..."
	}
	return text
}
