package bot

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// Send delivers a notification to a linked chat. It satisfies notify.Sender.
func (b *Bot) Send(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid chat id %q", chatID)
	}
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = b.notifyKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		return errors.Wrap(err, "telegram send")
	}
	return nil
}
