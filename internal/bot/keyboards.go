package bot

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

const (
	actionLink        = "link"
	actionUnlink      = "unlink"
	actionBalance     = "balance"
	actionLeaderboard = "leaderboard"
	actionHelp        = "help"
)

func (b *Bot) openAppRow() []tgbotapi.InlineKeyboardButton {
	if b.webAppURL == "" {
		return nil
	}
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🌐 Open CoinEd", b.webAppURL))
}

func (b *Bot) keyboard(rows ...[]tgbotapi.InlineKeyboardButton) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows)+1)
	if row := b.openAppRow(); row != nil {
		out = append(out, row)
	}
	out = append(out, rows...)
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

func (b *Bot) mainKeyboard() tgbotapi.InlineKeyboardMarkup {
	return b.keyboard(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🪙 My balance", actionBalance),
			tgbotapi.NewInlineKeyboardButtonData("🏆 Leaderboard", actionLeaderboard),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔓 Sign out", actionUnlink),
			tgbotapi.NewInlineKeyboardButtonData("❓ Help", actionHelp),
		),
	)
}

func (b *Bot) loginKeyboard() tgbotapi.InlineKeyboardMarkup {
	return b.keyboard(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔐 Sign in", actionLink),
	))
}

func retryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔐 Try again", actionLink),
	))
}

// notifyKeyboard sits under every pushed notification.
func (b *Bot) notifyKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🪙 My balance", actionBalance))
	if b.webAppURL != "" {
		row = append([]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonURL("🌐 Open CoinEd", b.webAppURL)}, row...)
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
