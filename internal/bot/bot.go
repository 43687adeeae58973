// Package bot is the Telegram front end: students link their chat to a
// CoinEd account, check their balance and the leaderboard, and receive
// coin notifications.
package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"coined/internal/botsession"
	"coined/internal/coins"
	"coined/internal/models"
	"coined/internal/notify"
	"coined/internal/services"
	"coined/internal/validator"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

const (
	pollTimeout     = 30
	leaderboardSize = 10
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Accounts interface {
	ByChat(ctx context.Context, chatID string) (models.Account, error)
	LinkChat(ctx context.Context, login, password, chatID string) (models.Account, error)
	UnlinkChat(ctx context.Context, chatID string) (bool, error)
	Leaderboard(ctx context.Context, limit int) ([]services.LeaderboardEntry, error)
	Rank(ctx context.Context, account models.Account) (int, error)
}

type Bot struct {
	api       API
	accounts  Accounts
	sessions  botsession.Store
	webAppURL string
}

func New(api API, accounts Accounts, sessions botsession.Store, webAppURL string) *Bot {
	return &Bot{api: api, accounts: accounts, sessions: sessions, webAppURL: webAppURL}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(cfg)
	log.Println("bot: polling for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat != nil:
		if update.Message.IsCommand() {
			if update.Message.Command() == "start" {
				b.handleStart(ctx, update.Message)
			}
			return
		}
		b.handleText(ctx, update.Message)
	}
}

func chatKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func esc(s string) string {
	return notify.EscapeMarkdown(s)
}

// linked returns the student bound to the chat, or ok=false.
func (b *Bot) linked(ctx context.Context, chatID int64) (models.Account, bool) {
	account, err := b.accounts.ByChat(ctx, chatKey(chatID))
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			log.Printf("bot: lookup chat %d: %v", chatID, err)
		}
		return models.Account{}, false
	}
	return account, true
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	if account, ok := b.linked(ctx, msg.Chat.ID); ok {
		text := fmt.Sprintf("👋 Welcome back, *%s*!\n\n🪙 Your balance: *%s coins*\n\nWhat would you like to do?",
			esc(account.Name), coins.Format(account.Coins))
		b.send(msg.Chat.ID, text, b.mainKeyboard())
		return
	}
	name := "Student"
	if msg.From != nil && msg.From.FirstName != "" {
		name = msg.From.FirstName
	}
	text := fmt.Sprintf("👋 Hi, *%s*!\n\n🪙 *CoinEd* is the reward platform for students.\n\nSign in with your CoinEd login and password:", esc(name))
	b.send(msg.Chat.ID, text, b.loginKeyboard())
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.Printf("bot: answer callback: %v", err)
	}
	if query.Message == nil || query.Message.Chat == nil {
		return
	}
	chatID := query.Message.Chat.ID
	msgID := query.Message.MessageID
	account, isLinked := b.linked(ctx, chatID)

	switch query.Data {
	case actionLink:
		if isLinked {
			b.edit(chatID, msgID, fmt.Sprintf("✅ Your account is already linked!\n*%s* — 🪙 %s coins",
				esc(account.Name), coins.Format(account.Coins)), b.mainKeyboard())
			return
		}
		if err := b.sessions.Set(ctx, chatKey(chatID), botsession.Session{State: botsession.StateAwaitingHandle}); err != nil {
			log.Printf("bot: save session: %v", err)
			b.send(chatID, "❌ Something went wrong. Please try again.")
			return
		}
		b.edit(chatID, msgID, "🔐 *Sign in*\n\nSend your CoinEd *login*:")

	case actionUnlink:
		if _, err := b.accounts.UnlinkChat(ctx, chatKey(chatID)); err != nil {
			log.Printf("bot: unlink chat %d: %v", chatID, err)
		}
		if err := b.sessions.Clear(ctx, chatKey(chatID)); err != nil {
			log.Printf("bot: clear session: %v", err)
		}
		b.edit(chatID, msgID, "✅ Signed out.", b.loginKeyboard())

	case actionBalance:
		if !isLinked {
			b.edit(chatID, msgID, "⚠️ No account is linked.", b.loginKeyboard())
			return
		}
		b.edit(chatID, msgID, balanceText(account), b.mainKeyboard())

	case actionLeaderboard:
		b.edit(chatID, msgID, b.leaderboardText(ctx, account, isLinked), b.mainKeyboard())

	case actionHelp:
		b.edit(chatID, msgID, helpText, b.mainKeyboard())
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	chat := chatKey(msg.Chat.ID)
	session, err := b.sessions.Get(ctx, chat)
	if err != nil {
		log.Printf("bot: load session: %v", err)
		return
	}

	switch session.State {
	case botsession.StateAwaitingHandle:
		if validator.Var("login", text, "handle") != nil && validator.Var("login", text, "email") != nil {
			b.send(msg.Chat.ID, "❌ Send a valid login.\n_(for example: alex\\_smith)_")
			return
		}
		if err := b.sessions.Set(ctx, chat, botsession.Session{State: botsession.StateAwaitingPassword, Handle: text}); err != nil {
			log.Printf("bot: save session: %v", err)
			return
		}
		b.send(msg.Chat.ID, fmt.Sprintf("👤 Login: *%s*\n\n🔒 Now send your *password*:", esc(text)))

	case botsession.StateAwaitingPassword:
		if err := b.sessions.Clear(ctx, chat); err != nil {
			log.Printf("bot: clear session: %v", err)
		}
		// the password should not stay in the chat history
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
			log.Printf("bot: delete password message: %v", err)
		}
		b.finishLogin(ctx, msg.Chat.ID, session.Handle, text)
	}
}

func (b *Bot) finishLogin(ctx context.Context, chatID int64, login, password string) {
	account, err := b.accounts.LinkChat(ctx, login, password, chatKey(chatID))
	switch {
	case err == nil:
		text := fmt.Sprintf("✅ *%s*, you are signed in!\n\n🪙 Balance: *%s coins*\n\nWhat would you like to do?",
			esc(account.Name), coins.Format(account.Coins))
		b.send(chatID, text, b.mainKeyboard())
	case errors.Is(err, services.ErrUnauthorized):
		b.send(chatID, "❌ *Wrong login or password!*\n\nTry again:", retryKeyboard())
	case errors.Is(err, services.ErrForbidden):
		b.send(chatID, "⚠️ Only student accounts can use this bot.", b.loginKeyboard())
	case errors.Is(err, services.ErrConflict):
		b.send(chatID, "⚠️ This account is linked to another Telegram chat.")
	default:
		log.Printf("bot: link chat %d: %v", chatID, err)
		b.send(chatID, "❌ Something went wrong. Please try again.")
	}
}

func balanceText(account models.Account) string {
	level := coins.LevelFor(account.Coins)
	class := account.ClassLabel
	if class == "" {
		class = "—"
	}
	return fmt.Sprintf("🪙 *%s* — Balance\n\n💰 *%s coins*\n🏅 %s\n📚 Class: %s\n\n%s",
		esc(account.Name), coins.Format(account.Coins), level.Title(), esc(class), level.Bar(account.Coins))
}

var medals = []string{"🥇", "🥈", "🥉"}

func (b *Bot) leaderboardText(ctx context.Context, account models.Account, isLinked bool) string {
	top, err := b.accounts.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		log.Printf("bot: leaderboard: %v", err)
		return "❌ Could not load the leaderboard."
	}
	var sb strings.Builder
	sb.WriteString("🏆 *Top students*\n\n")
	for i, entry := range top {
		place := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			place = medals[i]
		}
		fmt.Fprintf(&sb, "%s *%s* — 🪙 %s\n", place, esc(entry.Name), coins.Format(entry.Coins))
	}
	if isLinked {
		rank, err := b.accounts.Rank(ctx, account)
		if err != nil {
			log.Printf("bot: rank: %v", err)
		} else {
			fmt.Fprintf(&sb, "\n📍 Your place: *#%d*", rank)
		}
	}
	return sb.String()
}

const helpText = "🤖 *CoinEd Bot*\n\n" +
	"🌐 Open the app straight from Telegram\n" +
	"🪙 Check your coin balance\n" +
	"🏆 See the leaderboard\n" +
	"🔓 Sign out of your account\n\n" +
	"💡 Sign in with your CoinEd login and password"

func (b *Bot) send(chatID int64, text string, markup ...tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if len(markup) > 0 {
		msg.ReplyMarkup = markup[0]
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("bot: send to %d: %v", chatID, err)
	}
}

func (b *Bot) edit(chatID int64, msgID int, text string, markup ...tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if len(markup) > 0 {
		edit.ReplyMarkup = &markup[0]
	}
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("bot: edit %d/%d: %v", chatID, msgID, err)
	}
}
