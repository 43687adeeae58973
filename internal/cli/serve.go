package cli

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"coined/internal/bot"
	"coined/internal/botsession"
	"coined/internal/config"
	"coined/internal/db"
	"coined/internal/handlers"
	"coined/internal/notify"
	"coined/internal/services"
	"coined/internal/store"
	"coined/internal/websocket"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if migrate {
				if err := runMigrations(cmd.Context(), cfg); err != nil {
					return err
				}
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect database")
	}
	defer database.Close()

	accountStore := store.NewAccountStore(database)
	ledgerStore := store.NewLedgerStore(database)
	auditStore := store.NewAuditStore(database)
	quizStore := store.NewQuizStore(database)
	attemptStore := store.NewAttemptStore(database)
	shopStore := store.NewShopStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	accounts := services.NewAccountService(txRunner, accountStore, auditStore)

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	var telegram *bot.Bot
	var sender notify.Sender = notify.LogSender{}
	if cfg.BotEnabled() {
		api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return errors.Wrap(err, "connect telegram")
		}
		log.Printf("bot: authorized as @%s", api.Self.UserName)
		telegram = bot.New(api, accounts, sessions, cfg.WebAppURL)
		sender = telegram
	} else {
		log.Println("bot: TELEGRAM_BOT_TOKEN not set, notifications go to the log")
	}
	dispatcher := notify.NewDispatcher(cfg.NotifyTimeout, sender)
	defer dispatcher.Wait()

	ledger := services.NewLedgerService(txRunner, accountStore, ledgerStore, auditStore, hub, dispatcher)
	quizzes := services.NewQuizService(txRunner, accountStore, quizStore, attemptStore, ledger, dispatcher)
	shop := services.NewShopService(txRunner, accountStore, shopStore, ledger)

	handler := handlers.New(cfg, accountStore, accounts, ledger, quizzes, shop, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("coined API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if telegram != nil {
		group.Go(func() error {
			return telegram.Run(gctx)
		})
	}
	return group.Wait()
}

// newSessionStore picks Redis when REDIS_ADDR is set and memory otherwise.
func newSessionStore(ctx context.Context, cfg config.Config) (botsession.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return botsession.NewMemoryStore(cfg.BotSessionTTL), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "connect redis")
	}
	log.Printf("bot: sessions stored in redis at %s", cfg.RedisAddr)
	return botsession.NewRedisStore(client, cfg.BotSessionTTL), func() { _ = client.Close() }, nil
}
