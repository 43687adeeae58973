// Package notify delivers best-effort chat messages off the request path.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers one message to one chat.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

type SenderFunc func(ctx context.Context, chatID, text string) error

func (f SenderFunc) Send(ctx context.Context, chatID, text string) error {
	return f(ctx, chatID, text)
}

// Dispatcher fans a message out to every sender on its own goroutine.
// Failures are logged and never reach the caller.
type Dispatcher struct {
	senders []Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, senders ...Sender) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{senders: senders, timeout: timeout}
}

// Notify returns immediately. An empty chatID is ignored.
func (d *Dispatcher) Notify(chatID, text string) {
	if chatID == "" || len(d.senders) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		for _, sender := range d.senders {
			if err := sender.Send(ctx, chatID, text); err != nil {
				log.Printf("notify: chat %s: %v", chatID, err)
			}
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogSender writes messages to the log; used when no bot is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, chatID, text string) error {
	log.Printf("notify: to chat %s: %s", chatID, text)
	return nil
}

// EscapeMarkdown makes user-supplied text safe inside a Markdown message.
// Bot replies and pushed notifications both escape through here.
func EscapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
