package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
)

// MaxMessageRunes is the Telegram limit for one message.
const MaxMessageRunes = 4096

// Telegram sends messages to one chat through the Bot API.
type Telegram struct {
	b      *bot.Bot
	chatID int64
}

type telegramSettings struct {
	serverURL string
	client    *http.Client
}

// TelegramOption configures NewTelegram.
type TelegramOption func(*telegramSettings)

// WithServerURL points the bot at another Bot API server.
func WithServerURL(u string) TelegramOption {
	return func(s *telegramSettings) { s.serverURL = u }
}

// WithHTTPClient sets the HTTP client used for Bot API calls.
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(s *telegramSettings) { s.client = c }
}

// NewTelegram creates a notifier for chatID. It makes no network calls.
func NewTelegram(token string, chatID int64, opts ...TelegramOption) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("notify: telegram token and chat id are required")
	}
	st := telegramSettings{client: &http.Client{Timeout: 10 * time.Second}}
	for _, o := range opts {
		o(&st)
	}

	botOpts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(time.Minute, st.client),
	}
	if st.serverURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(st.serverURL))
	}
	b, err := bot.New(token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("notify: create bot: %w", err)
	}
	return &Telegram{b: b, chatID: chatID}, nil
}

// Notify implements Notifier. Long text is cut to MaxMessageRunes.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	_, err := t.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   truncate(text, MaxMessageRunes),
	})
	if err != nil {
		return fmt.Errorf("notify: send telegram message: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
