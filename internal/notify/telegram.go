package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"wedhub/internal/logging"
)

// TelegramSender is the part of tgbotapi.BotAPI we use.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Telegram struct {
	bot TelegramSender
}

// NewTelegram logs the bot in. An empty token yields a Telegram that skips
// every message.
func NewTelegram(token string) (*Telegram, error) {
	if token == "" {
		return &Telegram{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	logging.Logger.Infof("[tg] authorized as @%s", bot.Self.UserName)
	return &Telegram{bot: bot}, nil
}

func NewTelegramWithSender(s TelegramSender) *Telegram {
	return &Telegram{bot: s}
}

func (t *Telegram) SendMessage(chatID int64, text string) error {
	if t == nil || t.bot == nil || chatID == 0 {
		logging.Logger.Debugf("[tg][skip] bot configured=%v chatID=%d", t != nil && t.bot != nil, chatID)
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

// SetWebhook points the bot's updates at url. No-op without a bot or url.
func (t *Telegram) SetWebhook(url string) error {
	if t == nil || t.bot == nil || url == "" {
		return nil
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("telegram webhook url: %w", err)
	}
	if _, err := t.bot.Request(wh); err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	logging.Logger.Infof("[tg][setWebhook] %s", url)
	return nil
}
