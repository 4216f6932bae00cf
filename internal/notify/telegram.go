package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// chatSender is the part of *tele.Bot the notifier uses
type chatSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramBot is the process-wide bot shared by every workspace.
// Telegram limits a bot to about 30 messages per second overall, so
// all notifiers built from one bot share its limiter.
type TelegramBot struct {
	sender  chatSender
	limiter *rate.Limiter
}

// NewTelegramBot creates an offline bot: it only sends and never polls
func NewTelegramBot(token string, ratePerSec float64) (*TelegramBot, error) {
	bot, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegramBot(bot, ratePerSec), nil
}

func newTelegramBot(sender chatSender, ratePerSec float64) *TelegramBot {
	if ratePerSec <= 0 {
		ratePerSec = 25
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &TelegramBot{sender: sender, limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Notifier binds the bot to a workspace admin chat
func (b *TelegramBot) Notifier(adminChat, source string, log zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:       b,
		adminChat: adminChat,
		source:    source,
		log:       log.With().Str("channel", string(ChannelTelegram)).Logger(),
	}
}

// TelegramNotifier sends chat messages through the Bot API
type TelegramNotifier struct {
	bot       *TelegramBot
	adminChat string
	source    string
	log       zerolog.Logger
}

func (n *TelegramNotifier) Channel() Channel { return ChannelTelegram }

// ResolveRecipient sends staff messages to the workspace admin chat and
// customer messages to the contact's own chat id
func (n *TelegramNotifier) ResolveRecipient(t Target) (Recipient, bool) {
	if t.Role == RoleStaff {
		if n.adminChat == "" {
			return Recipient{}, false
		}
		return Recipient{Channel: ChannelTelegram, Name: t.Name, Address: n.adminChat}, true
	}
	id, ok := ChatID(t)
	if !ok {
		return Recipient{}, false
	}
	return Recipient{Channel: ChannelTelegram, Name: t.Name, Address: id}, true
}

func (n *TelegramNotifier) Send(ctx context.Context, to Recipient, msg Message) Result {
	chatID, err := strconv.ParseInt(to.Address, 10, 64)
	if err != nil {
		return failed("invalid telegram chat id %q", to.Address)
	}
	if err := n.bot.limiter.Wait(ctx); err != nil {
		return failed("rate limiter: %v", err)
	}

	text := msg.Chat
	if text == "" {
		text = msg.Plain
	}
	if _, err := n.bot.sender.Send(tele.ChatID(chatID), text, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
		n.log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
		return failed("telegram: %v", err)
	}

	n.log.Debug().Int64("chat_id", chatID).Msg("telegram message sent")
	return sent()
}

func (n *TelegramNotifier) Describe() Description {
	return Description{
		Channel:    ChannelTelegram,
		Provider:   "telegram",
		Configured: true,
		Sender:     n.adminChat,
		Source:     n.source,
	}
}

// Reply sends plain text to a chat, sharing the bot's rate limit
func (b *TelegramBot) Reply(ctx context.Context, chatID int64, text string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := b.sender.Send(tele.ChatID(chatID), text)
	return err
}
