/*
Package notify delivers the reminder feed as a text digest.

PURPOSE:
  The reminder feed is computed on demand; this package turns the unread
  part of it into a short message and pushes it to a chat. Delivery is
  optional and only wired when a Telegram token is configured.

SEE ALSO:
  - reminders/service.go: FeedService
  - api/scheduler.go: pushes the digest after each generation run
*/
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
)

// Sender delivers a text message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Digest renders the unread notifications of a feed. It returns "" when
// there is nothing to report.
func Digest(feed *reminders.Feed) string {
	var b strings.Builder
	count := 0
	for _, n := range feed.Notifications {
		if n.Read {
			continue
		}
		if count == 0 {
			fmt.Fprintf(&b, "Reminders for %s (%s)\n", feed.TenantID, feed.Today)
		}
		fmt.Fprintf(&b, "- %s: %s\n", n.Date, n.Message)
		count++
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// =============================================================================
// DIGEST PUSHER
// =============================================================================

// Pusher computes a tenant's feed and sends its digest.
type Pusher struct {
	Feeds  *reminders.FeedService
	Sender Sender
	Log    logrus.FieldLogger
}

func NewPusher(feeds *reminders.FeedService, sender Sender, log logrus.FieldLogger) *Pusher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pusher{Feeds: feeds, Sender: sender, Log: log}
}

// Push sends the digest of tenantID for today. It reports whether a message
// was sent; an empty digest is not an error.
func (p *Pusher) Push(ctx context.Context, tenantID string, today generic.TimePoint) (bool, error) {
	feed, err := p.Feeds.Feed(ctx, tenantID, today)
	if err != nil {
		return false, err
	}
	text := Digest(feed)
	if text == "" {
		return false, nil
	}
	if err := p.Sender.Send(ctx, text); err != nil {
		return false, fmt.Errorf("failed to send digest for %s: %w", tenantID, err)
	}
	p.Log.WithFields(logrus.Fields{
		"tenant": tenantID,
		"unread": reminders.Unread(feed.Notifications),
	}).Info("reminder digest sent")
	return true, nil
}

// =============================================================================
// TELEGRAM
// =============================================================================

// TelegramSender posts messages to one chat via gopkg.in/telebot.v3.
type TelegramSender struct {
	bot  *telebot.Bot
	chat *telebot.Chat
}

// NewTelegramSender creates a send-only bot. The bot never polls for
// updates.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := telebot.NewBot(telebot.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramSenderFromBot(bot, chatID), nil
}

func NewTelegramSenderFromBot(bot *telebot.Bot, chatID int64) *TelegramSender {
	return &TelegramSender{bot: bot, chat: &telebot.Chat{ID: chatID}}
}

func (s *TelegramSender) Send(_ context.Context, text string) error {
	_, err := s.bot.Send(s.chat, text, &telebot.SendOptions{DisableWebPagePreview: true})
	return err
}
