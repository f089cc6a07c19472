// Package handlers implements the Telegram chat commands of the gift list.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/service"
	"github.com/msawatzky/christmas-list/internal/telegram"
)

const handlerTimeout = 30 * time.Second

// Commands lists the chat commands for the client-side command menu
func Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "iam", Description: "Tell me which family member you are"},
		{Command: "wish", Description: "Add to your list: name | price | link"},
		{Command: "mylist", Description: "Show your list in priority order"},
		{Command: "up", Description: "Move an item of your list up"},
		{Command: "down", Description: "Move an item of your list down"},
		{Command: "others", Description: "Show everyone else's lists"},
		{Command: "bought", Description: "Mark an item from /others as bought"},
		{Command: "unbought", Description: "Undo a bought mark"},
		{Command: "fetch", Description: "Look up a product link"},
		{Command: "help", Description: "Show help"},
	}
}

// deps bundles what every gift list command needs.
type deps struct {
	svc    *service.Service
	links  *auth.Links
	logger *logrus.Logger
}

func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

// reply sends a Markdown message to the chat the command came from.
func reply(bot telegram.Sender, message *tgbotapi.Message, text string) error {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// escape makes user-provided text safe inside Markdown replies.
func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// actor resolves the roster member behind a chat user. When nobody matches
// it tells the user how to link themselves and returns nil.
func (d *deps) actor(bot telegram.Sender, message *tgbotapi.Message) (*models.FamilyUser, error) {
	member := d.links.Resolve(message.From.ID, message.From.UserName)
	if member != nil {
		return member, nil
	}
	return nil, reply(bot, message, "🙋 I don't know who you are yet.\nTell me with `/iam <name>`, e.g. `/iam Mom`.")
}

// userMessage turns a service error into a chat reply. It returns false for
// errors that should surface as command failures.
func userMessage(err error) (string, bool) {
	var boundary *service.BoundaryError
	var invalid *service.ValidationError
	switch {
	case errors.As(err, &boundary):
		if boundary.Edge == "top" {
			return "⬆️ That item is already at the top.", true
		}
		return "⬇️ That item is already at the bottom.", true
	case errors.As(err, &invalid):
		return "❌ " + escape(strings.Join(invalid.Problems(), "\n")), true
	case errors.Is(err, service.ErrForbidden):
		return "🚫 You can't change that list.", true
	case errors.Is(err, service.ErrNotFound):
		return "❌ Item not found. It may have been deleted.", true
	case errors.Is(err, service.ErrConflict):
		return "🔁 Someone changed that list at the same time. Please try again.", true
	case errors.Is(err, service.ErrNotAuthenticated):
		return "🙋 Tell me who you are first with `/iam <name>`.", true
	}
	return "", false
}

// replyError answers with a friendly message for known service errors and
// passes anything else back to the router.
func replyError(bot telegram.Sender, message *tgbotapi.Message, err error) error {
	if text, ok := userMessage(err); ok {
		return reply(bot, message, text)
	}
	return err
}

func formatPrice(price *float64) string {
	if price == nil {
		return ""
	}
	return fmt.Sprintf("$%.2f", *price)
}

// writeItem renders one list line. Purchase markers are shown only when
// showPurchase is set.
func writeItem(sb *strings.Builder, position int, item *models.Item, showPurchase bool) {
	fmt.Fprintf(sb, "%d. %s", position, escape(item.Name))
	if item.Store != "" {
		fmt.Fprintf(sb, " @ %s", escape(item.Store))
	}
	if p := formatPrice(item.Price); p != "" {
		fmt.Fprintf(sb, " — _%s_", p)
	}
	if item.PurchaseURL != "" {
		fmt.Fprintf(sb, " ([link](%s))", item.PurchaseURL)
	}
	if showPurchase && item.Purchased {
		fmt.Fprintf(sb, " ✅ _%s_", escape(item.PurchasedByName()))
	}
	sb.WriteString("\n")
}
