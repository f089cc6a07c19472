package handlers

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/telegram"
)

// StartHandler handles the /start command
type StartHandler struct {
	links  *auth.Links
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(links *auth.Links, logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		links:  links,
		logger: logger,
	}
}

// Handle greets the user and tells them whether they are already linked
func (h *StartHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	var sb strings.Builder
	sb.WriteString("🎄 *Welcome to the family gift list!*\n\n")

	if member := h.links.Resolve(message.From.ID, message.From.UserName); member != nil {
		fmt.Fprintf(&sb, "You are signed in as *%s* %s.\n\n", escape(member.DisplayName()), member.Avatar)
	} else {
		sb.WriteString("First tell me who you are with `/iam <name>`. Family members:\n")
		for _, m := range h.links.Roster().Members() {
			fmt.Fprintf(&sb, "• %s %s\n", m.Avatar, escape(m.DisplayName()))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Add wishes with `/wish`, see your list with /mylist and everyone else's with /others. /help lists every command.")

	if err := reply(bot, message, sb.String()); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent start message")

	return nil
}
