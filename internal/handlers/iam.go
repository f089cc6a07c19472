package handlers

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/telegram"
)

// IamHandler handles /iam <member>, linking a chat user to a roster member
type IamHandler struct {
	links  *auth.Links
	logger *logrus.Logger
}

// NewIamHandler creates a new IamHandler.
func NewIamHandler(links *auth.Links, logger *logrus.Logger) *IamHandler {
	return &IamHandler{links: links, logger: logger}
}

func (h *IamHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		if member := h.links.Resolve(message.From.ID, message.From.UserName); member != nil {
			return reply(bot, message, fmt.Sprintf("You are *%s* %s.", escape(member.DisplayName()), member.Avatar))
		}
		return reply(bot, message, "❌ Please tell me your name.\nUsage: `/iam Mom`")
	}

	member, err := h.links.Link(message.From.ID, strings.Join(args, " "))
	if errors.Is(err, auth.ErrUnknownMember) {
		var names []string
		for _, m := range h.links.Roster().Members() {
			names = append(names, escape(m.DisplayName()))
		}
		return reply(bot, message, "❌ I don't know that name. Try one of: "+strings.Join(names, ", "))
	}
	if err != nil {
		return fmt.Errorf("link chat user: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
		"member":  member.ID,
	}).Info("Chat user linked to family member")

	return reply(bot, message, fmt.Sprintf("👋 Hi *%s* %s! Your list is at /mylist.", escape(member.DisplayName()), member.Avatar))
}
