package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/telegram"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	helpText := `📚 *Gift List Help*

*Who am I:*
• /iam <name> - Link your chat account to a family member

*Your list:*
• /wish <name> [| price | link] - Add a wish
• /mylist - Show your list in priority order
• /up <n> - Move item n up
• /down <n> - Move item n down

*Everyone else:*
• /others - Show the other lists
• /bought <n> - Mark item n of /others as bought
• /unbought <n> - Undo a bought mark

*Helpers:*
• /fetch <link> - Look up a product page

_Example:_ ` + "`/wish Wool socks | 12.99 | https://example.com/socks`"

	if err := reply(bot, message, helpText); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent help message")

	return nil
}
