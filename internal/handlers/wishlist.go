package handlers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/scraper"
	"github.com/msawatzky/christmas-list/internal/service"
	"github.com/msawatzky/christmas-list/internal/telegram"
)

// ---------------------------------------------------------------------------
// WishAddHandler – /wish <name> [| price | link]
// ---------------------------------------------------------------------------

// WishAddHandler handles the /wish command to add an item to the sender's
// own list. Extra "|"-separated parts are read as a price, a link or a store.
type WishAddHandler struct {
	deps
}

// NewWishAddHandler creates a new WishAddHandler.
func NewWishAddHandler(svc *service.Service, links *auth.Links, logger *logrus.Logger) *WishAddHandler {
	return &WishAddHandler{deps{svc: svc, links: links, logger: logger}}
}

// pricePart matches a "|" part that is only a price, such as 12.99, $1,299 or €5.
var pricePart = regexp.MustCompile(`^[$€£]?\s*\d[\d,]*(\.\d+)?$`)

// parseWish splits "/wish" arguments into item fields.
func parseWish(args []string) service.ItemInput {
	parts := strings.Split(strings.Join(args, " "), "|")
	in := service.ItemInput{Name: strings.TrimSpace(parts[0])}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case service.IsWebURL(part):
			in.PurchaseURL = part
		case in.Price == nil && pricePart.MatchString(part):
			in.Price = scraper.ExtractPrice(part)
		default:
			in.Store = part
		}
	}
	if in.Store == "" && in.PurchaseURL != "" {
		in.Store = scraper.StoreFromURL(in.PurchaseURL)
	}
	return in
}

func (h *WishAddHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, message, "❌ Please describe your wish.\nUsage: `/wish Wool socks | 12.99 | https://example.com/socks`")
	}

	actor, err := h.actor(bot, message)
	if actor == nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	item, err := h.svc.AddItem(ctx, actor, actor.ID, parseWish(args))
	if err != nil {
		return replyError(bot, message, err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"member":  actor.ID,
		"item_id": item.ID,
	}).Info("Wish item added from chat")

	var sb strings.Builder
	sb.WriteString("🎁 *Added to your list!*\n\n")
	writeItem(&sb, item.PriorityValue(), item, false)
	return reply(bot, message, sb.String())
}

// ---------------------------------------------------------------------------
// MyListHandler – /mylist
// ---------------------------------------------------------------------------

// MyListHandler shows the sender's list in priority order. Purchase markers
// are hidden so surprises are not spoiled.
type MyListHandler struct {
	deps
}

// NewMyListHandler creates a new MyListHandler.
func NewMyListHandler(svc *service.Service, links *auth.Links, logger *logrus.Logger) *MyListHandler {
	return &MyListHandler{deps{svc: svc, links: links, logger: logger}}
}

func (h *MyListHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	actor, err := h.actor(bot, message)
	if actor == nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	items, err := h.svc.ListForOwner(ctx, actor, actor.ID)
	if err != nil {
		return replyError(bot, message, err)
	}

	return reply(bot, message, renderOwnList(items))
}

func renderOwnList(items []*models.Item) string {
	if len(items) == 0 {
		return "🎁 *Your list is empty!*\n\nAdd items with `/wish <name>`"
	}
	var sb strings.Builder
	sb.WriteString("🎁 *Your List*\n\n")
	for i, item := range items {
		writeItem(&sb, i+1, item, false)
	}
	sb.WriteString("\n_Reorder with_ `/up <n>` _or_ `/down <n>`")
	return sb.String()
}

// ---------------------------------------------------------------------------
// MoveHandler – /up <n>, /down <n>
// ---------------------------------------------------------------------------

// MoveHandler swaps item n of the sender's list with its neighbour
type MoveHandler struct {
	deps
	direction models.Direction
}

// NewMoveHandler creates a MoveHandler for one direction.
func NewMoveHandler(svc *service.Service, links *auth.Links, logger *logrus.Logger, dir models.Direction) *MoveHandler {
	return &MoveHandler{deps: deps{svc: svc, links: links, logger: logger}, direction: dir}
}

func (h *MoveHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, message, fmt.Sprintf("❌ Which item?\nUsage: `/%s 2` (the number from /mylist)", h.direction))
	}
	position, err := strconv.Atoi(args[0])
	if err != nil || position < 1 {
		return reply(bot, message, "❌ Please use the item number shown by /mylist.")
	}

	actor, err := h.actor(bot, message)
	if actor == nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	items, err := h.svc.ListForOwner(ctx, actor, actor.ID)
	if err != nil {
		return replyError(bot, message, err)
	}
	if position > len(items) {
		return reply(bot, message, fmt.Sprintf("❌ Your list only has %d items.", len(items)))
	}

	if err := h.svc.ChangePriority(ctx, actor, items[position-1].ID, h.direction); err != nil {
		return replyError(bot, message, err)
	}

	items, err = h.svc.ListForOwner(ctx, actor, actor.ID)
	if err != nil {
		return replyError(bot, message, err)
	}
	return reply(bot, message, renderOwnList(items))
}

// ---------------------------------------------------------------------------
// OthersHandler – /others
// ---------------------------------------------------------------------------

// OthersHandler shows every other member's list, grouped by member and
// numbered across groups for /bought.
type OthersHandler struct {
	deps
}

// NewOthersHandler creates a new OthersHandler.
func NewOthersHandler(svc *service.Service, links *auth.Links, logger *logrus.Logger) *OthersHandler {
	return &OthersHandler{deps{svc: svc, links: links, logger: logger}}
}

func (h *OthersHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	actor, err := h.actor(bot, message)
	if actor == nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	items, err := h.svc.AggregateAllUsers(ctx, actor)
	if err != nil {
		return replyError(bot, message, err)
	}
	if len(items) == 0 {
		return reply(bot, message, "🎁 *Nobody else has added wishes yet.*")
	}

	var sb strings.Builder
	position := 0
	for _, group := range service.GroupByOwner(items, h.svc.Roster()) {
		fmt.Fprintf(&sb, "%s *%s*\n", group.Owner.Avatar, escape(group.Owner.DisplayName()))
		for _, item := range group.Items {
			position++
			writeItem(&sb, position, item, true)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("_Mark a gift with_ `/bought <n>`")

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"member":  actor.ID,
		"count":   len(items),
	}).Info("Listed other members' lists")

	return reply(bot, message, sb.String())
}

// ---------------------------------------------------------------------------
// PurchaseHandler – /bought <n>, /unbought <n>
// ---------------------------------------------------------------------------

// PurchaseHandler marks or unmarks an item from /others as purchased.
// The argument is the number shown by /others or an item id.
type PurchaseHandler struct {
	deps
	purchased bool
}

// NewPurchaseHandler creates a PurchaseHandler that sets purchased.
func NewPurchaseHandler(svc *service.Service, links *auth.Links, logger *logrus.Logger, purchased bool) *PurchaseHandler {
	return &PurchaseHandler{deps: deps{svc: svc, links: links, logger: logger}, purchased: purchased}
}

func (h *PurchaseHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	command := "bought"
	if !h.purchased {
		command = "unbought"
	}
	if len(args) == 0 {
		return reply(bot, message, fmt.Sprintf("❌ Which item?\nUsage: `/%s 3` (the number from /others)", command))
	}

	actor, err := h.actor(bot, message)
	if actor == nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	itemID := args[0]
	if position, convErr := strconv.Atoi(args[0]); convErr == nil {
		items, err := h.svc.AggregateAllUsers(ctx, actor)
		if err != nil {
			return replyError(bot, message, err)
		}
		if position < 1 || position > len(items) {
			return reply(bot, message, "❌ Please use the item number shown by /others.")
		}
		itemID = items[position-1].ID
	}

	item, err := h.svc.TogglePurchased(ctx, actor, itemID, h.purchased)
	if err != nil {
		return replyError(bot, message, err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":   message.Chat.ID,
		"member":    actor.ID,
		"item_id":   item.ID,
		"purchased": h.purchased,
	}).Info("Purchase status changed from chat")

	if h.purchased {
		return reply(bot, message, fmt.Sprintf("✅ *%s* is marked as bought by you.\n_%s won't see it._",
			escape(item.Name), escape(item.UserName)))
	}
	return reply(bot, message, fmt.Sprintf("↩️ *%s* is available again.", escape(item.Name)))
}
