package handlers

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/scraper"
	"github.com/msawatzky/christmas-list/internal/telegram"
)

// FetchHandler handles /fetch <link> and suggests a ready-made /wish line
type FetchHandler struct {
	scraper *scraper.Scraper
	logger  *logrus.Logger
}

// NewFetchHandler creates a new FetchHandler.
func NewFetchHandler(s *scraper.Scraper, logger *logrus.Logger) *FetchHandler {
	return &FetchHandler{scraper: s, logger: logger}
}

func (h *FetchHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, message, "❌ Please paste a product link.\nUsage: `/fetch https://www.amazon.com/dp/...`")
	}

	ctx, cancel := newContext()
	defer cancel()

	product, err := h.scraper.Scrape(ctx, args[0])
	if errors.Is(err, scraper.ErrInvalidURL) {
		return reply(bot, message, "❌ That doesn't look like a web link.")
	}
	if err != nil {
		h.logger.WithError(err).WithField("url", args[0]).Warn("Product lookup failed")
		return reply(bot, message, "❌ Failed to fetch product information. Please try again.")
	}
	if !product.Success {
		return reply(bot, message, "🤷 I couldn't read that page: "+escape(product.Error))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔎 *%s*\n", escape(product.Name))
	if product.Store != "" {
		fmt.Fprintf(&sb, "Store: %s\n", escape(product.Store))
	}
	if p := formatPrice(product.Price); p != "" {
		fmt.Fprintf(&sb, "Price: %s\n", p)
	}
	if product.Description != "" {
		fmt.Fprintf(&sb, "_%s_\n", escape(product.Description))
	}

	wish := []string{product.Name}
	if product.Price != nil {
		wish = append(wish, fmt.Sprintf("%.2f", *product.Price))
	}
	wish = append(wish, product.URL)
	fmt.Fprintf(&sb, "\nAdd it with:\n`/wish %s`", strings.Join(wish, " | "))

	return reply(bot, message, sb.String())
}
