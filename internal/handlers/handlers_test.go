package handlers

import (
	"context"
	"io"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/repository"
	"github.com/msawatzky/christmas-list/internal/repository/memory"
	"github.com/msawatzky/christmas-list/internal/scraper"
	"github.com/msawatzky/christmas-list/internal/service"
	"github.com/msawatzky/christmas-list/internal/telegram"
)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type stubFetcher struct{}

func (stubFetcher) Name() string { return "stub" }

func (stubFetcher) Fetch(ctx context.Context, pageURL string) (*scraper.Extracted, error) {
	return &scraper.Extracted{Name: "Wool Socks", Price: 12.5}, nil
}

type chatEnv struct {
	router *telegram.Router
	bot    *fakeSender
	repo   repository.ItemRepository
}

func newChatEnv(t *testing.T) *chatEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	roster := auth.DefaultRoster()
	repo := memory.NewItemRepository()
	svc := service.New(logger, repo, roster, nil)
	links := auth.NewLinks(roster)

	r := telegram.NewRouter(logger)
	r.RegisterCommand("start", NewStartHandler(links, logger))
	r.RegisterCommand("help", NewHelpHandler(logger))
	r.RegisterCommand("iam", NewIamHandler(links, logger))
	r.RegisterCommand("wish", NewWishAddHandler(svc, links, logger))
	r.RegisterCommand("mylist", NewMyListHandler(svc, links, logger))
	r.RegisterCommand("up", NewMoveHandler(svc, links, logger, models.DirectionUp))
	r.RegisterCommand("down", NewMoveHandler(svc, links, logger, models.DirectionDown))
	r.RegisterCommand("others", NewOthersHandler(svc, links, logger))
	r.RegisterCommand("bought", NewPurchaseHandler(svc, links, logger, true))
	r.RegisterCommand("unbought", NewPurchaseHandler(svc, links, logger, false))
	r.RegisterCommand("fetch", NewFetchHandler(scraper.New(stubFetcher{}, 0, logger, nil), logger))

	return &chatEnv{router: r, bot: &fakeSender{}, repo: repo}
}

// say delivers a command from chat user id and returns the bot's last reply.
func (e *chatEnv) say(id int64, text string) string {
	cmdLen := strings.IndexByte(text, ' ')
	if cmdLen < 0 {
		cmdLen = len(text)
	}
	e.router.HandleMessage(e.bot, &tgbotapi.Message{
		MessageID: 1,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: 500},
		From:      &tgbotapi.User{ID: id, UserName: "user" + strings.Repeat("x", int(id%5))},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	})
	return e.bot.last()
}

const (
	momChat int64 = 1
	dadChat int64 = 2
)

func TestUnlinkedUserIsAskedToIdentify(t *testing.T) {
	env := newChatEnv(t)
	assert.Contains(t, env.say(momChat, "/mylist"), "/iam")
	assert.Contains(t, env.say(momChat, "/iam Santa"), "don't know that name")
	assert.Contains(t, env.say(momChat, "/iam mom"), "Hi *Mom*")
	assert.Contains(t, env.say(momChat, "/iam"), "You are *Mom*")
}

func TestWishAndReorder(t *testing.T) {
	env := newChatEnv(t)
	env.say(momChat, "/iam Mom")

	reply := env.say(momChat, "/wish Wool socks | $12.99 | https://www.etsy.com/listing/1")
	assert.Contains(t, reply, "Added to your list")

	items, err := env.repo.ListByUser(context.Background(), "mom")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Wool socks", items[0].Name)
	assert.Equal(t, "Etsy", items[0].Store)
	require.NotNil(t, items[0].Price)
	assert.InDelta(t, 12.99, *items[0].Price, 1e-9)

	env.say(momChat, "/wish Tea")
	list := env.say(momChat, "/mylist")
	assert.Less(t, strings.Index(list, "Wool socks"), strings.Index(list, "Tea"))

	list = env.say(momChat, "/up 2")
	assert.Less(t, strings.Index(list, "Tea"), strings.Index(list, "Wool socks"))

	assert.Contains(t, env.say(momChat, "/up 1"), "already at the top")
	assert.Contains(t, env.say(momChat, "/down 2"), "already at the bottom")
	assert.Contains(t, env.say(momChat, "/down 9"), "only has 2 items")
	assert.Contains(t, env.say(momChat, "/up x"), "item number")
}

func TestBoughtIsHiddenFromOwner(t *testing.T) {
	env := newChatEnv(t)
	env.say(momChat, "/iam mom")
	env.say(dadChat, "/iam dad")
	env.say(momChat, "/wish Robe")
	env.say(dadChat, "/wish Drill")

	others := env.say(dadChat, "/others")
	assert.Contains(t, others, "Robe")
	assert.NotContains(t, others, "Drill")

	assert.Contains(t, env.say(dadChat, "/bought 1"), "marked as bought")
	assert.Contains(t, env.say(dadChat, "/others"), "✅")
	assert.NotContains(t, env.say(momChat, "/mylist"), "✅")

	assert.Contains(t, env.say(dadChat, "/unbought 1"), "available again")
	assert.Contains(t, env.say(dadChat, "/bought 7"), "item number")

	robe, err := env.repo.ListByUser(context.Background(), "mom")
	require.NoError(t, err)
	assert.Contains(t, env.say(momChat, "/bought "+robe[0].ID), "cannot mark items on your own list")
}

func TestFetchSuggestsWishLine(t *testing.T) {
	env := newChatEnv(t)
	reply := env.say(momChat, "/fetch https://www.target.com/p/socks")
	assert.Contains(t, reply, "Wool Socks")
	assert.Contains(t, reply, "/wish Wool Socks | 12.50 | https://www.target.com/p/socks")

	assert.Contains(t, env.say(momChat, "/fetch socks"), "doesn't look like a web link")
}

func TestUnknownCommand(t *testing.T) {
	env := newChatEnv(t)
	assert.Contains(t, env.say(momChat, "/frobnicate"), "Unknown command")
	assert.Contains(t, env.say(momChat, "/help"), "Gift List Help")
	assert.Contains(t, env.say(momChat, "/start"), "/iam")
}

func TestParseWish(t *testing.T) {
	in := parseWish(strings.Fields("Lego castle | Toy Barn | 49"))
	assert.Equal(t, "Lego castle", in.Name)
	assert.Equal(t, "Toy Barn", in.Store)
	require.NotNil(t, in.Price)
	assert.Equal(t, 49.0, *in.Price)
	assert.Empty(t, in.PurchaseURL)

	in = parseWish(strings.Fields("Drill | https://www.homedepot.com/p/1"))
	assert.Equal(t, "Home Depot", in.Store)
	assert.Nil(t, in.Price)
}

func TestParseWishKeepsStoresWithDigits(t *testing.T) {
	in := parseWish(strings.Fields("Socks | Target 5th Ave"))
	assert.Equal(t, "Target 5th Ave", in.Store)
	assert.Nil(t, in.Price)

	in = parseWish(strings.Fields("Socks | Target 5th Ave | $1,299.50"))
	assert.Equal(t, "Target 5th Ave", in.Store)
	require.NotNil(t, in.Price)
	assert.Equal(t, 1299.5, *in.Price)

	in = parseWish(strings.Fields("Socks | €5"))
	require.NotNil(t, in.Price)
	assert.Equal(t, 5.0, *in.Price)
	assert.Empty(t, in.Store)
}
