package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contently/internal/domain"
	"contently/internal/scraper"
	"contently/internal/storage"
)

const (
	// Telegram rejects messages longer than this many UTF-16 code units.
	maxMessageUnits = 4096

	callbackMore = "more:"
	callbackLess = "less:"

	welcomeMessage = "Welcome to Contently! Send me a website link and I'll convert it to clean Markdown."
	hintMessage    = "Send me a website link (http or https) to convert it to Markdown."
	expiredMessage = "Result expired"
	emptyText      = "(empty result)"
)

// sender is the subset of the Bot API the handler talks to.
type sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot     *tgbot.Bot
	send    sender
	repo    storage.Repository
	scraper scraper.Scraper
	preview domain.PreviewLimits
	log     logrus.FieldLogger
	newID   func() string
}

// NewHandler creates the bot and registers its handlers.
func NewHandler(token string, repo storage.Repository, s scraper.Scraper, preview domain.PreviewLimits, logger logrus.FieldLogger) (*Handler, error) {
	h := newHandler(nil, repo, s, preview, logger)

	b, err := tgbot.New(token, tgbot.WithDefaultHandler(h.messageHandler))
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b
	h.send = b

	h.registerHandlers()
	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(send sender, repo storage.Repository, s scraper.Scraper, preview domain.PreviewLimits, logger logrus.FieldLogger) *Handler {
	return &Handler{
		send:    send,
		repo:    repo,
		scraper: s,
		preview: preview,
		log:     logger.WithField("component", "bot_handler"),
		newID:   uuid.NewString,
	}
}

func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, callbackMore, tgbot.MatchTypePrefix, h.callbackHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, callbackLess, tgbot.MatchTypePrefix, h.callbackHandler)
}

// Start polls for updates until ctx is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

func (h *Handler) startHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.reply(ctx, update.Message.Chat.ID, welcomeMessage, nil)
}

// messageHandler scrapes the first link found in a text message.
// It is also the default handler, so stray callback queries land here.
func (h *Handler) messageHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if cq := update.CallbackQuery; cq != nil {
		// Unknown button data; answer so the client stops waiting.
		h.log.WithField("data", cq.Data).Debug("Ignoring unknown callback")
		h.answer(ctx, cq.ID, "")
		return
	}
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	log := h.log.WithField("chat_id", chatID)

	target, ok := findURL(update.Message.Text)
	if !ok {
		h.reply(ctx, chatID, hintMessage, nil)
		return
	}
	log = log.WithField("url", target)

	h.reply(ctx, chatID, domain.NotifyScraping.Message, nil)

	res, err := h.scraper.Scrape(ctx, target)
	if err != nil {
		log.WithError(err).Warn("Scraping error")
		h.reply(ctx, chatID, domain.NotifyError(err).Message, nil)
		return
	}

	conv := domain.NewConversion(h.newID(), res)
	conv.ChatID = chatID
	saved := true
	if err := h.repo.SaveConversion(ctx, conv); err != nil {
		log.WithError(err).Error("Failed to keep conversion")
		saved = false
	}

	text, markup := h.render(conv, false, saved)
	h.reply(ctx, chatID, text, markup)
	h.reply(ctx, chatID, domain.NotifyScraped.Message, nil)
}

// callbackHandler flips a result between preview and full text.
func (h *Handler) callbackHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}

	expanded := strings.HasPrefix(cq.Data, callbackMore)
	id := strings.TrimPrefix(strings.TrimPrefix(cq.Data, callbackMore), callbackLess)
	chatID, msgID, ok := callbackTarget(cq)
	log := h.log.WithFields(logrus.Fields{"chat_id": chatID, "id": id, "expanded": expanded})

	conv, err := h.repo.GetConversion(ctx, id)
	if err == nil && conv.ChatID != chatID {
		err = storage.ErrNotFound
	}
	if err != nil || !ok {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).Error("Failed to load conversion")
		}
		h.answer(ctx, cq.ID, expiredMessage)
		return
	}

	text, markup := h.render(conv, expanded, true)
	_, err = h.send.EditMessageText(ctx, &tgbot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   msgID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		log.WithError(err).Error("Failed to edit message")
	}
	h.answer(ctx, cq.ID, "")
}

// render builds the message text and the toggle keyboard, if one is needed.
func (h *Handler) render(conv domain.Conversion, expanded, toggle bool) (string, models.ReplyMarkup) {
	preview, truncated := domain.Preview(conv.Markdown, h.preview.Runes, h.preview.Lines)

	text := conv.Markdown
	if truncated && !expanded {
		text = preview
	}
	text = clipUTF16(text, maxMessageUnits)
	if text == "" {
		text = emptyText
	}
	if !truncated || !toggle {
		return text, nil
	}

	button := models.InlineKeyboardButton{Text: "Read More", CallbackData: callbackMore + conv.ID}
	if expanded {
		button = models.InlineKeyboardButton{Text: "Show Less", CallbackData: callbackLess + conv.ID}
	}
	return text, &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{button}},
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	_, err := h.send.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

func (h *Handler) answer(ctx context.Context, callbackID, text string) {
	_, err := h.send.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		h.log.WithError(err).Warn("Failed to answer callback query")
	}
}

func callbackTarget(cq *models.CallbackQuery) (chatID int64, msgID int, ok bool) {
	switch {
	case cq.Message.Message != nil:
		return cq.Message.Message.Chat.ID, cq.Message.Message.ID, true
	case cq.Message.InaccessibleMessage != nil:
		return cq.Message.InaccessibleMessage.Chat.ID, cq.Message.InaccessibleMessage.MessageID, true
	}
	return 0, 0, false
}

// clipUTF16 cuts text on a rune boundary so it fits in limit UTF-16 code
// units, the unit Telegram counts message length in.
func clipUTF16(text string, limit int) string {
	units := 0
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1 // invalid runes are sent as U+FFFD
		}
		if units+n > limit {
			return text[:i]
		}
		units += n
	}
	return text
}

// findURL returns the first absolute http(s) URL in text.
func findURL(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		field = strings.Trim(field, "<>()[]\"'.,;")
		lower := strings.ToLower(field)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			continue
		}
		if u, err := domain.ValidateURL(field); err == nil {
			return u, true
		}
	}
	return "", false
}
