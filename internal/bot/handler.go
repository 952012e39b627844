package bot

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"vitrine/internal/config"
)

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot   *tgbot.Bot
	cfg   config.Config
	shell *Shell
	log   logrus.FieldLogger
}

// handlerWorkers is how many updates are handled concurrently. Handlers run
// on these workers, so polling only stops once they have returned.
const handlerWorkers = 8

// NewHandler creates the bot and the navigation shell it hosts. deps.Messenger
// is filled in with the Telegram messenger.
func NewHandler(cfg config.Config, deps ShellDeps, logger logrus.FieldLogger) (*Handler, error) {
	return newHandler(cfg, deps, logger)
}

func newHandler(cfg config.Config, deps ShellDeps, logger logrus.FieldLogger, opts ...tgbot.Option) (*Handler, error) {
	log := logger.WithField("component", "bot_handler")

	h := &Handler{
		cfg: cfg,
		log: log,
	}

	opts = append([]tgbot.Option{
		tgbot.WithDefaultHandler(h.defaultHandler),
		tgbot.WithNotAsyncHandlers(),
		tgbot.WithWorkers(handlerWorkers),
	}, opts...)
	b, err := tgbot.New(cfg.TelegramBotToken, opts...)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b

	deps.Messenger = &telegramMessenger{bot: b}
	h.shell = NewShell(deps, logger)

	h.registerHandlers()

	log.Info("Telegram bot handler initialized")
	return h, nil
}

// registerHandlers sets up the command and callback handlers.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/feed", tgbot.MatchTypeExact, h.feedHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, likePrefix, tgbot.MatchTypePrefix, h.likeHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, openPrefix, tgbot.MatchTypePrefix, h.openHandler)
	h.log.Info("Registered command and callback handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled, then until running
// handlers and the deep-link dispatches they scheduled are done.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.shell.Ready()
	h.bot.Start(ctx)
	h.shell.Wait()
	h.log.Info("Telegram bot polling stopped.")
}

// messageFields identifies the sender when there is one; channel posts and
// anonymous admins have no From.
func messageFields(msg *models.Message) logrus.Fields {
	fields := logrus.Fields{"chat_id": msg.Chat.ID}
	if msg.From != nil {
		fields["user_id"] = msg.From.ID
	}
	return fields
}

func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	log := h.log.WithFields(messageFields(update.Message)).WithField("command", "/start")
	log.Info("Received /start command")

	welcome := "Bienvenue sur Vitrine ! Envoyez un lien d'annonce ou de vitrine, ou tapez /feed pour les dernières annonces."
	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   welcome,
	})
	if err != nil {
		log.WithError(err).Error("Failed to send welcome message")
	}
}

func (h *Handler) feedHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	if err := h.shell.ShowFeed(ctx, update.Message.Chat.ID); err != nil {
		h.log.WithError(err).WithField("chat_id", update.Message.Chat.ID).Error("Failed to show feed")
	}
}

// defaultHandler treats any other text as a possible deep link.
func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	scheduled := h.shell.HandleText(ctx, chatID, update.Message.Text)
	h.log.WithFields(logrus.Fields{
		"chat_id":   chatID,
		"scheduled": scheduled,
	}).Debug("Text message handled")
}

func (h *Handler) likeHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	query := update.CallbackQuery
	h.answer(ctx, b, query.ID)

	annonceID, slug, ok := parseCallback(likePrefix, query.Data)
	if !ok || query.Message.Message == nil {
		h.log.WithField("data", query.Data).Warn("Malformed like callback")
		return
	}
	msg := query.Message.Message

	outcome, err := h.shell.ToggleLike(ctx, msg.Chat.ID, msg.ID, annonceID, slug)
	log := h.log.WithFields(logrus.Fields{
		"chat_id":    msg.Chat.ID,
		"annonce_id": annonceID,
		"outcome":    outcome.String(),
	})
	if err != nil {
		log.WithError(err).Warn("Like toggle not performed")
		return
	}
	log.Debug("Like callback handled")
}

func (h *Handler) openHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	query := update.CallbackQuery
	h.answer(ctx, b, query.ID)

	annonceID, slug, ok := parseCallback(openPrefix, query.Data)
	if !ok || query.Message.Message == nil {
		h.log.WithField("data", query.Data).Warn("Malformed open callback")
		return
	}
	chatID := query.Message.Message.Chat.ID
	if err := h.shell.OpenAnnonce(ctx, chatID, annonceID, slug); err != nil {
		h.log.WithError(err).WithField("annonce_id", annonceID).Error("Failed to open annonce")
	}
}

func (h *Handler) answer(ctx context.Context, b *tgbot.Bot, callbackQueryID string) {
	if _, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
	}); err != nil {
		h.log.WithError(err).Debug("Failed to answer callback query")
	}
}
