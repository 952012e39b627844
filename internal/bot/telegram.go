package bot

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Callback data prefixes of the inline buttons.
const (
	likePrefix = "like:"
	openPrefix = "open:"
)

// maxCallbackData is Telegram's limit on callback_data, in bytes.
const maxCallbackData = 64

// telegramMessenger renders screens as Telegram messages with inline
// keyboards.
type telegramMessenger struct {
	bot *tgbot.Bot
}

func (m *telegramMessenger) SendScreen(ctx context.Context, chatID int64, screen Screen) error {
	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   screen.Text,
	}
	if kb := screenKeyboard(screen); kb != nil {
		params.ReplyMarkup = kb
	}
	_, err := m.bot.SendMessage(ctx, params)
	return err
}

func (m *telegramMessenger) UpdateLikeButton(ctx context.Context, chatID int64, messageID int, button LikeButton) error {
	_, err := m.bot.EditMessageReplyMarkup(ctx, &tgbot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   messageID,
		ReplyMarkup: screenKeyboard(Screen{Like: &button}),
	})
	return err
}

func screenKeyboard(screen Screen) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	if screen.Like != nil {
		if data, ok := callbackData(likePrefix, screen.Like.AnnonceID, screen.Like.Slug); ok {
			rows = append(rows, []models.InlineKeyboardButton{{
				Text:         screen.Like.Label(),
				CallbackData: data,
			}})
		}
	}
	for _, link := range screen.Links {
		data, ok := callbackData(openPrefix, link.AnnonceID, link.Slug)
		if !ok {
			continue
		}
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         link.Label,
			CallbackData: data,
		}})
	}
	if len(rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// callbackData encodes "<prefix><id>:<slug>", dropping the slug when the
// result would exceed Telegram's limit. ok is false when even the id does
// not fit.
func callbackData(prefix, annonceID, slug string) (string, bool) {
	if annonceID == "" || strings.Contains(annonceID, ":") {
		return "", false
	}
	data := prefix + annonceID
	if len(data) > maxCallbackData {
		return "", false
	}
	if slug != "" && len(data)+1+len(slug) <= maxCallbackData {
		data += ":" + slug
	}
	return data, true
}

// parseCallback splits "<prefix><id>[:<slug>]". The slug may be empty.
func parseCallback(prefix, data string) (annonceID, slug string, ok bool) {
	rest, found := strings.CutPrefix(data, prefix)
	if !found {
		return "", "", false
	}
	annonceID, slug, _ = strings.Cut(rest, ":")
	if annonceID == "" {
		return "", "", false
	}
	return annonceID, slug, true
}
