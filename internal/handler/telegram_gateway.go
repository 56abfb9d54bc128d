package handler

import (
	"context"
	"strings"

	"github.com/mazbron/video-downloader/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the part of *tgbotapi.BotAPI the gateway calls
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramGateway renders orchestrator output through the Telegram Bot API
type TelegramGateway struct {
	api BotAPI
}

// NewTelegramGateway creates a new Telegram gateway
func NewTelegramGateway(api BotAPI) *TelegramGateway {
	return &TelegramGateway{api: api}
}

// SendMessage sends a text message and returns its message id
func (g *TelegramGateway) SendMessage(ctx context.Context, chatID int64, text string, opts model.MessageOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = opts.ParseMode
	if markup, ok := inlineKeyboard(opts.Keyboard); ok {
		msg.ReplyMarkup = markup
	}

	sent, err := g.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text (and keyboard) of a message sent earlier
func (g *TelegramGateway) EditMessage(ctx context.Context, chatID int64, messageID int, text string, opts model.MessageOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var edit tgbotapi.EditMessageTextConfig
	if markup, ok := inlineKeyboard(opts.Keyboard); ok {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = opts.ParseMode

	if _, err := g.api.Send(edit); err != nil && !isNotModified(err) {
		return err
	}
	return nil
}

// DeleteMessage removes a message
func (g *TelegramGateway) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// AnswerCallback clears the loading indicator of a pressed button
func (g *TelegramGateway) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// SendVideo uploads a local file as a streamable video
func (g *TelegramGateway) SendVideo(ctx context.Context, chatID int64, path string, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true

	_, err := g.api.Send(video)
	return err
}

func inlineKeyboard(rows [][]model.KeyboardButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}

	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		keyboardRows = append(keyboardRows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboardRows...), true
}

// isNotModified reports the error Telegram returns when an edit changes nothing
func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
