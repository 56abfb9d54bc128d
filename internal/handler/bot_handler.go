package handler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/internal/service"
	"github.com/mazbron/video-downloader/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// UpdateSource delivers Telegram updates by long polling
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// SessionHandler runs the download conversation of a chat
type SessionHandler interface {
	HandleURL(ctx context.Context, msg model.InboundText)
	HandleQualitySelection(ctx context.Context, cb model.InboundCallback)
}

// StatsProvider returns the usage counters
type StatsProvider interface {
	Summary() model.UsageSummary
}

// BotHandler dispatches Telegram updates to commands and the session handler
type BotHandler struct {
	source      UpdateSource
	gateway     service.ChatGateway
	sessions    SessionHandler
	stats       StatsProvider
	limiter     *service.RateLimitService
	pollTimeout int
	maxFileSize int64
	wg          sync.WaitGroup
}

// NewBotHandler creates a new bot handler
func NewBotHandler(source UpdateSource, gateway service.ChatGateway, sessions SessionHandler, stats StatsProvider, limiter *service.RateLimitService, cfg *model.Config) *BotHandler {
	return &BotHandler{
		source:      source,
		gateway:     gateway,
		sessions:    sessions,
		stats:       stats,
		limiter:     limiter,
		pollTimeout: cfg.Bot.PollTimeout,
		maxFileSize: cfg.Storage.MaxFileSize,
	}
}

// Run polls for updates until ctx is cancelled, then waits for in-flight
// handlers to return
func (h *BotHandler) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = h.pollTimeout

	updates := h.source.GetUpdatesChan(u)
	defer h.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			h.source.StopReceivingUpdates()
			logger.LogInfo("Update polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.wg.Add(1)
			go h.handleUpdate(ctx, update)
		}
	}
}

func (h *BotHandler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer h.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("Recovered from panic in update handler",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *BotHandler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.Message == nil || q.Message.Chat == nil {
		return
	}

	cb := model.InboundCallback{
		ID:        q.ID,
		ChatID:    q.Message.Chat.ID,
		MessageID: q.Message.MessageID,
		Data:      q.Data,
	}
	if q.From != nil {
		cb.UserID = q.From.ID
	}
	h.sessions.HandleQualitySelection(ctx, cb)
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || msg.Text == "" {
		return
	}
	chatID := msg.Chat.ID

	if h.limiter != nil && !h.limiter.IsAllowed(fmt.Sprintf("chat:%d", chatID)) {
		logger.LogWarn("Message dropped by rate limit", logger.Chat(chatID))
		return
	}

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}

	in := model.InboundText{ChatID: chatID, Text: msg.Text}
	if msg.From != nil {
		in.UserID = msg.From.ID
	}
	h.sessions.HandleURL(ctx, in)
}

func (h *BotHandler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	var text string
	switch msg.Command() {
	case "start":
		text = startText()
	case "help":
		text = helpText(h.maxFileSize)
	case "stats":
		text = statsText(h.stats.Summary())
	default:
		logger.LogDebug("Unknown command", logger.Chat(msg.Chat.ID), zap.String("command", msg.Command()))
		return
	}

	opts := model.MessageOptions{ParseMode: model.ParseModeMarkdown}
	if _, err := h.gateway.SendMessage(ctx, msg.Chat.ID, text, opts); err != nil {
		logger.LogError("Failed to answer command", err, logger.Chat(msg.Chat.ID), zap.String("command", msg.Command()))
	}
}
