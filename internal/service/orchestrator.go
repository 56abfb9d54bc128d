package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/pkg/logger"
	"github.com/mazbron/video-downloader/pkg/validator"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// chatSession is the state of one chat. Every new link gets a generation no
// other cycle in the process has used, so work started for an older link can
// no longer change the state.
type chatSession struct {
	generation uint64
	state      model.SessionState
}

// sessionTracker pairs chat states with their pending selections. Both are
// changed under one lock whenever a cycle starts, claims its selection or is
// abandoned.
type sessionTracker struct {
	mu             sync.Mutex
	lastGeneration uint64
	sessions       map[int64]*chatSession
	pending        *PendingStore
}

func newSessionTracker(pending *PendingStore) *sessionTracker {
	return &sessionTracker{
		sessions: make(map[int64]*chatSession),
		pending:  pending,
	}
}

// open starts a new cycle for sel.ChatID and stores its pending selection,
// invalidating any older cycle of the chat
func (t *sessionTracker) open(sel model.PendingSelection) (generation uint64, replaced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastGeneration++
	t.sessions[sel.ChatID] = &chatSession{
		generation: t.lastGeneration,
		state:      model.StateAwaitingQualitySelection,
	}
	return t.lastGeneration, t.pending.Put(sel)
}

// claim consumes the pending selection of chatID and moves the chat to
// Fetching. Without a selection, a chat still marked as awaiting is reset.
func (t *sessionTracker) claim(chatID int64) (model.PendingSelection, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, live := t.sessions[chatID]
	sel, ok := t.pending.Pop(chatID)
	if !ok {
		if live && s.state == model.StateAwaitingQualitySelection {
			delete(t.sessions, chatID)
		}
		return sel, 0, false
	}

	if !live {
		t.lastGeneration++
		s = &chatSession{generation: t.lastGeneration}
		t.sessions[chatID] = s
	}
	s.state = model.StateFetching
	return sel, s.generation, true
}

// transition moves chatID to state if generation is still the live one.
// Idle sessions are forgotten.
func (t *sessionTracker) transition(chatID int64, generation uint64, state model.SessionState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[chatID]
	if !ok || s.generation != generation {
		return false
	}
	if state == model.StateIdle {
		delete(t.sessions, chatID)
		return true
	}
	s.state = state
	return true
}

// abandon returns chatID to Idle and drops its pending selection, provided
// generation is still the live cycle
func (t *sessionTracker) abandon(chatID int64, generation uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[chatID]; !ok || s.generation != generation {
		return
	}
	delete(t.sessions, chatID)
	t.pending.Pop(chatID)
}

func (t *sessionTracker) state(chatID int64) model.SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[chatID]; ok {
		return s.state
	}
	return model.StateIdle
}

// Orchestrator drives a chat from a pasted link to a delivered video
type Orchestrator struct {
	gateway    ChatGateway
	extractor  Extractor
	files      FileStore
	usage      UsageRecorder
	pending    *PendingStore
	sessions   *sessionTracker
	fetchSlots *semaphore.Weighted
}

// NewOrchestrator creates an orchestrator allowing maxConcurrent downloads at once
func NewOrchestrator(gateway ChatGateway, extractor Extractor, files FileStore, usage UsageRecorder, pending *PendingStore, maxConcurrent int) *Orchestrator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Orchestrator{
		gateway:    gateway,
		extractor:  extractor,
		files:      files,
		usage:      usage,
		pending:    pending,
		sessions:   newSessionTracker(pending),
		fetchSlots: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// State returns the session state of chatID
func (o *Orchestrator) State(chatID int64) model.SessionState {
	state := o.sessions.state(chatID)
	if state == model.StateAwaitingQualitySelection && !o.pending.Has(chatID) {
		return model.StateIdle
	}
	return state
}

// PendingCount returns how many chats are waiting on a quality choice
func (o *Orchestrator) PendingCount() int {
	return o.pending.Len()
}

// HandleURL reacts to a plain text message. Text that is not a link is ignored.
func (o *Orchestrator) HandleURL(ctx context.Context, msg model.InboundText) {
	statusID := 0
	var generation uint64
	defer o.recoverPanic(ctx, msg.ChatID, &statusID, &generation)

	url := strings.TrimSpace(msg.Text)
	if !validator.IsValidURL(url) {
		logger.LogDebug("Ignoring non-link text", logger.Chat(msg.ChatID))
		return
	}

	platform, ok := ResolvePlatform(url)
	if !ok {
		logger.LogInfo("Unsupported platform", logger.Chat(msg.ChatID), zap.String("url", url))
		o.send(ctx, msg.ChatID, msgUnsupportedPlatform, model.MessageOptions{})
		return
	}
	info := DescribePlatform(platform)

	if err := o.usage.TrackUser(msg.UserID); err != nil {
		logger.LogWarn("Failed to track user", zap.Int64("user_id", msg.UserID), zap.Error(err))
	}

	var replaced bool
	generation, replaced = o.sessions.open(model.PendingSelection{ChatID: msg.ChatID, URL: url, Platform: platform})
	if replaced {
		logger.LogDebug("Pending selection replaced", logger.Chat(msg.ChatID))
	}

	logger.LogInfo("Link received",
		logger.Chat(msg.ChatID),
		zap.String("platform", string(platform)),
		zap.String("url", url))

	statusID = o.send(ctx, msg.ChatID, loadingText(info), markdown)

	title := ""
	video, err := o.extractor.Probe(ctx, url)
	if err != nil {
		logger.LogWarn("Probe failed, offering qualities without sizes",
			logger.Chat(msg.ChatID), zap.String("url", url), zap.Error(err))
		video = nil
	} else if video != nil {
		title = video.Title
	}

	o.showPrompt(ctx, msg.ChatID, &statusID, info, title, qualityKeyboard(video))
}

// showPrompt puts the quality buttons on the status message. When Telegram
// rejects the formatted text, it retries once in plain text without the title.
func (o *Orchestrator) showPrompt(ctx context.Context, chatID int64, statusID *int, info model.PlatformInfo, title string, keyboard [][]model.KeyboardButton) {
	formatted := model.MessageOptions{ParseMode: model.ParseModeMarkdown, Keyboard: keyboard}
	err := o.render(ctx, chatID, statusID, promptText(info, title), formatted)
	if err == nil {
		return
	}
	logger.LogWarn("Quality prompt rejected, retrying as plain text", logger.Chat(chatID), zap.Error(err))

	if err := o.render(ctx, chatID, statusID, plainPromptText(info), model.MessageOptions{Keyboard: keyboard}); err != nil {
		logger.LogError("Failed to show quality prompt", err, logger.Chat(chatID))
	}
}

// render edits the status message, or sends a new one when there is none yet
func (o *Orchestrator) render(ctx context.Context, chatID int64, statusID *int, text string, opts model.MessageOptions) error {
	if *statusID != 0 {
		return o.gateway.EditMessage(ctx, chatID, *statusID, text, opts)
	}
	id, err := o.gateway.SendMessage(ctx, chatID, text, opts)
	if err != nil {
		return err
	}
	*statusID = id
	return nil
}

// HandleQualitySelection reacts to a quality button press
func (o *Orchestrator) HandleQualitySelection(ctx context.Context, cb model.InboundCallback) {
	statusID := cb.MessageID
	var generation uint64
	defer o.recoverPanic(ctx, cb.ChatID, &statusID, &generation)

	if err := o.gateway.AnswerCallback(ctx, cb.ID); err != nil {
		logger.LogDebug("Failed to answer callback", logger.Chat(cb.ChatID), zap.Error(err))
	}

	if !model.IsQualityCallback(cb.Data) {
		return
	}
	quality, ok := model.ParseQualityCallback(cb.Data)
	if !ok {
		logger.LogWarn("Unknown quality in callback", logger.Chat(cb.ChatID), zap.String("data", cb.Data))
		return
	}

	sel, generation, ok := o.sessions.claim(cb.ChatID)
	if !ok {
		logger.LogInfo("Quality chosen without a pending link", logger.Chat(cb.ChatID), zap.Error(ErrSessionExpired))
		o.send(ctx, cb.ChatID, msgSessionExpired, model.MessageOptions{})
		return
	}
	defer o.sessions.transition(cb.ChatID, generation, model.StateIdle)

	o.edit(ctx, cb.ChatID, statusID, downloadingText(quality), markdown)

	result, err := o.fetch(ctx, sel, quality, func(percent int) {
		o.edit(ctx, cb.ChatID, statusID, progressText(quality, percent), markdown)
	})
	if err != nil {
		logger.LogError("Download failed", err,
			logger.Chat(cb.ChatID),
			zap.String("url", sel.URL),
			zap.String("quality", quality.Label()))
		o.edit(ctx, cb.ChatID, statusID, failureText(ClassifyFailure(err)), markdown)
		return
	}

	if !o.files.ValidateFileSize(result.SizeBytes) {
		logger.LogWarn("Downloaded file exceeds size limit",
			logger.Chat(cb.ChatID),
			zap.String("path", result.FilePath),
			zap.Int64("size", result.SizeBytes),
			zap.Error(ErrOversizeResult))
		_ = o.files.Delete(result.FilePath)
		o.edit(ctx, cb.ChatID, statusID, tooLargeText(result.SizeBytes, o.files.MaxFileSize()), markdown)
		return
	}

	o.edit(ctx, cb.ChatID, statusID, sendingText(result.SizeBytes), markdown)
	o.sessions.transition(cb.ChatID, generation, model.StateDelivering)

	// the delivered file is left for the storage sweep
	if err := o.gateway.SendVideo(ctx, cb.ChatID, result.FilePath, captionText(quality, result.SizeBytes)); err != nil {
		logger.LogError("Failed to send video", err, logger.Chat(cb.ChatID), zap.String("path", result.FilePath))
		o.edit(ctx, cb.ChatID, statusID, failureText(ClassifyFailure(err)), markdown)
		return
	}

	if err := o.usage.TrackDownload(sel.Platform); err != nil {
		logger.LogWarn("Failed to track download", zap.String("platform", string(sel.Platform)), zap.Error(err))
	}
	logger.LogInfo("Video delivered",
		logger.Chat(cb.ChatID),
		zap.String("platform", string(sel.Platform)),
		zap.String("quality", quality.Label()),
		zap.Int64("size", result.SizeBytes))

	if err := o.gateway.DeleteMessage(ctx, cb.ChatID, statusID); err != nil {
		logger.LogDebug("Failed to delete status message", logger.Chat(cb.ChatID), zap.Error(err))
	}
}

// fetch runs one download once a download slot is free
func (o *Orchestrator) fetch(ctx context.Context, sel model.PendingSelection, quality model.Quality, onProgress func(int)) (*model.DownloadResult, error) {
	if err := o.fetchSlots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for download slot: %w", err)
	}
	defer o.fetchSlots.Release(1)

	return o.extractor.Fetch(ctx, model.FetchRequest{
		URL:            sel.URL,
		Quality:        quality,
		DestinationDir: o.files.DownloadDir(),
		Platform:       sel.Platform,
	}, onProgress)
}

// send posts a message and returns its id, 0 when it could not be sent
func (o *Orchestrator) send(ctx context.Context, chatID int64, text string, opts model.MessageOptions) int {
	id, err := o.gateway.SendMessage(ctx, chatID, text, opts)
	if err != nil {
		logger.LogWarn("Failed to send message", logger.Chat(chatID), zap.Error(err))
		return 0
	}
	return id
}

func (o *Orchestrator) edit(ctx context.Context, chatID int64, messageID int, text string, opts model.MessageOptions) {
	if messageID == 0 {
		o.send(ctx, chatID, text, opts)
		return
	}
	if err := o.gateway.EditMessage(ctx, chatID, messageID, text, opts); err != nil {
		logger.LogDebug("Failed to edit message", logger.Chat(chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}

func (o *Orchestrator) recoverPanic(ctx context.Context, chatID int64, statusID *int, generation *uint64) {
	r := recover()
	if r == nil {
		return
	}

	logger.Logger.Error("Recovered from panic in chat handler",
		logger.Chat(chatID),
		zap.Any("panic", r),
		zap.ByteString("stack", debug.Stack()))

	if *generation != 0 {
		o.sessions.abandon(chatID, *generation)
	}
	o.edit(ctx, chatID, *statusID, failureText(genericFailureReason), markdown)
}
