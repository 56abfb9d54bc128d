package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/internal/storage"
)

type sentMessage struct {
	chatID    int64
	messageID int
	text      string
	opts      model.MessageOptions
}

type fakeGateway struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	edits    []sentMessage
	deleted  []int
	answered []string
	videos   []string
	captions []string
	sendErr  error
	videoErr error
	editErr  func(opts model.MessageOptions) error
}

func (g *fakeGateway) SendMessage(_ context.Context, chatID int64, text string, opts model.MessageOptions) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return 0, g.sendErr
	}
	g.nextID++
	id := 100 + g.nextID
	g.sent = append(g.sent, sentMessage{chatID: chatID, messageID: id, text: text, opts: opts})
	return id, nil
}

func (g *fakeGateway) EditMessage(_ context.Context, chatID int64, messageID int, text string, opts model.MessageOptions) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editErr != nil {
		if err := g.editErr(opts); err != nil {
			return err
		}
	}
	g.edits = append(g.edits, sentMessage{chatID: chatID, messageID: messageID, text: text, opts: opts})
	return nil
}

func (g *fakeGateway) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, messageID)
	return nil
}

func (g *fakeGateway) AnswerCallback(_ context.Context, callbackID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answered = append(g.answered, callbackID)
	return nil
}

func (g *fakeGateway) SendVideo(_ context.Context, _ int64, path string, caption string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.videoErr != nil {
		return g.videoErr
	}
	g.videos = append(g.videos, path)
	g.captions = append(g.captions, caption)
	return nil
}

func (g *fakeGateway) lastEdit(t *testing.T) sentMessage {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.edits) == 0 {
		t.Fatal("no message was edited")
	}
	return g.edits[len(g.edits)-1]
}

type fakeExtractor struct {
	mu         sync.Mutex
	probeFn    func(url string) (*model.VideoInfo, error)
	fetchFn    func(req model.FetchRequest, onProgress func(int)) (*model.DownloadResult, error)
	fetchCalls []model.FetchRequest
}

func (e *fakeExtractor) Probe(_ context.Context, url string) (*model.VideoInfo, error) {
	if e.probeFn == nil {
		return &model.VideoInfo{Title: "Video"}, nil
	}
	return e.probeFn(url)
}

func (e *fakeExtractor) Fetch(_ context.Context, req model.FetchRequest, onProgress func(int)) (*model.DownloadResult, error) {
	e.mu.Lock()
	e.fetchCalls = append(e.fetchCalls, req)
	e.mu.Unlock()
	return e.fetchFn(req, onProgress)
}

func (e *fakeExtractor) calls() []model.FetchRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.FetchRequest(nil), e.fetchCalls...)
}

// writeResult creates a file of size bytes the way a finished download would
func writeResult(req model.FetchRequest, size int) (*model.DownloadResult, error) {
	name := storage.GenerateName("mp4")
	path := filepath.Join(req.DestinationDir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		return nil, err
	}
	return &model.DownloadResult{FilePath: path, FileName: name, SizeBytes: int64(size)}, nil
}

type orchestratorFixture struct {
	orch    *Orchestrator
	gateway *fakeGateway
	ext     *fakeExtractor
	usage   *UsageService
	dir     string
}

func newOrchestratorFixture(t *testing.T, maxFileSize int64) *orchestratorFixture {
	t.Helper()
	dir := t.TempDir()
	files := storage.NewManager(&model.StorageConfig{
		DownloadDir: filepath.Join(dir, "downloads"),
		MaxFileSize: maxFileSize,
	})
	if err := files.EnsureDownloadDir(); err != nil {
		t.Fatal(err)
	}

	f := &orchestratorFixture{
		gateway: &fakeGateway{},
		ext:     &fakeExtractor{},
		usage:   NewUsageService(filepath.Join(dir, "stats.json")),
		dir:     files.DownloadDir(),
	}
	f.orch = NewOrchestrator(f.gateway, f.ext, files, f.usage, NewPendingStore(time.Hour), 2)
	return f
}

func (f *orchestratorFixture) sendURL(chatID int64, url string) {
	f.orch.HandleURL(context.Background(), model.InboundText{ChatID: chatID, UserID: chatID, Text: url})
}

func (f *orchestratorFixture) choose(chatID int64, messageID int, data string) {
	f.orch.HandleQualitySelection(context.Background(), model.InboundCallback{
		ID:        "cb-1",
		ChatID:    chatID,
		MessageID: messageID,
		UserID:    chatID,
		Data:      data,
	})
}

func TestHandleURLIgnoresPlainText(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.sendURL(1, "hello there")

	if len(f.gateway.sent) != 0 || len(f.gateway.edits) != 0 {
		t.Fatalf("plain text produced output: %+v %+v", f.gateway.sent, f.gateway.edits)
	}
}

func TestHandleURLUnsupportedPlatform(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.sendURL(1, "https://vimeo.com/123")

	if len(f.gateway.sent) != 1 || f.gateway.sent[0].text != msgUnsupportedPlatform {
		t.Fatalf("expected unsupported notice, got %+v", f.gateway.sent)
	}
	if f.orch.State(1) != model.StateIdle || f.orch.PendingCount() != 0 {
		t.Errorf("session must stay idle, state=%v pending=%d", f.orch.State(1), f.orch.PendingCount())
	}
	if got := f.usage.Summary().TotalUsers; got != 0 {
		t.Errorf("TotalUsers = %d, want 0", got)
	}
}

func TestHandleURLRendersPromptWithSizes(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.ext.probeFn = func(string) (*model.VideoInfo, error) {
		return &model.VideoInfo{
			Title:          "my_clip",
			EstimatedSizes: map[model.Quality]int64{model.Quality720: 12 * 1024 * 1024},
		}, nil
	}

	f.sendURL(5, "https://youtu.be/abc")

	if len(f.gateway.sent) != 1 || f.gateway.sent[0].text != loadingText(DescribePlatform(model.PlatformYouTube)) {
		t.Fatalf("expected loading placeholder, got %+v", f.gateway.sent)
	}
	edit := f.gateway.lastEdit(t)
	if edit.messageID != f.gateway.sent[0].messageID {
		t.Errorf("prompt edited message %d, want %d", edit.messageID, f.gateway.sent[0].messageID)
	}
	if want := "🔴 *YouTube* terdeteksi!\n\n📝 *my\\_clip*\n\nPilih kualitas video:"; edit.text != want {
		t.Errorf("prompt = %q, want %q", edit.text, want)
	}
	if len(edit.opts.Keyboard) != 1 || len(edit.opts.Keyboard[0]) != 2 {
		t.Fatalf("unexpected keyboard %+v", edit.opts.Keyboard)
	}
	if b := edit.opts.Keyboard[0][0]; b.Text != "📹 720p (~12.0MB)" || b.Data != "quality_720" {
		t.Errorf("720p button = %+v", b)
	}
	if b := edit.opts.Keyboard[0][1]; b.Text != "📹 1080p" || b.Data != "quality_1080" {
		t.Errorf("1080p button = %+v", b)
	}
	if f.orch.State(5) != model.StateAwaitingQualitySelection {
		t.Errorf("State() = %v, want awaiting", f.orch.State(5))
	}
	if got := f.usage.Summary().TotalUsers; got != 1 {
		t.Errorf("TotalUsers = %d, want 1", got)
	}
}

func TestHandleURLProbeFailureStillPrompts(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.ext.probeFn = func(string) (*model.VideoInfo, error) {
		return nil, &ExtractorError{Op: "probe", Err: ErrProbeFailed, Diagnostic: "HTTP Error 403"}
	}

	f.sendURL(5, "https://www.tiktok.com/@u/video/1")

	edit := f.gateway.lastEdit(t)
	if want := "🎵 *TikTok* terdeteksi!\n\nPilih kualitas video:"; edit.text != want {
		t.Errorf("prompt = %q, want %q", edit.text, want)
	}
	row := edit.opts.Keyboard[0]
	if row[0].Text != "📹 720p" || row[1].Text != "📹 1080p" {
		t.Errorf("buttons should carry no sizes: %+v", row)
	}
	if f.orch.State(5) != model.StateAwaitingQualitySelection {
		t.Errorf("State() = %v, want awaiting", f.orch.State(5))
	}
}

func TestSecondURLReplacesPending(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.ext.fetchFn = func(req model.FetchRequest, _ func(int)) (*model.DownloadResult, error) {
		return writeResult(req, 64)
	}

	f.sendURL(9, "https://youtu.be/first")
	f.sendURL(9, "https://x.com/u/status/2")
	if f.orch.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1", f.orch.PendingCount())
	}

	f.choose(9, 55, "quality_1080")

	calls := f.ext.calls()
	if len(calls) != 1 {
		t.Fatalf("fetch called %d times, want 1", len(calls))
	}
	if calls[0].URL != "https://x.com/u/status/2" || calls[0].Platform != model.PlatformTwitter || calls[0].Quality != model.Quality1080 {
		t.Errorf("unexpected fetch request %+v", calls[0])
	}
	if calls[0].DestinationDir != f.dir {
		t.Errorf("DestinationDir = %q, want %q", calls[0].DestinationDir, f.dir)
	}
}

func TestExpiredSelectionNoticeWithoutFetch(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.ext.fetchFn = func(model.FetchRequest, func(int)) (*model.DownloadResult, error) {
		t.Fatal("fetch must not run without a pending selection")
		return nil, nil
	}

	f.choose(3, 77, "quality_720")

	if len(f.gateway.answered) != 1 {
		t.Errorf("callback answered %d times, want 1", len(f.gateway.answered))
	}
	if len(f.gateway.sent) != 1 || f.gateway.sent[0].text != msgSessionExpired {
		t.Fatalf("expected session expired notice, got %+v", f.gateway.sent)
	}
	if f.orch.State(3) != model.StateIdle {
		t.Errorf("State() = %v, want idle", f.orch.State(3))
	}
}

func TestNonQualityCallbackIgnored(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.sendURL(4, "https://instagram.com/reel/x")
	sent := len(f.gateway.sent)

	f.choose(4, 10, "something_else")

	if len(f.gateway.sent) != sent {
		t.Error("non-quality callback produced a message")
	}
	if f.orch.PendingCount() != 1 {
		t.Error("non-quality callback consumed the pending selection")
	}
}

func TestSuccessfulDeliveryRecordsUsage(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	var resultPath string
	f.ext.fetchFn = func(req model.FetchRequest, onProgress func(int)) (*model.DownloadResult, error) {
		onProgress(40)
		res, err := writeResult(req, 1024)
		if res != nil {
			resultPath = res.FilePath
		}
		return res, err
	}

	f.sendURL(11, "https://fb.watch/abc")
	f.choose(11, 200, "quality_720")

	if len(f.gateway.videos) != 1 || f.gateway.videos[0] != resultPath {
		t.Fatalf("video not delivered: %+v", f.gateway.videos)
	}
	if want := "✅ Downloaded (720p) - 1.0 KiB"; f.gateway.captions[0] != want {
		t.Errorf("caption = %q, want %q", f.gateway.captions[0], want)
	}
	if len(f.gateway.deleted) != 1 || f.gateway.deleted[0] != 200 {
		t.Errorf("status message not deleted: %+v", f.gateway.deleted)
	}

	var sawProgress, sawSending bool
	for _, e := range f.gateway.edits {
		if e.text == progressText(model.Quality720, 40) {
			sawProgress = true
		}
		if e.text == sendingText(1024) {
			sawSending = true
		}
	}
	if !sawProgress || !sawSending {
		t.Errorf("missing status edits, progress=%v sending=%v", sawProgress, sawSending)
	}

	sum := f.usage.Summary()
	if sum.TotalDownloads != 1 || sum.Downloads["facebook"] != 1 {
		t.Errorf("usage not recorded: %+v", sum)
	}
	if _, err := os.Stat(resultPath); err != nil {
		t.Errorf("delivered file must be left for the sweep: %v", err)
	}
	if f.orch.State(11) != model.StateIdle {
		t.Errorf("State() = %v, want idle", f.orch.State(11))
	}
}

func TestOversizeResultDeletesFile(t *testing.T) {
	f := newOrchestratorFixture(t, 100)
	var resultPath string
	f.ext.fetchFn = func(req model.FetchRequest, _ func(int)) (*model.DownloadResult, error) {
		res, err := writeResult(req, 200)
		if res != nil {
			resultPath = res.FilePath
		}
		return res, err
	}

	f.sendURL(12, "https://youtu.be/big")
	f.choose(12, 300, "quality_1080")

	if _, err := os.Stat(resultPath); !os.IsNotExist(err) {
		t.Errorf("oversize file still present, stat err = %v", err)
	}
	if len(f.gateway.videos) != 0 {
		t.Error("oversize file was delivered")
	}
	if edit := f.gateway.lastEdit(t); edit.text != tooLargeText(200, 100) {
		t.Errorf("last edit = %q", edit.text)
	}
	if got := f.usage.Summary().TotalDownloads; got != 0 {
		t.Errorf("TotalDownloads = %d, want 0", got)
	}
	if f.orch.State(12) != model.StateIdle {
		t.Errorf("State() = %v, want idle", f.orch.State(12))
	}
}

func TestFetchFailureIsClassified(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.ext.fetchFn = func(model.FetchRequest, func(int)) (*model.DownloadResult, error) {
		return nil, &ExtractorError{Op: "fetch", Err: ErrFetchFailed, Diagnostic: "ERROR: Private video"}
	}

	f.sendURL(13, "https://youtu.be/private")
	f.choose(13, 400, "quality_720")

	if edit := f.gateway.lastEdit(t); edit.text != failureText("Video tidak tersedia atau bersifat private.") {
		t.Errorf("last edit = %q", edit.text)
	}
	if f.orch.State(13) != model.StateIdle {
		t.Errorf("State() = %v, want idle", f.orch.State(13))
	}
}

func TestPanicIsRecovered(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.ext.fetchFn = func(model.FetchRequest, func(int)) (*model.DownloadResult, error) {
		panic("boom")
	}

	f.sendURL(14, "https://youtu.be/x")
	f.choose(14, 500, "quality_720")

	if edit := f.gateway.lastEdit(t); edit.text != failureText(genericFailureReason) {
		t.Errorf("last edit = %q", edit.text)
	}
	if f.orch.State(14) != model.StateIdle {
		t.Errorf("State() = %v, want idle", f.orch.State(14))
	}

	// the chat keeps working afterwards
	f.sendURL(14, "https://youtu.be/y")
	if f.orch.State(14) != model.StateAwaitingQualitySelection {
		t.Errorf("State() = %v, want awaiting", f.orch.State(14))
	}
}

func TestStaleFetchDoesNotOverwriteNewSession(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	started := make(chan struct{})
	release := make(chan struct{})
	f.ext.fetchFn = func(req model.FetchRequest, _ func(int)) (*model.DownloadResult, error) {
		close(started)
		<-release
		return nil, errors.New("Video unavailable")
	}

	f.sendURL(15, "https://youtu.be/old")
	done := make(chan struct{})
	go func() {
		f.choose(15, 600, "quality_720")
		close(done)
	}()

	<-started
	if f.orch.State(15) != model.StateFetching {
		t.Errorf("State() = %v, want fetching", f.orch.State(15))
	}

	f.sendURL(15, "https://youtu.be/new")
	close(release)
	<-done

	if f.orch.State(15) != model.StateAwaitingQualitySelection {
		t.Errorf("State() = %v, want awaiting for the newer link", f.orch.State(15))
	}
	if f.orch.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1", f.orch.PendingCount())
	}
}

func TestFinishedOlderFetchLeavesLaterCycleAlone(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	started := make(chan struct{})
	release := make(chan struct{})
	f.ext.fetchFn = func(req model.FetchRequest, _ func(int)) (*model.DownloadResult, error) {
		if req.URL == "https://youtu.be/a" {
			close(started)
			<-release
			return nil, errors.New("Video unavailable")
		}
		return writeResult(req, 1024)
	}

	f.sendURL(17, "https://youtu.be/a")
	done := make(chan struct{})
	go func() {
		f.choose(17, 700, "quality_720")
		close(done)
	}()
	<-started

	// a second link is delivered while the first is still downloading,
	// leaving the chat idle, then a third link arrives
	f.sendURL(17, "https://youtu.be/b")
	f.choose(17, 701, "quality_720")
	if f.orch.State(17) != model.StateIdle {
		t.Fatalf("State() = %v, want idle after delivery", f.orch.State(17))
	}
	f.sendURL(17, "https://youtu.be/c")

	close(release)
	<-done

	if f.orch.State(17) != model.StateAwaitingQualitySelection {
		t.Errorf("State() = %v, want awaiting for the third link", f.orch.State(17))
	}
	if f.orch.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1", f.orch.PendingCount())
	}
}

func TestRepeatedQualityTapKeepsFetchingState(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	started := make(chan struct{})
	release := make(chan struct{})
	f.ext.fetchFn = func(req model.FetchRequest, _ func(int)) (*model.DownloadResult, error) {
		close(started)
		<-release
		return writeResult(req, 1024)
	}

	f.sendURL(18, "https://youtu.be/x")
	done := make(chan struct{})
	go func() {
		f.choose(18, 800, "quality_720")
		close(done)
	}()
	<-started

	f.choose(18, 800, "quality_720")
	f.gateway.mu.Lock()
	got := f.gateway.sent[len(f.gateway.sent)-1].text
	f.gateway.mu.Unlock()
	if got != msgSessionExpired {
		t.Errorf("second tap answered with %q", got)
	}
	if f.orch.State(18) != model.StateFetching {
		t.Errorf("State() = %v, want fetching while the first tap downloads", f.orch.State(18))
	}

	close(release)
	<-done
	if f.orch.State(18) != model.StateIdle {
		t.Errorf("State() = %v, want idle", f.orch.State(18))
	}
	if len(f.ext.calls()) != 1 {
		t.Errorf("fetch ran %d times, want 1", len(f.ext.calls()))
	}
}

func TestSessionTrackerClaimIsAtomic(t *testing.T) {
	tracker := newSessionTracker(NewPendingStore(time.Hour))

	first, _ := tracker.open(model.PendingSelection{ChatID: 1, URL: "https://youtu.be/x"})
	sel, generation, ok := tracker.claim(1)
	if !ok || sel.URL != "https://youtu.be/x" || generation != first {
		t.Fatalf("claim() = %+v, %d, %v", sel, generation, ok)
	}
	if _, _, ok := tracker.claim(1); ok {
		t.Fatal("second claim() should find nothing")
	}
	if tracker.state(1) != model.StateFetching {
		t.Errorf("state = %v, want fetching", tracker.state(1))
	}

	tracker.transition(1, generation, model.StateIdle)
	second, _ := tracker.open(model.PendingSelection{ChatID: 1, URL: "https://youtu.be/y"})
	if second == first {
		t.Fatalf("generation %d reused after idle", second)
	}
	if tracker.transition(1, first, model.StateIdle) {
		t.Error("old generation changed the new cycle")
	}
	tracker.abandon(1, first)
	if tracker.state(1) != model.StateAwaitingQualitySelection || !tracker.pending.Has(1) {
		t.Error("abandon with an old generation dropped the new cycle")
	}
}

func TestPromptFallsBackToPlainText(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.gateway.editErr = func(opts model.MessageOptions) error {
		if opts.ParseMode != "" {
			return errors.New("Bad Request: can't parse entities")
		}
		return nil
	}
	f.ext.probeFn = func(string) (*model.VideoInfo, error) {
		return &model.VideoInfo{Title: "odd_title*"}, nil
	}

	f.sendURL(19, "https://youtu.be/x")

	edit := f.gateway.lastEdit(t)
	if edit.text != plainPromptText(DescribePlatform(model.PlatformYouTube)) {
		t.Errorf("last edit = %q", edit.text)
	}
	if edit.opts.ParseMode != "" || len(edit.opts.Keyboard) != 1 {
		t.Errorf("fallback options = %+v", edit.opts)
	}
	if f.orch.State(19) != model.StateAwaitingQualitySelection {
		t.Errorf("State() = %v, want awaiting", f.orch.State(19))
	}
}

func TestSendFailureFallsBackToNewMessage(t *testing.T) {
	f := newOrchestratorFixture(t, 1<<20)
	f.gateway.sendErr = errors.New("telegram down")

	f.sendURL(16, "https://youtu.be/x")

	if len(f.gateway.edits) != 0 {
		t.Errorf("edited a message that was never sent: %+v", f.gateway.edits)
	}
	if f.orch.State(16) != model.StateAwaitingQualitySelection {
		t.Errorf("State() = %v, want awaiting", f.orch.State(16))
	}
}
