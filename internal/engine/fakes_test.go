package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/config"
	"github.com/tg-sentinel-go/internal/i18n"
	"github.com/tg-sentinel-go/internal/middleware"
	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/monitors"
	"github.com/tg-sentinel-go/internal/services/chat"
	"github.com/tg-sentinel-go/internal/services/storage"
	"github.com/tg-sentinel-go/internal/worker"
)

type sentMessage struct {
	Target  int64
	Text    string
	ReplyTo int
}

// fakeClient records outbound traffic and replays canned failures.
type fakeClient struct {
	mu sync.Mutex

	sent      []sentMessage
	forwarded []int64
	files     []string

	forwardErr error
	// failReplies makes Send fail whenever replyTo > 0, so the standalone
	// retry path can be exercised.
	failReplies bool

	downloadContent []byte
}

func (f *fakeClient) Forward(ctx context.Context, target int64, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forwardErr != nil {
		return f.forwardErr
	}
	f.forwarded = append(f.forwarded, target)
	return nil
}

func (f *fakeClient) Send(ctx context.Context, target int64, text string, replyTo int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReplies && replyTo > 0 {
		return 0, errors.New("reply rejected")
	}
	f.sent = append(f.sent, sentMessage{Target: target, Text: text, ReplyTo: replyTo})
	return 2000 + len(f.sent), nil
}

func (f *fakeClient) SendFile(ctx context.Context, target int64, path, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, path)
	return nil
}

func (f *fakeClient) DownloadMedia(ctx context.Context, msg *models.Message) (string, error) {
	if f.downloadContent == nil {
		return "", nil
	}
	tmp, err := os.CreateTemp("", "engine-media-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(f.downloadContent); err != nil {
		tmp.Close()
		return "", err
	}
	tmp.Close()
	return tmp.Name(), nil
}

func (f *fakeClient) GetEntity(ctx context.Context, id int64) (*chat.EntityInfo, error) {
	return &chat.EntityInfo{ID: id, Title: "Test Chat"}, nil
}

func (f *fakeClient) Delete(ctx context.Context, target int64, messageID int) error {
	return nil
}

func (f *fakeClient) ClickButton(ctx context.Context, msg *models.Message, row, col int) error {
	return nil
}

func (f *fakeClient) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeClient) forwardedTargets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.forwarded))
	copy(out, f.forwarded)
	return out
}

// fakeAI replays canned answers.
type fakeAI struct {
	configured bool
	judgeResp  string
	replyResp  string
}

func (f *fakeAI) Configured() bool { return f.configured }

func (f *fakeAI) Judge(ctx context.Context, prompt string) (string, error) {
	return f.judgeResp, nil
}

func (f *fakeAI) GenerateReply(ctx context.Context, prompt string) (string, error) {
	return f.replyResp, nil
}

func (f *fakeAI) ChooseButton(ctx context.Context, messageText string, options []string, prompt string) (string, error) {
	return "", nil
}

func (f *fakeAI) JudgeImage(ctx context.Context, prompt, imageBase64 string) (string, error) {
	return "", nil
}

// fakeNotifier records email notifications.
type fakeNotifier struct {
	mu     sync.Mutex
	emails []string
}

func (f *fakeNotifier) SendEmail(subject, markdownBody string, recipients []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, subject)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emails)
}

// harness wires a full dispatch pipeline over fakes and a file store.
type harness struct {
	registry   *Registry
	dispatcher *Dispatcher
	executor   *Executor
	client     *fakeClient
	ai         *fakeAI
	notifier   *fakeNotifier
	pool       *worker.Pool
	store      *storage.FileStore
	logger     *logrus.Logger
}

const testAccount = "acct"

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	metrics := middleware.NewMetrics()

	dir := t.TempDir()
	store := storage.NewFileStore(&config.FileStorage{
		MonitorsPath:  filepath.Join(dir, "monitors.json"),
		ScheduledPath: filepath.Join(dir, "scheduled.json"),
	}, metrics, log)

	client := &fakeClient{}
	aiSvc := &fakeAI{configured: true}
	notifier := &fakeNotifier{}

	localizer, err := i18n.NewLocalizer(&config.I18nConfig{DefaultLanguage: "en"})
	if err != nil {
		t.Fatalf("NewLocalizer() error = %v", err)
	}

	limiter := middleware.NewSendLimiter(&config.RateLimitConfig{Enabled: false}, log)
	pool := worker.NewPool(1, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		pool.Shutdown(ctx)
	})

	registry := NewRegistry(store, aiSvc, log)
	registry.RegisterAccount(&models.Account{ID: testAccount, SelfID: 999, MonitorActive: true}, client)

	forwarder := NewForwarder(log)
	executor := NewExecutor(registry, forwarder, notifier, localizer, "en", aiSvc, limiter, pool, metrics, log)
	dedup := NewDedup(0)
	dispatcher := NewDispatcher(registry, dedup, executor, metrics, log)

	return &harness{
		registry:   registry,
		dispatcher: dispatcher,
		executor:   executor,
		client:     client,
		ai:         aiSvc,
		notifier:   notifier,
		pool:       pool,
		store:      store,
		logger:     log,
	}
}

// addKeyword registers a partial keyword monitor configured by mutate.
func (h *harness) addKeyword(t *testing.T, keyword string, mutate func(*models.KeywordSpec)) monitors.Monitor {
	t.Helper()
	spec := &models.KeywordSpec{Keyword: keyword, MatchKind: models.MatchPartial}
	spec.Active = true
	spec.Normalize()
	if mutate != nil {
		mutate(spec)
	}
	mon, err := monitors.NewKeyword(spec, monitors.Deps{Client: h.client, AI: h.ai, Logger: h.logger})
	if err != nil {
		t.Fatalf("NewKeyword() error = %v", err)
	}
	if err := h.registry.AddMonitor(context.Background(), testAccount, mon); err != nil {
		t.Fatalf("AddMonitor() error = %v", err)
	}
	return mon
}

func inboundMessage(id int, text string) *models.Message {
	return &models.Message{
		ID:     id,
		ChatID: -200,
		Sender: models.Sender{ID: 7, Username: "alice", FirstName: "Alice"},
		Text:   text,
	}
}
