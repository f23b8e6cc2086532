package monitors

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/services/chat"
)

func testDeps(t *testing.T) (Deps, *fakeClient, *fakeAI) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	client := &fakeClient{}
	aiSvc := &fakeAI{configured: true}
	return Deps{Client: client, AI: aiSvc, Logger: log}, client, aiSvc
}

type sentMessage struct {
	Target  int64
	Text    string
	ReplyTo int
}

type clickedButton struct {
	Row int
	Col int
}

// fakeClient records calls and replays canned results.
type fakeClient struct {
	mu sync.Mutex

	sent     []sentMessage
	deleted  []int
	clicks   []clickedButton
	sendErr  error
	clickErr error

	// downloadContent, when set, is written to a temp file whose path
	// DownloadMedia returns.
	downloadContent []byte
	downloadErr     error
	downloadDir     string
}

func (f *fakeClient) Forward(ctx context.Context, target int64, msg *models.Message) error {
	return nil
}

func (f *fakeClient) Send(ctx context.Context, target int64, text string, replyTo int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sent = append(f.sent, sentMessage{Target: target, Text: text, ReplyTo: replyTo})
	return 1000 + len(f.sent), nil
}

func (f *fakeClient) SendFile(ctx context.Context, target int64, path, caption string) error {
	return nil
}

func (f *fakeClient) DownloadMedia(ctx context.Context, msg *models.Message) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	if f.downloadContent == nil {
		return "", nil
	}
	dir := f.downloadDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp, err := os.CreateTemp(dir, "fake-media-*")
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
	return &chat.EntityInfo{ID: id, Title: "chat"}, nil
}

func (f *fakeClient) Delete(ctx context.Context, target int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeClient) ClickButton(ctx context.Context, msg *models.Message, row, col int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicks = append(f.clicks, clickedButton{Row: row, Col: col})
	return nil
}

func (f *fakeClient) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeAI replays canned answers.
type fakeAI struct {
	configured   bool
	judgeResp    string
	judgeErr     error
	replyResp    string
	buttonChoice string
	imageVerdict string
	judgePrompts []string
	imagePrompts []string
}

func (f *fakeAI) Configured() bool { return f.configured }

func (f *fakeAI) Judge(ctx context.Context, prompt string) (string, error) {
	f.judgePrompts = append(f.judgePrompts, prompt)
	return f.judgeResp, f.judgeErr
}

func (f *fakeAI) GenerateReply(ctx context.Context, prompt string) (string, error) {
	return f.replyResp, nil
}

func (f *fakeAI) ChooseButton(ctx context.Context, messageText string, options []string, prompt string) (string, error) {
	return f.buttonChoice, nil
}

func (f *fakeAI) JudgeImage(ctx context.Context, prompt, imageBase64 string) (string, error) {
	f.imagePrompts = append(f.imagePrompts, prompt)
	return f.imageVerdict, nil
}

func textMessage(text string) *models.Message {
	return &models.Message{
		ID:     1,
		ChatID: -100,
		Sender: models.Sender{ID: 7, Username: "sender"},
		Text:   text,
	}
}
