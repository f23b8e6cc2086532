package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/models"
)

// TelegramClient adapts a Bot API connection to the Client capability.
type TelegramClient struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	entities   *cache.Cache
	tempDir    string
	logger     *logrus.Logger
}

// NewTelegramClient wraps an authorized bot. Entity lookups are cached for
// ten minutes to keep scope checks off the network.
func NewTelegramClient(bot *tgbotapi.BotAPI, tempDir string, logger *logrus.Logger) *TelegramClient {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &TelegramClient{
		bot:        bot,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		entities:   cache.New(10*time.Minute, 30*time.Minute),
		tempDir:    tempDir,
		logger:     logger,
	}
}

// SelfID returns the bot's own user id, used for the self-sender filter.
func (c *TelegramClient) SelfID() int64 {
	return c.bot.Self.ID
}

func (c *TelegramClient) Forward(ctx context.Context, target int64, msg *models.Message) error {
	fwd := tgbotapi.NewForward(target, msg.ChatID, msg.ID)
	if _, err := c.bot.Send(fwd); err != nil {
		if isForwardRestricted(err) {
			return fmt.Errorf("%w: %v", ErrForwardRestricted, err)
		}
		return fmt.Errorf("forward to %d: %w", target, err)
	}
	return nil
}

// isForwardRestricted classifies Bot API errors that the enhanced-forward
// fallback can recover from.
func isForwardRestricted(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "forward") && strings.Contains(s, "restrict") ||
		strings.Contains(s, "message_id_invalid") ||
		strings.Contains(s, "media_empty") ||
		strings.Contains(s, "message can't be forwarded")
}

func (c *TelegramClient) Send(ctx context.Context, target int64, text string, replyTo int) (int, error) {
	m := tgbotapi.NewMessage(target, text)
	if replyTo > 0 {
		m.ReplyToMessageID = replyTo
	}
	sent, err := c.bot.Send(m)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", target, err)
	}
	return sent.MessageID, nil
}

func (c *TelegramClient) SendFile(ctx context.Context, target int64, path, caption string) error {
	doc := tgbotapi.NewDocument(target, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := c.bot.Send(doc); err != nil {
		return fmt.Errorf("send file to %d: %w", target, err)
	}
	return nil
}

func (c *TelegramClient) DownloadMedia(ctx context.Context, msg *models.Message) (string, error) {
	if msg.Media == nil || msg.Media.FileID == "" {
		return "", nil
	}

	url, err := c.bot.GetFileDirectURL(msg.Media.FileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download media: unexpected status %s", resp.Status)
	}

	name := msg.Media.FileName
	if name == "" {
		name = fmt.Sprintf("file_%d%s", msg.ID, msg.Media.Extension)
	}
	if err := os.MkdirAll(c.tempDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(c.tempDir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write media: %w", err)
	}
	return path, nil
}

func (c *TelegramClient) GetEntity(ctx context.Context, id int64) (*EntityInfo, error) {
	key := fmt.Sprintf("%d", id)
	if v, ok := c.entities.Get(key); ok {
		return v.(*EntityInfo), nil
	}

	chatInfo, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: id},
	})
	if err != nil {
		return nil, fmt.Errorf("get entity %d: %w", id, err)
	}

	info := &EntityInfo{
		ID:       chatInfo.ID,
		Title:    chatInfo.Title,
		Username: chatInfo.UserName,
		Type:     chatInfo.Type,
	}
	c.entities.SetDefault(key, info)
	return info, nil
}

func (c *TelegramClient) Delete(ctx context.Context, target int64, messageID int) error {
	if _, err := c.bot.Request(tgbotapi.NewDeleteMessage(target, messageID)); err != nil {
		return fmt.Errorf("delete message %d in %d: %w", messageID, target, err)
	}
	return nil
}

// ClickButton is a userbot capability: a Bot API connection cannot press
// buttons on another bot's messages, so this transport reports it as
// unsupported and the monitor logs and moves on.
func (c *TelegramClient) ClickButton(ctx context.Context, msg *models.Message, row, col int) error {
	return ErrUnsupported
}

// MessageFromUpdate converts an incoming Bot API update into the engine's
// message snapshot.
func MessageFromUpdate(update *tgbotapi.Update) *models.Message {
	tm := update.Message
	if tm == nil {
		tm = update.ChannelPost
	}
	if tm == nil {
		return nil
	}

	msg := &models.Message{
		ID:        tm.MessageID,
		ChatID:    tm.Chat.ID,
		Text:      tm.Text,
		Timestamp: tm.Time(),
	}
	if msg.Text == "" {
		msg.Text = tm.Caption
	}

	if tm.From != nil {
		msg.Sender = models.Sender{
			ID:        tm.From.ID,
			Username:  tm.From.UserName,
			FirstName: tm.From.FirstName,
			LastName:  tm.From.LastName,
			IsBot:     tm.From.IsBot,
		}
	} else if tm.SenderChat != nil {
		msg.Sender = models.Sender{
			ID:        tm.SenderChat.ID,
			Username:  tm.SenderChat.UserName,
			Title:     tm.SenderChat.Title,
			IsChannel: tm.SenderChat.Type == "channel",
		}
	}

	if tm.ReplyToMessage != nil {
		msg.ReplyToID = tm.ReplyToMessage.MessageID
	}
	if tm.ForwardFromChat != nil {
		msg.IsForwarded = true
		msg.ForwardFromChannelID = tm.ForwardFromChat.ID
	} else if tm.ForwardFrom != nil || tm.ForwardDate != 0 {
		msg.IsForwarded = true
	}

	msg.Media = mediaFromMessage(tm)

	if tm.ReplyMarkup != nil {
		for r, row := range tm.ReplyMarkup.InlineKeyboard {
			var buttons []models.Button
			for col, b := range row {
				btn := models.Button{Text: b.Text, Row: r, Col: col}
				if b.CallbackData != nil {
					btn.Data = *b.CallbackData
				}
				buttons = append(buttons, btn)
			}
			msg.Buttons = append(msg.Buttons, buttons)
		}
	}

	return msg
}

func mediaFromMessage(tm *tgbotapi.Message) *models.Media {
	switch {
	case tm.Document != nil:
		m := &models.Media{
			Type:     "document",
			FileName: tm.Document.FileName,
			MimeType: tm.Document.MimeType,
			FileSize: int64(tm.Document.FileSize),
			FileID:   tm.Document.FileID,
		}
		if ext := filepath.Ext(tm.Document.FileName); ext != "" {
			m.Extension = strings.ToLower(ext)
		}
		return m
	case len(tm.Photo) > 0:
		best := tm.Photo[len(tm.Photo)-1]
		return &models.Media{
			Type:      "photo",
			MimeType:  "image/jpeg",
			Extension: ".jpg",
			FileSize:  int64(best.FileSize),
			FileID:    best.FileID,
		}
	case tm.Video != nil:
		return &models.Media{
			Type:     "video",
			FileName: tm.Video.FileName,
			MimeType: tm.Video.MimeType,
			FileSize: int64(tm.Video.FileSize),
			FileID:   tm.Video.FileID,
		}
	case tm.Audio != nil:
		return &models.Media{
			Type:     "audio",
			FileName: tm.Audio.FileName,
			MimeType: tm.Audio.MimeType,
			FileSize: int64(tm.Audio.FileSize),
			FileID:   tm.Audio.FileID,
		}
	case tm.Voice != nil:
		return &models.Media{
			Type:      "audio",
			MimeType:  tm.Voice.MimeType,
			Extension: ".ogg",
			FileSize:  int64(tm.Voice.FileSize),
			FileID:    tm.Voice.FileID,
		}
	}
	return nil
}
