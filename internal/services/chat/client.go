// Package chat defines the chat-client capability the engine consumes and its
// Telegram Bot API implementation.
package chat

import (
	"context"
	"errors"

	"github.com/tg-sentinel-go/internal/models"
)

// ErrForwardRestricted marks a forward rejected by the chat service because
// the source chat forbids forwarding or the media is empty. The executor
// reacts by falling back to download-and-resend; any other error is generic
// failure, logged and abandoned.
var ErrForwardRestricted = errors.New("chat: forward restricted")

// ErrUnsupported marks an operation the underlying transport cannot perform.
var ErrUnsupported = errors.New("chat: operation unsupported by transport")

// EntityInfo is the resolved description of a chat, channel or user.
type EntityInfo struct {
	ID       int64
	Title    string
	Username string
	Type     string
}

// Client is the live-connection capability owned by one account. Timeouts are
// the implementation's responsibility; the engine only cancels via ctx.
type Client interface {
	// Forward relays a message to target. Returns ErrForwardRestricted when
	// the service rejects the forward in a way the enhanced-forward fallback
	// can recover from.
	Forward(ctx context.Context, target int64, msg *models.Message) error
	// Send delivers text to target. replyTo > 0 makes it a reply.
	Send(ctx context.Context, target int64, text string, replyTo int) (messageID int, err error)
	// SendFile uploads a local file to target with an optional caption.
	SendFile(ctx context.Context, target int64, path, caption string) error
	// DownloadMedia fetches the message's attachment into a local temp file
	// and returns its path. An empty path with nil error means no media.
	DownloadMedia(ctx context.Context, msg *models.Message) (string, error)
	// GetEntity resolves a chat/channel/user id.
	GetEntity(ctx context.Context, id int64) (*EntityInfo, error)
	// Delete removes a previously sent message.
	Delete(ctx context.Context, target int64, messageID int) error
	// ClickButton presses an inline button on a message.
	ClickButton(ctx context.Context, msg *models.Message, row, col int) error
}
