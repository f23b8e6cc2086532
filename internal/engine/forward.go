package engine

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/services/chat"
)

// Forwarder relays matched messages to target chats. In enhanced mode a
// restricted forward falls back to downloading the media and re-uploading it,
// or resending the text for text-only messages.
type Forwarder struct {
	logger *logrus.Logger
}

func NewForwarder(logger *logrus.Logger) *Forwarder {
	return &Forwarder{logger: logger}
}

// Forward relays msg to every target, one result per target. Failures are
// logged and never abort the remaining targets.
func (f *Forwarder) Forward(ctx context.Context, client chat.Client, msg *models.Message, targets []int64, enhanced bool, maxDownloadMB float64) map[int64]bool {
	results := make(map[int64]bool, len(targets))
	for _, target := range targets {
		if enhanced {
			results[target] = f.forwardEnhanced(ctx, client, msg, target, maxDownloadMB)
		} else {
			err := client.Forward(ctx, target, msg)
			if err != nil {
				f.logger.WithError(err).WithField("target_id", target).Error("Forward failed")
			}
			results[target] = err == nil
		}
	}
	return results
}

func (f *Forwarder) forwardEnhanced(ctx context.Context, client chat.Client, msg *models.Message, target int64, maxDownloadMB float64) bool {
	err := client.Forward(ctx, target, msg)
	if err == nil {
		f.logger.WithField("target_id", target).Info("Direct forward succeeded")
		return true
	}
	if !errors.Is(err, chat.ErrForwardRestricted) {
		f.logger.WithError(err).WithField("target_id", target).Error("Direct forward failed")
		return false
	}

	f.logger.WithField("target_id", target).Info("Forward restricted, falling back to resend")
	return f.downloadAndResend(ctx, client, msg, target, maxDownloadMB)
}

func (f *Forwarder) downloadAndResend(ctx context.Context, client chat.Client, msg *models.Message, target int64, maxDownloadMB float64) bool {
	if !msg.HasMedia() {
		if msg.Text == "" {
			return false
		}
		if _, err := client.Send(ctx, target, msg.Text, 0); err != nil {
			f.logger.WithError(err).WithField("target_id", target).Error("Text resend failed")
			return false
		}
		return true
	}

	if maxDownloadMB > 0 && msg.Media.SizeMB() > maxDownloadMB {
		f.logger.WithFields(logrus.Fields{
			"size_mb": msg.Media.SizeMB(),
			"cap_mb":  maxDownloadMB,
		}).Warn("Media exceeds download cap, not resending")
		return false
	}

	path, err := client.DownloadMedia(ctx, msg)
	if err != nil || path == "" {
		f.logger.WithError(err).Error("Media download failed")
		return false
	}
	defer os.Remove(path)

	if err := client.SendFile(ctx, target, path, msg.Text); err != nil {
		f.logger.WithError(err).WithField("target_id", target).Error("Media resend failed")
		return false
	}
	f.logger.WithField("target_id", target).Info("Media resent after restricted forward")
	return true
}
