package monitors

import (
	"context"

	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/rules"
)

// AllMessagesMonitor matches every message, optionally restricted to one chat.
type AllMessagesMonitor struct {
	base
	spec *models.AllMessagesSpec
}

func NewAllMessages(spec *models.AllMessagesSpec, deps Deps) *AllMessagesMonitor {
	return &AllMessagesMonitor{
		base: newBase(models.MonitorAllMessages, &spec.MonitorConfig, deps),
		spec: spec,
	}
}

func (m *AllMessagesMonitor) Spec() interface{} { return m.spec }

func (m *AllMessagesMonitor) Examine(ctx context.Context, msg *models.Message) (*Match, error) {
	if m.spec.ChatID != 0 && !sameChat(m.spec.ChatID, msg.ChatID) {
		return nil, nil
	}
	m.log.WithFields(map[string]interface{}{
		"chat_id":   msg.ChatID,
		"sender_id": msg.Sender.ID,
	}).Debug("Message captured")
	return &Match{}, nil
}

// sameChat compares chat ids across the full and bare channel-id forms.
func sameChat(want, got int64) bool {
	if want == got {
		return true
	}
	return rules.ShortID(want) == got || want == rules.FullChannelID(got)
}
