package monitors

import (
	"context"

	"github.com/tg-sentinel-go/internal/models"
)

// ButtonMonitor matches messages carrying inline buttons and clicks one. In
// manual mode the button is picked by keyword; in AI mode the model picks it
// during the action phase.
type ButtonMonitor struct {
	base
	spec *models.ButtonSpec
}

func NewButton(spec *models.ButtonSpec, deps Deps) *ButtonMonitor {
	return &ButtonMonitor{
		base: newBase(models.MonitorButton, &spec.MonitorConfig, deps),
		spec: spec,
	}
}

func (m *ButtonMonitor) Spec() interface{} { return m.spec }

func (m *ButtonMonitor) Examine(ctx context.Context, msg *models.Message) (*Match, error) {
	if !msg.HasButtons() {
		return nil, nil
	}

	switch m.spec.Mode {
	case models.ButtonManual:
		if btn := msg.FindButton(m.spec.ButtonKeyword, false); btn != nil {
			return &Match{MatchedText: btn.Text}, nil
		}
		return nil, nil
	case models.ButtonAI:
		// Any message with buttons is a candidate; the model decides which
		// button, if any, in Act.
		return &Match{}, nil
	}
	return nil, nil
}

func (m *ButtonMonitor) Act(ctx context.Context, msg *models.Message) []string {
	switch m.spec.Mode {
	case models.ButtonManual:
		if m.clickByText(ctx, msg, m.spec.ButtonKeyword) {
			return []string{"button clicked (manual)"}
		}
	case models.ButtonAI:
		if !m.deps.AI.Configured() {
			m.log.Error("AI service not configured, cannot pick button")
			return nil
		}
		choice, err := m.deps.AI.ChooseButton(ctx, msg.Text, msg.ButtonTexts(), m.spec.AIPrompt)
		if err != nil {
			m.log.WithError(err).Error("AI button choice failed")
			return nil
		}
		if choice == "" {
			m.log.Warn("AI returned no button choice")
			return nil
		}
		if m.clickByText(ctx, msg, choice) {
			return []string{"button clicked (ai)"}
		}
	}
	return nil
}

func (m *ButtonMonitor) clickByText(ctx context.Context, msg *models.Message, text string) bool {
	btn := msg.FindButton(text, false)
	if btn == nil {
		m.log.WithField("button_text", text).Warn("Button not found")
		return false
	}
	if err := m.deps.Client.ClickButton(ctx, msg, btn.Row, btn.Col); err != nil {
		m.log.WithError(err).WithField("button_text", btn.Text).Error("Failed to click button")
		return false
	}
	m.log.WithFields(map[string]interface{}{
		"button_text": btn.Text,
		"row":         btn.Row,
		"col":         btn.Col,
	}).Info("Button clicked")
	return true
}
