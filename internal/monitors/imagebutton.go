package monitors

import (
	"context"
	"encoding/base64"
	"os"
	"strings"

	"github.com/tg-sentinel-go/internal/models"
)

// ImageButtonMonitor handles messages that pair an image with inline buttons,
// typically captcha-style prompts. The image and the button options go to a
// vision model and the chosen button gets clicked.
type ImageButtonMonitor struct {
	base
	spec *models.ImageButtonSpec
}

func NewImageButton(spec *models.ImageButtonSpec, deps Deps) *ImageButtonMonitor {
	return &ImageButtonMonitor{
		base: newBase(models.MonitorImageButton, &spec.MonitorConfig, deps),
		spec: spec,
	}
}

func (m *ImageButtonMonitor) Spec() interface{} { return m.spec }

func (m *ImageButtonMonitor) Examine(ctx context.Context, msg *models.Message) (*Match, error) {
	hasImage := messageHasImage(msg)
	hasButtons := msg.HasButtons()
	if !hasImage && !hasButtons {
		return nil, nil
	}

	// Optional prefilter: only messages whose buttons mention one of the
	// configured keywords are candidates.
	if len(m.spec.ButtonKeywords) > 0 && hasButtons {
		if !buttonsMentionAny(msg, m.spec.ButtonKeywords) {
			return nil, nil
		}
	}

	m.log.WithFields(map[string]interface{}{
		"has_image":   hasImage,
		"has_buttons": hasButtons,
	}).Info("Image/button message detected")
	return &Match{}, nil
}

func messageHasImage(msg *models.Message) bool {
	if !msg.HasMedia() {
		return false
	}
	if msg.Media.Type == "photo" {
		return true
	}
	return strings.Contains(msg.Media.MimeType, "image")
}

func buttonsMentionAny(msg *models.Message, keywords []string) bool {
	for _, text := range msg.ButtonTexts() {
		lowered := strings.ToLower(text)
		for _, kw := range keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

func (m *ImageButtonMonitor) Act(ctx context.Context, msg *models.Message) []string {
	if !msg.HasButtons() {
		m.log.Warn("No buttons to act on")
		return nil
	}
	options := msg.ButtonTexts()
	if len(options) == 0 {
		return nil
	}
	if !m.deps.AI.Configured() {
		m.log.Error("AI service not configured, cannot analyze")
		return nil
	}

	imageBase64 := m.downloadImage(ctx, msg)

	var choice string
	var err error
	if imageBase64 != "" {
		prompt := m.spec.AIPrompt + "\n按钮选项:\n" + strings.Join(options, "\n") +
			"\n请回答应该点击的按钮文本，或回答'none'。"
		choice, err = m.deps.AI.JudgeImage(ctx, prompt, imageBase64)
	} else {
		choice, err = m.deps.AI.ChooseButton(ctx, msg.Text, options, m.spec.AIPrompt)
	}
	if err != nil {
		m.log.WithError(err).Error("AI analysis failed")
		return nil
	}
	choice = strings.TrimSpace(choice)
	if choice == "" || strings.EqualFold(choice, "none") {
		m.log.Warn("AI returned no button choice")
		return nil
	}

	if btn := bestButtonMatch(msg, choice); btn != nil {
		if err := m.deps.Client.ClickButton(ctx, msg, btn.Row, btn.Col); err != nil {
			m.log.WithError(err).WithField("button_text", btn.Text).Error("Failed to click button")
			return nil
		}
		m.log.WithField("button_text", btn.Text).Info("Button clicked")
		return []string{"button clicked: " + btn.Text}
	}

	m.log.WithField("ai_answer", choice).Warn("No button matched the AI answer")
	return nil
}

// downloadImage fetches the message image as base64, cleaning up the temp
// file. Empty result means analyze text-only.
func (m *ImageButtonMonitor) downloadImage(ctx context.Context, msg *models.Message) string {
	if !messageHasImage(msg) {
		return ""
	}
	path, err := m.deps.Client.DownloadMedia(ctx, msg)
	if err != nil || path == "" {
		m.log.WithError(err).Error("Failed to download image")
		return ""
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		m.log.WithError(err).Error("Failed to read downloaded image")
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// bestButtonMatch scores buttons against the model's answer: exact text wins
// outright, containment in either direction scores by length ratio, and weak
// matches are rejected.
func bestButtonMatch(msg *models.Message, answer string) *models.Button {
	answerLower := strings.ToLower(strings.TrimSpace(answer))

	var best *models.Button
	bestScore := 0.0

	for i := range msg.Buttons {
		for j := range msg.Buttons[i] {
			btn := &msg.Buttons[i][j]
			text := strings.TrimSpace(btn.Text)
			textLower := strings.ToLower(text)

			if textLower == answerLower {
				return btn
			}
			if strings.Contains(textLower, answerLower) || strings.Contains(answerLower, textLower) {
				shorter := float64(min(len(answerLower), len(textLower)))
				longer := float64(max(len(answerLower), len(textLower)))
				score := shorter / longer * 80
				if score > bestScore {
					best = btn
					bestScore = score
				}
			}
		}
	}

	if bestScore >= 50 {
		return best
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
