package monitors

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/tg-sentinel-go/internal/models"
)

// KeywordMonitor matches message text against a keyword with exact, partial
// or regex semantics.
type KeywordMonitor struct {
	base
	spec    *models.KeywordSpec
	lower   string
	pattern *regexp.Regexp
}

func NewKeyword(spec *models.KeywordSpec, deps Deps) (*KeywordMonitor, error) {
	m := &KeywordMonitor{
		base:  newBase(models.MonitorKeyword, &spec.MonitorConfig, deps),
		spec:  spec,
		lower: strings.ToLower(spec.Keyword),
	}
	if spec.MatchKind == models.MatchRegex {
		pattern, err := regexp.Compile("(?i)" + spec.Keyword)
		if err != nil {
			return nil, err
		}
		m.pattern = pattern
	}
	return m, nil
}

func (m *KeywordMonitor) Spec() interface{} { return m.spec }

func (m *KeywordMonitor) Examine(ctx context.Context, msg *models.Message) (*Match, error) {
	if msg.Text == "" {
		return nil, nil
	}

	switch m.spec.MatchKind {
	case models.MatchExact:
		if msg.TextLower() == m.lower {
			return &Match{MatchedText: m.spec.Keyword}, nil
		}
	case models.MatchPartial:
		if strings.Contains(msg.TextLower(), m.lower) {
			return &Match{MatchedText: m.spec.Keyword}, nil
		}
	case models.MatchRegex:
		if found := m.pattern.FindString(msg.Text); found != "" {
			return &Match{MatchedText: found}, nil
		}
	}
	return nil, nil
}

// Act forwards regex captures to the configured target chat, with an optional
// random pre-send delay and optional cleanup of the sent message.
func (m *KeywordMonitor) Act(ctx context.Context, msg *models.Message) []string {
	if m.spec.MatchKind != models.MatchRegex || m.spec.RegexSendTargetID == 0 {
		return nil
	}

	if m.spec.RegexSendRandomOffset > 0 {
		delay := time.Duration(rand.Float64() * float64(m.spec.RegexSendRandomOffset) * float64(time.Second))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}

	captures := m.pattern.FindAllString(msg.Text, -1)
	if len(captures) == 0 {
		return nil
	}

	text := strings.Join(captures, "\n")
	sentID, err := m.deps.Client.Send(ctx, m.spec.RegexSendTargetID, text, 0)
	if err != nil {
		m.log.WithError(err).Error("Failed to send regex captures")
		return nil
	}
	m.log.WithField("target_id", m.spec.RegexSendTargetID).Info("Sent regex captures")

	if m.spec.RegexSendDelete {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			if err := m.deps.Client.Delete(ctx, m.spec.RegexSendTargetID, sentID); err != nil {
				m.log.WithError(err).Warn("Failed to delete sent captures")
			}
		}
	}

	return []string{"regex captures sent"}
}

// ReplyTexts falls back to the matched keyword itself when no fixed texts are
// configured.
func (m *KeywordMonitor) ReplyTexts(match *Match) []string {
	if m.cfg.ReplyContentSource == models.ReplyContentAI && m.cfg.AIReplyPrompt != "" {
		return nil
	}
	if len(m.cfg.ReplyTexts) > 0 {
		return m.cfg.ReplyTexts
	}
	if match != nil && match.MatchedText != "" {
		return []string{match.MatchedText}
	}
	return nil
}
