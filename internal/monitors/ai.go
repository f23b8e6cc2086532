package monitors

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tg-sentinel-go/internal/models"
)

// AIMonitor delegates the match decision to a language model. The model may
// also produce the reply content in the same round trip.
type AIMonitor struct {
	base
	spec *models.AISpec
}

func NewAI(spec *models.AISpec, deps Deps) *AIMonitor {
	return &AIMonitor{
		base: newBase(models.MonitorAI, &spec.MonitorConfig, deps),
		spec: spec,
	}
}

func (m *AIMonitor) Spec() interface{} { return m.spec }

func (m *AIMonitor) Examine(ctx context.Context, msg *models.Message) (*Match, error) {
	if !m.deps.AI.Configured() {
		m.log.Error("AI service not configured, monitor cannot judge")
		return nil, nil
	}

	resp, err := m.deps.AI.Judge(ctx, m.buildPrompt(msg))
	if err != nil {
		return nil, err
	}
	if resp == "" {
		m.log.Warn("AI returned empty judgment")
		return nil, nil
	}

	matched, reply := parseVerdict(resp)
	if !matched {
		return nil, nil
	}
	if reply == "" {
		reply = resp
	}
	return &Match{MatchedText: m.spec.AIPrompt, AIResponse: reply}, nil
}

// buildPrompt assembles the judgment request. When the monitor replies and no
// fixed texts are configured the model is asked for a structured verdict that
// carries the reply content too, saving a second round trip.
func (m *AIMonitor) buildPrompt(msg *models.Message) string {
	parts := []string{
		fmt.Sprintf("用户提示词: %s", m.spec.AIPrompt),
		"",
		"请根据上述提示词判断以下消息是否符合条件:",
		fmt.Sprintf("消息内容: %s", msg.Text),
	}

	parts = append(parts, fmt.Sprintf("发送者: %s", msg.Sender.FullName()))
	if msg.Sender.Username != "" {
		parts = append(parts, fmt.Sprintf("用户名: @%s", msg.Sender.Username))
	}
	if msg.HasMedia() {
		parts = append(parts, fmt.Sprintf("包含媒体: %s", msg.Media.Type))
		if msg.Media.FileName != "" {
			parts = append(parts, fmt.Sprintf("文件名: %s", msg.Media.FileName))
		}
	}
	if msg.HasButtons() {
		parts = append(parts, fmt.Sprintf("包含按钮: %s", strings.Join(msg.ButtonTexts(), ", ")))
	}
	if msg.IsForwarded {
		parts = append(parts, "这是一条转发消息")
	}

	if m.cfg.ReplyEnabled && len(m.cfg.ReplyTexts) == 0 {
		parts = append(parts,
			"",
			"请按照以下格式回复:",
			"判断: yes/no (是否符合监控条件)",
			"回复: [如果符合条件，请生成一条合适的回复内容；如果不符合，请写'无']",
		)
	} else {
		parts = append(parts,
			"",
			"请仅回答 'yes' 或 'no'，表示是否符合监控条件。",
		)
	}

	return strings.Join(parts, "\n")
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

var (
	positiveVerdicts = []string{"yes", "y", "是", "符合", "匹配", "true", "1", "match"}
	negativeVerdicts = []string{"no", "n", "否", "不符合", "不匹配", "false", "0", "nomatch"}
)

// parseVerdict extracts the match decision, preferring the structured
// "判断:/回复:" form and falling back to keyword sniffing. An answer that
// matches neither vocabulary counts as no match.
func parseVerdict(resp string) (matched bool, reply string) {
	if strings.Contains(resp, "判断:") && strings.Contains(resp, "回复:") {
		verdict := false
		verdictSeen := false
		for _, line := range strings.Split(strings.TrimSpace(resp), "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "判断:") {
				part := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "判断:")))
				verdict = strings.Contains(part, "yes") || strings.Contains(part, "是")
				verdictSeen = true
			} else if strings.HasPrefix(line, "回复:") {
				part := strings.TrimSpace(strings.TrimPrefix(line, "回复:"))
				if part != "" && part != "无" {
					reply = part
				}
			}
		}
		if verdictSeen {
			return verdict, reply
		}
	}

	cleaned := nonWord.ReplaceAllString(strings.ToLower(strings.TrimSpace(resp)), "")
	for _, kw := range positiveVerdicts {
		if strings.Contains(cleaned, kw) {
			return true, ""
		}
	}
	for _, kw := range negativeVerdicts {
		if strings.Contains(cleaned, kw) {
			return false, ""
		}
	}
	return false, ""
}

// ReplyTexts prefers the fixed texts, then the model-generated reply stripped
// of any leftover verdict words.
func (m *AIMonitor) ReplyTexts(match *Match) []string {
	if len(m.cfg.ReplyTexts) > 0 {
		return m.cfg.ReplyTexts
	}
	if match != nil && match.AIResponse != "" {
		if cleaned := cleanVerdictReply(match.AIResponse); cleaned != "" {
			return []string{cleaned}
		}
	}
	return nil
}

var verdictPrefixes = []string{"yes,", "no,", "是,", "否,", "符合,", "不符合,", "匹配,", "不匹配,"}

// cleanVerdictReply removes verdict noise from a model answer so a bare
// "yes" never becomes a reply while "yes, here is the info" keeps its tail.
func cleanVerdictReply(resp string) string {
	resp = strings.TrimSpace(resp)
	lowered := strings.ToLower(resp)

	hasVerdictWord := false
	for _, kw := range []string{"yes", "no", "是", "否", "true", "false"} {
		if strings.Contains(lowered, kw) {
			hasVerdictWord = true
			break
		}
	}
	if !hasVerdictWord {
		return resp
	}

	switch lowered {
	case "yes", "no", "y", "n", "是", "否", "true", "false", "1", "0":
		return ""
	}

	for _, prefix := range verdictPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return strings.TrimSpace(resp[len(prefix):])
		}
	}
	return resp
}
