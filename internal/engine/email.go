package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tg-sentinel-go/internal/i18n"
	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/services/chat"
)

// buildEmailContent renders the notification subject and markdown body for a
// matched message. The chat title is resolved best-effort; a failed lookup
// degrades to the raw chat id.
func buildEmailContent(ctx context.Context, loc *i18n.Localizer, lang string, client chat.Client,
	accountID string, msg *models.Message, matched []MatchedMonitor) (subject, body string) {

	chatInfo := fmt.Sprintf("%d", msg.ChatID)
	if client != nil {
		if entity, err := client.GetEntity(ctx, msg.ChatID); err == nil {
			switch {
			case entity.Title != "":
				chatInfo = fmt.Sprintf("%s (ID: %d)", entity.Title, msg.ChatID)
			case entity.Username != "":
				chatInfo = fmt.Sprintf("@%s (ID: %d)", entity.Username, msg.ChatID)
			}
		}
	}

	sender := msg.Sender.FullName()
	if msg.Sender.Username != "" {
		sender = fmt.Sprintf("%s @%s", sender, msg.Sender.Username)
	}

	subject = loc.Get(lang, i18n.MsgEmailSubject, map[string]interface{}{
		"Count":   len(matched),
		"Account": accountID,
	})

	var lines []string
	lines = append(lines, loc.Get(lang, i18n.MsgEmailHeader, map[string]interface{}{"Count": len(matched)}), "")
	lines = append(lines, loc.Get(lang, i18n.MsgEmailSender, map[string]interface{}{"Sender": sender, "ID": msg.Sender.ID}))
	lines = append(lines, loc.Get(lang, i18n.MsgEmailChat, map[string]interface{}{"Chat": chatInfo}))
	lines = append(lines, loc.Get(lang, i18n.MsgEmailAccount, map[string]interface{}{"Account": accountID}), "")

	lines = append(lines, loc.Get(lang, i18n.MsgEmailContent, nil))
	if msg.Text != "" {
		text := msg.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		lines = append(lines, "> "+strings.ReplaceAll(text, "\n", "\n> "))
	} else {
		lines = append(lines, loc.Get(lang, i18n.MsgEmailNoText, nil))
	}
	lines = append(lines, "")

	if msg.HasMedia() {
		lines = append(lines, loc.Get(lang, i18n.MsgEmailAttachment, map[string]interface{}{
			"Type": msg.Media.Type,
			"Name": msg.Media.FileName,
			"Size": fmt.Sprintf("%.2f", msg.Media.SizeMB()),
		}))
	}
	if msg.HasButtons() {
		lines = append(lines, loc.Get(lang, i18n.MsgEmailButtons, map[string]interface{}{
			"Buttons": strings.Join(msg.ButtonTexts(), ", "),
		}))
	}
	if msg.IsForwarded {
		lines = append(lines, loc.Get(lang, i18n.MsgEmailForwarded, nil))
	}

	lines = append(lines, "", loc.Get(lang, i18n.MsgEmailMonitors, nil))
	for idx, m := range matched {
		desc := describeMonitor(m)
		limit := ""
		if m.Monitor.Base().MaxExecutions != nil {
			limit = fmt.Sprintf("/%d", *m.Monitor.Base().MaxExecutions)
		}
		executions := loc.Get(lang, i18n.MsgEmailExecutions, map[string]interface{}{
			"Count": m.Monitor.Base().Executions(),
			"Limit": limit,
		})
		lines = append(lines, fmt.Sprintf("%d. **%s** %s (%s)", idx+1, m.Monitor.Type(), desc, executions))
	}

	lines = append(lines, "", "---", loc.Get(lang, i18n.MsgEmailFooter, nil))

	return subject, strings.Join(lines, "\n")
}

func describeMonitor(m MatchedMonitor) string {
	if m.Match != nil && m.Match.MatchedText != "" {
		text := m.Match.MatchedText
		if len(text) > 80 {
			text = text[:80] + "..."
		}
		return fmt.Sprintf("`%s`", text)
	}
	return ""
}
