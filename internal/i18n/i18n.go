package i18n

import (
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/tg-sentinel-go/internal/config"
)

// Localizer manages the translations used for outward-facing text, which for
// this engine means the email notification templates.
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFile(fmt.Sprintf("configs/i18n/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}
	if localizer == nil {
		return messageID
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}

	return msg
}

// Message IDs
const (
	MsgEmailSubject     = "email_subject"
	MsgEmailHeader      = "email_header"
	MsgEmailSender      = "email_sender"
	MsgEmailChat        = "email_chat"
	MsgEmailAccount     = "email_account"
	MsgEmailContent     = "email_content"
	MsgEmailNoText      = "email_no_text"
	MsgEmailAttachment  = "email_attachment"
	MsgEmailButtons     = "email_buttons"
	MsgEmailForwarded   = "email_forwarded"
	MsgEmailMonitors    = "email_monitors"
	MsgEmailExecutions  = "email_executions"
	MsgEmailFooter      = "email_footer"
)
