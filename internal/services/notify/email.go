// Package notify implements the best-effort notification capability. Email
// delivery never blocks message processing and never raises into the caller;
// failures are logged and dropped.
package notify

import (
	"github.com/russross/blackfriday/v2"
	"github.com/sirupsen/logrus"
	gomail "gopkg.in/gomail.v2"

	"github.com/tg-sentinel-go/internal/config"
)

// Notifier is the notification capability.
type Notifier interface {
	// SendEmail renders the markdown body to HTML and delivers it to the
	// recipients, falling back to the configured default list when empty.
	SendEmail(subject, markdownBody string, recipients []string)
}

// EmailNotifier sends via SMTP.
type EmailNotifier struct {
	cfg    *config.EmailConfig
	dialer *gomail.Dialer
	logger *logrus.Logger
}

// NewEmailNotifier builds the notifier. With Enabled false every send is a
// silent no-op.
func NewEmailNotifier(cfg *config.EmailConfig, logger *logrus.Logger) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg, logger: logger}
	if cfg.Enabled {
		n.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.Password)
	}
	return n
}

func (n *EmailNotifier) SendEmail(subject, markdownBody string, recipients []string) {
	if n.dialer == nil {
		return
	}
	if len(recipients) == 0 {
		recipients = n.cfg.To
	}
	if len(recipients) == 0 {
		n.logger.Warn("No email recipients configured, skipping notification")
		return
	}

	html := blackfriday.Run([]byte(markdownBody))

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", string(html))
	m.AddAlternative("text/plain", markdownBody)

	if err := n.dialer.DialAndSend(m); err != nil {
		n.logger.WithError(err).WithField("recipients", recipients).Error("Failed to send email notification")
		return
	}
	n.logger.WithField("recipients", recipients).Debug("Email notification sent")
}
