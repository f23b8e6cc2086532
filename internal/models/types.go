package models

import (
	"fmt"
	"strings"
	"time"
)

// Sender identifies the author of an inbound message. For channel posts the
// channel itself is the sender and Title carries the channel name.
type Sender struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Title     string `json:"title,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
	IsChannel bool   `json:"is_channel,omitempty"`
}

// FullName returns the display name used for name-based filtering.
func (s *Sender) FullName() string {
	if s.Title != "" {
		return s.Title
	}
	name := strings.TrimSpace(s.FirstName + " " + s.LastName)
	if name == "" {
		return "unknown"
	}
	return name
}

// Media describes the attachment of a message, if any.
type Media struct {
	Type      string `json:"type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Extension string `json:"extension,omitempty"`
	FileSize  int64  `json:"file_size,omitempty"`
	FileID    string `json:"file_id,omitempty"`
}

// SizeMB returns the attachment size in megabytes.
func (m *Media) SizeMB() float64 {
	return float64(m.FileSize) / (1024 * 1024)
}

// Button is one inline button with its grid position.
type Button struct {
	Text string `json:"text"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Data string `json:"data,omitempty"`
}

// Message is an immutable snapshot of one inbound event.
type Message struct {
	ID                   int        `json:"id"`
	ChatID               int64      `json:"chat_id"`
	Sender               Sender     `json:"sender"`
	Text                 string     `json:"text"`
	Timestamp            time.Time  `json:"timestamp"`
	Media                *Media     `json:"media,omitempty"`
	Buttons              [][]Button `json:"buttons,omitempty"`
	IsForwarded          bool       `json:"is_forwarded,omitempty"`
	ForwardFromChannelID int64      `json:"forward_from_channel_id,omitempty"`
	ReplyToID            int        `json:"reply_to_id,omitempty"`
}

// TextLower returns the lower-cased, trimmed message text.
func (m *Message) TextLower() string {
	return strings.ToLower(strings.TrimSpace(m.Text))
}

// HasMedia reports whether the message carries an attachment.
func (m *Message) HasMedia() bool {
	return m.Media != nil
}

// HasButtons reports whether the message carries at least one button row.
func (m *Message) HasButtons() bool {
	return len(m.Buttons) > 0
}

// ButtonTexts flattens the button grid into a list of texts, row by row.
func (m *Message) ButtonTexts() []string {
	var texts []string
	for _, row := range m.Buttons {
		for _, b := range row {
			texts = append(texts, strings.TrimSpace(b.Text))
		}
	}
	return texts
}

// FindButton returns the first button whose text matches. With exact false the
// search text only needs to be contained in the button text.
func (m *Message) FindButton(text string, exact bool) *Button {
	search := strings.ToLower(text)
	for _, row := range m.Buttons {
		for i := range row {
			bt := strings.ToLower(row[i].Text)
			if exact && bt == search {
				return &row[i]
			}
			if !exact && strings.Contains(bt, search) {
				return &row[i]
			}
		}
	}
	return nil
}

// EventKey is the dedup identity of one inbound message on one account.
func EventKey(accountID string, chatID int64, messageID int) string {
	return fmt.Sprintf("%s_%d_%d", accountID, chatID, messageID)
}

// Account is the identity of one chat session. The live connection handle is
// registered alongside it in the engine registry.
type Account struct {
	ID            string `json:"id"`
	SelfID        int64  `json:"self_id"`
	MonitorActive bool   `json:"monitor_active"`
}
