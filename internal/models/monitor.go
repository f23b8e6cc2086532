package models

import "sync"

// MonitorType enumerates the closed set of monitor variants.
type MonitorType string

const (
	MonitorKeyword     MonitorType = "keyword"
	MonitorFile        MonitorType = "file"
	MonitorButton      MonitorType = "button"
	MonitorAllMessages MonitorType = "all_messages"
	MonitorAI          MonitorType = "ai"
	MonitorImageButton MonitorType = "image_button"
)

// MatchKind selects how a keyword monitor compares text.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchPartial MatchKind = "partial"
	MatchRegex   MatchKind = "regex"
)

// ButtonMode selects how a button monitor picks the button to click.
type ButtonMode string

const (
	ButtonManual ButtonMode = "manual"
	ButtonAI     ButtonMode = "ai"
)

// ReplyMode selects between replying to the triggering message and sending a
// standalone message into the chat.
type ReplyMode string

const (
	ReplyToMessage ReplyMode = "reply"
	ReplySend      ReplyMode = "send"
)

// ReplyContentSource selects where the reply text comes from.
type ReplyContentSource string

const (
	ReplyContentCustom ReplyContentSource = "custom"
	ReplyContentAI     ReplyContentSource = "ai"
)

// ExecutionMode is the policy for handling multiple simultaneous matches on
// one message.
type ExecutionMode string

const (
	ExecModeMerge      ExecutionMode = "merge"
	ExecModeFirstMatch ExecutionMode = "first_match"
	ExecModeAll        ExecutionMode = "all"
)

// UserMatchBy selects the single dimension used for the user scope list.
type UserMatchBy string

const (
	UserByID          UserMatchBy = "id"
	UserByUsername    UserMatchBy = "username"
	UserByDisplayName UserMatchBy = "display_name"
)

const DefaultPriority = 50

// MonitorConfig is the base configuration shared by every monitor variant.
// Quota state is guarded by an internal mutex: the dispatch engine may process
// messages for the same account concurrently.
type MonitorConfig struct {
	Chats       []int64     `json:"chats,omitempty"`
	Users       []string    `json:"users,omitempty"`
	UserMatchBy UserMatchBy `json:"user_match_by,omitempty"`

	BotIDs     []int64 `json:"bot_ids,omitempty"`
	ChannelIDs []int64 `json:"channel_ids,omitempty"`
	GroupIDs   []int64 `json:"group_ids,omitempty"`

	BlockedUsers    []int64 `json:"blocked_users,omitempty"`
	BlockedChannels []int64 `json:"blocked_channels,omitempty"`
	BlockedBots     []int64 `json:"blocked_bots,omitempty"`

	EmailNotify       bool    `json:"email_notify,omitempty"`
	AutoForward       bool    `json:"auto_forward,omitempty"`
	ForwardTargets    []int64 `json:"forward_targets,omitempty"`
	EnhancedForward   bool    `json:"enhanced_forward,omitempty"`
	MaxDownloadSizeMB float64 `json:"max_download_size_mb,omitempty"`
	DownloadFolder    string  `json:"download_folder,omitempty"`
	LogFile           string  `json:"log_file,omitempty"`

	ReplyEnabled       bool               `json:"reply_enabled,omitempty"`
	ReplyTexts         []string           `json:"reply_texts,omitempty"`
	ReplyDelayMin      float64            `json:"reply_delay_min,omitempty"`
	ReplyDelayMax      float64            `json:"reply_delay_max,omitempty"`
	ReplyMode          ReplyMode          `json:"reply_mode,omitempty"`
	ReplyContentSource ReplyContentSource `json:"reply_content_source,omitempty"`
	AIReplyPrompt      string             `json:"ai_reply_prompt,omitempty"`

	Priority       int           `json:"priority"`
	ExecutionMode  ExecutionMode `json:"execution_mode,omitempty"`
	MaxExecutions  *int          `json:"max_executions,omitempty"`
	ExecutionCount int           `json:"execution_count"`
	Active         bool          `json:"active"`

	mu sync.Mutex
}

// Normalize fills zero values with their defaults after loading from storage.
func (c *MonitorConfig) Normalize() {
	if c.Priority == 0 {
		c.Priority = DefaultPriority
	}
	if c.ExecutionMode == "" {
		c.ExecutionMode = ExecModeMerge
	}
	if c.ReplyMode == "" {
		c.ReplyMode = ReplyToMessage
	}
	if c.ReplyContentSource == "" {
		c.ReplyContentSource = ReplyContentCustom
	}
	if c.DownloadFolder == "" {
		c.DownloadFolder = "downloads"
	}
}

// IsActive reports whether the monitor is currently enabled.
func (c *MonitorConfig) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Active
}

// SetActive enables or disables the monitor.
func (c *MonitorConfig) SetActive(active bool) {
	c.mu.Lock()
	c.Active = active
	c.mu.Unlock()
}

// LimitReached reports whether the execution quota is exhausted.
func (c *MonitorConfig) LimitReached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limitReachedLocked()
}

func (c *MonitorConfig) limitReachedLocked() bool {
	return c.MaxExecutions != nil && c.ExecutionCount >= *c.MaxExecutions
}

// IncrementExecution bumps the execution count. When the count reaches the
// quota the monitor is paused and the counter reset, so reactivating it grants
// a fresh quota. Returns the new count and whether the pause happened.
func (c *MonitorConfig) IncrementExecution() (count int, paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ExecutionCount++
	count = c.ExecutionCount
	if c.limitReachedLocked() {
		c.Active = false
		c.ExecutionCount = 0
		paused = true
	}
	return count, paused
}

// Executions returns the current execution count.
func (c *MonitorConfig) Executions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ExecutionCount
}

// KeywordSpec configures a keyword monitor.
type KeywordSpec struct {
	MonitorConfig
	Keyword   string    `json:"keyword"`
	MatchKind MatchKind `json:"match_type"`

	// Regex capture forwarding: send the matched substrings to a target chat.
	RegexSendTargetID     int64 `json:"regex_send_target_id,omitempty"`
	RegexSendRandomOffset int   `json:"regex_send_random_offset,omitempty"`
	RegexSendDelete       bool  `json:"regex_send_delete,omitempty"`
}

// FileSpec configures a file monitor.
type FileSpec struct {
	MonitorConfig
	Extension  string   `json:"file_extension"`
	SaveFolder string   `json:"save_folder,omitempty"`
	MinSizeMB  *float64 `json:"min_size,omitempty"`
	MaxSizeMB  *float64 `json:"max_size,omitempty"`
}

// SizeValid reports whether a file size in MB falls within the optional bounds.
func (s *FileSpec) SizeValid(sizeMB float64) bool {
	if s.MinSizeMB != nil && sizeMB < *s.MinSizeMB {
		return false
	}
	if s.MaxSizeMB != nil && sizeMB > *s.MaxSizeMB {
		return false
	}
	return true
}

// ButtonSpec configures a button monitor.
type ButtonSpec struct {
	MonitorConfig
	ButtonKeyword string     `json:"button_keyword,omitempty"`
	Mode          ButtonMode `json:"mode"`
	AIPrompt      string     `json:"ai_prompt,omitempty"`
}

// AllMessagesSpec configures an all-messages monitor. ChatID zero means every
// chat the account sees.
type AllMessagesSpec struct {
	MonitorConfig
	ChatID int64 `json:"chat_id,omitempty"`
}

// AISpec configures an AI-judged monitor.
type AISpec struct {
	MonitorConfig
	AIPrompt            string  `json:"ai_prompt"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	Model               string  `json:"ai_model,omitempty"`
}

// ImageButtonSpec configures a vision-assisted button monitor.
type ImageButtonSpec struct {
	MonitorConfig
	AIPrompt            string   `json:"ai_prompt,omitempty"`
	ButtonKeywords      []string `json:"button_keywords,omitempty"`
	DownloadImages      bool     `json:"download_images,omitempty"`
	ConfidenceThreshold float64  `json:"confidence_threshold,omitempty"`
}
