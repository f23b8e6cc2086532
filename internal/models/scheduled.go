package models

import (
	"sync"
	"time"
)

// ScheduleMode selects how a scheduled message's expression is interpreted.
type ScheduleMode string

const (
	ScheduleCron     ScheduleMode = "cron"
	ScheduleInterval ScheduleMode = "interval"
)

// ScheduledMessage is one recurring outbound job. Quota fields mirror
// MonitorConfig's: reaching the limit pauses the job instead of removing it,
// so it stays visible and resumable.
type ScheduledMessage struct {
	JobID     string `json:"job_id"`
	AccountID string `json:"account_id"`
	TargetID  int64  `json:"target_id"`
	Text      string `json:"message"`

	Schedule string       `json:"schedule"`
	Mode     ScheduleMode `json:"schedule_mode,omitempty"`

	RandomDelayMax  int  `json:"random_delay,omitempty"`
	DeleteAfterSend bool `json:"delete_after_send,omitempty"`

	UseAI    bool   `json:"use_ai,omitempty"`
	AIPrompt string `json:"ai_prompt,omitempty"`
	Model    string `json:"ai_model,omitempty"`

	MaxExecutions  *int `json:"max_executions,omitempty"`
	ExecutionCount int  `json:"execution_count"`
	Active         bool `json:"active"`

	CreatedAt time.Time `json:"created_at,omitempty"`

	mu sync.Mutex
}

// IsActive reports whether the job may fire.
func (s *ScheduledMessage) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Active
}

// SetActive pauses or resumes the job.
func (s *ScheduledMessage) SetActive(active bool) {
	s.mu.Lock()
	s.Active = active
	s.mu.Unlock()
}

// LimitReached reports whether the execution quota is exhausted.
func (s *ScheduledMessage) LimitReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limitReachedLocked()
}

func (s *ScheduledMessage) limitReachedLocked() bool {
	return s.MaxExecutions != nil && s.ExecutionCount >= *s.MaxExecutions
}

// IncrementExecution bumps the execution count after a successful send and
// pauses the job when the quota is met. Returns the new count and whether the
// job was paused.
func (s *ScheduledMessage) IncrementExecution() (count int, paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExecutionCount++
	count = s.ExecutionCount
	if s.limitReachedLocked() {
		s.Active = false
		paused = true
	}
	return count, paused
}

// ResetExecutions zeroes the execution count, granting a fresh quota.
func (s *ScheduledMessage) ResetExecutions() {
	s.mu.Lock()
	s.ExecutionCount = 0
	s.mu.Unlock()
}

// Executions returns the current execution count.
func (s *ScheduledMessage) Executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ExecutionCount
}
