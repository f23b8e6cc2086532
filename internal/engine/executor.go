package engine

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/i18n"
	"github.com/tg-sentinel-go/internal/middleware"
	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/monitors"
	"github.com/tg-sentinel-go/internal/services/ai"
	"github.com/tg-sentinel-go/internal/services/notify"
	"github.com/tg-sentinel-go/internal/worker"
)

// ActionSet is the flattened set of common actions to run for one message.
// In merge mode the sets of several monitors fold into one; in first_match
// and all modes it holds a single monitor's actions.
type ActionSet struct {
	EmailNotify       bool
	ForwardTargets    map[int64]struct{}
	EnhancedForward   bool
	MaxDownloadSizeMB float64
	LogFiles          map[string]struct{}

	ReplyEnabled       bool
	ReplyTexts         []string
	ReplyDelayMin      float64
	ReplyDelayMax      float64
	ReplyMode          models.ReplyMode
	ReplyContentSource models.ReplyContentSource
	AIReplyPrompt      string
}

func newActionSet() *ActionSet {
	return &ActionSet{
		ForwardTargets: make(map[int64]struct{}),
		LogFiles:       make(map[string]struct{}),
		ReplyMode:      models.ReplyToMessage,
	}
}

// merge folds one matched monitor's actions into the set. Boolean actions OR
// together, target and log-file sets union, and the reply slot goes to the
// first monitor that wants one. Priority order is the caller's concern.
func (s *ActionSet) merge(mon monitors.Monitor, match *monitors.Match) {
	cfg := mon.Base()

	if cfg.EmailNotify {
		s.EmailNotify = true
	}
	if cfg.AutoForward && len(cfg.ForwardTargets) > 0 {
		for _, t := range cfg.ForwardTargets {
			s.ForwardTargets[t] = struct{}{}
		}
		if cfg.EnhancedForward {
			s.EnhancedForward = true
			if cfg.MaxDownloadSizeMB > s.MaxDownloadSizeMB {
				s.MaxDownloadSizeMB = cfg.MaxDownloadSizeMB
			}
		}
	}
	if cfg.LogFile != "" {
		s.LogFiles[cfg.LogFile] = struct{}{}
	}

	if !s.ReplyEnabled && cfg.ReplyEnabled {
		s.ReplyEnabled = true
		s.ReplyContentSource = cfg.ReplyContentSource
		s.AIReplyPrompt = cfg.AIReplyPrompt
		s.ReplyTexts = mon.ReplyTexts(match)
		// A monitor with no texts but an AI prompt wants a generated reply.
		if len(s.ReplyTexts) == 0 && cfg.AIReplyPrompt != "" {
			s.ReplyContentSource = models.ReplyContentAI
		}
		s.ReplyDelayMin = cfg.ReplyDelayMin
		s.ReplyDelayMax = cfg.ReplyDelayMax
		if cfg.ReplyMode != "" {
			s.ReplyMode = cfg.ReplyMode
		}
	}
}

// collect builds a single monitor's action set.
func collect(mon monitors.Monitor, match *monitors.Match) *ActionSet {
	s := newActionSet()
	s.merge(mon, match)
	return s
}

// MatchedMonitor pairs a matched monitor with what it found.
type MatchedMonitor struct {
	Monitor  monitors.Monitor
	Match    *monitors.Match
	Priority int
}

// Executor runs the common actions of matched monitors and settles their
// execution quotas.
type Executor struct {
	registry  *Registry
	forwarder *Forwarder
	notifier  notify.Notifier
	localizer *i18n.Localizer
	lang      string
	ai        ai.Service
	limiter   middleware.SendLimiter
	pool      *worker.Pool
	metrics   *middleware.Metrics
	logger    *logrus.Logger
}

func NewExecutor(registry *Registry, forwarder *Forwarder, notifier notify.Notifier,
	localizer *i18n.Localizer, lang string, aiSvc ai.Service, limiter middleware.SendLimiter,
	pool *worker.Pool, metrics *middleware.Metrics, logger *logrus.Logger) *Executor {
	return &Executor{
		registry:  registry,
		forwarder: forwarder,
		notifier:  notifier,
		localizer: localizer,
		lang:      lang,
		ai:        aiSvc,
		limiter:   limiter,
		pool:      pool,
		metrics:   metrics,
		logger:    logger,
	}
}

// Execute runs the action set, then bumps the quota of every matched monitor.
// Action failures are logged per action; the quota settlement always runs.
func (e *Executor) Execute(ctx context.Context, accountID string, msg *models.Message, set *ActionSet, matched []MatchedMonitor) {
	if set.EmailNotify {
		e.sendEmail(ctx, accountID, msg, matched)
	}

	if len(set.ForwardTargets) > 0 {
		e.forward(ctx, accountID, msg, set)
	}

	for logFile := range set.LogFiles {
		e.appendLog(logFile, msg)
	}

	if set.ReplyEnabled {
		e.reply(ctx, accountID, msg, set)
	}

	e.settleQuotas(ctx, accountID, matched)
}

// sendEmail builds the notification and hands delivery to the worker pool so
// SMTP latency never blocks dispatch.
func (e *Executor) sendEmail(ctx context.Context, accountID string, msg *models.Message, matched []MatchedMonitor) {
	client := e.registry.Client(accountID)
	subject, body := buildEmailContent(ctx, e.localizer, e.lang, client, accountID, msg, matched)

	e.pool.Submit(func() {
		e.notifier.SendEmail(subject, body, nil)
	})
	e.metrics.RecordActionExecuted("email", "queued")
}

func (e *Executor) forward(ctx context.Context, accountID string, msg *models.Message, set *ActionSet) {
	// Never forward back into the chat the message came from.
	targets := make([]int64, 0, len(set.ForwardTargets))
	for t := range set.ForwardTargets {
		if t != msg.ChatID {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return
	}

	client := e.registry.Client(accountID)
	if client == nil {
		e.logger.WithField("account_id", accountID).Error("No client for account, cannot forward")
		return
	}

	results := e.forwarder.Forward(ctx, client, msg, targets, set.EnhancedForward, set.MaxDownloadSizeMB)
	for target, ok := range results {
		status := "ok"
		if !ok {
			status = "error"
		}
		e.metrics.RecordActionExecuted("forward", status)
		e.logger.WithFields(logrus.Fields{
			"target_id": target,
			"status":    status,
		}).Info("Forward finished")
	}
}

func (e *Executor) appendLog(path string, msg *models.Message) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		e.logger.WithError(err).WithField("log_file", path).Error("Failed to open monitor log file")
		return
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s\n", msg.Timestamp.Format(time.RFC3339), msg.Text)
	if _, err := f.WriteString(line); err != nil {
		e.logger.WithError(err).WithField("log_file", path).Error("Failed to append monitor log line")
	}
}

func (e *Executor) reply(ctx context.Context, accountID string, msg *models.Message, set *ActionSet) {
	delay := set.ReplyDelayMin
	if set.ReplyDelayMax > set.ReplyDelayMin {
		delay = set.ReplyDelayMin + rand.Float64()*(set.ReplyDelayMax-set.ReplyDelayMin)
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(delay * float64(time.Second))):
		}
	}

	text := e.replyText(ctx, msg, set)
	if text == "" {
		e.logger.Debug("No reply content available, skipping reply")
		return
	}

	client := e.registry.Client(accountID)
	if client == nil {
		return
	}

	if err := e.limiter.Wait(ctx, accountID); err != nil {
		return
	}

	replyTo := 0
	if set.ReplyMode == models.ReplyToMessage {
		replyTo = msg.ID
	}

	_, err := client.Send(ctx, msg.ChatID, text, replyTo)
	if err != nil && replyTo > 0 {
		// The original message may be gone; retry once as a standalone send.
		e.logger.WithError(err).Warn("Reply failed, retrying as standalone send")
		_, err = client.Send(ctx, msg.ChatID, text, 0)
	}

	if err != nil {
		e.metrics.RecordActionExecuted("reply", "error")
		e.logger.WithError(err).WithField("chat_id", msg.ChatID).Error("Reply failed")
		return
	}
	e.metrics.RecordActionExecuted("reply", "ok")
	e.logger.WithFields(logrus.Fields{
		"chat_id":    msg.ChatID,
		"delay_s":    delay,
		"standalone": set.ReplyMode == models.ReplySend,
	}).Info("Reply sent")
}

// replyText resolves the reply body: AI generation when configured, otherwise
// a random pick from the candidate texts. Empty means skip the reply.
func (e *Executor) replyText(ctx context.Context, msg *models.Message, set *ActionSet) string {
	if set.ReplyContentSource == models.ReplyContentAI && set.AIReplyPrompt != "" {
		if !e.ai.Configured() {
			e.logger.Warn("AI service not configured, skipping AI reply")
			return ""
		}
		body := msg.Text
		if body == "" {
			body = "(non-text message)"
		}
		resp, err := e.ai.GenerateReply(ctx, fmt.Sprintf("%s\n\n原始消息: %s", set.AIReplyPrompt, body))
		if err != nil {
			e.logger.WithError(err).Error("AI reply generation failed")
			return ""
		}
		return resp
	}
	if len(set.ReplyTexts) > 0 {
		return set.ReplyTexts[rand.Intn(len(set.ReplyTexts))]
	}
	return ""
}

// settleQuotas bumps each matched monitor's execution count and persists when
// any monitor hits its quota and pauses.
func (e *Executor) settleQuotas(ctx context.Context, accountID string, matched []MatchedMonitor) {
	anyPaused := false
	for _, m := range matched {
		cfg := m.Monitor.Base()
		count, paused := cfg.IncrementExecution()

		entry := e.logger.WithFields(logrus.Fields{
			"account_id":   accountID,
			"monitor_type": string(m.Monitor.Type()),
			"count":        count,
		})
		if cfg.MaxExecutions != nil {
			entry = entry.WithField("max", *cfg.MaxExecutions)
		}
		entry.Debug("Execution count updated")

		if paused {
			anyPaused = true
			e.metrics.RecordMonitorPaused(string(m.Monitor.Type()))
			entry.Info("Monitor reached execution quota, paused with counter reset")
		}
	}

	if anyPaused {
		if err := e.registry.Save(ctx); err != nil {
			e.logger.WithError(err).Error("Failed to persist monitors after quota pause")
		}
		e.metrics.SetActiveMonitors(float64(e.registry.ActiveMonitorCount()))
	}
}
