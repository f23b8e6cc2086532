// Package scheduler runs the recurring outbound messages: cron or fixed
// interval triggers, optional AI-generated bodies, per-job execution quotas
// that pause rather than remove the job.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/middleware"
	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/services/ai"
	"github.com/tg-sentinel-go/internal/services/chat"
	"github.com/tg-sentinel-go/internal/services/storage"
)

// Clients resolves an account id to its live connection.
type Clients interface {
	Client(accountID string) chat.Client
}

// Scheduler owns the scheduled-message jobs and their cron entries.
type Scheduler struct {
	cron    *cron.Cron
	clients Clients
	store   storage.Store
	ai      ai.Service
	limiter middleware.SendLimiter
	metrics *middleware.Metrics
	logger  *logrus.Logger

	mu      sync.Mutex
	jobs    map[string]*models.ScheduledMessage
	entries map[string]cron.EntryID
}

func New(clients Clients, store storage.Store, aiSvc ai.Service,
	limiter middleware.SendLimiter, metrics *middleware.Metrics, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		clients: clients,
		store:   store,
		ai:      aiSvc,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
		jobs:    make(map[string]*models.ScheduledMessage),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins firing jobs. Call Restore first to reload persisted jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop halts the trigger loop, waiting for a running fire to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// Restore reloads persisted jobs and schedules the active ones. Paused jobs
// are kept in the table so they can be resumed.
func (s *Scheduler) Restore(ctx context.Context) error {
	jobs, err := s.store.LoadScheduled(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled messages: %w", err)
	}

	restored := 0
	for _, job := range jobs {
		s.mu.Lock()
		s.jobs[job.JobID] = job
		s.mu.Unlock()

		if !job.IsActive() {
			continue
		}
		if err := s.schedule(job); err != nil {
			s.logger.WithError(err).WithField("job_id", job.JobID).Error("Failed to restore scheduled job")
			continue
		}
		restored++
	}

	s.logger.WithField("count", restored).Info("Scheduled jobs restored")
	return nil
}

// Add registers a new job, persists it and schedules it.
func (s *Scheduler) Add(ctx context.Context, job *models.ScheduledMessage) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Mode == "" {
		job.Mode = models.ScheduleCron
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.SetActive(true)

	if err := s.schedule(job); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[job.JobID] = job
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"job_id":    job.JobID,
		"target_id": job.TargetID,
		"schedule":  job.Schedule,
		"mode":      string(job.Mode),
	}).Info("Scheduled message added")
	return s.save(ctx)
}

// Remove deletes a job and its cron entry.
func (s *Scheduler) Remove(ctx context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	_, ok := s.jobs[jobID]
	if ok {
		delete(s.jobs, jobID)
	}
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	s.unschedule(jobID)
	s.logger.WithField("job_id", jobID).Info("Scheduled message removed")
	return true, s.save(ctx)
}

// Pause stops a job from firing without touching its counter.
func (s *Scheduler) Pause(ctx context.Context, jobID string) error {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job: %s", jobID)
	}
	job.SetActive(false)
	s.unschedule(jobID)
	return s.save(ctx)
}

// Resume reactivates a paused job. A job paused below its quota keeps the
// counter; one paused on quota exhaustion gets a fresh counter, so manual
// reactivation always yields a job that can fire again.
func (s *Scheduler) Resume(ctx context.Context, jobID string) error {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job: %s", jobID)
	}
	if job.LimitReached() {
		job.ResetExecutions()
	}
	job.SetActive(true)
	if err := s.schedule(job); err != nil {
		return err
	}
	return s.save(ctx)
}

// Jobs lists all known jobs, paused ones included.
func (s *Scheduler) Jobs() []*models.ScheduledMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ScheduledMessage, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

func (s *Scheduler) schedule(job *models.ScheduledMessage) error {
	jobID := job.JobID
	run := func() { s.fire(jobID) }

	var entryID cron.EntryID
	switch job.Mode {
	case models.ScheduleInterval:
		d, err := ParseInterval(job.Schedule)
		if err != nil {
			return err
		}
		entryID = s.cron.Schedule(cron.Every(d), cron.FuncJob(run))
	default:
		var err error
		entryID, err = s.cron.AddFunc(job.Schedule, run)
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", job.Schedule, err)
		}
	}

	s.mu.Lock()
	if old, ok := s.entries[jobID]; ok {
		s.cron.Remove(old)
	}
	s.entries[jobID] = entryID
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) unschedule(jobID string) {
	s.mu.Lock()
	if entryID, ok := s.entries[jobID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, jobID)
	}
	s.mu.Unlock()
}

// ParseInterval reads the "H M" interval form, hours then minutes.
func ParseInterval(expr string) (time.Duration, error) {
	parts := strings.Fields(expr)
	if len(parts) == 0 {
		return 0, fmt.Errorf("empty interval expression")
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid interval hours %q: %w", parts[0], err)
	}
	minutes := 0
	if len(parts) > 1 {
		minutes, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid interval minutes %q: %w", parts[1], err)
		}
	}
	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive: %q", expr)
	}
	return d, nil
}

// fire runs one scheduled send. Failures before the send consume no quota;
// the counter moves only after the message actually went out.
func (s *Scheduler) fire(jobID string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		s.logger.WithField("job_id", jobID).Error("Fired unknown job")
		return
	}

	log := s.logger.WithFields(logrus.Fields{
		"job_id":    jobID,
		"target_id": job.TargetID,
	})

	if !job.IsActive() {
		log.Debug("Job paused, skipping fire")
		return
	}
	if job.LimitReached() {
		log.Info("Job at execution quota, unscheduling")
		s.unschedule(jobID)
		return
	}

	client := s.clients.Client(job.AccountID)
	if client == nil {
		log.WithField("account_id", job.AccountID).Error("Account not connected, skipping fire")
		s.metrics.RecordScheduledFire("no_client")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	text := job.Text
	if job.UseAI && job.AIPrompt != "" {
		generated, err := s.generateBody(ctx, job)
		if err != nil || generated == "" {
			log.WithError(err).Warn("AI body generation failed, skipping fire without consuming quota")
			s.metrics.RecordScheduledFire("ai_failed")
			return
		}
		text = generated
	}
	if strings.TrimSpace(text) == "" {
		log.Error("Empty message body, skipping fire")
		return
	}

	if job.RandomDelayMax > 0 {
		delay := time.Duration(rand.Intn(job.RandomDelayMax+1)) * time.Second
		log.WithField("delay", delay).Info("Random pre-send delay")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	if _, err := client.GetEntity(ctx, job.TargetID); err != nil {
		log.WithError(err).Error("Target entity not resolvable, aborting fire")
		s.metrics.RecordScheduledFire("bad_target")
		return
	}

	if err := s.limiter.Wait(ctx, job.AccountID); err != nil {
		return
	}

	sentID, err := client.Send(ctx, job.TargetID, text, 0)
	if err != nil {
		log.WithError(err).Error("Scheduled send failed")
		s.metrics.RecordScheduledFire("send_failed")
		return
	}
	s.metrics.RecordScheduledFire("ok")

	count, paused := job.IncrementExecution()
	entry := log.WithField("count", count)
	if job.MaxExecutions != nil {
		entry = entry.WithField("max", *job.MaxExecutions)
	}
	entry.Info("Scheduled message sent")

	if err := s.save(ctx); err != nil {
		log.WithError(err).Error("Failed to persist scheduled messages")
	}

	if paused {
		// Quota met: pause, keep the counter so the pause is visible.
		s.unschedule(jobID)
		log.Info("Job reached execution quota, paused")
	}

	if job.DeleteAfterSend {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			if err := client.Delete(ctx, job.TargetID, sentID); err != nil {
				log.WithError(err).Warn("Failed to delete sent message")
			}
		}
	}
}

func (s *Scheduler) generateBody(ctx context.Context, job *models.ScheduledMessage) (string, error) {
	if !s.ai.Configured() {
		return "", fmt.Errorf("ai service not configured")
	}
	prompt := fmt.Sprintf(
		"当前时间: %s\n任务ID: %s\n目标聊天: %d\n\n用户提示词: %s\n\n请根据上述信息生成合适的消息内容，直接返回消息内容，不要包含额外的解释。",
		time.Now().Format("2006-01-02 15:04:05"), job.JobID, job.TargetID, job.AIPrompt)
	return s.ai.GenerateReply(ctx, prompt)
}

func (s *Scheduler) save(ctx context.Context) error {
	return s.store.SaveScheduled(ctx, s.Jobs())
}
