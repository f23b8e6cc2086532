package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/monitors"
	"github.com/tg-sentinel-go/internal/services/ai"
	"github.com/tg-sentinel-go/internal/services/chat"
	"github.com/tg-sentinel-go/internal/services/storage"
)

// accountEntry pairs an account with its live client and monitor list. The
// list keeps insertion order; dispatch sorts a copy by priority.
type accountEntry struct {
	account  *models.Account
	client   chat.Client
	monitors []monitors.Monitor
}

// Registry owns the account set and each account's monitors, and persists
// monitor configuration after every mutation.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*accountEntry
	store    storage.Store
	ai       ai.Service
	logger   *logrus.Logger
}

func NewRegistry(store storage.Store, aiSvc ai.Service, logger *logrus.Logger) *Registry {
	return &Registry{
		accounts: make(map[string]*accountEntry),
		store:    store,
		ai:       aiSvc,
		logger:   logger,
	}
}

// RegisterAccount binds an account identity to its live client.
func (r *Registry) RegisterAccount(account *models.Account, client chat.Client) {
	r.mu.Lock()
	r.accounts[account.ID] = &accountEntry{account: account, client: client}
	r.mu.Unlock()
	r.logger.WithField("account_id", account.ID).Info("Account registered")
}

// Account returns the registered account, or nil.
func (r *Registry) Account(accountID string) *models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.accounts[accountID]; ok {
		return e.account
	}
	return nil
}

// Client returns the account's live client, or nil.
func (r *Registry) Client(accountID string) chat.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.accounts[accountID]; ok {
		return e.client
	}
	return nil
}

// deps builds the capability set monitors of this account receive.
func (r *Registry) deps(e *accountEntry) monitors.Deps {
	return monitors.Deps{
		Client: e.client,
		AI:     r.ai,
		Logger: r.logger,
	}
}

// AddMonitor appends a monitor to the account's list and persists.
func (r *Registry) AddMonitor(ctx context.Context, accountID string, mon monitors.Monitor) error {
	r.mu.Lock()
	e, ok := r.accounts[accountID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown account: %s", accountID)
	}
	e.monitors = append(e.monitors, mon)
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"account_id":   accountID,
		"monitor_type": string(mon.Type()),
	}).Info("Monitor added")
	return r.Save(ctx)
}

// RemoveMonitor deletes a monitor by instance id and persists.
func (r *Registry) RemoveMonitor(ctx context.Context, accountID, monitorID string) (bool, error) {
	r.mu.Lock()
	e, ok := r.accounts[accountID]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	removed := false
	kept := e.monitors[:0]
	for _, m := range e.monitors {
		if m.ID() == monitorID {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	e.monitors = kept
	r.mu.Unlock()

	if !removed {
		return false, nil
	}
	return true, r.Save(ctx)
}

// ClearMonitors drops all monitors of an account and persists.
func (r *Registry) ClearMonitors(ctx context.Context, accountID string) error {
	r.mu.Lock()
	if e, ok := r.accounts[accountID]; ok {
		e.monitors = nil
	}
	r.mu.Unlock()
	return r.Save(ctx)
}

// Monitors returns a copy of the account's monitor list in insertion order.
func (r *Registry) Monitors(accountID string) []monitors.Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.accounts[accountID]
	if !ok {
		return nil
	}
	out := make([]monitors.Monitor, len(e.monitors))
	copy(out, e.monitors)
	return out
}

// ActiveMonitorCount counts active monitors across all accounts.
func (r *Registry) ActiveMonitorCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, e := range r.accounts {
		for _, m := range e.monitors {
			if m.Base().IsActive() {
				count++
			}
		}
	}
	return count
}

// Load rebuilds every registered account's monitors from the store. Records
// that fail to parse are skipped so one bad entry cannot block startup.
func (r *Registry) Load(ctx context.Context) error {
	data, err := r.store.LoadMonitors(ctx)
	if err != nil {
		return fmt.Errorf("load monitors: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := 0
	for accountID, records := range data {
		e, ok := r.accounts[accountID]
		if !ok {
			r.logger.WithField("account_id", accountID).Warn("Stored monitors for unregistered account, skipping")
			continue
		}
		for _, rec := range records {
			mon, err := monitors.New(rec.Type, rec.Config, r.deps(e))
			if err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"account_id":   accountID,
					"monitor_type": string(rec.Type),
				}).Error("Failed to restore monitor")
				continue
			}
			e.monitors = append(e.monitors, mon)
			loaded++
		}
	}

	r.logger.WithField("count", loaded).Info("Monitors restored from storage")
	return nil
}

// Save persists all monitors of all accounts.
func (r *Registry) Save(ctx context.Context) error {
	r.mu.RLock()
	data := make(map[string][]storage.MonitorRecord)
	for accountID, e := range r.accounts {
		records := make([]storage.MonitorRecord, 0, len(e.monitors))
		for _, m := range e.monitors {
			raw, err := json.Marshal(m.Spec())
			if err != nil {
				r.logger.WithError(err).Error("Failed to marshal monitor config")
				continue
			}
			records = append(records, storage.MonitorRecord{Type: m.Type(), Config: raw})
		}
		data[accountID] = records
	}
	r.mu.RUnlock()

	if err := r.store.SaveMonitors(ctx, data); err != nil {
		return fmt.Errorf("save monitors: %w", err)
	}
	return nil
}
