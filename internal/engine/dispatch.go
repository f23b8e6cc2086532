// Package engine implements message dispatch: dedup, priority ordering,
// execution-mode resolution and action execution for every inbound message.
package engine

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/middleware"
	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/monitors"
	"github.com/tg-sentinel-go/pkg/logger"
)

// Dispatcher routes one inbound message through an account's monitors.
type Dispatcher struct {
	registry *Registry
	dedup    *Dedup
	executor *Executor
	metrics  *middleware.Metrics
	logger   *logrus.Logger
}

func NewDispatcher(registry *Registry, dedup *Dedup, executor *Executor,
	metrics *middleware.Metrics, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		dedup:    dedup,
		executor: executor,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleMessage runs the full pipeline for one message. Monitors are visited
// in ascending priority with ties kept in registration order. A first_match
// monitor executes and stops everything, including merge actions collected so
// far; an all monitor executes immediately and independently; merge monitors
// fold into one combined action set executed at the end.
func (d *Dispatcher) HandleMessage(ctx context.Context, accountID string, msg *models.Message) {
	account := d.registry.Account(accountID)
	if account == nil || !account.MonitorActive {
		return
	}

	key := models.EventKey(accountID, msg.ChatID, msg.ID)
	if d.dedup.Seen(key) {
		d.metrics.RecordMessageDeduplicated()
		return
	}
	d.dedup.Mark(key)
	d.metrics.RecordMessageDispatched(accountID)

	ordered := d.registry.Monitors(accountID)
	if len(ordered) == 0 {
		return
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Base().Priority < ordered[j].Base().Priority
	})

	log := logger.WithEvent(d.logger, accountID, msg.ChatID, msg.ID)

	mergedSet := newActionSet()
	var mergedMonitors []MatchedMonitor

	for _, mon := range ordered {
		match, result := monitors.Evaluate(ctx, mon, msg, account.SelfID)
		if result == monitors.ResultError {
			log.WithField("monitor_type", string(mon.Type())).Error("Monitor evaluation failed")
			continue
		}
		if result != monitors.ResultMatched {
			continue
		}

		d.metrics.RecordMonitorMatch(string(mon.Type()))
		cfg := mon.Base()
		log.WithFields(logrus.Fields{
			"monitor_type": string(mon.Type()),
			"priority":     cfg.Priority,
			"mode":         string(cfg.ExecutionMode),
		}).Info("Monitor matched")

		// Variant side effects run at match time in every mode.
		if actions := mon.Act(ctx, msg); len(actions) > 0 {
			log.WithField("actions", actions).Debug("Monitor actions executed")
		}

		matched := MatchedMonitor{Monitor: mon, Match: match, Priority: cfg.Priority}

		switch cfg.ExecutionMode {
		case models.ExecModeFirstMatch:
			d.executor.Execute(ctx, accountID, msg, collect(mon, match), []MatchedMonitor{matched})
			return
		case models.ExecModeAll:
			d.executor.Execute(ctx, accountID, msg, collect(mon, match), []MatchedMonitor{matched})
		default:
			mergedMonitors = append(mergedMonitors, matched)
			mergedSet.merge(mon, match)
		}
	}

	if len(mergedMonitors) > 0 {
		log.WithField("count", len(mergedMonitors)).Info("Executing merged actions")
		d.executor.Execute(ctx, accountID, msg, mergedSet, mergedMonitors)
	}
}
