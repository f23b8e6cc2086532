// Package monitors implements the monitor variants and the shared evaluation
// pipeline every variant goes through: active check, scope filters, block
// lists, quota, then the variant's own condition.
package monitors

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/rules"
	"github.com/tg-sentinel-go/internal/services/ai"
	"github.com/tg-sentinel-go/internal/services/chat"
)

// Deps are the capabilities injected into every monitor.
type Deps struct {
	Client chat.Client
	AI     ai.Service
	Logger *logrus.Logger
}

// Match carries what a monitor found in a message.
type Match struct {
	// MatchedText is the concrete content that triggered the match, e.g. the
	// keyword, the regex match, or the file name.
	MatchedText string
	// AIResponse is the reply content an AI judgment produced alongside its
	// verdict, if any.
	AIResponse string
}

// Result classifies the outcome of evaluating one monitor against one message.
type Result int

const (
	ResultMatched Result = iota
	ResultNoMatch
	ResultInactive
	ResultFiltered
	ResultBlocked
	ResultLimitReached
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultMatched:
		return "matched"
	case ResultNoMatch:
		return "no_match"
	case ResultInactive:
		return "inactive"
	case ResultFiltered:
		return "filtered"
	case ResultBlocked:
		return "blocked"
	case ResultLimitReached:
		return "limit_reached"
	default:
		return "error"
	}
}

// Monitor is one configured monitor instance.
type Monitor interface {
	// ID is the instance identity used in logs and the registry.
	ID() string
	Type() models.MonitorType
	// Base exposes the shared config for filtering, quota and action settings.
	Base() *models.MonitorConfig
	// Spec exposes the full variant config for persistence.
	Spec() interface{}
	// Examine runs the variant condition only. The shared pipeline checks run
	// in Evaluate before this is called. A nil Match means no match.
	Examine(ctx context.Context, msg *models.Message) (*Match, error)
	// Act performs the variant's own side effects after a match, such as
	// clicking a button or saving a file. Returns descriptions of what ran.
	Act(ctx context.Context, msg *models.Message) []string
	// ReplyTexts returns the candidate auto-reply texts for a match. Empty
	// with reply_content_source=ai means the executor should generate one.
	ReplyTexts(match *Match) []string
}

// Evaluate runs the shared pipeline and then the monitor's condition. The
// order is fixed: inactive and filtered messages never reach the variant
// condition, and a monitor at its quota stops matching entirely.
func Evaluate(ctx context.Context, mon Monitor, msg *models.Message, selfID int64) (*Match, Result) {
	cfg := mon.Base()

	if !cfg.IsActive() {
		return nil, ResultInactive
	}
	if !rules.Passes(msg, cfg, selfID) {
		return nil, ResultFiltered
	}
	if rules.Blocked(msg, cfg) {
		return nil, ResultBlocked
	}
	if cfg.LimitReached() {
		return nil, ResultLimitReached
	}

	match, err := mon.Examine(ctx, msg)
	if err != nil {
		return nil, ResultError
	}
	if match == nil {
		return nil, ResultNoMatch
	}
	return match, ResultMatched
}

// base carries the fields and default behavior shared by all variants.
type base struct {
	id   string
	typ  models.MonitorType
	cfg  *models.MonitorConfig
	deps Deps
	log  *logrus.Entry
}

func newBase(typ models.MonitorType, cfg *models.MonitorConfig, deps Deps) base {
	id := uuid.NewString()
	return base{
		id:   id,
		typ:  typ,
		cfg:  cfg,
		deps: deps,
		log: deps.Logger.WithFields(logrus.Fields{
			"monitor_id":   id,
			"monitor_type": string(typ),
		}),
	}
}

func (b *base) ID() string                  { return b.id }
func (b *base) Type() models.MonitorType    { return b.typ }
func (b *base) Base() *models.MonitorConfig { return b.cfg }

// Act is a no-op by default; variants with custom side effects override it.
func (b *base) Act(ctx context.Context, msg *models.Message) []string { return nil }

// ReplyTexts defaults to the configured fixed texts. With the AI content
// source the fixed texts are ignored so the executor generates a reply.
func (b *base) ReplyTexts(match *Match) []string {
	if b.cfg.ReplyContentSource == models.ReplyContentAI {
		return nil
	}
	return b.cfg.ReplyTexts
}
