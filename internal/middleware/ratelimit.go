package middleware

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tg-sentinel-go/internal/config"
)

// SendLimiter throttles outbound sends per account so a burst of matches
// cannot flood the chat API.
type SendLimiter interface {
	// Wait blocks until the account may send, or the context is done.
	Wait(ctx context.Context, accountID string) error
}

// AccountSendLimiter implements per-account token-bucket limiting.
type AccountSendLimiter struct {
	enabled  bool
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	mpm      int
	burst    int
	logger   *logrus.Logger
}

// NewSendLimiter creates a new send limiter
func NewSendLimiter(cfg *config.RateLimitConfig, logger *logrus.Logger) *AccountSendLimiter {
	if !cfg.Enabled {
		return &AccountSendLimiter{enabled: false}
	}

	return &AccountSendLimiter{
		enabled:  true,
		limiters: make(map[string]*rate.Limiter),
		mpm:      cfg.MessagesPerMinute,
		burst:    cfg.Burst,
		logger:   logger,
	}
}

// Wait blocks until a send is permitted for the account
func (l *AccountSendLimiter) Wait(ctx context.Context, accountID string) error {
	if !l.enabled {
		return nil
	}
	return l.getLimiter(accountID).Wait(ctx)
}

// getLimiter gets or creates a rate limiter for an account
func (l *AccountSendLimiter) getLimiter(accountID string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[accountID]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[accountID]; exists {
		return limiter
	}

	rps := float64(l.mpm) / 60.0
	limiter = rate.NewLimiter(rate.Limit(rps), l.burst)
	l.limiters[accountID] = limiter

	return limiter
}
