package service

import (
	"sync"
	"time"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// limiterEntry is the token bucket of one key
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitService throttles requests per key (a chat id or a client IP)
type RateLimitService struct {
	cfg      *model.RateLimitConfig
	limits   map[string]*limiterEntry
	mu       sync.Mutex
	now      func() time.Time
	quitChan chan struct{}
	stopOnce sync.Once
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(cfg *model.RateLimitConfig) *RateLimitService {
	service := &RateLimitService{
		cfg:      cfg,
		limits:   make(map[string]*limiterEntry),
		now:      time.Now,
		quitChan: make(chan struct{}),
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go service.cleanupRoutine()
	}

	return service
}

func (rls *RateLimitService) entry(key string) *limiterEntry {
	e, ok := rls.limits[key]
	if !ok {
		perSecond := rate.Limit(float64(rls.cfg.RequestsPerMinute) / 60)
		burst := rls.cfg.BurstSize
		if burst < 1 {
			burst = 1
		}
		e = &limiterEntry{limiter: rate.NewLimiter(perSecond, burst)}
		rls.limits[key] = e
		logger.Logger.Debug("New rate limit entry created", zap.String("key", key))
	}
	e.lastSeen = rls.now()
	return e
}

// IsAllowed consumes one token for key and reports whether it was available
func (rls *RateLimitService) IsAllowed(key string) bool {
	if !rls.cfg.Enabled {
		return true
	}

	rls.mu.Lock()
	defer rls.mu.Unlock()

	if !rls.entry(key).limiter.AllowN(rls.now(), 1) {
		logger.Logger.Warn("Rate limit exceeded", zap.String("key", key), zap.Int("limit_per_minute", rls.cfg.RequestsPerMinute))
		return false
	}
	return true
}

// Remaining returns the whole tokens currently available to key, -1 when unlimited
func (rls *RateLimitService) Remaining(key string) int {
	if !rls.cfg.Enabled {
		return -1
	}

	rls.mu.Lock()
	defer rls.mu.Unlock()

	e, ok := rls.limits[key]
	if !ok {
		return rls.cfg.BurstSize
	}
	remaining := int(e.limiter.TokensAt(rls.now()))
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (rls *RateLimitService) cleanupRoutine() {
	ticker := time.NewTicker(rls.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rls.quitChan:
			logger.Logger.Info("Rate limit service stopped")
			return
		case <-ticker.C:
			rls.cleanup()
		}
	}
}

// cleanup drops keys idle for longer than IdleTTL
func (rls *RateLimitService) cleanup() int {
	rls.mu.Lock()
	defer rls.mu.Unlock()

	now := rls.now()
	removed := 0
	for key, e := range rls.limits {
		if now.Sub(e.lastSeen) > rls.cfg.IdleTTL {
			delete(rls.limits, key)
			removed++
		}
	}

	if removed > 0 {
		logger.Logger.Debug("Rate limit entries cleaned up", zap.Int("removed", removed), zap.Int("remaining", len(rls.limits)))
	}
	return removed
}

// Reset forgets the bucket of key
func (rls *RateLimitService) Reset(key string) {
	rls.mu.Lock()
	defer rls.mu.Unlock()

	delete(rls.limits, key)
	logger.Logger.Info("Rate limit reset", zap.String("key", key))
}

// Stop stops the cleanup routine. Safe to call more than once.
func (rls *RateLimitService) Stop() {
	rls.stopOnce.Do(func() {
		close(rls.quitChan)
	})
}
