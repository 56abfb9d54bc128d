package service

import (
	"context"
	"sync"
	"time"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/pkg/logger"

	"go.uber.org/zap"
)

// PendingStore remembers, per chat, the link waiting for a quality choice.
// A chat holds at most one selection and each selection is consumed once.
type PendingStore struct {
	mu    sync.Mutex
	items map[int64]model.PendingSelection
	ttl   time.Duration
	now   func() time.Time
}

// NewPendingStore creates a store whose entries expire after ttl (0 keeps them forever)
func NewPendingStore(ttl time.Duration) *PendingStore {
	return &PendingStore{
		items: make(map[int64]model.PendingSelection),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put stores sel for its chat and reports whether an older selection was replaced
func (p *PendingStore) Put(sel model.PendingSelection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sel.CreatedAt.IsZero() {
		sel.CreatedAt = p.now()
	}
	_, replaced := p.items[sel.ChatID]
	p.items[sel.ChatID] = sel
	return replaced
}

// Pop removes and returns the selection of chatID. Expired selections are
// discarded and reported as missing.
func (p *PendingStore) Pop(chatID int64) (model.PendingSelection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel, ok := p.items[chatID]
	if !ok {
		return model.PendingSelection{}, false
	}
	delete(p.items, chatID)
	if p.expired(sel) {
		return model.PendingSelection{}, false
	}
	return sel, true
}

// Has reports whether chatID has a live selection
func (p *PendingStore) Has(chatID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel, ok := p.items[chatID]
	return ok && !p.expired(sel)
}

// Len returns the number of stored selections
func (p *PendingStore) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// PurgeExpired drops every expired selection and returns how many were removed
func (p *PendingStore) PurgeExpired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for chatID, sel := range p.items {
		if p.expired(sel) {
			delete(p.items, chatID)
			removed++
		}
	}
	return removed
}

// Run purges expired selections every interval until ctx is done
func (p *PendingStore) Run(ctx context.Context, interval time.Duration) {
	if p.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := p.PurgeExpired(); removed > 0 {
				logger.LogDebug("Expired pending selections purged", zap.Int("removed", removed))
			}
		}
	}
}

func (p *PendingStore) expired(sel model.PendingSelection) bool {
	return p.ttl > 0 && p.now().Sub(sel.CreatedAt) > p.ttl
}
