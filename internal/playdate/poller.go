package playdate

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/PopAlexandra2004/furryfriends/internal/store"
	"go.uber.org/zap"
)

const defaultPollInterval = time.Minute

// ReminderHandler receives a due reminder for one user.
type ReminderHandler func(username string, record Record)

// ReminderPollerConfig describes the poller dependencies.
type ReminderPollerConfig struct {
	Store    *store.Store
	Interval time.Duration
	Clock    func() time.Time
	Logger   *zap.Logger
	Handler  ReminderHandler
}

// ReminderPoller periodically scans the durable reminder snapshots and
// hands due ones (inside the one-hour lead window before the playdate)
// to the configured handler. Expired snapshots are deleted on sight.
type ReminderPoller struct {
	store    *store.Store
	interval time.Duration
	clock    func() time.Time
	logger   *zap.Logger
	handler  ReminderHandler

	mu        sync.Mutex
	delivered map[string]time.Time
}

// NewReminderPoller constructs the poller.
func NewReminderPoller(cfg ReminderPollerConfig) (*ReminderPoller, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := cfg.Handler
	if handler == nil {
		handler = func(string, Record) {}
	}
	return &ReminderPoller{
		store:     cfg.Store,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		handler:   handler,
		delivered: make(map[string]time.Time),
	}, nil
}

// Run polls until ctx is cancelled.
func (p *ReminderPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep performs one pass over all reminder snapshots.
func (p *ReminderPoller) Sweep(ctx context.Context) {
	keys, err := p.store.Keys(ctx, reminderKeyPrefix)
	if err != nil {
		p.logger.Warn("reminder sweep failed", zap.Error(err))
		return
	}
	now := p.clock()
	for _, key := range keys {
		p.sweepKey(ctx, key, now)
	}
}

func (p *ReminderPoller) sweepKey(ctx context.Context, key string, now time.Time) {
	username := strings.TrimPrefix(key, reminderKeyPrefix)

	raw, found, err := p.store.Get(ctx, key)
	if err != nil || !found {
		return
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		p.logger.Warn("malformed reminder snapshot", zap.String("key", key), zap.Error(err))
		return
	}

	start, err := record.Start()
	if err != nil || !start.After(now) {
		if removeErr := p.store.Remove(ctx, key); removeErr != nil {
			p.logger.Warn("failed to expire reminder", zap.String("key", key), zap.Error(removeErr))
		}
		p.forget(username)
		return
	}

	dueAt := start.Add(-reminderLead)
	if now.Before(dueAt) {
		return
	}
	if !p.markDelivered(username, start) {
		return
	}
	p.logger.Info("playdate reminder due",
		zap.String("username", username),
		zap.Time("start", start))
	p.handler(username, record)
}

// markDelivered records an in-process delivery for the (user, start)
// pair so a reminder fires at most once per poller lifetime.
func (p *ReminderPoller) markDelivered(username string, start time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seen, ok := p.delivered[username]; ok && seen.Equal(start) {
		return false
	}
	p.delivered[username] = start
	return true
}

func (p *ReminderPoller) forget(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.delivered, username)
}
