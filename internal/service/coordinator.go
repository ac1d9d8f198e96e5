package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"atmeex_cloud/internal/logger"
	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/repository"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

const defaultPollInterval = 60 * time.Second

// FetchError wraps a failed device listing.
type FetchError struct {
	EntryID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch devices for entry %s: %v", e.EntryID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Listener receives the device list after a successful refresh, and after a
// refresh that turned a healthy coordinator into a failing one.
type Listener func(devices []DeviceProxy)

type CoordinatorConfig struct {
	Interval time.Duration
	Entries  repository.ConfigEntryRepo
	Mirror   repository.EntryMirror
	Events   repository.EventRepo
	Metrics  *Metrics
	Log      *logger.Logger
}

// Coordinator polls one account and writes rotated tokens back to storage.
type Coordinator struct {
	client   VendorClient
	entries  repository.ConfigEntryRepo
	mirror   repository.EntryMirror
	events   repository.EventRepo
	metrics  *Metrics
	log      *logger.Logger
	interval time.Duration

	flight singleflight.Group

	mu          sync.RWMutex
	entry       models.ConfigEntry
	devices     []DeviceProxy
	lastSuccess bool
	lastErr     error
	lastRefresh time.Time
	listeners   []Listener

	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewCoordinator(entry models.ConfigEntry, client VendorClient, cfg CoordinatorConfig) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.Mirror == nil {
		cfg.Mirror = repository.NopMirror{}
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewNop()
	}
	return &Coordinator{
		client:   client,
		entries:  cfg.Entries,
		mirror:   cfg.Mirror,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
		interval: cfg.Interval,
		entry:    entry,
	}
}

func (c *Coordinator) EntryID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry.ID
}

// Entry returns the last persisted state of the config entry.
func (c *Coordinator) Entry() models.ConfigEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry
}

// Devices returns the device list of the last successful refresh.
func (c *Coordinator) Devices() []DeviceProxy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]DeviceProxy, len(c.devices))
	copy(out, c.devices)
	return out
}

func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Coordinator) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

func (c *Coordinator) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Refresh fetches the device list. Concurrent callers share one in-flight refresh.
func (c *Coordinator) Refresh(ctx context.Context) error {
	_, err, _ := c.flight.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

// RequestRefresh refreshes on demand after a command. Failures are logged only.
func (c *Coordinator) RequestRefresh(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.log.Warnw("coordinator_requested_refresh_failed", "entry_id", c.EntryID(), "err", err)
	}
}

func (c *Coordinator) refresh(ctx context.Context) error {
	entryID := c.EntryID()

	devices, err := c.client.GetDevices(ctx)
	if err != nil {
		fetchErr := &FetchError{EntryID: entryID, Err: err}

		c.mu.Lock()
		wasHealthy := c.lastSuccess
		c.lastSuccess = false
		c.lastErr = fetchErr
		c.lastRefresh = time.Now().UTC()
		c.mu.Unlock()

		c.metrics.observeRefresh(entryID, 0, err)
		c.log.Errorw("coordinator_refresh_failed", "entry_id", entryID, "err", err)
		c.recordEvent(ctx, models.EventRefreshFailed, "device refresh failed", map[string]any{"error": err.Error()})

		if wasHealthy {
			c.notify(c.Devices())
		}
		return fetchErr
	}

	c.mu.Lock()
	c.devices = devices
	c.lastSuccess = true
	c.lastErr = nil
	c.lastRefresh = time.Now().UTC()
	c.mu.Unlock()

	c.metrics.observeRefresh(entryID, len(devices), nil)
	c.log.Debugw("coordinator_refreshed", "entry_id", entryID, "devices", len(devices))

	c.persistTokens(ctx)
	c.notify(devices)
	return nil
}

// persistTokens writes the client's tokens back when they differ from the stored pair.
// A failed write leaves the in-memory entry untouched so the next refresh retries.
func (c *Coordinator) persistTokens(ctx context.Context) {
	access, refresh := c.client.Tokens()

	c.mu.RLock()
	entry := c.entry
	c.mu.RUnlock()

	if !entry.TokensDiffer(access, refresh) {
		return
	}
	if c.entries == nil {
		return
	}

	err := c.entries.UpdateTokens(ctx, entry.ID, access, refresh)
	c.metrics.observeTokenPersist(entry.ID, err)
	if err != nil {
		c.log.Errorw("coordinator_token_persist_failed", "entry_id", entry.ID, "err", err)
		return
	}

	entry.AccessToken = access
	entry.RefreshToken = refresh
	entry.UpdatedAt = time.Now().UTC()

	c.mu.Lock()
	c.entry = entry
	c.mu.Unlock()

	c.log.Infow("coordinator_tokens_rotated", "entry_id", entry.ID)
	if err := c.mirror.Save(ctx, entry); err != nil {
		c.log.Warnw("coordinator_entry_mirror_failed", "entry_id", entry.ID, "err", err)
	}
	c.recordEvent(ctx, models.EventTokensRotated, "vendor tokens rotated and stored", nil)
}

func (c *Coordinator) notify(devices []DeviceProxy) {
	c.mu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		l(devices)
	}
}

func (c *Coordinator) recordEvent(ctx context.Context, typ, description string, meta any) {
	if c.events == nil {
		return
	}
	err := c.events.Append(ctx, models.IntegrationEvent{
		EntryID:     c.EntryID(),
		Type:        typ,
		Description: description,
		Metadata:    meta,
	})
	if err != nil {
		c.log.Warnw("coordinator_event_append_failed", "entry_id", c.EntryID(), "type", typ, "err", err)
	}
}

// Start schedules a refresh every interval. Overlapping ticks are skipped.
func (c *Coordinator) Start(parent context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return errors.New("coordinator already started")
	}

	ctx, cancel := context.WithCancel(parent)
	sched := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{c.log})))
	sched.Schedule(cron.Every(c.interval), cron.FuncJob(func() {
		tickCtx, tickCancel := context.WithTimeout(ctx, c.interval)
		defer tickCancel()
		_ = c.Refresh(tickCtx)
	}))
	sched.Start()

	c.cron = sched
	c.cancel = cancel
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	sched, cancel := c.cron, c.cancel
	c.cron, c.cancel = nil, nil
	c.mu.Unlock()

	if sched == nil {
		return
	}
	cancel()
	<-sched.Stop().Done()
}

// cronLogger routes scheduler messages through zap.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron_"+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron_"+msg, append(keysAndValues, "err", err)...)
}
