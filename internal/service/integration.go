package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"atmeex_cloud/internal/logger"
	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/repository"
)

// ErrEntryNotLoaded is returned when an entry has no running coordinator.
var ErrEntryNotLoaded = errors.New("config entry not loaded")

// StatePublisher receives every climate state change.
type StatePublisher interface {
	PublishState(ctx context.Context, state models.ClimateState) error
}

const (
	defaultSetupTimeout   = 30 * time.Second
	defaultPublishTimeout = 5 * time.Second
	publishQueueSize      = 64
)

type IntegrationDeps struct {
	Repos        *repository.Repository
	NewClient    ClientFactory
	PollInterval time.Duration
	// SetupTimeout bounds the first refresh of each entry in LoadAll.
	SetupTimeout time.Duration
	// PublishTimeout bounds one PublishState call.
	PublishTimeout time.Duration
	Metrics        *Metrics
	Publisher      StatePublisher
	Log            *logger.Logger
}

type entryRuntime struct {
	coord    *Coordinator
	climates map[int64]*ClimateAdapter
	fans     []StateView
}

// Integration owns the runtime of every loaded config entry.
type Integration struct {
	repos          *repository.Repository
	newClient      ClientFactory
	pollInterval   time.Duration
	setupTimeout   time.Duration
	publishTimeout time.Duration
	metrics        *Metrics
	publisher      StatePublisher
	log            *logger.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	// States are published from their own goroutine so a slow broker never
	// holds up a refresh or a command.
	pubQueue chan models.ClimateState
	pubDone  chan struct{}

	mu       sync.RWMutex
	runtimes map[string]*entryRuntime
	climates map[string]*ClimateAdapter
}

func NewIntegration(deps IntegrationDeps) *Integration {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.SetupTimeout <= 0 {
		deps.SetupTimeout = defaultSetupTimeout
	}
	if deps.PublishTimeout <= 0 {
		deps.PublishTimeout = defaultPublishTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	i := &Integration{
		repos:          deps.Repos,
		newClient:      deps.NewClient,
		pollInterval:   deps.PollInterval,
		setupTimeout:   deps.SetupTimeout,
		publishTimeout: deps.PublishTimeout,
		metrics:        deps.Metrics,
		publisher:      deps.Publisher,
		log:            deps.Log,
		baseCtx:        ctx,
		cancel:         cancel,
		pubDone:        make(chan struct{}),
		runtimes:       map[string]*entryRuntime{},
		climates:       map[string]*ClimateAdapter{},
	}
	if i.publisher != nil {
		i.pubQueue = make(chan models.ClimateState, publishQueueSize)
		go i.runPublisher()
	} else {
		close(i.pubDone)
	}
	return i
}

var _ EntryCreator = (*Integration)(nil)

// LoadAll sets up every stored entry, each within its own SetupTimeout.
// A failing entry does not stop the others.
func (i *Integration) LoadAll(ctx context.Context) error {
	entries, err := i.repos.Entries.List(ctx)
	if err != nil {
		return fmt.Errorf("load config entries: %w", err)
	}
	var errs []error
	for _, e := range entries {
		entryCtx, cancel := context.WithTimeout(ctx, i.setupTimeout)
		err := i.SetupEntry(entryCtx, e)
		cancel()
		if err != nil {
			i.log.Errorw("integration_setup_entry_failed", "entry_id", e.ID, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddEntry persists a new entry and sets it up.
func (i *Integration) AddEntry(ctx context.Context, entry models.ConfigEntry) (models.ConfigEntry, error) {
	if err := i.repos.Entries.Create(ctx, entry); err != nil {
		return models.ConfigEntry{}, err
	}
	stored, err := i.repos.Entries.Get(ctx, entry.ID)
	if err != nil {
		return models.ConfigEntry{}, err
	}
	if err := i.repos.Mirror.Save(ctx, stored); err != nil {
		i.log.Warnw("integration_entry_mirror_failed", "entry_id", stored.ID, "err", err)
	}
	i.recordEvent(ctx, stored.ID, models.EventEntryCreated, "config entry created for "+stored.Email)

	if err := i.SetupEntry(ctx, stored); err != nil {
		return stored, fmt.Errorf("set up entry %s: %w", stored.ID, err)
	}
	return stored, nil
}

// SetupEntry starts polling an entry and creates its climate entities.
// A failed first refresh is tolerated; entities appear once devices are listed.
func (i *Integration) SetupEntry(ctx context.Context, entry models.ConfigEntry) error {
	i.mu.RLock()
	_, loaded := i.runtimes[entry.ID]
	i.mu.RUnlock()
	if loaded {
		return fmt.Errorf("entry %s already loaded", entry.ID)
	}

	client := i.newClient(entry.Email, entry.Password)
	client.RestoreTokens(entry.AccessToken, entry.RefreshToken)

	coord := NewCoordinator(entry, client, CoordinatorConfig{
		Interval: i.pollInterval,
		Entries:  i.repos.Entries,
		Mirror:   i.repos.Mirror,
		Events:   i.repos.EventRepo,
		Metrics:  i.metrics,
		Log:      i.log.Named("coordinator"),
	})
	rt := &entryRuntime{coord: coord, climates: map[int64]*ClimateAdapter{}}

	if err := coord.Refresh(ctx); err != nil {
		i.log.Warnw("integration_first_refresh_failed", "entry_id", entry.ID, "err", err)
	}

	i.mu.Lock()
	i.runtimes[entry.ID] = rt
	i.mu.Unlock()

	i.addClimates(entry.ID, rt, coord.Devices())
	rt.fans = SetupFanEntities(coord)

	coord.AddListener(func(devices []DeviceProxy) {
		i.onRefresh(entry.ID, rt, devices)
	})
	if err := coord.Start(i.baseCtx); err != nil {
		return err
	}

	i.recordEvent(ctx, entry.ID, models.EventSetup, fmt.Sprintf("entry loaded with %d devices", len(coord.Devices())))
	i.log.Infow("integration_entry_loaded", "entry_id", entry.ID, "devices", len(coord.Devices()))
	return nil
}

func (i *Integration) onRefresh(entryID string, rt *entryRuntime, devices []DeviceProxy) {
	i.mu.RLock()
	adapters := make([]*ClimateAdapter, 0, len(rt.climates))
	for _, a := range rt.climates {
		adapters = append(adapters, a)
	}
	i.mu.RUnlock()

	for _, a := range adapters {
		a.Sync(devices)
	}
	if rt.coord.LastUpdateSuccess() {
		i.addClimates(entryID, rt, devices)
	}
}

// addClimates creates adapters for devices not seen before.
func (i *Integration) addClimates(entryID string, rt *entryRuntime, devices []DeviceProxy) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, d := range devices {
		id := d.Snapshot().ID
		if _, ok := rt.climates[id]; ok {
			continue
		}
		entityID := ClimateEntityID(id)
		if _, taken := i.climates[entityID]; taken {
			i.log.Warnw("integration_duplicate_device", "entry_id", entryID, "entity_id", entityID)
			continue
		}
		a := NewClimateAdapter(entryID, d, rt.coord, ClimateOptions{
			Events:   i.repos.EventRepo,
			Metrics:  i.metrics,
			Log:      i.log.Named("climate"),
			OnChange: i.publish,
		})
		rt.climates[id] = a
		i.climates[entityID] = a
		i.log.Infow("integration_climate_added", "entry_id", entryID, "entity_id", entityID)
	}
}

// publish queues a state for the publisher goroutine. A full queue drops the state.
func (i *Integration) publish(state models.ClimateState) {
	if i.publisher == nil {
		return
	}
	select {
	case <-i.baseCtx.Done():
	case i.pubQueue <- state:
	default:
		i.log.Warnw("integration_publish_dropped", "entity_id", state.EntityID)
	}
}

func (i *Integration) runPublisher() {
	defer close(i.pubDone)
	for {
		select {
		case <-i.baseCtx.Done():
			return
		case state := <-i.pubQueue:
			ctx, cancel := context.WithTimeout(i.baseCtx, i.publishTimeout)
			err := i.publisher.PublishState(ctx, state)
			cancel()
			if err != nil {
				i.log.Warnw("integration_publish_failed", "entity_id", state.EntityID, "err", err)
			}
		}
	}
}

// UnloadEntry stops polling an entry and drops its entities. Stored data is kept.
func (i *Integration) UnloadEntry(ctx context.Context, id string) error {
	i.mu.Lock()
	rt, ok := i.runtimes[id]
	if ok {
		delete(i.runtimes, id)
		for _, a := range rt.climates {
			delete(i.climates, a.EntityID())
		}
	}
	i.mu.Unlock()

	if !ok {
		return ErrEntryNotLoaded
	}
	rt.coord.Stop()
	i.metrics.forgetEntry(id)
	i.recordEvent(ctx, id, models.EventUnload, "entry unloaded")
	i.log.Infow("integration_entry_unloaded", "entry_id", id)
	return nil
}

// RemoveEntry unloads an entry and deletes it from storage.
func (i *Integration) RemoveEntry(ctx context.Context, id string) error {
	if err := i.UnloadEntry(ctx, id); err != nil && !errors.Is(err, ErrEntryNotLoaded) {
		return err
	}
	if err := i.repos.Entries.Delete(ctx, id); err != nil {
		return err
	}
	if err := i.repos.Mirror.Delete(ctx, id); err != nil {
		i.log.Warnw("integration_entry_mirror_delete_failed", "entry_id", id, "err", err)
	}
	return nil
}

func (i *Integration) Entries(ctx context.Context) ([]models.ConfigEntry, error) {
	return i.repos.Entries.List(ctx)
}

// Loaded reports whether an entry has a running coordinator.
func (i *Integration) Loaded(id string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.runtimes[id]
	return ok
}

// Coordinator returns the coordinator of a loaded entry.
func (i *Integration) Coordinator(entryID string) (*Coordinator, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	rt, ok := i.runtimes[entryID]
	if !ok {
		return nil, false
	}
	return rt.coord, true
}

// Climates returns all climate entities ordered by entity id.
func (i *Integration) Climates() []Climate {
	i.mu.RLock()
	out := make([]Climate, 0, len(i.climates))
	for _, a := range i.climates {
		out = append(out, a)
	}
	i.mu.RUnlock()

	sort.Slice(out, func(x, y int) bool { return out[x].EntityID() < out[y].EntityID() })
	return out
}

func (i *Integration) Climate(entityID string) (Climate, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	a, ok := i.climates[entityID]
	if !ok {
		return nil, ErrClimateNotFound
	}
	return a, nil
}

func (i *Integration) ClimateStates() []models.ClimateState {
	climates := i.Climates()
	out := make([]models.ClimateState, 0, len(climates))
	for _, c := range climates {
		out = append(out, c.State())
	}
	return out
}

// Close cancels background work, unloads every entry and waits for the
// publisher goroutine until ctx expires.
func (i *Integration) Close(ctx context.Context) {
	i.cancel()

	i.mu.RLock()
	ids := make([]string, 0, len(i.runtimes))
	for id := range i.runtimes {
		ids = append(ids, id)
	}
	i.mu.RUnlock()

	for _, id := range ids {
		_ = i.UnloadEntry(ctx, id)
	}

	select {
	case <-i.pubDone:
	case <-ctx.Done():
		i.log.Warnw("integration_publisher_stop_timeout", "err", ctx.Err())
	}
}

func (i *Integration) recordEvent(ctx context.Context, entryID, typ, description string) {
	err := i.repos.EventRepo.Append(ctx, models.IntegrationEvent{
		EntryID:     entryID,
		Type:        typ,
		Description: description,
	})
	if err != nil {
		i.log.Warnw("integration_event_append_failed", "entry_id", entryID, "type", typ, "err", err)
	}
}
