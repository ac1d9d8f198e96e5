package service

import (
	"context"
	"sort"
	"sync"

	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/repository"
)

type deviceCall struct {
	Method string
	Value  any
}

// fakeDevice applies commands to its own snapshot, as the cloud would on the next listing.
type fakeDevice struct {
	mu    sync.Mutex
	snap  models.DeviceSnapshot
	calls []deviceCall
	err   error
}

func newFakeDevice(id int64, powerOn bool, roomTemp float64, fanSpeed int) *fakeDevice {
	return &fakeDevice{snap: models.DeviceSnapshot{
		ID: id, Name: "Device", Online: true,
		PowerOn: powerOn, RoomTemperature: roomTemp, FanSpeed: fanSpeed,
		CurrentTemperature: 20.5, Humidity: 40,
	}}
}

func (d *fakeDevice) Snapshot() models.DeviceSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

func (d *fakeDevice) record(method string, v any) error {
	d.calls = append(d.calls, deviceCall{Method: method, Value: v})
	return d.err
}

func (d *fakeDevice) SetPower(_ context.Context, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("SetPower", on); err != nil {
		return err
	}
	d.snap.PowerOn = on
	return nil
}

func (d *fakeDevice) SetHeatTemp(_ context.Context, temperature float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("SetHeatTemp", temperature); err != nil {
		return err
	}
	d.snap.RoomTemperature = temperature
	return nil
}

func (d *fakeDevice) SetFanSpeed(_ context.Context, speed int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("SetFanSpeed", speed); err != nil {
		return err
	}
	d.snap.FanSpeed = speed
	return nil
}

func (d *fakeDevice) Calls() []deviceCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]deviceCall, len(d.calls))
	copy(out, d.calls)
	return out
}

// fakeVendorClient serves a fixed device list and exposes settable tokens.
type fakeVendorClient struct {
	mu       sync.Mutex
	devices  []DeviceProxy
	err      error
	access   string
	refresh  string
	restored [][2]string
	calls    int
	block    chan struct{}
	started  chan struct{}
}

func (c *fakeVendorClient) GetDevices(ctx context.Context) ([]DeviceProxy, error) {
	c.mu.Lock()
	c.calls++
	block, started := c.block, c.started
	c.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([]DeviceProxy, len(c.devices))
	copy(out, c.devices)
	return out, nil
}

func (c *fakeVendorClient) RestoreTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restored = append(c.restored, [2]string{access, refresh})
	c.access, c.refresh = access, refresh
}

func (c *fakeVendorClient) Tokens() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access, c.refresh
}

func (c *fakeVendorClient) setTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access, c.refresh = access, refresh
}

func (c *fakeVendorClient) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *fakeVendorClient) setDevices(devices ...DeviceProxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = devices
}

func (c *fakeVendorClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeEntryRepo is an in-memory repository.ConfigEntryRepo.
type fakeEntryRepo struct {
	mu           sync.Mutex
	entries      map[string]models.ConfigEntry
	tokenUpdates [][3]string
	updateErr    error
}

func newFakeEntryRepo(entries ...models.ConfigEntry) *fakeEntryRepo {
	r := &fakeEntryRepo{entries: map[string]models.ConfigEntry{}}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return r
}

var _ repository.ConfigEntryRepo = (*fakeEntryRepo)(nil)

func (r *fakeEntryRepo) Create(_ context.Context, e models.ConfigEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.ID] = e
	return nil
}

func (r *fakeEntryRepo) Get(_ context.Context, id string) (models.ConfigEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return models.ConfigEntry{}, repository.ErrEntryNotFound
	}
	return e, nil
}

func (r *fakeEntryRepo) GetByEmail(_ context.Context, email string) (*models.ConfigEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Email == email {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (r *fakeEntryRepo) List(_ context.Context) ([]models.ConfigEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ConfigEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeEntryRepo) UpdateTokens(_ context.Context, id, access, refresh string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenUpdates = append(r.tokenUpdates, [3]string{id, access, refresh})
	if r.updateErr != nil {
		return r.updateErr
	}
	e := r.entries[id]
	e.AccessToken, e.RefreshToken = access, refresh
	r.entries[id] = e
	return nil
}

func (r *fakeEntryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return repository.ErrEntryNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *fakeEntryRepo) TokenUpdates() [][3]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][3]string, len(r.tokenUpdates))
	copy(out, r.tokenUpdates)
	return out
}

// fakeCoordinator stands in for *Coordinator in adapter tests.
type fakeCoordinator struct {
	ok        bool
	refreshes int
	onRefresh func()
}

func (c *fakeCoordinator) RequestRefresh(context.Context) {
	c.refreshes++
	if c.onRefresh != nil {
		c.onRefresh()
	}
}

func (c *fakeCoordinator) LastUpdateSuccess() bool { return c.ok }

// fakePublisher records published states.
type fakePublisher struct {
	mu     sync.Mutex
	states []models.ClimateState
}

func (p *fakePublisher) PublishState(_ context.Context, s models.ClimateState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, s)
	return nil
}

func (p *fakePublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

// stuckPublisher never completes a publish on its own, like a broker that stopped acking.
type stuckPublisher struct {
	entered chan struct{}
}

func (p *stuckPublisher) PublishState(ctx context.Context, _ models.ClimateState) error {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}
