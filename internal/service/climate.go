package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"atmeex_cloud/internal/logger"
	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/repository"
)

var (
	ErrUnrecognizedMode = errors.New("unrecognized hvac mode")
	ErrInvalidFanMode   = errors.New("invalid fan mode: must be 1..7")
	ErrClimateNotFound  = errors.New("climate entity not found")
)

// StateView is the displayable side of a climate entity.
type StateView interface {
	EntityID() string
	State() models.ClimateState
}

// CommandTarget is the controllable side of a climate entity.
type CommandTarget interface {
	SetHVACMode(ctx context.Context, mode models.HVACMode) error
	SetFanSpeed(ctx context.Context, level int) error
	SetFanMode(ctx context.Context, mode string) error
	SetTemperature(ctx context.Context, temperature *float64) error
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// Climate is one climate entity.
type Climate interface {
	StateView
	CommandTarget
}

// refreshSource is what an adapter needs from its coordinator.
type refreshSource interface {
	RequestRefresh(ctx context.Context)
	LastUpdateSuccess() bool
}

type ClimateOptions struct {
	Events   repository.EventRepo
	Metrics  *Metrics
	Log      *logger.Logger
	OnChange func(models.ClimateState)
}

// ClimateAdapter maps one vendor device onto a climate entity.
type ClimateAdapter struct {
	entryID  string
	deviceID int64
	entityID string

	coord    refreshSource
	events   repository.EventRepo
	metrics  *Metrics
	log      *logger.Logger
	onChange func(models.ClimateState)

	// cmdMu serializes commands on this device; refreshes are not excluded.
	cmdMu sync.Mutex

	mu          sync.RWMutex
	device      DeviceProxy
	present     bool
	name        string
	hvacMode    models.HVACMode
	lastMode    models.HVACMode
	targetTemp  float64
	fanMode     string
	currentTemp float64
	humidity    float64
	updatedAt   time.Time
}

var _ Climate = (*ClimateAdapter)(nil)

func NewClimateAdapter(entryID string, device DeviceProxy, coord refreshSource, opts ClimateOptions) *ClimateAdapter {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	snap := device.Snapshot()
	a := &ClimateAdapter{
		entryID:  entryID,
		deviceID: snap.ID,
		entityID: ClimateEntityID(snap.ID),
		coord:    coord,
		events:   opts.Events,
		metrics:  opts.Metrics,
		log:      opts.Log,
		onChange: opts.OnChange,
		device:   device,
		present:  true,
	}
	a.applySnapshot(snap)
	return a
}

// ClimateEntityID is the stable entity id of a device.
func ClimateEntityID(deviceID int64) string {
	return "climate.atmeex_" + strconv.FormatInt(deviceID, 10)
}

func (a *ClimateAdapter) EntityID() string { return a.entityID }
func (a *ClimateAdapter) EntryID() string  { return a.entryID }
func (a *ClimateAdapter) DeviceID() int64  { return a.deviceID }

// applySnapshot must be called with mu held or before the adapter is shared.
func (a *ClimateAdapter) applySnapshot(s models.DeviceSnapshot) {
	a.name = s.Name
	a.fanMode = strconv.Itoa(s.FanSpeed + 1)
	a.targetTemp = s.RoomTemperature
	a.hvacMode = s.Mode()
	a.currentTemp = s.CurrentTemperature
	a.humidity = s.Humidity
	a.updatedAt = time.Now().UTC()
}

func (a *ClimateAdapter) State() models.ClimateState {
	lastOK := a.coord.LastUpdateSuccess()

	a.mu.RLock()
	defer a.mu.RUnlock()
	return models.ClimateState{
		EntityID:           a.entityID,
		EntryID:            a.entryID,
		DeviceID:           a.deviceID,
		Name:               a.name,
		Available:          a.present && lastOK,
		HVACMode:           a.hvacMode,
		HVACModes:          models.HVACModes,
		TargetTemperature:  a.targetTemp,
		CurrentTemperature: a.currentTemp,
		Humidity:           a.humidity,
		FanMode:            a.fanMode,
		FanModes:           models.FanModes,
		MinTemp:            models.ClimateMinTemp,
		MaxTemp:            models.ClimateMaxTemp,
		TargetTempStep:     models.ClimateTargetTempStep,
		Unit:               models.ClimateUnit,
		Icon:               models.ClimateIcon,
		UpdatedAt:          a.updatedAt,
	}
}

// Sync reconciles the adapter with a refreshed device list. A device missing from
// the list only marks the adapter unavailable; the stale handle keeps taking commands.
func (a *ClimateAdapter) Sync(devices []DeviceProxy) {
	var match DeviceProxy
	for _, d := range devices {
		if d.Snapshot().ID == a.deviceID {
			match = d
			break
		}
	}

	a.mu.Lock()
	if match == nil {
		if a.present {
			a.log.Warnw("climate_device_missing", "entity_id", a.entityID, "device_id", a.deviceID)
		}
		a.present = false
	} else {
		a.device = match
		a.present = true
		a.applySnapshot(match.Snapshot())
	}
	a.mu.Unlock()

	state := a.State()
	a.metrics.observeAvailability(a.entityID, a.deviceID, state.Available)
	if a.onChange != nil {
		a.onChange(state)
	}
}

func (a *ClimateAdapter) current() (DeviceProxy, models.HVACMode, float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.device, a.hvacMode, a.targetTemp
}

func (a *ClimateAdapter) SetHVACMode(ctx context.Context, mode models.HVACMode) error {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	return a.setHVACMode(ctx, mode)
}

func (a *ClimateAdapter) setHVACMode(ctx context.Context, target models.HVACMode) error {
	device, current, savedTarget := a.current()
	a.log.Infow("climate_set_hvac_mode", "entity_id", a.entityID, "target", target, "current", current)

	var err error
	switch {
	case target == current:
		a.log.Debugw("climate_hvac_mode_unchanged", "entity_id", a.entityID, "mode", current)
	case target == models.HVACModeOff:
		a.mu.Lock()
		a.lastMode = current
		a.mu.Unlock()
		err = device.SetPower(ctx, false)
	case target == models.HVACModeHeat:
		if current == models.HVACModeOff {
			err = device.SetPower(ctx, true)
		}
		if err == nil {
			err = device.SetHeatTemp(ctx, savedTarget)
		}
	case target == models.HVACModeFanOnly:
		if current == models.HVACModeOff {
			err = device.SetPower(ctx, true)
		}
		if err == nil {
			err = device.SetHeatTemp(ctx, models.FanOnlyTemperature)
		}
	default:
		a.log.Errorw("climate_unrecognized_hvac_mode", "entity_id", a.entityID, "mode", target)
		return fmt.Errorf("%w: %q", ErrUnrecognizedMode, target)
	}

	a.recordCommand(ctx, "set_hvac_mode", string(target), err)
	if err != nil {
		return err
	}
	a.coord.RequestRefresh(ctx)
	return nil
}

// SetFanSpeed takes the one-based display level; the device receives level-1.
func (a *ClimateAdapter) SetFanSpeed(ctx context.Context, level int) error {
	if level < models.MinFanLevel || level > models.MaxFanLevel {
		return fmt.Errorf("%w: got %d", ErrInvalidFanMode, level)
	}
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	device, _, _ := a.current()
	err := device.SetFanSpeed(ctx, level-1)
	a.recordCommand(ctx, "set_fan_mode", strconv.Itoa(level), err)
	if err != nil {
		return err
	}
	a.coord.RequestRefresh(ctx)
	return nil
}

// SetFanMode accepts one of models.FanModes.
func (a *ClimateAdapter) SetFanMode(ctx context.Context, mode string) error {
	level, err := strconv.Atoi(strings.TrimSpace(mode))
	if err != nil {
		return fmt.Errorf("%w: got %q", ErrInvalidFanMode, mode)
	}
	return a.SetFanSpeed(ctx, level)
}

// SetTemperature forwards any value as is, whatever the current mode. nil is a no-op.
func (a *ClimateAdapter) SetTemperature(ctx context.Context, temperature *float64) error {
	if temperature == nil {
		return nil
	}
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	device, _, _ := a.current()
	err := device.SetHeatTemp(ctx, *temperature)
	a.recordCommand(ctx, "set_temperature", strconv.FormatFloat(*temperature, 'f', -1, 64), err)
	if err != nil {
		return err
	}
	a.coord.RequestRefresh(ctx)
	return nil
}

// TurnOn restores the mode active before the last turn-off, fan only if none.
func (a *ClimateAdapter) TurnOn(ctx context.Context) error {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	a.mu.RLock()
	current, last := a.hvacMode, a.lastMode
	a.mu.RUnlock()

	if current != models.HVACModeOff {
		return nil
	}
	if last == "" {
		return a.setHVACMode(ctx, models.HVACModeFanOnly)
	}
	return a.setHVACMode(ctx, last)
}

func (a *ClimateAdapter) TurnOff(ctx context.Context) error {
	return a.SetHVACMode(ctx, models.HVACModeOff)
}

func (a *ClimateAdapter) recordCommand(ctx context.Context, command, value string, err error) {
	a.metrics.observeCommand(command, err)
	if err != nil {
		a.log.Errorw("climate_command_failed", "entity_id", a.entityID, "command", command, "value", value, "err", err)
	}
	if a.events == nil {
		return
	}
	meta := map[string]any{"entity_id": a.entityID, "command": command, "value": value}
	if err != nil {
		meta["error"] = err.Error()
	}
	if aerr := a.events.Append(ctx, models.IntegrationEvent{
		EntryID:     a.entryID,
		Type:        models.EventCommand,
		Description: fmt.Sprintf("%s %s on %s", command, value, a.entityID),
		Metadata:    meta,
	}); aerr != nil {
		a.log.Warnw("climate_event_append_failed", "entity_id", a.entityID, "err", aerr)
	}
}
