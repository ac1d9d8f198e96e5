package service

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects integration counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	refreshes     *prometheus.CounterVec
	tokenRotation *prometheus.CounterVec
	commands      *prometheus.CounterVec
	devices       *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec
	available     *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atmeex_coordinator_refresh_total",
			Help: "Coordinator refreshes by result",
		}, []string{"entry_id", "result"}),
		tokenRotation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atmeex_token_persist_total",
			Help: "Token rotations written back to storage by result",
		}, []string{"entry_id", "result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atmeex_climate_commands_total",
			Help: "Climate commands issued by kind and result",
		}, []string{"command", "result"}),
		devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "atmeex_devices",
			Help: "Devices returned by the last successful refresh",
		}, []string{"entry_id"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "atmeex_last_refresh_success",
			Help: "Last refresh success (1=ok, 0=error)",
		}, []string{"entry_id"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "atmeex_climate_available",
			Help: "Climate entity availability (1=available, 0=unavailable)",
		}, []string{"entity_id", "device_id"}),
	}
}

// MustRegister registers every collector on reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.refreshes, m.tokenRotation, m.commands, m.devices, m.lastSuccess, m.available)
}

func (m *Metrics) observeRefresh(entryID string, devices int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.refreshes.WithLabelValues(entryID, "error").Inc()
		m.lastSuccess.WithLabelValues(entryID).Set(0)
		return
	}
	m.refreshes.WithLabelValues(entryID, "ok").Inc()
	m.lastSuccess.WithLabelValues(entryID).Set(1)
	m.devices.WithLabelValues(entryID).Set(float64(devices))
}

func (m *Metrics) observeTokenPersist(entryID string, err error) {
	if m == nil {
		return
	}
	m.tokenRotation.WithLabelValues(entryID, resultLabel(err)).Inc()
}

func (m *Metrics) observeCommand(command string, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, resultLabel(err)).Inc()
}

func (m *Metrics) observeAvailability(entityID string, deviceID int64, available bool) {
	if m == nil {
		return
	}
	v := 0.0
	if available {
		v = 1
	}
	m.available.WithLabelValues(entityID, strconv.FormatInt(deviceID, 10)).Set(v)
}

func (m *Metrics) forgetEntry(entryID string) {
	if m == nil {
		return
	}
	m.devices.DeleteLabelValues(entryID)
	m.lastSuccess.DeleteLabelValues(entryID)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
