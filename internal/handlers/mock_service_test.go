package handlers

import (
	"context"
	"net/http"
	"sort"

	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockClimate struct {
	state models.ClimateState
	err   error

	lastMode        models.HVACMode
	lastFanMode     string
	lastTemperature *float64
	calls           []string
}

func (m *mockClimate) EntityID() string           { return m.state.EntityID }
func (m *mockClimate) State() models.ClimateState { return m.state }

func (m *mockClimate) SetHVACMode(_ context.Context, mode models.HVACMode) error {
	m.calls = append(m.calls, "set_hvac_mode")
	m.lastMode = mode
	return m.err
}
func (m *mockClimate) SetFanSpeed(_ context.Context, level int) error {
	m.calls = append(m.calls, "set_fan_speed")
	return m.err
}
func (m *mockClimate) SetFanMode(_ context.Context, mode string) error {
	m.calls = append(m.calls, "set_fan_mode")
	m.lastFanMode = mode
	return m.err
}
func (m *mockClimate) SetTemperature(_ context.Context, t *float64) error {
	m.calls = append(m.calls, "set_temperature")
	m.lastTemperature = t
	return m.err
}
func (m *mockClimate) TurnOn(context.Context) error {
	m.calls = append(m.calls, "turn_on")
	return m.err
}
func (m *mockClimate) TurnOff(context.Context) error {
	m.calls = append(m.calls, "turn_off")
	return m.err
}

type mockMonitoring struct {
	climates map[string]*mockClimate
}

func newMockMonitoring(climates ...*mockClimate) *mockMonitoring {
	m := &mockMonitoring{climates: map[string]*mockClimate{}}
	for _, c := range climates {
		m.climates[c.state.EntityID] = c
	}
	return m
}

func (m *mockMonitoring) Climates() []service.Climate {
	out := make([]service.Climate, 0, len(m.climates))
	for _, c := range m.climates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}
func (m *mockMonitoring) Climate(entityID string) (service.Climate, error) {
	c, ok := m.climates[entityID]
	if !ok {
		return nil, service.ErrClimateNotFound
	}
	return c, nil
}
func (m *mockMonitoring) ClimateStates() []models.ClimateState {
	out := make([]models.ClimateState, 0, len(m.climates))
	for _, c := range m.Climates() {
		out = append(out, c.State())
	}
	return out
}

type mockEntries struct {
	entries    []models.ConfigEntry
	listErr    error
	removeErr  error
	lastRemove string
}

func (m *mockEntries) Entries(context.Context) ([]models.ConfigEntry, error) {
	return m.entries, m.listErr
}
func (m *mockEntries) RemoveEntry(_ context.Context, id string) error {
	m.lastRemove = id
	return m.removeErr
}

type mockFlow struct {
	form      service.FlowResult
	result    service.FlowResult
	err       error
	lastInput map[string]any
}

func (m *mockFlow) ShowForm() service.FlowResult { return m.form }
func (m *mockFlow) StepUser(_ context.Context, input map[string]any) (service.FlowResult, error) {
	m.lastInput = input
	return m.result, m.err
}

type mockEventLog struct {
	resp       []models.IntegrationEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.IntegrationEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
