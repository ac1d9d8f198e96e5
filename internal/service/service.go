package service

import (
	"context"

	"atmeex_cloud/internal/models"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Monitoring exposes the loaded climate entities.
type Monitoring interface {
	Climates() []Climate
	Climate(entityID string) (Climate, error)
	ClimateStates() []models.ClimateState
}

// EntryManager lists and removes stored vendor accounts.
type EntryManager interface {
	Entries(ctx context.Context) ([]models.ConfigEntry, error)
	RemoveEntry(ctx context.Context, id string) error
}

// Flow is the interactive account setup.
type Flow interface {
	ShowForm() FlowResult
	StepUser(ctx context.Context, input map[string]any) (FlowResult, error)
}

// EventLog exposes the append-only integration log with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.IntegrationEvent, error)
}

// Service aggregates everything the HTTP layer calls.
type Service struct {
	Authorization
	Monitoring
	EntryManager
	Flow
	EventLog
}

var (
	_ Authorization = (*AuthService)(nil)
	_ Monitoring    = (*Integration)(nil)
	_ EntryManager  = (*Integration)(nil)
	_ Flow          = (*ConfigFlow)(nil)
	_ EventLog      = (*EventLogService)(nil)
)

// NewService wires the integration and its collaborators into one aggregate.
func NewService(auth *AuthService, integ *Integration, flow *ConfigFlow, events *EventLogService) *Service {
	return &Service{
		Authorization: auth,
		Monitoring:    integ,
		EntryManager:  integ,
		Flow:          flow,
		EventLog:      events,
	}
}
