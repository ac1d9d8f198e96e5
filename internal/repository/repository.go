package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"atmeex_cloud/internal/models"
)

// ErrEntryNotFound is returned when no config entry matches the id.
var ErrEntryNotFound = errors.New("config entry not found")

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// ConfigEntryRepo stores vendor accounts. UpdateTokens is the only write issued after creation.
type ConfigEntryRepo interface {
	Create(ctx context.Context, e models.ConfigEntry) error
	Get(ctx context.Context, id string) (models.ConfigEntry, error)
	GetByEmail(ctx context.Context, email string) (*models.ConfigEntry, error)
	List(ctx context.Context) ([]models.ConfigEntry, error)
	UpdateTokens(ctx context.Context, id, access, refresh string) error
	Delete(ctx context.Context, id string) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.IntegrationEvent) error
	List(ctx context.Context, f EventQuery) ([]models.IntegrationEvent, error)
}

// EventQuery filters the event log. Zero values disable a condition.
type EventQuery struct {
	From    time.Time
	To      time.Time
	Type    string
	EntryID string
}

// EntryMirror keeps an off-site copy of config entries.
type EntryMirror interface {
	Save(ctx context.Context, e models.ConfigEntry) error
	Delete(ctx context.Context, id string) error
}

type Repository struct {
	Entries   ConfigEntryRepo
	EventRepo EventRepo
	Auth      Authorization
	Mirror    EntryMirror
}

// NewRepository wires the SQLite repositories. mirror may be nil.
func NewRepository(db *sql.DB, mirror EntryMirror) *Repository {
	if mirror == nil {
		mirror = NopMirror{}
	}
	return &Repository{
		Entries:   NewEntrySQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
		Mirror:    mirror,
	}
}
