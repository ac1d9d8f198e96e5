package models

import "time"

// Event types recorded by the integration.
const (
	EventSetup         = "SETUP"
	EventUnload        = "UNLOAD"
	EventEntryCreated  = "ENTRY_CREATED"
	EventRefreshFailed = "REFRESH_FAILED"
	EventTokensRotated = "TOKENS_ROTATED"
	EventCommand       = "COMMAND"
)

// IntegrationEvent is a single log entry.
type IntegrationEvent struct {
	EventID     string    `json:"event_id"`
	EntryID     string    `json:"entry_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // SETUP | UNLOAD | ENTRY_CREATED | REFRESH_FAILED | TOKENS_ROTATED | COMMAND
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
