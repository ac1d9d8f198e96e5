package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/repository"
)

// LogFilter selects events by inclusive time range, type and entry. Zero values match all.
type LogFilter struct {
	From    time.Time
	To      time.Time
	Type    string
	EntryID string
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errUnknownEventType = errors.New("unknown event type")
)

var knownEventTypes = map[string]struct{}{
	models.EventSetup:         {},
	models.EventUnload:        {},
	models.EventEntryCreated:  {},
	models.EventRefreshFailed: {},
	models.EventTokensRotated: {},
	models.EventCommand:       {},
}

func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

func normalizeAndValidateFilter(f LogFilter) (repository.EventQuery, error) {
	q := repository.EventQuery{
		From:    normalizeToUTC(f.From),
		To:      normalizeToUTC(f.To),
		Type:    normalizeEventType(f.Type),
		EntryID: strings.TrimSpace(f.EntryID),
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, errInvalidTimeRange
	}
	if q.Type != "" {
		if _, ok := knownEventTypes[q.Type]; !ok {
			return repository.EventQuery{}, fmt.Errorf("%w: %q", errUnknownEventType, q.Type)
		}
	}
	return q, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.IntegrationEvent, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}

// IsFilterError reports whether err was caused by an invalid LogFilter.
func IsFilterError(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errUnknownEventType)
}
