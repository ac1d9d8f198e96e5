package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"atmeex_cloud/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newEventRepo(t *testing.T) (*EventSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("mock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewEventSQLite(db), mock
}

var eventColumns = []string{"id", "entry_id", "occurred_at", "type", "message", "meta"}

func TestAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()
	repo, mock := newEventRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), "entry-1", sqlmock.AnyArg(), "COMMAND", "set hvac mode", `{"hvac_mode":"heat"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.IntegrationEvent{
		EntryID:     "entry-1",
		Type:        "  command ",
		Description: "set hvac mode",
		Metadata:    map[string]any{"hvac_mode": "heat"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestAppend_FormatsTimestampInUTC(t *testing.T) {
	t.Parallel()
	repo, mock := newEventRepo(t)

	at := time.Date(2025, 6, 1, 15, 4, 5, 0, time.FixedZone("UTC+3", 3*3600))
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs("ev-1", "", "2025-06-01 12:04:05", "SETUP", "entry loaded", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.IntegrationEvent{
		EventID:     "ev-1",
		OccurredAt:  at,
		Type:        models.EventSetup,
		Description: "entry loaded",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()
	repo, mock := newEventRepo(t)

	mock.ExpectExec("INSERT INTO integration_events").
		WillReturnError(errors.New("down"))

	err := repo.Append(ctx(t), models.IntegrationEvent{Type: "setup", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestList_NoFilters_And_MetadataParsing(t *testing.T) {
	t.Parallel()
	repo, mock := newEventRepo(t)

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"a": "b"})

	rows := sqlmock.NewRows(eventColumns).
		AddRow("1", "e", now, "SETUP", "m1", string(js)).
		AddRow("2", "e", now.Add(time.Hour), "REFRESH_FAILED", "m2", nil).
		AddRow("3", "", now.Add(2*time.Hour), "COMMAND", "m3", "{not json")

	mock.ExpectQuery(regexp.QuoteMeta(selectEventSQL + ` ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3, got %d", len(got))
	}
	b1, _ := json.Marshal(got[0].Metadata)
	if string(b1) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", string(b1), string(js))
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != "{not json" {
		t.Fatalf("expected raw meta kept, got %#v", got[2].Metadata)
	}
}

func TestList_WithFilters_OrderAndArgs(t *testing.T) {
	t.Parallel()
	repo, mock := newEventRepo(t)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	query := selectEventSQL + ` WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? AND entry_id = ? ORDER BY occurred_at ASC`

	rows := sqlmock.NewRows(eventColumns).
		AddRow("2", "entry-9", from, "COMMAND", "b", nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("2025-01-01 11:00:00", "2025-01-01 12:00:00", "COMMAND", "entry-9").
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventQuery{From: from, To: to, Type: " command ", EntryID: "entry-9"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "2" || got[0].EntryID != "entry-9" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestList_ScanError(t *testing.T) {
	t.Parallel()
	repo, mock := newEventRepo(t)

	rows := sqlmock.NewRows(eventColumns).
		AddRow("x", "", 123, "SETUP", "msg", nil)

	mock.ExpectQuery(regexp.QuoteMeta(selectEventSQL + ` ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	if _, err := repo.List(ctx(t), EventQuery{}); err == nil {
		t.Fatalf("expected scan error, got nil")
	}
}
