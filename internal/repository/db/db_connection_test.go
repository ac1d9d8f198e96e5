package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/repository"
)

func TestInitDB_SchemaRoundTrip(t *testing.T) {
	conn, err := InitDB(filepath.Join(t.TempDir(), "atmeex.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	repos := repository.NewRepository(conn, nil)

	entry := models.ConfigEntry{
		ID: "e1", Title: "user@example.com", Email: "user@example.com",
		Password: "pw", AccessToken: "a1", RefreshToken: "r1",
	}
	if err := repos.Entries.Create(ctx, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repos.Entries.UpdateTokens(ctx, "e1", "a2", "r2"); err != nil {
		t.Fatalf("UpdateTokens: %v", err)
	}
	got, err := repos.Entries.Get(ctx, "e1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken != "a2" || got.RefreshToken != "r2" {
		t.Fatalf("tokens not updated: %+v", got)
	}

	if err := repos.EventRepo.Append(ctx, models.IntegrationEvent{
		EntryID: "e1", Type: models.EventTokensRotated, Description: "tokens rotated",
		OccurredAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	events, err := repos.EventRepo.List(ctx, repository.EventQuery{EntryID: "e1", Type: "tokens_rotated"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("want 1 event, got %d", len(events))
	}

	if _, err := repos.Auth.Create(ctx, "admin", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	u, err := repos.Auth.GetByUsername(ctx, "admin")
	if err != nil || u == nil {
		t.Fatalf("GetByUsername = (%v, %v)", u, err)
	}
}
