package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atmeex_cloud/internal/models"
)

type EntrySQLite struct {
	db *sql.DB
}

func NewEntrySQLite(db *sql.DB) *EntrySQLite {
	return &EntrySQLite{db: db}
}

var _ ConfigEntryRepo = (*EntrySQLite)(nil)

const (
	entryColumns = `id, title, email, password, access_token, refresh_token, created_at, updated_at`

	insertEntrySQL = `INSERT INTO config_entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectEntryByIDSQL    = `SELECT ` + entryColumns + ` FROM config_entries WHERE id = ?`
	selectEntryByEmailSQL = `SELECT ` + entryColumns + ` FROM config_entries WHERE email = ?`
	selectEntriesSQL      = `SELECT ` + entryColumns + ` FROM config_entries ORDER BY created_at ASC`

	updateEntryTokensSQL = `UPDATE config_entries SET access_token = ?, refresh_token = ?, updated_at = ? WHERE id = ?`
	deleteEntrySQL       = `DELETE FROM config_entries WHERE id = ?`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.ConfigEntry, error) {
	var e models.ConfigEntry
	err := row.Scan(&e.ID, &e.Title, &e.Email, &e.Password, &e.AccessToken, &e.RefreshToken, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return models.ConfigEntry{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

// Create stores a new entry. CreatedAt/UpdatedAt default to now.
func (r *EntrySQLite) Create(ctx context.Context, e models.ConfigEntry) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, insertEntrySQL,
		e.ID, e.Title, e.Email, e.Password, e.AccessToken, e.RefreshToken,
		e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert config entry %q: %w", e.Email, err)
	}
	return nil
}

func (r *EntrySQLite) Get(ctx context.Context, id string) (models.ConfigEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectEntryByIDSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConfigEntry{}, ErrEntryNotFound
		}
		return models.ConfigEntry{}, fmt.Errorf("select config entry %q: %w", id, err)
	}
	return e, nil
}

// GetByEmail returns (nil, nil) if no entry uses the email.
func (r *EntrySQLite) GetByEmail(ctx context.Context, email string) (*models.ConfigEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectEntryByEmailSQL, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select config entry by email %q: %w", email, err)
	}
	return &e, nil
}

func (r *EntrySQLite) List(ctx context.Context) ([]models.ConfigEntry, error) {
	rows, err := r.db.QueryContext(ctx, selectEntriesSQL)
	if err != nil {
		return nil, fmt.Errorf("list config entries: %w", err)
	}
	defer rows.Close()

	out := make([]models.ConfigEntry, 0, 4)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTokens rewrites both tokens in one statement.
func (r *EntrySQLite) UpdateTokens(ctx context.Context, id, access, refresh string) error {
	res, err := r.db.ExecContext(ctx, updateEntryTokensSQL, access, refresh, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update tokens of entry %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for entry %q: %w", id, err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *EntrySQLite) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteEntrySQL, id)
	if err != nil {
		return fmt.Errorf("delete config entry %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for entry %q: %w", id, err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}
