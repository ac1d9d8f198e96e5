package models

import "time"

// ConfigEntry is the stored account of one vendor login.
// Tokens are rewritten only when the vendor rotates them.
type ConfigEntry struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokensDiffer reports whether the stored token pair differs from the given one.
func (e ConfigEntry) TokensDiffer(access, refresh string) bool {
	return e.AccessToken != access || e.RefreshToken != refresh
}
