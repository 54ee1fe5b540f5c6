package model

import "time"

// Session is the token pair adopted from the auth provider, cached in
// Redis keyed by user.
type Session struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	RefreshedAt  time.Time `json:"refreshed_at"`
}
