package model

import "time"

// Session is a brokerage-issued access token plus local metadata. At most
// one live session exists per process; the token itself is opaque.
type Session struct {
	AccessToken string    `json:"access_token"`
	APIKey      string    `json:"api_key"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Age returns how long ago the session was created.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
