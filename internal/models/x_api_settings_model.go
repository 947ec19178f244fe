package models

import "time"

// XApiSettings holds a user's X API credentials. The secret fields are
// encrypted at rest; repositories return them as stored.
type XApiSettings struct {
	ID                int64     `db:"id" json:"id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	ApiKey            string    `db:"api_key" json:"api_key"`
	ApiKeySecret      string    `db:"api_key_secret" json:"-"`
	AccessToken       string    `db:"access_token" json:"access_token"`
	AccessTokenSecret string    `db:"access_token_secret" json:"-"`
	BearerToken       string    `db:"bearer_token" json:"-"`
	IsConnected       bool      `db:"is_connected" json:"is_connected"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Complete reports whether the four values OAuth 1.0a signing needs are set.
func (s *XApiSettings) Complete() bool {
	return s.ApiKey != "" && s.ApiKeySecret != "" && s.AccessToken != "" && s.AccessTokenSecret != ""
}
