package models

import "time"

// PublishAttempt records the outcome of one remote publish call.
type PublishAttempt struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	PostID       int64     `db:"post_id" json:"post_id"`
	HTTPStatus   int       `db:"http_status" json:"http_status"`
	RemoteID     string    `db:"remote_id" json:"remote_id,omitempty"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	Retriable    bool      `db:"retriable" json:"retriable"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
