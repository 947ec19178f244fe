package models

import "time"

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublished, PostStatusFailed:
		return true
	}
	return false
}

// Post is a single X post owned by one user. Published is true exactly when
// Status is published, and RemoteID is set exactly then too.
type Post struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Content        string     `db:"content" json:"content"`
	ScheduledFor   time.Time  `db:"scheduled_for" json:"scheduled_for"`
	Status         PostStatus `db:"status" json:"status"`
	Published      bool       `db:"published" json:"published"`
	RemoteID       *string    `db:"remote_id" json:"remote_id,omitempty"`
	LastError      *string    `db:"last_error" json:"last_error,omitempty"`
	LeaseToken     *string    `db:"lease_token" json:"-"`
	LeaseExpiresAt *time.Time `db:"lease_expires_at" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Leased reports whether a publish attempt currently holds the post.
func (p *Post) Leased(now time.Time) bool {
	return p.LeaseToken != nil && p.LeaseExpiresAt != nil && p.LeaseExpiresAt.After(now)
}
