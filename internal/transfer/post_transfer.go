package transfer

import (
	"encoding/json"
	"time"
)

type PostCreation struct {
	Content      string    `json:"content"`
	ScheduledFor time.Time `json:"scheduled_for"`
	// Mode is one of "draft", "schedule" or "now".
	Mode string `json:"mode"`
}

type PostNow struct {
	Content string `json:"content"`
}

type PostUpdate struct {
	Content      string    `json:"content"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Status       string    `json:"status"`
}

// PublishResult is the outcome of a publish entrypoint call. Details carries
// the X error payload unchanged when the platform rejected the post.
type PublishResult struct {
	Success    bool            `json:"success"`
	PostID     int64           `json:"post_id,omitempty"`
	RemoteID   string          `json:"remote_id,omitempty"`
	Error      string          `json:"error,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	HTTPStatus int             `json:"status,omitempty"`
}

type VerifyResult struct {
	Success    bool            `json:"success"`
	User       *XUser          `json:"user,omitempty"`
	Error      string          `json:"error,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	HTTPStatus int             `json:"status,omitempty"`
}

type TriggerSummary struct {
	Found     int `json:"found"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
