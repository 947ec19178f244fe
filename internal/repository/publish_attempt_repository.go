package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/maheshrc27/xscheduler/internal/models"
)

type PublishAttemptRepository interface {
	Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error)
	ListByPost(ctx context.Context, postID, userID int64) ([]*models.PublishAttempt, error)
	RecordedRemoteID(ctx context.Context, postID int64) (string, bool, error)
}

type publishAttemptRepository struct {
	db *sql.DB
}

func NewPublishAttemptRepository(db *sql.DB) PublishAttemptRepository {
	return &publishAttemptRepository{db: db}
}

func (r *publishAttemptRepository) Create(ctx context.Context, a *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (user_id, post_id, http_status, remote_id, error_message, retriable)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, a.UserID, a.PostID, a.HTTPStatus, a.RemoteID, a.ErrorMessage, a.Retriable).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *publishAttemptRepository) ListByPost(ctx context.Context, postID, userID int64) ([]*models.PublishAttempt, error) {
	query := `
		SELECT id, user_id, post_id, http_status, remote_id, error_message, retriable, created_at
		FROM publish_attempts
		WHERE post_id = $1 AND user_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, postID, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.PublishAttempt
	for rows.Next() {
		var a models.PublishAttempt
		err := rows.Scan(&a.ID, &a.UserID, &a.PostID, &a.HTTPStatus, &a.RemoteID, &a.ErrorMessage, &a.Retriable, &a.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// RecordedRemoteID returns the remote id of the latest attempt X accepted.
func (r *publishAttemptRepository) RecordedRemoteID(ctx context.Context, postID int64) (string, bool, error) {
	query := `
		SELECT remote_id
		FROM publish_attempts
		WHERE post_id = $1 AND remote_id <> ''
		ORDER BY created_at DESC
		LIMIT 1
	`
	var remoteID string
	err := r.db.QueryRowContext(ctx, query, postID).Scan(&remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		slog.Info(err.Error())
		return "", false, err
	}
	return remoteID, true, nil
}
