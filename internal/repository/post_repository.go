package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/xscheduler/internal/models"
)

// Lease is an exclusive, time-bounded claim on a post. The token must be
// presented to resolve the claim.
type Lease struct {
	Token     string
	ExpiresAt time.Time
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (int64, error)
	CreateLeased(ctx context.Context, post *models.Post, lease Lease) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Post, error)
	ListByUser(ctx context.Context, userID int64, status models.PostStatus) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	UpdateContent(ctx context.Context, post *models.Post, now time.Time) (bool, error)
	ClaimDue(ctx context.Context, id int64, lease Lease, now time.Time) (*models.Post, error)
	ClaimFailed(ctx context.Context, id, userID int64, lease Lease, now time.Time) (*models.Post, error)
	MarkPublished(ctx context.Context, id int64, leaseToken, remoteID string, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, leaseToken, lastError string, now time.Time) (bool, error)
	ReconcilePublished(ctx context.Context, id int64, remoteID string, now time.Time) (bool, error)
	ListExpiredLeases(ctx context.Context, now time.Time) ([]*models.Post, error)
	FailExpiredLeases(ctx context.Context, now time.Time, reason string) ([]int64, error)
	Remove(ctx context.Context, id, userID int64) (bool, error)
}

const postColumns = `id, user_id, content, scheduled_for, status, published, remote_id, last_error,
	lease_token, lease_expires_at, created_at, updated_at`

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Content,
		&post.ScheduledFor,
		&post.Status,
		&post.Published,
		&post.RemoteID,
		&post.LastError,
		&post.LeaseToken,
		&post.LeaseExpiresAt,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// scanOne maps sql.ErrNoRows to (nil, nil).
func scanOne(row *sql.Row) (*models.Post, error) {
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, content, scheduled_for, status, published)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, post.UserID, post.Content, post.ScheduledFor, post.Status).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

// CreateLeased inserts a scheduled post that is already claimed by the caller,
// so no other worker can pick it up between the insert and the publish.
func (r *postRepository) CreateLeased(ctx context.Context, post *models.Post, lease Lease) (int64, error) {
	query := `
		INSERT INTO posts (user_id, content, scheduled_for, status, published, lease_token, lease_expires_at)
		VALUES ($1, $2, $3, 'scheduled', FALSE, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, post.UserID, post.Content, post.ScheduledFor, lease.Token, lease.ExpiresAt).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *postRepository) GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND user_id = $2`
	return scanOne(r.db.QueryRowContext(ctx, query, id, userID))
}

// ListByUser returns the user's posts, newest schedule first. An empty status
// returns every post.
func (r *postRepository) ListByUser(ctx context.Context, userID int64, status models.PostStatus) ([]*models.Post, error) {
	if status == "" {
		query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY scheduled_for DESC`
		return r.queryPosts(ctx, query, userID)
	}
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 AND status = $2 ORDER BY scheduled_for DESC`
	return r.queryPosts(ctx, query, userID, status)
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM posts
		WHERE status = 'scheduled' AND scheduled_for <= $1 AND lease_token IS NULL AND remote_id IS NULL
		ORDER BY scheduled_for
		LIMIT $2
	`
	return r.queryPosts(ctx, query, now, limit)
}

// UpdateContent rewrites content, schedule and status of a post that is
// neither published nor claimed. It reports false when no row qualified.
func (r *postRepository) UpdateContent(ctx context.Context, post *models.Post, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET content = $1,
			scheduled_for = $2,
			status = $3,
			last_error = NULL,
			updated_at = $4
		WHERE id = $5 AND user_id = $6
			AND status IN ('draft', 'scheduled', 'failed')
			AND remote_id IS NULL
			AND lease_token IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, post.Content, post.ScheduledFor, post.Status, now, post.ID, post.UserID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected(res)
}

func (r *postRepository) ClaimDue(ctx context.Context, id int64, lease Lease, now time.Time) (*models.Post, error) {
	query := `
		UPDATE posts
		SET lease_token = $1,
			lease_expires_at = $2,
			updated_at = $3
		WHERE id = $4
			AND status = 'scheduled'
			AND scheduled_for <= $3
			AND remote_id IS NULL
			AND lease_token IS NULL
		RETURNING ` + postColumns
	return scanOne(r.db.QueryRowContext(ctx, query, lease.Token, lease.ExpiresAt, now, id))
}

func (r *postRepository) ClaimFailed(ctx context.Context, id, userID int64, lease Lease, now time.Time) (*models.Post, error) {
	query := `
		UPDATE posts
		SET lease_token = $1,
			lease_expires_at = $2,
			updated_at = $3
		WHERE id = $4 AND user_id = $5
			AND status = 'failed'
			AND remote_id IS NULL
			AND lease_token IS NULL
		RETURNING ` + postColumns
	return scanOne(r.db.QueryRowContext(ctx, query, lease.Token, lease.ExpiresAt, now, id, userID))
}

// MarkPublished and ReconcilePublished are the only statements that set status
// published, and both set remote_id in the same write.
func (r *postRepository) MarkPublished(ctx context.Context, id int64, leaseToken, remoteID string, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = 'published',
			published = TRUE,
			remote_id = $1,
			last_error = NULL,
			lease_token = NULL,
			lease_expires_at = NULL,
			updated_at = $2
		WHERE id = $3 AND lease_token = $4
	`
	res, err := r.db.ExecContext(ctx, query, remoteID, now, id, leaseToken)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected(res)
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, leaseToken, lastError string, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = 'failed',
			published = FALSE,
			last_error = $1,
			lease_token = NULL,
			lease_expires_at = NULL,
			updated_at = $2
		WHERE id = $3 AND lease_token = $4 AND remote_id IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, lastError, now, id, leaseToken)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected(res)
}

// ReconcilePublished records a remote id that X returned but MarkPublished
// never stored. A live lease is left to its holder.
func (r *postRepository) ReconcilePublished(ctx context.Context, id int64, remoteID string, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = 'published',
			published = TRUE,
			remote_id = $1,
			last_error = NULL,
			lease_token = NULL,
			lease_expires_at = NULL,
			updated_at = $2
		WHERE id = $3
			AND remote_id IS NULL
			AND (lease_token IS NULL OR lease_expires_at < $2)
	`
	res, err := r.db.ExecContext(ctx, query, remoteID, now, id)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected(res)
}

func (r *postRepository) ListExpiredLeases(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE lease_token IS NOT NULL AND lease_expires_at < $1 AND remote_id IS NULL
		ORDER BY id`
	return r.queryPosts(ctx, query, now)
}

// FailExpiredLeases resolves claims whose holder never came back.
func (r *postRepository) FailExpiredLeases(ctx context.Context, now time.Time, reason string) ([]int64, error) {
	query := `
		UPDATE posts
		SET status = 'failed',
			published = FALSE,
			last_error = $1,
			lease_token = NULL,
			lease_expires_at = NULL,
			updated_at = $2
		WHERE lease_token IS NOT NULL AND lease_expires_at < $2 AND remote_id IS NULL
		RETURNING id
	`
	rows, err := r.db.QueryContext(ctx, query, reason, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postRepository) Remove(ctx context.Context, id, userID int64) (bool, error) {
	query := `DELETE FROM posts WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n > 0, nil
}
