package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/xscheduler/internal/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, bool, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, bool, error)
	Create(ctx context.Context, user *models.User) (int64, error)
	SetXHandle(ctx context.Context, id int64, handle string) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, google_id, email, full_name, avatar_url, x_handle, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, bool, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.GoogleID, &u.Email, &u.FullName, &u.AvatarURL, &u.XHandle, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &u, true, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, bool, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = $1"
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *userRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, bool, error) {
	query := "SELECT " + userColumns + " FROM users WHERE google_id = $1"
	return scanUser(r.db.QueryRowContext(ctx, query, googleID))
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (int64, error) {
	query := "INSERT INTO users (google_id, email, full_name, avatar_url) VALUES ($1, $2, $3, $4) RETURNING id"

	var id int64
	err := r.db.QueryRowContext(ctx, query, user.GoogleID, user.Email, user.FullName, user.AvatarURL).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *userRepository) SetXHandle(ctx context.Context, id int64, handle string) error {
	query := `UPDATE users SET x_handle = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, handle, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
