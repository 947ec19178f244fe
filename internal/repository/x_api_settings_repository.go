package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/xscheduler/internal/models"
)

type XApiSettingsRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.XApiSettings, bool, error)
	Upsert(ctx context.Context, s *models.XApiSettings) error
	SetConnected(ctx context.Context, userID int64, connected bool) error
}

type xApiSettingsRepository struct {
	db *sql.DB
}

func NewXApiSettingsRepository(db *sql.DB) XApiSettingsRepository {
	return &xApiSettingsRepository{db: db}
}

func (r *xApiSettingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.XApiSettings, bool, error) {
	query := `
		SELECT id, user_id, api_key, api_key_secret, access_token, access_token_secret,
			COALESCE(bearer_token, ''), is_connected, created_at, updated_at
		FROM x_api_settings
		WHERE user_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, userID)

	var s models.XApiSettings
	err := row.Scan(&s.ID, &s.UserID, &s.ApiKey, &s.ApiKeySecret, &s.AccessToken, &s.AccessTokenSecret,
		&s.BearerToken, &s.IsConnected, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}

	return &s, true, nil
}

func (r *xApiSettingsRepository) Upsert(ctx context.Context, s *models.XApiSettings) error {
	query := `
		INSERT INTO x_api_settings (user_id, api_key, api_key_secret, access_token, access_token_secret, bearer_token, is_connected)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET api_key = EXCLUDED.api_key,
			api_key_secret = EXCLUDED.api_key_secret,
			access_token = EXCLUDED.access_token,
			access_token_secret = EXCLUDED.access_token_secret,
			bearer_token = EXCLUDED.bearer_token,
			is_connected = EXCLUDED.is_connected,
			updated_at = $8
	`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.ApiKey, s.ApiKeySecret, s.AccessToken, s.AccessTokenSecret,
		s.BearerToken, s.IsConnected, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// SetConnected never marks an incomplete record as connected.
func (r *xApiSettingsRepository) SetConnected(ctx context.Context, userID int64, connected bool) error {
	query := `
		UPDATE x_api_settings
		SET is_connected = ($1 AND api_key <> '' AND api_key_secret <> '' AND access_token <> '' AND access_token_secret <> ''),
			updated_at = $2
		WHERE user_id = $3
	`
	_, err := r.db.ExecContext(ctx, query, connected, time.Now(), userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
