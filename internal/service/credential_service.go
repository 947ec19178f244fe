package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/xscheduler/internal/models"
	"github.com/maheshrc27/xscheduler/internal/oauth1"
	"github.com/maheshrc27/xscheduler/internal/repository"
	"github.com/maheshrc27/xscheduler/internal/transfer"
	"github.com/maheshrc27/xscheduler/pkg/utils"
)

// CredentialService owns the x_api_settings record: storing it encrypted,
// resolving it for signing and probing it against X.
type CredentialService interface {
	Get(ctx context.Context, userID int64) (*transfer.SettingsView, error)
	Save(ctx context.Context, userID int64, update *transfer.SettingsUpdate) error
	ResolveForPublish(ctx context.Context, userID int64) (oauth1.Credentials, error)
	ResolveForVerify(ctx context.Context, userID int64) (oauth1.Credentials, error)
	Verify(ctx context.Context, userID int64) (*transfer.XUser, error)
}

type credentialService struct {
	secret  []byte
	timeout time.Duration
	sr      repository.XApiSettingsRepository
	u       repository.UserRepository
	x       XService
}

const credentialKeyPurpose = "x-api-credentials"

func NewCredentialService(
	secretKey string,
	timeout time.Duration,
	sr repository.XApiSettingsRepository,
	u repository.UserRepository,
	x XService) (CredentialService, error) {
	key, err := utils.DeriveKey(secretKey, credentialKeyPurpose)
	if err != nil {
		return nil, err
	}
	return &credentialService{
		secret:  key,
		timeout: timeout,
		sr:      sr,
		u:       u,
		x:       x,
	}, nil
}

func (s *credentialService) load(ctx context.Context, userID int64) (*models.XApiSettings, error) {
	settings, isExist, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !isExist {
		return nil, ErrCredentialsNotFound
	}

	plain := *settings
	for _, field := range []*string{&plain.ApiKeySecret, &plain.AccessTokenSecret, &plain.BearerToken} {
		*field, err = utils.Decrypt(*field, s.secret)
		if err != nil {
			return nil, fmt.Errorf("decrypt X API settings: %w", err)
		}
	}
	return &plain, nil
}

func (s *credentialService) Get(ctx context.Context, userID int64) (*transfer.SettingsView, error) {
	settings, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &transfer.SettingsView{
		ApiKey:            settings.ApiKey,
		ApiKeySecret:      utils.Mask(settings.ApiKeySecret),
		AccessToken:       settings.AccessToken,
		AccessTokenSecret: utils.Mask(settings.AccessTokenSecret),
		HasBearerToken:    settings.BearerToken != "",
		IsConnected:       settings.IsConnected,
	}, nil
}

// Save stores new credentials. A saved record is never considered connected
// until Verify succeeds against it.
func (s *credentialService) Save(ctx context.Context, userID int64, update *transfer.SettingsUpdate) error {
	if update == nil {
		return invalid("settings", "settings are required")
	}

	settings := models.XApiSettings{
		UserID:      userID,
		ApiKey:      strings.TrimSpace(update.ApiKey),
		AccessToken: strings.TrimSpace(update.AccessToken),
		IsConnected: false,
	}

	var err error
	secrets := []struct {
		dst   *string
		value string
	}{
		{&settings.ApiKeySecret, update.ApiKeySecret},
		{&settings.AccessTokenSecret, update.AccessTokenSecret},
		{&settings.BearerToken, update.BearerToken},
	}
	for _, sec := range secrets {
		*sec.dst, err = utils.Encrypt(strings.TrimSpace(sec.value), s.secret)
		if err != nil {
			return fmt.Errorf("encrypt X API settings: %w", err)
		}
	}

	if err := s.sr.Upsert(ctx, &settings); err != nil {
		return err
	}
	slog.Info("X API settings saved", "user_id", userID)
	return nil
}

func toCredentials(s *models.XApiSettings) (oauth1.Credentials, error) {
	if !s.Complete() {
		return oauth1.Credentials{}, ErrCredentialsIncomplete
	}
	return oauth1.Credentials{
		ConsumerKey:    s.ApiKey,
		ConsumerSecret: s.ApiKeySecret,
		Token:          s.AccessToken,
		TokenSecret:    s.AccessTokenSecret,
	}, nil
}

func (s *credentialService) ResolveForPublish(ctx context.Context, userID int64) (oauth1.Credentials, error) {
	settings, err := s.load(ctx, userID)
	if err != nil {
		return oauth1.Credentials{}, err
	}
	creds, err := toCredentials(settings)
	if err != nil {
		return oauth1.Credentials{}, err
	}
	if !settings.IsConnected {
		return oauth1.Credentials{}, ErrCredentialsNotConnected
	}
	return creds, nil
}

func (s *credentialService) ResolveForVerify(ctx context.Context, userID int64) (oauth1.Credentials, error) {
	settings, err := s.load(ctx, userID)
	if err != nil {
		return oauth1.Credentials{}, err
	}
	return toCredentials(settings)
}

// Verify probes GET /2/users/me and caches the outcome in is_connected.
func (s *credentialService) Verify(ctx context.Context, userID int64) (*transfer.XUser, error) {
	creds, err := s.ResolveForVerify(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCredentialsIncomplete) {
			s.setConnected(ctx, userID, false)
		}
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.x.Verify(callCtx, creds)
	if err != nil {
		slog.Info("X API verification failed", "user_id", userID, "retriable", Retriable(err))
		s.setConnected(ctx, userID, false)
		return nil, err
	}

	s.setConnected(ctx, userID, true)
	if user.Username != "" {
		if err := s.u.SetXHandle(ctx, userID, user.Username); err != nil {
			slog.Warn("unable to store X handle", "user_id", userID, "error", err)
		}
	}
	return user, nil
}

func (s *credentialService) setConnected(ctx context.Context, userID int64, connected bool) {
	if err := s.sr.SetConnected(context.WithoutCancel(ctx), userID, connected); err != nil {
		slog.Error("unable to update is_connected", "user_id", userID, "connected", connected, "error", err)
	}
}
