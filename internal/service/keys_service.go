package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maheshrc27/xscheduler/internal/models"
	"github.com/maheshrc27/xscheduler/internal/repository"
	"github.com/maheshrc27/xscheduler/pkg/utils"
)

const (
	maxApiKeys   = 5
	apiKeyLength = 32
)

var (
	ErrApiKeyLimit    = fmt.Errorf("only %d API keys can be created", maxApiKeys)
	ErrApiKeyNotFound = errors.New("API key not found")
)

type ApiKeyService interface {
	Create(ctx context.Context, userID int64, label string) (*models.ApiKey, error)
	List(ctx context.Context, userID int64) ([]*models.ApiKey, error)
	GetUserID(ctx context.Context, apiKey string) (int64, error)
	Remove(ctx context.Context, userID, keyID int64) error
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{k: k}
}

func (s *apiKeyService) Create(ctx context.Context, userID int64, label string) (*models.ApiKey, error) {
	keys, err := s.k.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(keys) >= maxApiKeys {
		slog.Info(ErrApiKeyLimit.Error(), "user_id", userID)
		return nil, ErrApiKeyLimit
	}

	key, err := utils.GenerateRandomKey(apiKeyLength)
	if err != nil {
		return nil, fmt.Errorf("generate API key: %w", err)
	}

	apiKey := &models.ApiKey{
		UserID: userID,
		Label:  strings.TrimSpace(label),
		ApiKey: key,
	}
	apiKey.ID, err = s.k.Create(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return apiKey, nil
}

func (s *apiKeyService) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	userID, isExist, err := s.k.GetUserIDByKey(ctx, apiKey)
	if err != nil {
		return 0, err
	}
	if !isExist {
		return 0, ErrApiKeyNotFound
	}
	return userID, nil
}

func (s *apiKeyService) List(ctx context.Context, userID int64) ([]*models.ApiKey, error) {
	return s.k.ListByUserID(ctx, userID)
}

func (s *apiKeyService) Remove(ctx context.Context, userID, keyID int64) error {
	if keyID == 0 {
		return invalid("id", "key id is required")
	}
	ok, err := s.k.Remove(ctx, keyID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrApiKeyNotFound
	}
	return nil
}
