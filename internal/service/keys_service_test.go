package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/xscheduler/internal/models"
)

type memKeyRepo struct {
	mu   sync.Mutex
	keys []*models.ApiKey
}

func (r *memKeyRepo) GetUserIDByKey(_ context.Context, apiKey string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.ApiKey == apiKey {
			return k.UserID, true, nil
		}
	}
	return 0, false, nil
}

func (r *memKeyRepo) ListByUserID(_ context.Context, userID int64) ([]*models.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ApiKey
	for _, k := range r.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (r *memKeyRepo) Create(_ context.Context, k *models.ApiKey) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *k
	c.ID = int64(len(r.keys) + 1)
	r.keys = append(r.keys, &c)
	return c.ID, nil
}

func (r *memKeyRepo) Remove(_ context.Context, id, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, k := range r.keys {
		if k.ID == id && k.UserID == userID {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func TestApiKeys(t *testing.T) {
	svc := NewApiKeyService(&memKeyRepo{})
	ctx := context.Background()

	key, err := svc.Create(ctx, userID, " cli ")
	require.NoError(t, err)
	assert.Equal(t, "cli", key.Label)
	assert.Len(t, key.ApiKey, 32)

	owner, err := svc.GetUserID(ctx, key.ApiKey)
	require.NoError(t, err)
	assert.Equal(t, userID, owner)

	_, err = svc.GetUserID(ctx, "nope")
	assert.ErrorIs(t, err, ErrApiKeyNotFound)

	assert.ErrorIs(t, svc.Remove(ctx, userID+1, key.ID), ErrApiKeyNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, userID, 0), ErrValidation)
	require.NoError(t, svc.Remove(ctx, userID, key.ID))
}

func TestApiKeyLimit(t *testing.T) {
	svc := NewApiKeyService(&memKeyRepo{})
	ctx := context.Background()
	for i := 0; i < maxApiKeys; i++ {
		_, err := svc.Create(ctx, userID, "")
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, userID, "")
	assert.ErrorIs(t, err, ErrApiKeyLimit)

	_, err = svc.Create(ctx, userID+1, "")
	assert.NoError(t, err)
}
