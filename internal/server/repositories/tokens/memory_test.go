package tokens

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/server/models"
)

func TestMemoryRepository_KindsAreSeparate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	now := time.Now()

	require.NoError(t, r.Track(ctx, models.TokenRecord{Token: "a", Kind: models.TokenAccess, AccountID: "u", ExpiresAt: now.Add(time.Hour)}))

	ok, err := r.IsTracked(ctx, "a", models.TokenRefresh)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.Consume(ctx, "a", models.TokenRefresh)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	ok, _ = r.IsTracked(ctx, "a", models.TokenAccess)
	assert.True(t, ok)
}

func TestMemoryRepository_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	require.NoError(t, r.Track(ctx, models.TokenRecord{Token: "r", Kind: models.TokenRefresh, AccountID: "u", ExpiresAt: time.Now().Add(time.Hour)}))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Consume(ctx, "r", models.TokenRefresh); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func TestMemoryRepository_RevokeAndSweep(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	now := time.Now()

	for _, rec := range []models.TokenRecord{
		{Token: "r1", Kind: models.TokenRefresh, AccountID: "u", ExpiresAt: now.Add(7 * 24 * time.Hour)},
		{Token: "r2", Kind: models.TokenRefresh, AccountID: "u", ExpiresAt: now.Add(-time.Minute)},
		{Token: "r3", Kind: models.TokenRefresh, AccountID: "v", ExpiresAt: now.Add(time.Hour)},
		{Token: "a1", Kind: models.TokenAccess, AccountID: "u", ExpiresAt: now.Add(-time.Second)},
	} {
		require.NoError(t, r.Track(ctx, rec))
	}

	n, err := r.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	ok, _ := r.IsTracked(ctx, "r1", models.TokenRefresh)
	assert.True(t, ok, "live refresh token must survive the sweep")

	n, err = r.RevokeAllForAccount(ctx, "u", models.TokenRefresh)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, r.Revoke(ctx, "r3", models.TokenRefresh))
	ok, _ = r.IsTracked(ctx, "r3", models.TokenRefresh)
	assert.False(t, ok)
}
