package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lionboard/internal/cache"
	"lionboard/internal/models"
	"lionboard/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiryService_PurgeExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, models.RoleStudent)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)

	expired := &models.Thread{UserID: author.ID, Title: "old", Body: "gone", ExpiresAt: &past}
	require.NoError(t, env.db.Create(expired).Error)
	live := &models.Thread{UserID: author.ID, Title: "new", Body: "stays", ExpiresAt: &future}
	require.NoError(t, env.db.Create(live).Error)
	forever := testutil.CreateThread(t, env.db, author, "forever", "no expiry")

	_, err := env.identity.Resolve(ctx, author.ID, expired.ID)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cache.ThreadIdentityKey(expired.ID, author.ID), `"Lion #AAAA"`))
	require.NoError(t, mr.Set(cache.ThreadIdentityKey(live.ID, author.ID), `"Lion #BBBB"`))

	svc := NewExpiryService(env.threads, client)
	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = env.threads.GetByID(ctx, expired.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	for _, id := range []uint{live.ID, forever.ID} {
		_, err = env.threads.GetByID(ctx, id)
		assert.NoError(t, err, fmt.Sprint(id))
	}

	assert.False(t, mr.Exists(cache.ThreadIdentityKey(expired.ID, author.ID)))
	assert.True(t, mr.Exists(cache.ThreadIdentityKey(live.ID, author.ID)))

	n, err = svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpiryService_Schedule(t *testing.T) {
	env := newTestEnv(t)
	svc := NewExpiryService(env.threads, nil)

	c := cron.New()
	id, err := svc.Schedule(context.Background(), c, "@every 10m")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)

	_, err = svc.Schedule(context.Background(), c, "not a schedule")
	assert.Error(t, err)
}
