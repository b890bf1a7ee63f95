package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/remindd/internal/model"
)

func setupGate(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	g, err := NewRedis(client, opts...)
	require.NoError(t, err)
	return g, mr
}

func TestRedisClaimIsOneShot(t *testing.T) {
	g, _ := setupGate(t, WithOwner("worker-a"))
	ctx := context.Background()
	claim := model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueToday}

	ok, err := g.TryClaim(ctx, claim)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.TryClaim(ctx, claim)
	require.NoError(t, err)
	assert.False(t, ok)

	holder, err := g.Holder(ctx, claim)
	require.NoError(t, err)
	assert.Equal(t, "worker-a", holder)
}

func TestRedisClaimKeyedByRevisionAndKind(t *testing.T) {
	g, _ := setupGate(t)
	ctx := context.Background()
	base := model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueToday}

	ok, err := g.TryClaim(ctx, base)
	require.NoError(t, err)
	require.True(t, ok)

	otherKind := base
	otherKind.Kind = model.ReminderDueIn24h
	ok, err = g.TryClaim(ctx, otherKind)
	require.NoError(t, err)
	assert.True(t, ok)

	edited := base
	edited.Revision = 2
	ok, err = g.TryClaim(ctx, edited)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "remindd:claim:task-1:2:DueToday", g.Key(edited))
}

func TestRedisClaimConcurrentCallers(t *testing.T) {
	g, _ := setupGate(t)
	claim := model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueWithin1h}

	const callers = 16
	var granted int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.TryClaim(context.Background(), claim)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, granted)
}

func TestRedisClaimTTL(t *testing.T) {
	g, mr := setupGate(t, WithTTL(time.Hour), WithPrefix("test:claim"))
	claim := model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueToday}

	ok, err := g.TryClaim(context.Background(), claim)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("test:claim:task-1:1:DueToday"))
}

func TestRedisClaimErrorIsNotGranted(t *testing.T) {
	g, mr := setupGate(t)
	mr.Close()

	ok, err := g.TryClaim(context.Background(), model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueToday})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisClaimValidates(t *testing.T) {
	g, _ := setupGate(t)
	_, err := g.TryClaim(context.Background(), model.Claim{TaskID: "", Revision: 1, Kind: model.ReminderDueToday})
	assert.Error(t, err)
}
