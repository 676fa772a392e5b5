package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trogers1052/signal-trader/internal/marketdata"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

type countingProvider struct {
	*marketdata.Static
	quoteCalls int
}

func (p *countingProvider) GetQuote(ctx context.Context, symbol string) (float64, error) {
	p.quoteCalls++
	return p.Static.GetQuote(ctx, symbol)
}

func TestQuoteCache(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("reads through once then serves from redis", func(t *testing.T) {
		inner := &countingProvider{Static: marketdata.NewStatic()}
		inner.SetQuote("AAPL", 150.25)
		c := NewQuoteCache(client, inner, time.Minute, nil)

		price, err := c.GetQuote(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 150.25, price)

		price, err = c.GetQuote(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 150.25, price)
		assert.Equal(t, 1, inner.quoteCalls)
	})

	t.Run("set quote overrides the provider", func(t *testing.T) {
		inner := &countingProvider{Static: marketdata.NewStatic()}
		inner.SetQuote("MSFT", 400)
		c := NewQuoteCache(client, inner, time.Minute, nil)

		require.NoError(t, c.SetQuote(ctx, "MSFT", 401.5))
		price, err := c.GetQuote(ctx, "MSFT")
		require.NoError(t, err)
		assert.Equal(t, 401.5, price)
		assert.Zero(t, inner.quoteCalls)
	})

	t.Run("entries expire", func(t *testing.T) {
		c := NewQuoteCache(client, marketdata.NewStatic(), time.Minute, nil)
		require.NoError(t, c.SetQuote(ctx, "TSLA", 200))

		ttl, err := client.TTL(ctx, quoteKey("TSLA")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("invalid quotes are not cached", func(t *testing.T) {
		c := NewQuoteCache(client, marketdata.NewStatic(), time.Minute, nil)
		assert.Error(t, c.SetQuote(ctx, "BAD", -1))
	})

	t.Run("provider errors propagate on a miss", func(t *testing.T) {
		c := NewQuoteCache(client, marketdata.NewStatic(), time.Minute, nil)
		_, err := c.GetQuote(ctx, "NOPE")
		assert.ErrorIs(t, err, marketdata.ErrNoData)
	})

	t.Run("bars bypass the cache", func(t *testing.T) {
		inner := marketdata.NewStatic()
		inner.SetBars("AAPL", marketdata.ClosesToBars(time.Now(), 100, []float64{1, 2, 3}))
		c := NewQuoteCache(client, inner, time.Minute, nil)

		bars, err := c.GetBars(ctx, "AAPL")
		require.NoError(t, err)
		assert.Len(t, bars, 3)
	})
}

func TestPassLock(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("second acquire fails until release", func(t *testing.T) {
		lock := NewPassLock(client, time.Minute)

		release, err := lock.Acquire(ctx, "signal-scan")
		require.NoError(t, err)

		_, err = lock.Acquire(ctx, "signal-scan")
		assert.True(t, errors.Is(err, ErrLockHeld))

		other, err := lock.Acquire(ctx, "risk-check")
		require.NoError(t, err)
		require.NoError(t, other(ctx))

		require.NoError(t, release(ctx))
		again, err := lock.Acquire(ctx, "signal-scan")
		require.NoError(t, err)
		require.NoError(t, again(ctx))
	})

	t.Run("stale release does not delete a newer holder", func(t *testing.T) {
		lock := NewPassLock(client, 100*time.Millisecond)

		stale, err := lock.Acquire(ctx, "trailing-stop-update")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			n, err := client.Exists(ctx, lockPrefix+"trailing-stop-update").Result()
			return err == nil && n == 0
		}, 2*time.Second, 20*time.Millisecond)

		fresh, err := NewPassLock(client, time.Minute).Acquire(ctx, "trailing-stop-update")
		require.NoError(t, err)

		require.NoError(t, stale(ctx))
		_, err = lock.Acquire(ctx, "trailing-stop-update")
		assert.ErrorIs(t, err, ErrLockHeld)

		require.NoError(t, fresh(ctx))
	})
}
