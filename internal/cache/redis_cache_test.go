package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/domain"
	"posledger/internal/money"
)

func TestNoopCacheNeverHits(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "summary:daily", []domain.SalesBucket{{Period: "2024-01-01"}}, time.Minute))
	_, ok, err := c.Get(ctx, "summary:daily")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx))
}

func TestRedisReportCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("POSLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set POSLEDGER_TEST_REDIS_ADDR to run redis cache test")
	}

	c := NewRedisReportCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	buckets := []domain.SalesBucket{{Period: "2024-W01", TotalSales: money.MustParse("19.99"), NumSales: 2}}
	require.NoError(t, c.Set(ctx, "summary:weekly", buckets, time.Minute))

	got, ok, err := c.Get(ctx, "summary:weekly")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "19.99", got[0].TotalSales.String())

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx, "summary:weekly")
	require.NoError(t, err)
	assert.False(t, ok)
}
