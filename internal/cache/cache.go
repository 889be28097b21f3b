package cache

import (
	"context"
	"time"

	"posledger/internal/domain"
)

// ReportCache holds computed sales summaries. Invalidate drops every entry
// and is called after each committed invoice mutation.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]domain.SalesBucket, bool, error)
	Set(ctx context.Context, key string, value []domain.SalesBucket, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) ([]domain.SalesBucket, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ []domain.SalesBucket, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context) error {
	return nil
}
