package service

import (
	"context"
	"strconv"

	"posledger/internal/domain"
	"posledger/internal/store"
)

// summaryKey carries the report generation. A summary computed before a
// commit is stored under the generation it read, which the commit hook has
// already retired, so it can never be served afterwards.
func summaryKey(g domain.Granularity, generation uint64) string {
	return "summary:" + strconv.FormatUint(generation, 10) + ":" + string(g)
}

func (s *Service) SalesSummary(ctx context.Context, granularity domain.Granularity) ([]domain.SalesBucket, error) {
	if !granularity.Valid() {
		return nil, store.Invalidf("unknown report period %q", granularity)
	}

	key := summaryKey(granularity, s.reportGen.Load())
	cached, ok, err := s.reports.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("report cache read failed")
	} else if ok {
		return cached, nil
	}

	buckets, err := s.repo.SalesSummary(ctx, granularity)
	if err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []domain.SalesBucket{}
	}
	if err := s.reports.Set(ctx, key, buckets, s.reportTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("report cache write failed")
	}
	return buckets, nil
}

func (s *Service) SalesBy(ctx context.Context, filter domain.SalesFilter) ([]domain.Sale, error) {
	checks := []struct {
		name string
		id   *int64
	}{
		{"user_id", filter.UserID},
		{"product_id", filter.ProductID},
		{"category_id", filter.CategoryID},
	}
	for _, c := range checks {
		if c.id != nil && *c.id <= 0 {
			return nil, store.Invalidf("%s must be a positive integer", c.name)
		}
	}
	return s.repo.SalesBy(ctx, filter)
}

func (s *Service) invalidateReports(ctx context.Context, saleID int64) {
	s.reportGen.Add(1)
	if err := s.reports.Invalidate(ctx); err != nil {
		s.log.WithError(err).WithField("invoice_id", saleID).Warn("report cache invalidation failed")
	}
}
