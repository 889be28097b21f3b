package report

import (
	"fmt"
	"slices"
	"time"

	"posledger/internal/domain"
	"posledger/internal/money"
)

// BucketKey formats t into the period a sale is reported under. Weeks are
// ISO weeks, so the first days of January can belong to the previous year.
func BucketKey(g domain.Granularity, t time.Time) string {
	t = t.UTC()
	switch g {
	case domain.Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case domain.Monthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// Summarize groups sales by period, most recent period first.
func Summarize(g domain.Granularity, stamps []domain.SaleStamp) []domain.SalesBucket {
	index := make(map[string]int, len(stamps))
	buckets := make([]domain.SalesBucket, 0, 16)
	for _, stamp := range stamps {
		key := BucketKey(g, stamp.DateTime)
		pos, ok := index[key]
		if !ok {
			pos = len(buckets)
			index[key] = pos
			buckets = append(buckets, domain.SalesBucket{Period: key, TotalSales: money.Zero()})
		}
		buckets[pos].TotalSales = buckets[pos].TotalSales.Add(stamp.Total)
		buckets[pos].NumSales++
	}

	// Keys are zero padded, so lexical order is chronological.
	slices.SortFunc(buckets, func(a, b domain.SalesBucket) int {
		switch {
		case a.Period > b.Period:
			return -1
		case a.Period < b.Period:
			return 1
		default:
			return 0
		}
	})
	return buckets
}

// Rows shapes buckets the way the report endpoints return them.
func Rows(g domain.Granularity, buckets []domain.SalesBucket) []map[string]any {
	rows := make([]map[string]any, 0, len(buckets))
	for _, bucket := range buckets {
		rows = append(rows, map[string]any{
			g.Label():     bucket.Period,
			"total_sales": bucket.TotalSales,
			"num_sales":   bucket.NumSales,
		})
	}
	return rows
}
