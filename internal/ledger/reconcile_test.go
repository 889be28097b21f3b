package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"posledger/internal/domain"
	"posledger/internal/money"
)

func TestPriceLineSnapshotsQuote(t *testing.T) {
	quote := domain.PriceQuote{ProductID: 3, Price: money.MustParse("9.99"), Cost: money.MustParse("5.00")}
	item := PriceLine(7, quote, 2)

	assert.Equal(t, int64(7), item.SaleID)
	assert.Equal(t, int64(3), item.ProductID)
	assert.Equal(t, "19.98", item.Total.String())
	assert.Equal(t, "5.00", item.Cost.String())
}

func TestFullRecomputeMatchesDeltas(t *testing.T) {
	items := []domain.SaleItem{
		PriceLine(1, domain.PriceQuote{Price: money.MustParse("0.10")}, 3),
		PriceLine(1, domain.PriceQuote{Price: money.MustParse("0.20")}, 1),
	}
	total := Sum(items)
	assert.Equal(t, "0.50", total.String())

	changed := items[0]
	changed.Qty = 7
	changed.Total = LineTotal(changed.Price, changed.Qty)
	incremental := total.Add(Delta(items[0].Total, changed.Total))

	items[0] = changed
	assert.True(t, incremental.Equal(Sum(items)))
	assert.Equal(t, "0.90", incremental.String())
}

func TestSumOfNothingIsZero(t *testing.T) {
	assert.True(t, Sum(nil).IsZero())
}
