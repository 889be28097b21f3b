package ledger

import (
	"posledger/internal/domain"
	"posledger/internal/money"
)

func LineTotal(price money.Money, qty int) money.Money {
	return price.MulInt(qty)
}

// PriceLine snapshots the quoted price and cost onto a new item.
func PriceLine(saleID int64, quote domain.PriceQuote, qty int) domain.SaleItem {
	return domain.SaleItem{
		SaleID:    saleID,
		ProductID: quote.ProductID,
		Qty:       qty,
		Cost:      quote.Cost,
		Price:     quote.Price,
		Total:     LineTotal(quote.Price, qty),
	}
}

// Sum is the full recompute of an invoice total.
func Sum(items []domain.SaleItem) money.Money {
	total := money.Zero()
	for _, item := range items {
		total = total.Add(item.Total)
	}
	return total
}

// Delta is what an item change adds to the invoice total.
func Delta(before, after money.Money) money.Money {
	return after.Sub(before)
}
