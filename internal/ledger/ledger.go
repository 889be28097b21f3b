package ledger

import (
	"context"
	"fmt"
	"time"

	"posledger/internal/domain"
	"posledger/internal/money"
	"posledger/internal/store"
)

// Locker serializes writers per key across the process (or cluster).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// CommitHook runs after a mutation of saleID has committed.
type CommitHook func(ctx context.Context, saleID int64)

type Ledger struct {
	store  store.LedgerStore
	locker Locker
	now    func() time.Time
	hooks  []CommitHook
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithCommitHook(hook CommitHook) Option {
	return func(l *Ledger) { l.hooks = append(l.hooks, hook) }
}

func New(st store.LedgerStore, locker Locker, opts ...Option) *Ledger {
	l := &Ledger{
		store:  st,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func saleKey(id int64) string {
	return fmt.Sprintf("sale:%d", id)
}

// mutate runs fn for an existing sale under the per-sale lock and inside
// one transaction.
func (l *Ledger) mutate(ctx context.Context, saleID int64, fn func(tx store.InvoiceTx) error) error {
	unlock, err := l.locker.Lock(ctx, saleKey(saleID))
	if err != nil {
		return fmt.Errorf("lock invoice %d: %w", saleID, err)
	}
	defer unlock()

	if err := l.store.WithinTx(ctx, fn); err != nil {
		return err
	}
	l.committed(ctx, saleID)
	return nil
}

func (l *Ledger) committed(ctx context.Context, saleID int64) {
	for _, hook := range l.hooks {
		hook(ctx, saleID)
	}
}

func validateQty(qty int) error {
	if qty <= 0 {
		return store.Invalidf("quantity must be a positive integer")
	}
	return nil
}

func validateLines(lines []domain.InvoiceLine) error {
	if len(lines) == 0 {
		return store.Invalidf("at least one sale item is required")
	}
	for i, line := range lines {
		if line.ProductID <= 0 {
			return store.Invalidf("item %d: product_id is required", i)
		}
		if line.Qty <= 0 {
			return store.Invalidf("item %d: quantity must be a positive integer", i)
		}
	}
	return nil
}

func checkAmount(what string, m money.Money) error {
	if err := m.Check(); err != nil {
		return store.Invalidf("%s exceeds the supported amount", what)
	}
	return nil
}

// priceLines resolves every product fresh and inserts the items. It stops at
// the first unknown product; the caller's transaction discards the rest.
func priceLines(ctx context.Context, tx store.InvoiceTx, saleID int64, lines []domain.InvoiceLine) (money.Money, error) {
	items := make([]domain.SaleItem, 0, len(lines))
	for _, line := range lines {
		quote, err := tx.ResolveProduct(ctx, line.ProductID)
		if err != nil {
			return money.Money{}, err
		}
		item := PriceLine(saleID, quote, line.Qty)
		if err := checkAmount("item total", item.Total); err != nil {
			return money.Money{}, err
		}
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return money.Money{}, err
		}
		item.ID = id
		items = append(items, item)
	}
	total := Sum(items)
	if err := checkAmount("invoice total", total); err != nil {
		return money.Money{}, err
	}
	return total, nil
}

func checkReferences(ctx context.Context, tx store.InvoiceTx, userID int64, customerID *int64) error {
	ok, err := tx.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return store.NotFoundf("user %d not found", userID)
	}
	if customerID == nil {
		return nil
	}
	ok, err = tx.CustomerExists(ctx, *customerID)
	if err != nil {
		return err
	}
	if !ok {
		return store.NotFoundf("customer %d not found", *customerID)
	}
	return nil
}

func (l *Ledger) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.InvoiceCreated, error) {
	if req.UserID <= 0 {
		return domain.InvoiceCreated{}, store.Invalidf("user_id is required")
	}
	if err := validateLines(req.Items); err != nil {
		return domain.InvoiceCreated{}, err
	}
	paid := money.Zero()
	if req.Paid != nil {
		paid = *req.Paid
	}
	if paid.IsNegative() {
		return domain.InvoiceCreated{}, store.Invalidf("paid must not be negative")
	}

	var created domain.InvoiceCreated
	err := l.store.WithinTx(ctx, func(tx store.InvoiceTx) error {
		if err := checkReferences(ctx, tx, req.UserID, req.CustomerID); err != nil {
			return err
		}

		sale := domain.Sale{
			DateTime:   l.now(),
			CustomerID: req.CustomerID,
			UserID:     req.UserID,
			Total:      money.Zero(),
			Paid:       paid,
			Remark:     req.Remark,
		}
		id, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = id

		total, err := priceLines(ctx, tx, id, req.Items)
		if err != nil {
			return err
		}
		sale.Total = total
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}

		created = domain.InvoiceCreated{InvoiceID: id, Total: total}
		return nil
	})
	if err != nil {
		return domain.InvoiceCreated{}, err
	}
	l.committed(ctx, created.InvoiceID)
	return created, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (domain.Invoice, error) {
	invoice, err := l.store.GetInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (l *Ledger) List(ctx context.Context) ([]domain.Sale, error) {
	return l.store.ListSales(ctx)
}

func (l *Ledger) Update(ctx context.Context, id int64, req domain.UpdateInvoiceRequest) (domain.InvoiceUpdated, error) {
	if req.Paid.Set {
		if req.Paid.Value == nil {
			return domain.InvoiceUpdated{}, store.Invalidf("paid must not be null")
		}
		if req.Paid.Value.IsNegative() {
			return domain.InvoiceUpdated{}, store.Invalidf("paid must not be negative")
		}
	}
	if req.Items != nil {
		if err := validateLines(*req.Items); err != nil {
			return domain.InvoiceUpdated{}, err
		}
	}

	var updated domain.InvoiceUpdated
	err := l.mutate(ctx, id, func(tx store.InvoiceTx) error {
		sale, err := tx.LockSale(ctx, id)
		if err != nil {
			return err
		}

		if req.CustomerID.Set {
			sale.CustomerID = req.CustomerID.Value
			if sale.CustomerID != nil {
				ok, err := tx.CustomerExists(ctx, *sale.CustomerID)
				if err != nil {
					return err
				}
				if !ok {
					return store.NotFoundf("customer %d not found", *sale.CustomerID)
				}
			}
		}
		if req.Remark.Set {
			sale.Remark = req.Remark.Value
		}
		if req.Paid.Set {
			sale.Paid = *req.Paid.Value
		}

		if req.Items != nil {
			if err := tx.DeleteItems(ctx, id); err != nil {
				return err
			}
			total, err := priceLines(ctx, tx, id, *req.Items)
			if err != nil {
				return err
			}
			sale.Total = total
		}

		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		updated = domain.InvoiceUpdated{InvoiceID: id, Total: sale.Total}
		return nil
	})
	if err != nil {
		return domain.InvoiceUpdated{}, err
	}
	return updated, nil
}

func (l *Ledger) Delete(ctx context.Context, id int64) error {
	return l.mutate(ctx, id, func(tx store.InvoiceTx) error {
		if _, err := tx.LockSale(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		return tx.DeleteSale(ctx, id)
	})
}

func (l *Ledger) AddItem(ctx context.Context, saleID int64, line domain.InvoiceLine) (domain.ItemAdded, error) {
	if line.ProductID <= 0 {
		return domain.ItemAdded{}, store.Invalidf("product_id is required")
	}
	if err := validateQty(line.Qty); err != nil {
		return domain.ItemAdded{}, err
	}

	var added domain.ItemAdded
	err := l.mutate(ctx, saleID, func(tx store.InvoiceTx) error {
		sale, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}
		quote, err := tx.ResolveProduct(ctx, line.ProductID)
		if err != nil {
			return err
		}

		item := PriceLine(saleID, quote, line.Qty)
		if err := checkAmount("item total", item.Total); err != nil {
			return err
		}
		itemID, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}

		sale.Total = sale.Total.Add(item.Total)
		if err := checkAmount("invoice total", sale.Total); err != nil {
			return err
		}
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		added = domain.ItemAdded{ItemID: itemID, InvoiceTotal: sale.Total}
		return nil
	})
	if err != nil {
		return domain.ItemAdded{}, err
	}
	return added, nil
}

func (l *Ledger) UpdateItem(ctx context.Context, saleID int64, itemID int64, qty int) (money.Money, error) {
	if err := validateQty(qty); err != nil {
		return money.Money{}, err
	}

	var total money.Money
	err := l.mutate(ctx, saleID, func(tx store.InvoiceTx) error {
		sale, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, saleID, itemID)
		if err != nil {
			return err
		}

		before := item.Total
		item.Qty = qty
		item.Total = LineTotal(item.Price, qty)
		if err := checkAmount("item total", item.Total); err != nil {
			return err
		}
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		sale.Total = sale.Total.Add(Delta(before, item.Total))
		if err := checkAmount("invoice total", sale.Total); err != nil {
			return err
		}
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		total = sale.Total
		return nil
	})
	if err != nil {
		return money.Money{}, err
	}
	return total, nil
}

func (l *Ledger) DeleteItem(ctx context.Context, saleID int64, itemID int64) (money.Money, error) {
	var total money.Money
	err := l.mutate(ctx, saleID, func(tx store.InvoiceTx) error {
		sale, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, saleID, itemID)
		if err != nil {
			return err
		}

		sale.Total = sale.Total.Sub(item.Total)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, saleID, itemID); err != nil {
			return err
		}
		total = sale.Total
		return nil
	})
	if err != nil {
		return money.Money{}, err
	}
	return total, nil
}

// Reconcile recomputes every item total and the invoice total from the
// stored prices and repairs whatever has drifted.
func (l *Ledger) Reconcile(ctx context.Context, saleID int64) (domain.Reconciliation, error) {
	var result domain.Reconciliation
	err := l.mutate(ctx, saleID, func(tx store.InvoiceTx) error {
		sale, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, saleID)
		if err != nil {
			return err
		}

		result = domain.Reconciliation{InvoiceID: saleID, StoredTotal: sale.Total}
		for i, item := range items {
			want := LineTotal(item.Price, item.Qty)
			if item.Total.Equal(want) {
				continue
			}
			items[i].Total = want
			if err := tx.UpdateItem(ctx, items[i]); err != nil {
				return err
			}
			result.ItemsRepaired++
		}

		result.ComputedTotal = Sum(items)
		if !result.ComputedTotal.Equal(sale.Total) {
			sale.Total = result.ComputedTotal
			if err := tx.UpdateSale(ctx, sale); err != nil {
				return err
			}
		}
		result.Repaired = result.ItemsRepaired > 0 || !result.ComputedTotal.Equal(result.StoredTotal)
		return nil
	})
	if err != nil {
		return domain.Reconciliation{}, err
	}
	return result, nil
}
