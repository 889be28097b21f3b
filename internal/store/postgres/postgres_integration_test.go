package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"posledger/internal/domain"
	"posledger/internal/ledger"
	"posledger/internal/lock"
	"posledger/internal/money"
)

func TestInvoiceLifecycleKeepsTotalInSync(t *testing.T) {
	databaseURL := os.Getenv("POSLEDGER_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set POSLEDGER_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	user, err := s.CreateUser(ctx, domain.User{UserName: fmt.Sprintf("it-cashier-%d", stamp), PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	category, err := s.CreateCategory(ctx, domain.Category{Name: fmt.Sprintf("it-category-%d", stamp)})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	coffee, err := s.CreateProduct(ctx, domain.Product{
		Name: "IT Coffee", CategoryID: category.ID,
		Cost: money.MustParse("5.00"), Price: money.MustParse("9.99"),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	var invoiceID int64
	t.Cleanup(func() {
		db := s.DB()
		_, _ = db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, invoiceID)
		_, _ = db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, coffee.ID)
		_, _ = db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, category.ID)
		_, _ = db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, user.ID)
	})

	l := ledger.New(s, lock.NewKeyedMutex())
	created, err := l.Create(ctx, domain.CreateInvoiceRequest{
		UserID: user.ID,
		Items:  []domain.InvoiceLine{{ProductID: coffee.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	invoiceID = created.InvoiceID
	if created.Total.String() != "19.98" {
		t.Fatalf("expected total 19.98, got %s", created.Total)
	}

	added, err := l.AddItem(ctx, invoiceID, domain.InvoiceLine{ProductID: coffee.ID, Qty: 1})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if added.InvoiceTotal.String() != "29.97" {
		t.Fatalf("expected total 29.97, got %s", added.InvoiceTotal)
	}

	if err := s.DeleteProduct(ctx, coffee.ID); err == nil {
		t.Fatalf("expected conflict deleting referenced product")
	}

	rec, err := l.Reconcile(ctx, invoiceID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Repaired {
		t.Fatalf("expected no drift, got %+v", rec)
	}

	buckets, err := s.SalesSummary(ctx, domain.Monthly)
	if err != nil {
		t.Fatalf("sales summary: %v", err)
	}
	if len(buckets) == 0 {
		t.Fatalf("expected at least one monthly bucket")
	}
}
