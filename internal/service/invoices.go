package service

import (
	"context"

	"posledger/internal/domain"
	"posledger/internal/money"
	"posledger/internal/store"
)

func (s *Service) ListInvoices(ctx context.Context) ([]domain.Sale, error) {
	return s.ledger.List(ctx)
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (domain.Invoice, error) {
	return s.ledger.Get(ctx, id)
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (domain.InvoiceCreated, error) {
	created, err := s.ledger.Create(ctx, req)
	if err != nil {
		return domain.InvoiceCreated{}, err
	}
	s.log.WithField("invoice_id", created.InvoiceID).WithField("total", created.Total.String()).Info("invoice created")
	return created, nil
}

func (s *Service) UpdateInvoice(ctx context.Context, id int64, req domain.UpdateInvoiceRequest) (domain.InvoiceUpdated, error) {
	return s.ledger.Update(ctx, id, req)
}

func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	if err := s.ledger.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("invoice_id", id).Info("invoice deleted")
	return nil
}

func (s *Service) AddInvoiceItem(ctx context.Context, saleID int64, line domain.InvoiceLine) (domain.ItemAdded, error) {
	return s.ledger.AddItem(ctx, saleID, line)
}

func (s *Service) UpdateInvoiceItem(ctx context.Context, saleID int64, itemID int64, req domain.UpdateItemRequest) (money.Money, error) {
	if req.Qty == nil {
		return money.Money{}, store.Invalidf("qty is required")
	}
	return s.ledger.UpdateItem(ctx, saleID, itemID, *req.Qty)
}

func (s *Service) DeleteInvoiceItem(ctx context.Context, saleID int64, itemID int64) (money.Money, error) {
	return s.ledger.DeleteItem(ctx, saleID, itemID)
}

func (s *Service) ReconcileInvoice(ctx context.Context, saleID int64) (domain.Reconciliation, error) {
	result, err := s.ledger.Reconcile(ctx, saleID)
	if err != nil {
		return domain.Reconciliation{}, err
	}
	if result.Repaired {
		s.log.WithField("invoice_id", saleID).
			WithField("stored_total", result.StoredTotal.String()).
			WithField("computed_total", result.ComputedTotal.String()).
			Warn("invoice total drift repaired")
	}
	return result, nil
}
