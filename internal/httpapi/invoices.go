package httpapi

import (
	"net/http"

	"posledger/internal/domain"
)

func (a *API) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	sales, err := a.service.ListInvoices(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if sales == nil {
		sales = []domain.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func (a *API) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	invoice, err := a.service.GetInvoice(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if invoice.Items == nil {
		invoice.Items = []domain.SaleItem{}
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (a *API) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	created, err := a.service.CreateInvoice(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Invoice created successfully",
		"invoice_id": created.InvoiceID,
		"total":      created.Total,
	})
}

func (a *API) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req domain.UpdateInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	updated, err := a.service.UpdateInvoice(r.Context(), id, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Invoice updated successfully",
		"invoice_id": updated.InvoiceID,
		"total":      updated.Total,
	})
}

func (a *API) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.service.DeleteInvoice(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Invoice deleted successfully"})
}

func (a *API) handleAddInvoiceItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var line domain.InvoiceLine
	if err := a.decodeValid(r, &line); err != nil {
		a.fail(w, r, err)
		return
	}
	added, err := a.service.AddInvoiceItem(r.Context(), id, line)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":       "Item added successfully",
		"item_id":       added.ItemID,
		"invoice_total": added.InvoiceTotal,
	})
}

func (a *API) handleUpdateInvoiceItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req domain.UpdateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	total, err := a.service.UpdateInvoiceItem(r.Context(), id, itemID, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Item updated successfully",
		"invoice_total": total,
	})
}

func (a *API) handleDeleteInvoiceItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	total, err := a.service.DeleteInvoiceItem(r.Context(), id, itemID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Item deleted successfully",
		"invoice_total": total,
	})
}

func (a *API) handleReconcileInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	result, err := a.service.ReconcileInvoice(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
