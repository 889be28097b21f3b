package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"posledger/internal/domain"
	"posledger/internal/report"
	"posledger/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (a *API) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	granularity := domain.Granularity(chi.URLParam(r, "period"))
	if !granularity.Valid() {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown report period %q", granularity))
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format != "" && format != "json" && format != "csv" && format != "xlsx" {
		a.fail(w, r, store.Invalidf("unsupported format %q", format))
		return
	}

	buckets, err := a.service.SalesSummary(r.Context(), granularity)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	switch format {
	case "csv":
		if err := report.WriteCSV(&buf, granularity, buckets); err != nil {
			a.fail(w, r, err)
			return
		}
		writeAttachment(w, "text/csv; charset=utf-8", "sales-"+string(granularity)+".csv", buf.Bytes())
	case "xlsx":
		if err := report.WriteXLSX(&buf, granularity, buckets); err != nil {
			a.fail(w, r, err)
			return
		}
		writeAttachment(w, xlsxContentType, "sales-"+string(granularity)+".xlsx", buf.Bytes())
	default:
		writeJSON(w, http.StatusOK, report.Rows(granularity, buckets))
	}
}

func (a *API) handleSalesBy(w http.ResponseWriter, r *http.Request) {
	var filter domain.SalesFilter
	for _, q := range []struct {
		name string
		dest **int64
	}{
		{"user_id", &filter.UserID},
		{"product_id", &filter.ProductID},
		{"category_id", &filter.CategoryID},
	} {
		raw := strings.TrimSpace(r.URL.Query().Get(q.name))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			a.fail(w, r, store.Invalidf("%s must be a positive integer", q.name))
			return
		}
		*q.dest = &id
	}

	sales, err := a.service.SalesBy(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if sales == nil {
		sales = []domain.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func writeAttachment(w http.ResponseWriter, contentType string, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
