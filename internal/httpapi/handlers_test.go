package httpapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/xuri/excelize/v2"

	"posledger/internal/domain"
	"posledger/internal/filestore"
	"posledger/internal/ledger"
	"posledger/internal/lock"
	"posledger/internal/money"
	"posledger/internal/service"
	"posledger/internal/store/memory"
)

const testAdminPassword = "admin-pass-123"

var fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

type testAPI struct {
	*API
	handler http.Handler
	uploads string
}

// newTestAPI builds a full API with the seeded memory store, real
// AuthManager and real Service so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", testAdminPassword)

	uploads := filepath.Join(t.TempDir(), "uploads")
	files, err := filestore.NewLocal(uploads)
	if err != nil {
		t.Fatalf("new local filestore: %v", err)
	}
	logger, _ := test.NewNullLogger()

	svc := service.New(memory.NewSeeded(), lock.NewKeyedMutex(), service.Options{
		Files:         files,
		WatermarkText: "Product Image",
		Logger:        logger,
		LedgerOptions: []ledger.Option{ledger.WithClock(func() time.Time { return fixedNow })},
	})
	auth := NewAuthManager("test-secret-key-test-secret-key-000", time.Hour, svc)
	api := New(svc, auth, Options{AllowedOrigin: "*", Logger: logger})
	return testAPI{API: api, handler: api.Handler(), uploads: uploads}
}

func (ta testAPI) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d (body: %s)", want, rec.Code, rec.Body.String())
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}

type totalResponse struct {
	Message      string      `json:"message"`
	InvoiceID    int64       `json:"invoice_id"`
	ItemID       int64       `json:"item_id"`
	Total        money.Money `json:"total"`
	InvoiceTotal money.Money `json:"invoice_total"`
}

func createInvoice(t *testing.T, ta testAPI, body string) totalResponse {
	t.Helper()
	rec := ta.do(t, http.MethodPost, "/invoice/create", body)
	expectStatus(t, rec, http.StatusCreated)
	var created totalResponse
	decodeBody(t, rec, &created)
	return created
}

func getInvoice(t *testing.T, ta testAPI, id int64) domain.Invoice {
	t.Helper()
	rec := ta.do(t, http.MethodGet, "/invoice/"+itoa(id), nil)
	expectStatus(t, rec, http.StatusOK)
	var invoice domain.Invoice
	decodeBody(t, rec, &invoice)
	return invoice
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestHandleHealth(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/healthz", nil)
	expectStatus(t, rec, http.StatusOK)

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	ta := newTestAPI(t)

	created := createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":1,"qty":2}]}`)
	if created.Total.String() != "19.98" {
		t.Fatalf("expected total 19.98, got %s", created.Total)
	}
	id := created.InvoiceID
	path := "/invoice/" + itoa(id)

	rec := ta.do(t, http.MethodPost, path+"/items/add", `{"product_id":2,"qty":1}`)
	expectStatus(t, rec, http.StatusCreated)
	var added totalResponse
	decodeBody(t, rec, &added)
	if added.InvoiceTotal.String() != "24.98" {
		t.Fatalf("expected invoice_total 24.98 after add, got %s", added.InvoiceTotal)
	}

	rec = ta.do(t, http.MethodPut, path+"/items/"+itoa(added.ItemID), `{"qty":3}`)
	expectStatus(t, rec, http.StatusOK)
	var updated totalResponse
	decodeBody(t, rec, &updated)
	if updated.InvoiceTotal.String() != "34.98" {
		t.Fatalf("expected invoice_total 34.98 after qty change, got %s", updated.InvoiceTotal)
	}

	invoice := getInvoice(t, ta, id)
	if len(invoice.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(invoice.Items))
	}
	coffee := invoice.Items[0]
	if coffee.ProductID != 1 || coffee.Total.String() != "19.98" {
		t.Fatalf("unexpected first item %+v", coffee)
	}

	rec = ta.do(t, http.MethodDelete, path+"/items/"+itoa(coffee.ID), nil)
	expectStatus(t, rec, http.StatusOK)
	var afterDelete totalResponse
	decodeBody(t, rec, &afterDelete)
	if afterDelete.InvoiceTotal.String() != "15.00" {
		t.Fatalf("expected invoice_total 15.00 after delete, got %s", afterDelete.InvoiceTotal)
	}

	rec = ta.do(t, http.MethodPost, path+"/reconcile", nil)
	expectStatus(t, rec, http.StatusOK)
	var recon domain.Reconciliation
	decodeBody(t, rec, &recon)
	if recon.Repaired || !recon.StoredTotal.Equal(recon.ComputedTotal) {
		t.Fatalf("expected consistent invoice, got %+v", recon)
	}

	rec = ta.do(t, http.MethodDelete, path, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = ta.do(t, http.MethodDelete, path, nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = ta.do(t, http.MethodGet, path, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestInvoiceUpdateClearsNullableFields(t *testing.T) {
	ta := newTestAPI(t)
	created := createInvoice(t, ta, `{"user_id":1,"customer_id":1,"remark":"table 4","paid":"20","items":[{"product_id":3,"qty":2}]}`)
	path := "/invoice/" + itoa(created.InvoiceID)

	rec := ta.do(t, http.MethodPost, path+"/update", `{"customer_id":null,"remark":null}`)
	expectStatus(t, rec, http.StatusOK)
	var updated totalResponse
	decodeBody(t, rec, &updated)
	if updated.Total.String() != "7.50" {
		t.Fatalf("expected unchanged total 7.50, got %s", updated.Total)
	}

	invoice := getInvoice(t, ta, created.InvoiceID)
	if invoice.Sale.CustomerID != nil || invoice.Sale.Remark != nil {
		t.Fatalf("expected customer and remark cleared, got %+v", invoice.Sale)
	}
	if invoice.Sale.Paid.String() != "20.00" {
		t.Fatalf("expected paid untouched, got %s", invoice.Sale.Paid)
	}

	rec = ta.do(t, http.MethodPost, path+"/update", `{"items":[{"product_id":2,"qty":2}]}`)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &updated)
	if updated.Total.String() != "10.00" {
		t.Fatalf("expected replaced items total 10.00, got %s", updated.Total)
	}
}

func TestInvoiceErrors(t *testing.T) {
	ta := newTestAPI(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty body", http.MethodPost, "/invoice/create", "", http.StatusBadRequest},
		{"missing user", http.MethodPost, "/invoice/create", `{"items":[{"product_id":1,"qty":1}]}`, http.StatusBadRequest},
		{"no items", http.MethodPost, "/invoice/create", `{"user_id":1,"items":[]}`, http.StatusBadRequest},
		{"zero qty", http.MethodPost, "/invoice/create", `{"user_id":1,"items":[{"product_id":1,"qty":0}]}`, http.StatusBadRequest},
		{"negative paid", http.MethodPost, "/invoice/create", `{"user_id":1,"paid":-1,"items":[{"product_id":1,"qty":1}]}`, http.StatusBadRequest},
		{"huge exponent paid", http.MethodPost, "/invoice/create", `{"user_id":1,"paid":"1e200000000","items":[{"product_id":1,"qty":1}]}`, http.StatusBadRequest},
		{"huge numeric paid", http.MethodPost, "/invoice/create", `{"user_id":1,"paid":1e200000000,"items":[{"product_id":1,"qty":1}]}`, http.StatusBadRequest},
		{"paid beyond storage", http.MethodPost, "/invoice/create", `{"user_id":1,"paid":10000000000,"items":[{"product_id":1,"qty":1}]}`, http.StatusBadRequest},
		{"paid too precise", http.MethodPost, "/invoice/create", `{"user_id":1,"paid":"1.23456","items":[{"product_id":1,"qty":1}]}`, http.StatusBadRequest},
		{"total beyond storage", http.MethodPost, "/invoice/create", `{"user_id":1,"items":[{"product_id":1,"qty":2000000000}]}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/invoice/create", `{"user_id":1,"discount":5,"items":[{"product_id":1,"qty":1}]}`, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/invoice/create", `{"user_id":1,"items":[{"product_id":999,"qty":1}]}`, http.StatusNotFound},
		{"unknown customer", http.MethodPost, "/invoice/create", `{"user_id":1,"customer_id":42,"items":[{"product_id":1,"qty":1}]}`, http.StatusNotFound},
		{"bad id", http.MethodGet, "/invoice/abc", nil, http.StatusBadRequest},
		{"missing invoice", http.MethodGet, "/invoice/77", nil, http.StatusNotFound},
		{"update missing invoice", http.MethodPost, "/invoice/77/update", `{"remark":"x"}`, http.StatusNotFound},
		{"add to missing invoice", http.MethodPost, "/invoice/77/items/add", `{"product_id":1,"qty":1}`, http.StatusNotFound},
		{"add without product", http.MethodPost, "/invoice/77/items/add", `{"qty":1}`, http.StatusBadRequest},
		{"wrong method", http.MethodPatch, "/invoice/1", nil, http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/nope", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ta.do(t, tc.method, tc.path, tc.body)
			expectStatus(t, rec, tc.status)
			if msg := errorMessage(t, rec); msg == "" {
				t.Fatalf("expected error message in body")
			}
		})
	}

	rec := ta.do(t, http.MethodGet, "/invoice/list", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected no invoice stored, got %s", got)
	}
}

func TestInvoiceAcceptsExponentWithinRange(t *testing.T) {
	ta := newTestAPI(t)
	created := createInvoice(t, ta, `{"user_id":1,"paid":"1e3","items":[{"product_id":1,"qty":1}]}`)

	invoice := getInvoice(t, ta, created.InvoiceID)
	if got := invoice.Sale.Paid.String(); got != "1000.00" {
		t.Fatalf("expected paid 1000.00, got %s", got)
	}
}

func TestInvoiceItemErrorsLeaveTotalUntouched(t *testing.T) {
	ta := newTestAPI(t)
	created := createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":2,"qty":1}]}`)
	path := "/invoice/" + itoa(created.InvoiceID)

	rec := ta.do(t, http.MethodPost, path+"/items/add", `{"product_id":999,"qty":1}`)
	expectStatus(t, rec, http.StatusNotFound)
	rec = ta.do(t, http.MethodPut, path+"/items/999", `{"qty":2}`)
	expectStatus(t, rec, http.StatusNotFound)
	rec = ta.do(t, http.MethodDelete, path+"/items/999", nil)
	expectStatus(t, rec, http.StatusNotFound)

	item := getInvoice(t, ta, created.InvoiceID).Items[0]
	rec = ta.do(t, http.MethodPut, path+"/items/"+itoa(item.ID), `{}`)
	expectStatus(t, rec, http.StatusBadRequest)
	rec = ta.do(t, http.MethodPut, path+"/items/"+itoa(item.ID), `{"qty":0}`)
	expectStatus(t, rec, http.StatusBadRequest)

	invoice := getInvoice(t, ta, created.InvoiceID)
	if invoice.Sale.Total.String() != "5.00" || len(invoice.Items) != 1 {
		t.Fatalf("expected invoice unchanged, got total %s with %d items", invoice.Sale.Total, len(invoice.Items))
	}
}

func TestListInvoicesNewestFirst(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/invoice/list", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty array, got %s", got)
	}

	first := createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":1,"qty":1}]}`)
	second := createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":2,"qty":1}]}`)

	rec = ta.do(t, http.MethodGet, "/invoice/list", nil)
	expectStatus(t, rec, http.StatusOK)
	var sales []domain.Sale
	decodeBody(t, rec, &sales)
	if len(sales) != 2 || sales[0].ID != second.InvoiceID || sales[1].ID != first.InvoiceID {
		t.Fatalf("expected newest first, got %+v", sales)
	}
}

func TestSalesReports(t *testing.T) {
	ta := newTestAPI(t)
	createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":1,"qty":2}]}`)
	createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":3,"qty":1}]}`)

	periods := map[string][2]string{
		"daily":   {"date", "2024-03-15"},
		"weekly":  {"week", "2024-W11"},
		"monthly": {"month", "2024-03"},
	}
	for period, want := range periods {
		rec := ta.do(t, http.MethodGet, "/reports/sales/"+period, nil)
		expectStatus(t, rec, http.StatusOK)

		var rows []map[string]json.RawMessage
		decodeBody(t, rec, &rows)
		if len(rows) != 1 {
			t.Fatalf("%s: expected 1 bucket, got %d", period, len(rows))
		}
		if got := string(rows[0][want[0]]); got != `"`+want[1]+`"` {
			t.Fatalf("%s: expected %s=%s, got %s", period, want[0], want[1], got)
		}
		if got := string(rows[0]["total_sales"]); got != "23.73" {
			t.Fatalf("%s: expected total_sales 23.73, got %s", period, got)
		}
		if got := string(rows[0]["num_sales"]); got != "2" {
			t.Fatalf("%s: expected num_sales 2, got %s", period, got)
		}
	}

	rec := ta.do(t, http.MethodGet, "/reports/sales/yearly", nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = ta.do(t, http.MethodGet, "/reports/sales/daily?format=pdf", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSalesReportExports(t *testing.T) {
	ta := newTestAPI(t)
	createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":2,"qty":3}]}`)

	rec := ta.do(t, http.MethodGet, "/reports/sales/monthly?format=csv", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "sales-monthly.csv") {
		t.Fatalf("expected attachment filename, got %q", cd)
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 || records[0][0] != "month" || records[1][0] != "2024-03" || records[1][1] != "15.00" || records[1][2] != "1" {
		t.Fatalf("unexpected csv %v", records)
	}

	rec = ta.do(t, http.MethodGet, "/reports/sales/weekly?format=xlsx", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("expected xlsx content type, got %q", ct)
	}
	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer book.Close()
	week, err := book.GetCellValue("Sales", "A2")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if week != "2024-W11" {
		t.Fatalf("expected week 2024-W11, got %q", week)
	}
}

func TestSalesByFilters(t *testing.T) {
	ta := newTestAPI(t)
	coffee := createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":1,"qty":1}]}`)
	snack := createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":3,"qty":1}]}`)

	cases := []struct {
		query string
		want  []int64
	}{
		{"", []int64{snack.InvoiceID, coffee.InvoiceID}},
		{"?user_id=1", []int64{snack.InvoiceID, coffee.InvoiceID}},
		{"?user_id=2", nil},
		{"?product_id=1", []int64{coffee.InvoiceID}},
		{"?category_id=2", []int64{snack.InvoiceID}},
		{"?category_id=1&product_id=3", nil},
	}
	for _, tc := range cases {
		rec := ta.do(t, http.MethodGet, "/reports/sales/by"+tc.query, nil)
		expectStatus(t, rec, http.StatusOK)
		var sales []domain.Sale
		decodeBody(t, rec, &sales)
		if len(sales) != len(tc.want) {
			t.Fatalf("%q: expected %d sales, got %d", tc.query, len(tc.want), len(sales))
		}
		for i, sale := range sales {
			if sale.ID != tc.want[i] {
				t.Fatalf("%q: expected sale %d at %d, got %d", tc.query, tc.want[i], i, sale.ID)
			}
		}
	}

	rec := ta.do(t, http.MethodGet, "/reports/sales/by?user_id=abc", nil)
	expectStatus(t, rec, http.StatusBadRequest)
	rec = ta.do(t, http.MethodGet, "/reports/sales/by?product_id=-3", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestReportsReflectInvoiceChanges(t *testing.T) {
	ta := newTestAPI(t)
	created := createInvoice(t, ta, `{"user_id":1,"items":[{"product_id":2,"qty":1}]}`)

	rec := ta.do(t, http.MethodGet, "/reports/sales/daily", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = ta.do(t, http.MethodPost, "/invoice/"+itoa(created.InvoiceID)+"/items/add", `{"product_id":2,"qty":1}`)
	expectStatus(t, rec, http.StatusCreated)

	rec = ta.do(t, http.MethodGet, "/reports/sales/daily", nil)
	expectStatus(t, rec, http.StatusOK)
	var rows []map[string]json.RawMessage
	decodeBody(t, rec, &rows)
	if len(rows) != 1 || string(rows[0]["total_sales"]) != "10.00" {
		t.Fatalf("expected refreshed total 10.00, got %v", rows)
	}
}
