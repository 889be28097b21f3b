package domain

import (
	"time"

	"posledger/internal/money"
)

type Branch struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Logo     *string `json:"logo"`
	Phone    *string `json:"phone"`
}

type BranchInput struct {
	Name     *string
	Location *string
	Phone    *string
	Logo     *Upload
}

type User struct {
	ID           int64   `json:"id"`
	UserName     string  `json:"user_name"`
	PasswordHash string  `json:"-"`
	Profile      *string `json:"profile"`
}

type UserInput struct {
	UserName *string
	Password *string
	Profile  *Upload
}

type Category struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

type CategoryInput struct {
	Name  *string
	Image *Upload
}

type Product struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	CategoryID int64       `json:"category_id"`
	Cost       money.Money `json:"cost"`
	Price      money.Money `json:"price"`
	Image      *string     `json:"image"`
}

type ProductInput struct {
	Name       *string
	CategoryID *int64
	Cost       *money.Money
	Price      *money.Money
	Image      *Upload
}

// PriceQuote is what the catalog hands the ledger when an item is priced.
type PriceQuote struct {
	ProductID int64
	Price     money.Money
	Cost      money.Money
}

type Customer struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

type CustomerRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=128"`
	Phone *string `json:"phone" validate:"omitempty,max=64"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// Upload is an image received from a client before it reaches file storage.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Actor struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

type LoginRequest struct {
	UserName string `json:"user_name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
	ExpiresAt   string `json:"expires_at"`
}

type Sale struct {
	ID           int64       `json:"id"`
	DateTime     time.Time   `json:"date_time"`
	CustomerID   *int64      `json:"customer_id"`
	CustomerName *string     `json:"customer_name,omitempty"`
	UserID       int64       `json:"user_id"`
	Total        money.Money `json:"total"`
	Paid         money.Money `json:"paid"`
	Remark       *string     `json:"remark"`
}

type SaleItem struct {
	ID        int64       `json:"id"`
	SaleID    int64       `json:"-"`
	ProductID int64       `json:"product_id"`
	Qty       int         `json:"qty"`
	Cost      money.Money `json:"cost"`
	Price     money.Money `json:"price"`
	Total     money.Money `json:"total"`
}

type Invoice struct {
	Sale  Sale       `json:"invoice"`
	Items []SaleItem `json:"items"`
}

type InvoiceLine struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Qty       int   `json:"qty"`
}

type CreateInvoiceRequest struct {
	UserID     int64         `json:"user_id"`
	CustomerID *int64        `json:"customer_id"`
	Remark     *string       `json:"remark"`
	Paid       *money.Money  `json:"paid"`
	Items      []InvoiceLine `json:"items"`
}

// UpdateInvoiceRequest distinguishes absent fields from explicit nulls so
// customer_id and remark can be cleared.
type UpdateInvoiceRequest struct {
	CustomerID Optional[int64]       `json:"customer_id"`
	Remark     Optional[string]      `json:"remark"`
	Paid       Optional[money.Money] `json:"paid"`
	Items      *[]InvoiceLine        `json:"items"`
}

type UpdateItemRequest struct {
	Qty *int `json:"qty"`
}

type InvoiceCreated struct {
	InvoiceID int64       `json:"invoice_id"`
	Total     money.Money `json:"total"`
}

type InvoiceUpdated struct {
	InvoiceID int64       `json:"invoice_id"`
	Total     money.Money `json:"total"`
}

type ItemAdded struct {
	ItemID       int64       `json:"item_id"`
	InvoiceTotal money.Money `json:"invoice_total"`
}

type Reconciliation struct {
	InvoiceID     int64       `json:"invoice_id"`
	StoredTotal   money.Money `json:"stored_total"`
	ComputedTotal money.Money `json:"computed_total"`
	ItemsRepaired int         `json:"items_repaired"`
	Repaired      bool        `json:"repaired"`
}

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

func (g Granularity) Valid() bool {
	return g == Daily || g == Weekly || g == Monthly
}

// Label is the JSON key the period is reported under.
func (g Granularity) Label() string {
	switch g {
	case Weekly:
		return "week"
	case Monthly:
		return "month"
	default:
		return "date"
	}
}

type SalesBucket struct {
	Period     string      `json:"period"`
	TotalSales money.Money `json:"total_sales"`
	NumSales   int64       `json:"num_sales"`
}

type SaleStamp struct {
	DateTime time.Time
	Total    money.Money
}

type SalesFilter struct {
	UserID     *int64
	ProductID  *int64
	CategoryID *int64
}
