package store

import (
	"context"

	"posledger/internal/domain"
)

type Repository interface {
	CatalogStore
	LedgerStore
	ReportStore
}

type CatalogStore interface {
	ListBranches(ctx context.Context) ([]domain.Branch, error)
	GetBranch(ctx context.Context, id int64) (*domain.Branch, error)
	CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)
	UpdateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)
	DeleteBranch(ctx context.Context, id int64) error

	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByName(ctx context.Context, userName string) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
}

// LedgerStore owns sales and their items. Every mutation goes through
// WithinTx so header and item writes commit or roll back together.
type LedgerStore interface {
	WithinTx(ctx context.Context, fn func(tx InvoiceTx) error) error
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
}

// InvoiceTx is the view of the store available inside one transaction.
type InvoiceTx interface {
	ResolveProduct(ctx context.Context, productID int64) (domain.PriceQuote, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)

	InsertSale(ctx context.Context, sale domain.Sale) (int64, error)
	// LockSale reads the header and holds it for the rest of the transaction.
	LockSale(ctx context.Context, id int64) (domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) error
	DeleteSale(ctx context.Context, id int64) error

	InsertItem(ctx context.Context, item domain.SaleItem) (int64, error)
	GetItem(ctx context.Context, saleID int64, itemID int64) (domain.SaleItem, error)
	UpdateItem(ctx context.Context, item domain.SaleItem) error
	DeleteItem(ctx context.Context, saleID int64, itemID int64) error
	DeleteItems(ctx context.Context, saleID int64) error
	ListItems(ctx context.Context, saleID int64) ([]domain.SaleItem, error)
}

type ReportStore interface {
	SalesSummary(ctx context.Context, granularity domain.Granularity) ([]domain.SalesBucket, error)
	SalesBy(ctx context.Context, filter domain.SalesFilter) ([]domain.Sale, error)
}
