package memory

import (
	"cmp"
	"context"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"posledger/internal/domain"
	"posledger/internal/money"
	"posledger/internal/report"
	"posledger/internal/store"
)

type Store struct {
	mu         sync.RWMutex
	branches   map[int64]domain.Branch
	users      map[int64]domain.User
	categories map[int64]domain.Category
	products   map[int64]domain.Product
	customers  map[int64]domain.Customer
	sales      map[int64]domain.Sale
	items      map[int64]domain.SaleItem
	seq        map[string]int64
}

func New() *Store {
	return &Store{
		branches:   make(map[int64]domain.Branch),
		users:      make(map[int64]domain.User),
		categories: make(map[int64]domain.Category),
		products:   make(map[int64]domain.Product),
		customers:  make(map[int64]domain.Customer),
		sales:      make(map[int64]domain.Sale),
		items:      make(map[int64]domain.SaleItem),
		seq:        make(map[string]int64),
	}
}

// NewSeeded returns a store with a demo branch, user and catalog for
// STORE=memory runs. The admin password comes from SEED_ADMIN_PASSWORD.
func NewSeeded() *Store {
	s := New()

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
		logrus.Warn("memory store: using default dev credentials, set SEED_ADMIN_PASSWORD to override")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Fatal("memory store: failed to hash seed password")
	}

	ctx := context.Background()
	_, _ = s.CreateBranch(ctx, domain.Branch{Name: "Main", Location: "Head office"})
	_, _ = s.CreateUser(ctx, domain.User{UserName: "admin", PasswordHash: string(hash)})
	drinks, _ := s.CreateCategory(ctx, domain.Category{Name: "Beverages"})
	snacks, _ := s.CreateCategory(ctx, domain.Category{Name: "Snacks"})
	_, _ = s.CreateProduct(ctx, domain.Product{Name: "House Coffee", CategoryID: drinks.ID, Price: money.MustParse("9.99"), Cost: money.MustParse("5.00")})
	_, _ = s.CreateProduct(ctx, domain.Product{Name: "Iced Tea", CategoryID: drinks.ID, Price: money.MustParse("5.00"), Cost: money.MustParse("2.10")})
	_, _ = s.CreateProduct(ctx, domain.Product{Name: "Butter Croissant", CategoryID: snacks.ID, Price: money.MustParse("3.75"), Cost: money.MustParse("1.40")})
	_, _ = s.CreateCustomer(ctx, domain.Customer{Name: "Walk-in"})
	return s
}

func (s *Store) nextID(kind string) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

func sortedByID[T any](in map[int64]T) []T {
	ids := slices.Sorted(maps.Keys(in))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, in[id])
	}
	return out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneSale(sale domain.Sale) domain.Sale {
	sale.CustomerID = cloneInt64(sale.CustomerID)
	sale.CustomerName = cloneString(sale.CustomerName)
	sale.Remark = cloneString(sale.Remark)
	return sale
}

// Branches

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.branches), nil
}

func (s *Store) GetBranch(_ context.Context, id int64) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	branch, ok := s.branches[id]
	if !ok {
		return nil, store.NotFoundf("branch %d not found", id)
	}
	return &branch, nil
}

func (s *Store) CreateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	branch.ID = s.nextID("branch")
	s.branches[branch.ID] = branch
	return &branch, nil
}

func (s *Store) UpdateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[branch.ID]; !ok {
		return nil, store.NotFoundf("branch %d not found", branch.ID)
	}
	s.branches[branch.ID] = branch
	return &branch, nil
}

func (s *Store) DeleteBranch(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[id]; !ok {
		return store.NotFoundf("branch %d not found", id)
	}
	delete(s.branches, id)
	return nil
}

// Users

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.users), nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, store.NotFoundf("user %d not found", id)
	}
	return &user, nil
}

func (s *Store) GetUserByName(_ context.Context, userName string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.UserName == userName {
			return &user, nil
		}
	}
	return nil, store.NotFoundf("user %q not found", userName)
}

func (s *Store) userNameTaken(name string, exceptID int64) bool {
	for id, user := range s.users {
		if id != exceptID && user.UserName == name {
			return true
		}
	}
	return false
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userNameTaken(user.UserName, 0) {
		return nil, store.Conflictf("user name %q already exists", user.UserName)
	}
	user.ID = s.nextID("user")
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return nil, store.NotFoundf("user %d not found", user.ID)
	}
	if s.userNameTaken(user.UserName, user.ID) {
		return nil, store.Conflictf("user name %q already exists", user.UserName)
	}
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.NotFoundf("user %d not found", id)
	}
	for _, sale := range s.sales {
		if sale.UserID == id {
			return store.Conflictf("user %d has invoices", id)
		}
	}
	delete(s.users, id)
	return nil
}

// Categories

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.categories), nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categories[id]
	if !ok {
		return nil, store.NotFoundf("category %d not found", id)
	}
	return &category, nil
}

func (s *Store) categoryNameTaken(name string, exceptID int64) bool {
	for id, category := range s.categories {
		if id != exceptID && category.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.categoryNameTaken(category.Name, 0) {
		return nil, store.Conflictf("category with name %q already exists", category.Name)
	}
	category.ID = s.nextID("category")
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category.ID]; !ok {
		return nil, store.NotFoundf("category %d not found", category.ID)
	}
	if s.categoryNameTaken(category.Name, category.ID) {
		return nil, store.Conflictf("another category with name %q already exists", category.Name)
	}
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return store.NotFoundf("category %d not found", id)
	}
	for _, product := range s.products {
		if product.CategoryID == id {
			return store.Conflictf("category %d still has products", id)
		}
	}
	delete(s.categories, id)
	return nil
}

// Products

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.products), nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return nil, store.NotFoundf("product %d not found", id)
	}
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[product.CategoryID]; !ok {
		return nil, store.NotFoundf("category %d not found", product.CategoryID)
	}
	product.ID = s.nextID("product")
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return nil, store.NotFoundf("product %d not found", product.ID)
	}
	if _, ok := s.categories[product.CategoryID]; !ok {
		return nil, store.NotFoundf("category %d not found", product.CategoryID)
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return store.NotFoundf("product %d not found", id)
	}
	for _, item := range s.items {
		if item.ProductID == id {
			return store.Conflictf("product %d is referenced by invoices", id)
		}
	}
	delete(s.products, id)
	return nil
}

// Customers

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.customers), nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, store.NotFoundf("customer %d not found", id)
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer.ID = s.nextID("customer")
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[customer.ID]; !ok {
		return nil, store.NotFoundf("customer %d not found", customer.ID)
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return store.NotFoundf("customer %d not found", id)
	}
	for _, sale := range s.sales {
		if sale.CustomerID != nil && *sale.CustomerID == id {
			return store.Conflictf("customer %d has invoices", id)
		}
	}
	delete(s.customers, id)
	return nil
}

// Ledger

type ledgerSnapshot struct {
	sales map[int64]domain.Sale
	items map[int64]domain.SaleItem
	seq   map[string]int64
}

// WithinTx holds the write lock for the whole callback, so mutations of
// any sale are serialized. On error the ledger maps are restored.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.InvoiceTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := ledgerSnapshot{
		sales: maps.Clone(s.sales),
		items: maps.Clone(s.items),
		seq:   maps.Clone(s.seq),
	}

	err := fn(&memTx{s: s})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.sales = saved.sales
		s.items = saved.items
		s.seq = saved.seq
		return err
	}
	return nil
}

func (s *Store) GetInvoice(_ context.Context, id int64) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.NotFoundf("invoice %d not found", id)
	}
	sale = cloneSale(sale)
	if sale.CustomerID != nil {
		if customer, ok := s.customers[*sale.CustomerID]; ok {
			name := customer.Name
			sale.CustomerName = &name
		}
	}
	return &domain.Invoice{Sale: sale, Items: s.itemsOf(id)}, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedSales(func(domain.Sale) bool { return true }), nil
}

func (s *Store) sortedSales(keep func(domain.Sale) bool) []domain.Sale {
	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if keep(sale) {
			out = append(out, cloneSale(sale))
		}
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		if c := b.DateTime.Compare(a.DateTime); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (s *Store) itemsOf(saleID int64) []domain.SaleItem {
	out := make([]domain.SaleItem, 0, 4)
	for _, item := range s.items {
		if item.SaleID == saleID {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b domain.SaleItem) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

type memTx struct {
	s *Store
}

func (t *memTx) ResolveProduct(_ context.Context, productID int64) (domain.PriceQuote, error) {
	product, ok := t.s.products[productID]
	if !ok {
		return domain.PriceQuote{}, store.NotFoundf("product %d not found", productID)
	}
	return domain.PriceQuote{ProductID: product.ID, Price: product.Price, Cost: product.Cost}, nil
}

func (t *memTx) UserExists(_ context.Context, id int64) (bool, error) {
	_, ok := t.s.users[id]
	return ok, nil
}

func (t *memTx) CustomerExists(_ context.Context, id int64) (bool, error) {
	_, ok := t.s.customers[id]
	return ok, nil
}

func (t *memTx) InsertSale(_ context.Context, sale domain.Sale) (int64, error) {
	sale.ID = t.s.nextID("sale")
	sale.CustomerName = nil
	if sale.DateTime.IsZero() {
		sale.DateTime = time.Now().UTC()
	}
	t.s.sales[sale.ID] = cloneSale(sale)
	return sale.ID, nil
}

func (t *memTx) LockSale(_ context.Context, id int64) (domain.Sale, error) {
	sale, ok := t.s.sales[id]
	if !ok {
		return domain.Sale{}, store.NotFoundf("invoice %d not found", id)
	}
	return cloneSale(sale), nil
}

func (t *memTx) UpdateSale(_ context.Context, sale domain.Sale) error {
	if _, ok := t.s.sales[sale.ID]; !ok {
		return store.NotFoundf("invoice %d not found", sale.ID)
	}
	sale.CustomerName = nil
	t.s.sales[sale.ID] = cloneSale(sale)
	return nil
}

func (t *memTx) DeleteSale(_ context.Context, id int64) error {
	if _, ok := t.s.sales[id]; !ok {
		return store.NotFoundf("invoice %d not found", id)
	}
	for itemID, item := range t.s.items {
		if item.SaleID == id {
			delete(t.s.items, itemID)
		}
	}
	delete(t.s.sales, id)
	return nil
}

func (t *memTx) InsertItem(_ context.Context, item domain.SaleItem) (int64, error) {
	if _, ok := t.s.sales[item.SaleID]; !ok {
		return 0, store.NotFoundf("invoice %d not found", item.SaleID)
	}
	item.ID = t.s.nextID("sale_item")
	t.s.items[item.ID] = item
	return item.ID, nil
}

func (t *memTx) GetItem(_ context.Context, saleID int64, itemID int64) (domain.SaleItem, error) {
	item, ok := t.s.items[itemID]
	if !ok || item.SaleID != saleID {
		return domain.SaleItem{}, store.NotFoundf("item %d not found on invoice %d", itemID, saleID)
	}
	return item, nil
}

func (t *memTx) UpdateItem(_ context.Context, item domain.SaleItem) error {
	existing, ok := t.s.items[item.ID]
	if !ok || existing.SaleID != item.SaleID {
		return store.NotFoundf("item %d not found on invoice %d", item.ID, item.SaleID)
	}
	t.s.items[item.ID] = item
	return nil
}

func (t *memTx) DeleteItem(_ context.Context, saleID int64, itemID int64) error {
	existing, ok := t.s.items[itemID]
	if !ok || existing.SaleID != saleID {
		return store.NotFoundf("item %d not found on invoice %d", itemID, saleID)
	}
	delete(t.s.items, itemID)
	return nil
}

func (t *memTx) DeleteItems(_ context.Context, saleID int64) error {
	for itemID, item := range t.s.items {
		if item.SaleID == saleID {
			delete(t.s.items, itemID)
		}
	}
	return nil
}

func (t *memTx) ListItems(_ context.Context, saleID int64) ([]domain.SaleItem, error) {
	return t.s.itemsOf(saleID), nil
}

// Reports

func (s *Store) SalesSummary(_ context.Context, granularity domain.Granularity) ([]domain.SalesBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stamps := make([]domain.SaleStamp, 0, len(s.sales))
	for _, sale := range s.sales {
		stamps = append(stamps, domain.SaleStamp{DateTime: sale.DateTime, Total: sale.Total})
	}
	return report.Summarize(granularity, stamps), nil
}

func (s *Store) SalesBy(_ context.Context, filter domain.SalesFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedSales(func(sale domain.Sale) bool {
		if filter.UserID != nil && sale.UserID != *filter.UserID {
			return false
		}
		if filter.ProductID == nil && filter.CategoryID == nil {
			return true
		}
		for _, item := range s.items {
			if item.SaleID != sale.ID {
				continue
			}
			if filter.ProductID != nil && item.ProductID != *filter.ProductID {
				continue
			}
			if filter.CategoryID != nil {
				product, ok := s.products[item.ProductID]
				if !ok || product.CategoryID != *filter.CategoryID {
					continue
				}
			}
			return true
		}
		return false
	}), nil
}
