package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"posledger/internal/domain"
	"posledger/internal/report"
	"posledger/internal/store"
)

type Store struct {
	db *sql.DB
	d  Dialect
}

func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, d: d}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.d.rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	out := v.String
	return &out
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

// Branches

const branchColumns = `id, name, location, logo, phone`

func scanBranch(row rowScanner) (domain.Branch, error) {
	var (
		b     domain.Branch
		logo  sql.NullString
		phone sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Location, &logo, &phone); err != nil {
		return domain.Branch{}, err
	}
	b.Logo = stringPtr(logo)
	b.Phone = stringPtr(phone)
	return b, nil
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+branchColumns+` FROM branches ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Branch, 0, 8)
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetBranch(ctx context.Context, id int64) (*domain.Branch, error) {
	b, err := scanBranch(s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+branchColumns+` FROM branches WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundf("branch %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	id, err := s.insert(ctx, `INSERT INTO branches (name, location, logo, phone) VALUES (?, ?, ?, ?)`,
		branch.Name, branch.Location, branch.Logo, branch.Phone)
	if err != nil {
		return nil, err
	}
	branch.ID = id
	return &branch, nil
}

func (s *Store) UpdateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	affected, err := s.exec(ctx, `UPDATE branches SET name = ?, location = ?, logo = ?, phone = ? WHERE id = ?`,
		branch.Name, branch.Location, branch.Logo, branch.Phone, branch.ID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.NotFoundf("branch %d not found", branch.ID)
	}
	return &branch, nil
}

func (s *Store) DeleteBranch(ctx context.Context, id int64) error {
	affected, err := s.exec(ctx, `DELETE FROM branches WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFoundf("branch %d not found", id)
	}
	return nil
}

// Users

const userColumns = `id, user_name, password_hash, profile`

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u       domain.User
		profile sql.NullString
	)
	if err := row.Scan(&u.ID, &u.UserName, &u.PasswordHash, &profile); err != nil {
		return domain.User{}, err
	}
	u.Profile = stringPtr(profile)
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.User, 0, 8)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundf("user %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByName(ctx context.Context, userName string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+userColumns+` FROM users WHERE user_name = ?`), userName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundf("user %q not found", userName)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	id, err := s.insert(ctx, `INSERT INTO users (user_name, password_hash, profile) VALUES (?, ?, ?)`,
		user.UserName, user.PasswordHash, user.Profile)
	if err != nil {
		if s.d.unique(err) {
			return nil, store.Conflictf("user name %q already exists", user.UserName)
		}
		return nil, err
	}
	user.ID = id
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	affected, err := s.exec(ctx, `UPDATE users SET user_name = ?, password_hash = ?, profile = ? WHERE id = ?`,
		user.UserName, user.PasswordHash, user.Profile, user.ID)
	if err != nil {
		if s.d.unique(err) {
			return nil, store.Conflictf("user name %q already exists", user.UserName)
		}
		return nil, err
	}
	if affected == 0 {
		return nil, store.NotFoundf("user %d not found", user.ID)
	}
	return &user, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	affected, err := s.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		if s.d.foreignKey(err) {
			return store.Conflictf("user %d has invoices", id)
		}
		return err
	}
	if affected == 0 {
		return store.NotFoundf("user %d not found", id)
	}
	return nil
}

// Categories

const categoryColumns = `id, name, image`

func scanCategory(row rowScanner) (domain.Category, error) {
	var (
		c     domain.Category
		image sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &image); err != nil {
		return domain.Category{}, err
	}
	c.Image = stringPtr(image)
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Category, 0, 8)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+categoryColumns+` FROM categories WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundf("category %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	id, err := s.insert(ctx, `INSERT INTO categories (name, image) VALUES (?, ?)`, category.Name, category.Image)
	if err != nil {
		if s.d.unique(err) {
			return nil, store.Conflictf("category with name %q already exists", category.Name)
		}
		return nil, err
	}
	category.ID = id
	return &category, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	affected, err := s.exec(ctx, `UPDATE categories SET name = ?, image = ? WHERE id = ?`, category.Name, category.Image, category.ID)
	if err != nil {
		if s.d.unique(err) {
			return nil, store.Conflictf("another category with name %q already exists", category.Name)
		}
		return nil, err
	}
	if affected == 0 {
		return nil, store.NotFoundf("category %d not found", category.ID)
	}
	return &category, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	affected, err := s.exec(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		if s.d.foreignKey(err) {
			return store.Conflictf("category %d still has products", id)
		}
		return err
	}
	if affected == 0 {
		return store.NotFoundf("category %d not found", id)
	}
	return nil
}

// Products

const productColumns = `id, name, category_id, cost, price, image`

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p     domain.Product
		image sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.Cost, &p.Price, &image); err != nil {
		return domain.Product{}, err
	}
	p.Image = stringPtr(image)
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundf("product %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	id, err := s.insert(ctx, `INSERT INTO products (name, category_id, cost, price, image) VALUES (?, ?, ?, ?, ?)`,
		product.Name, product.CategoryID, product.Cost, product.Price, product.Image)
	if err != nil {
		if s.d.foreignKey(err) {
			return nil, store.NotFoundf("category %d not found", product.CategoryID)
		}
		return nil, err
	}
	product.ID = id
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	affected, err := s.exec(ctx, `UPDATE products SET name = ?, category_id = ?, cost = ?, price = ?, image = ? WHERE id = ?`,
		product.Name, product.CategoryID, product.Cost, product.Price, product.Image, product.ID)
	if err != nil {
		if s.d.foreignKey(err) {
			return nil, store.NotFoundf("category %d not found", product.CategoryID)
		}
		return nil, err
	}
	if affected == 0 {
		return nil, store.NotFoundf("product %d not found", product.ID)
	}
	return &product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	affected, err := s.exec(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		if s.d.foreignKey(err) {
			return store.Conflictf("product %d is referenced by invoices", id)
		}
		return err
	}
	if affected == 0 {
		return store.NotFoundf("product %d not found", id)
	}
	return nil
}

// Customers

const customerColumns = `id, name, phone, email`

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var (
		c     domain.Customer
		phone sql.NullString
		email sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &phone, &email); err != nil {
		return domain.Customer{}, err
	}
	c.Phone = stringPtr(phone)
	c.Email = stringPtr(email)
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Customer, 0, 16)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+customerColumns+` FROM customers WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundf("customer %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	id, err := s.insert(ctx, `INSERT INTO customers (name, phone, email) VALUES (?, ?, ?)`, customer.Name, customer.Phone, customer.Email)
	if err != nil {
		return nil, err
	}
	customer.ID = id
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	affected, err := s.exec(ctx, `UPDATE customers SET name = ?, phone = ?, email = ? WHERE id = ?`,
		customer.Name, customer.Phone, customer.Email, customer.ID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.NotFoundf("customer %d not found", customer.ID)
	}
	return &customer, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	affected, err := s.exec(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		if s.d.foreignKey(err) {
			return store.Conflictf("customer %d has invoices", id)
		}
		return err
	}
	if affected == 0 {
		return store.NotFoundf("customer %d not found", id)
	}
	return nil
}

// Sales read side

const saleColumns = `s.id, s.date_time, s.customer_id, s.user_id, s.total, s.paid, s.remark`

func scanSale(row rowScanner, extra ...any) (domain.Sale, error) {
	var (
		sale       domain.Sale
		customerID sql.NullInt64
		remark     sql.NullString
	)
	dest := append([]any{&sale.ID, &sale.DateTime, &customerID, &sale.UserID, &sale.Total, &sale.Paid, &remark}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Sale{}, err
	}
	sale.DateTime = sale.DateTime.UTC()
	sale.CustomerID = int64Ptr(customerID)
	sale.Remark = stringPtr(remark)
	return sale, nil
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.querySales(ctx, `SELECT `+saleColumns+` FROM sales s ORDER BY s.date_time DESC, s.id DESC`)
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	tx, err := s.db.BeginTx(ctx, s.d.ReadTx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var customerName sql.NullString
	sale, err := scanSale(tx.QueryRowContext(ctx, s.d.rebind(`
		SELECT `+saleColumns+`, c.name
		FROM sales s
		LEFT JOIN customers c ON c.id = s.customer_id
		WHERE s.id = ?
	`), id), &customerName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundf("invoice %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	sale.CustomerName = stringPtr(customerName)

	items, err := listItems(ctx, tx, s.d, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &domain.Invoice{Sale: sale, Items: items}, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listItems(ctx context.Context, q querier, d Dialect, saleID int64) ([]domain.SaleItem, error) {
	rows, err := q.QueryContext(ctx, d.rebind(`
		SELECT id, sale_id, product_id, qty, cost, price, total
		FROM sale_items
		WHERE sale_id = ?
		ORDER BY id
	`), saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row rowScanner) (domain.SaleItem, error) {
	var item domain.SaleItem
	err := row.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Qty, &item.Cost, &item.Price, &item.Total)
	return item, err
}

// Reports

func (s *Store) SalesSummary(ctx context.Context, granularity domain.Granularity) ([]domain.SalesBucket, error) {
	if s.d.SummaryQuery != nil {
		return s.sqlSummary(ctx, s.d.SummaryQuery(granularity))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT date_time, total FROM sales`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stamps := make([]domain.SaleStamp, 0, 128)
	for rows.Next() {
		var stamp domain.SaleStamp
		if err := rows.Scan(&stamp.DateTime, &stamp.Total); err != nil {
			return nil, err
		}
		stamps = append(stamps, stamp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return report.Summarize(granularity, stamps), nil
}

func (s *Store) sqlSummary(ctx context.Context, query string) ([]domain.SalesBucket, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SalesBucket, 0, 32)
	for rows.Next() {
		var bucket domain.SalesBucket
		if err := rows.Scan(&bucket.Period, &bucket.TotalSales, &bucket.NumSales); err != nil {
			return nil, err
		}
		out = append(out, bucket)
	}
	return out, rows.Err()
}

func (s *Store) SalesBy(ctx context.Context, filter domain.SalesFilter) ([]domain.Sale, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filter.UserID != nil {
		where = append(where, "s.user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.ProductID != nil || filter.CategoryID != nil {
		cond := []string{"i.sale_id = s.id"}
		if filter.ProductID != nil {
			cond = append(cond, "i.product_id = ?")
			args = append(args, *filter.ProductID)
		}
		if filter.CategoryID != nil {
			cond = append(cond, "p.category_id = ?")
			args = append(args, *filter.CategoryID)
		}
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM sale_items i JOIN products p ON p.id = i.product_id WHERE %s)",
			strings.Join(cond, " AND "),
		))
	}

	query := `SELECT ` + saleColumns + ` FROM sales s`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.date_time DESC, s.id DESC"
	return s.querySales(ctx, query, args...)
}

// Ledger write side

// WithinTx runs fn in one transaction and retries it when the engine
// reports a serialization failure.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.InvoiceTx) error) error {
	attempts := s.d.MaxRetries + 1
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !s.d.retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx store.InvoiceTx) error) error {
	tx, err := s.db.BeginTx(ctx, s.d.WriteTx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{tx: tx, d: s.d}); err != nil {
		return err
	}
	return tx.Commit()
}

type sqlTx struct {
	tx *sql.Tx
	d  Dialect
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqlTx) exists(ctx context.Context, query string, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRowContext(ctx, t.d.rebind(`SELECT EXISTS (`+query+`)`), id).Scan(&ok)
	return ok, err
}

func (t *sqlTx) ResolveProduct(ctx context.Context, productID int64) (domain.PriceQuote, error) {
	quote := domain.PriceQuote{}
	err := t.tx.QueryRowContext(ctx, t.d.rebind(`SELECT id, price, cost FROM products WHERE id = ?`), productID).
		Scan(&quote.ProductID, &quote.Price, &quote.Cost)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PriceQuote{}, store.NotFoundf("product %d not found", productID)
	}
	return quote, err
}

func (t *sqlTx) UserExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT 1 FROM users WHERE id = ?`, id)
}

func (t *sqlTx) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT 1 FROM customers WHERE id = ?`, id)
}

func (t *sqlTx) InsertSale(ctx context.Context, sale domain.Sale) (int64, error) {
	if sale.DateTime.IsZero() {
		sale.DateTime = time.Now().UTC()
	}
	var id int64
	err := t.tx.QueryRowContext(ctx, t.d.rebind(`
		INSERT INTO sales (date_time, customer_id, user_id, total, paid, remark)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), sale.DateTime.UTC(), sale.CustomerID, sale.UserID, sale.Total, sale.Paid, sale.Remark).Scan(&id)
	if err != nil && t.d.foreignKey(err) {
		return 0, store.NotFoundf("user or customer of invoice not found")
	}
	return id, err
}

func (t *sqlTx) LockSale(ctx context.Context, id int64) (domain.Sale, error) {
	sale, err := scanSale(t.tx.QueryRowContext(ctx, t.d.rebind(`SELECT `+saleColumns+` FROM sales s WHERE s.id = ?`+t.d.LockSuffix), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sale{}, store.NotFoundf("invoice %d not found", id)
	}
	return sale, err
}

func (t *sqlTx) UpdateSale(ctx context.Context, sale domain.Sale) error {
	affected, err := t.exec(ctx, `UPDATE sales SET customer_id = ?, total = ?, paid = ?, remark = ? WHERE id = ?`,
		sale.CustomerID, sale.Total, sale.Paid, sale.Remark, sale.ID)
	if err != nil {
		if t.d.foreignKey(err) {
			return store.NotFoundf("customer of invoice %d not found", sale.ID)
		}
		return err
	}
	if affected == 0 {
		return store.NotFoundf("invoice %d not found", sale.ID)
	}
	return nil
}

func (t *sqlTx) DeleteSale(ctx context.Context, id int64) error {
	affected, err := t.exec(ctx, `DELETE FROM sales WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFoundf("invoice %d not found", id)
	}
	return nil
}

func (t *sqlTx) InsertItem(ctx context.Context, item domain.SaleItem) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, t.d.rebind(`
		INSERT INTO sale_items (sale_id, product_id, qty, cost, price, total)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), item.SaleID, item.ProductID, item.Qty, item.Cost, item.Price, item.Total).Scan(&id)
	return id, err
}

func (t *sqlTx) GetItem(ctx context.Context, saleID int64, itemID int64) (domain.SaleItem, error) {
	item, err := scanItem(t.tx.QueryRowContext(ctx, t.d.rebind(`
		SELECT id, sale_id, product_id, qty, cost, price, total
		FROM sale_items
		WHERE id = ? AND sale_id = ?
	`), itemID, saleID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SaleItem{}, store.NotFoundf("item %d not found on invoice %d", itemID, saleID)
	}
	return item, err
}

func (t *sqlTx) UpdateItem(ctx context.Context, item domain.SaleItem) error {
	affected, err := t.exec(ctx, `UPDATE sale_items SET qty = ?, total = ? WHERE id = ? AND sale_id = ?`,
		item.Qty, item.Total, item.ID, item.SaleID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFoundf("item %d not found on invoice %d", item.ID, item.SaleID)
	}
	return nil
}

func (t *sqlTx) DeleteItem(ctx context.Context, saleID int64, itemID int64) error {
	affected, err := t.exec(ctx, `DELETE FROM sale_items WHERE id = ? AND sale_id = ?`, itemID, saleID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFoundf("item %d not found on invoice %d", itemID, saleID)
	}
	return nil
}

func (t *sqlTx) DeleteItems(ctx context.Context, saleID int64) error {
	_, err := t.exec(ctx, `DELETE FROM sale_items WHERE sale_id = ?`, saleID)
	return err
}

func (t *sqlTx) ListItems(ctx context.Context, saleID int64) ([]domain.SaleItem, error) {
	return listItems(ctx, t.tx, t.d, saleID)
}
