package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"posledger/internal/domain"
	"posledger/internal/store/sqlstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	*sqlstore.Store
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return &Store{Store: sqlstore.New(db, Dialect())}, nil
}

// Dialect configures the shared SQL store for PostgreSQL. Sale headers are
// locked with FOR UPDATE and summaries are aggregated by the database.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:                  "postgres",
		Numbered:              true,
		LockSuffix:            " FOR UPDATE",
		WriteTx:               &sql.TxOptions{Isolation: sql.LevelSerializable},
		ReadTx:                &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
		MaxRetries:            3,
		IsUniqueViolation:     isUniqueViolation,
		IsForeignKeyViolation: isForeignKeyViolation,
		IsRetryable:           isSerializationFailure,
		SummaryQuery:          summaryQuery,
	}
}

func summaryQuery(g domain.Granularity) string {
	format := "YYYY-MM-DD"
	switch g {
	case domain.Weekly:
		format = `IYYY-"W"IW`
	case domain.Monthly:
		format = "YYYY-MM"
	}
	return fmt.Sprintf(`
		SELECT to_char(date_time AT TIME ZONE 'UTC', '%s') AS period, SUM(total), COUNT(*)
		FROM sales
		GROUP BY period
		ORDER BY period DESC
	`, format)
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == "23505"
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == "23503"
}

func isSerializationFailure(err error) bool {
	code := pgCode(err)
	return code == "40001" || code == "40P01"
}
