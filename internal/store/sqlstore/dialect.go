package sqlstore

import (
	"database/sql"
	"strconv"
	"strings"

	"posledger/internal/domain"
)

// Dialect holds what differs between the SQL engines behind Store.
type Dialect struct {
	Name string
	// Numbered rewrites ? placeholders to $1, $2, ...
	Numbered bool
	// LockSuffix is appended to the sale header read inside a mutation.
	LockSuffix string
	WriteTx    *sql.TxOptions
	ReadTx     *sql.TxOptions
	MaxRetries int

	IsUniqueViolation     func(error) bool
	IsForeignKeyViolation func(error) bool
	IsRetryable           func(error) bool

	// SummaryQuery returns an aggregate query yielding (period, total, count)
	// rows, most recent first. Nil means summaries are built in Go.
	SummaryQuery func(domain.Granularity) string
}

func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) unique(err error) bool {
	return d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}

func (d Dialect) foreignKey(err error) bool {
	return d.IsForeignKeyViolation != nil && d.IsForeignKeyViolation(err)
}

func (d Dialect) retryable(err error) bool {
	return d.IsRetryable != nil && d.IsRetryable(err)
}
