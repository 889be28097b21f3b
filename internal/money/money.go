package money

import (
	"bytes"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is the single monetary type used from request parsing to storage.
// It never passes through float64.
type Money struct {
	d decimal.Decimal
}

func Zero() Money {
	return Money{d: decimal.Zero}
}

func FromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

// Bounds of a stored amount, NUMERIC(14,4).
const (
	MaxScale    = 4
	maxDigits   = 10
	maxInputLen = 32
)

var (
	ErrOutOfRange = errors.New("monetary value out of range")
	ErrPrecision  = errors.New("monetary value has too many decimal places")

	maxAbs = decimal.New(1, maxDigits)
)

// Parse reads an amount supplied by a client. Exponents are accepted only
// while the value fits the stored precision.
func Parse(raw string) (Money, error) {
	trimmed := string(bytes.TrimSpace([]byte(raw)))
	if len(trimmed) > maxInputLen {
		return Money{}, fmt.Errorf("%q: %w", trimmed[:maxInputLen]+"...", ErrOutOfRange)
	}
	m, err := parse(trimmed)
	if err != nil {
		return Money{}, err
	}
	if m.d.IsZero() {
		return Zero(), nil
	}
	if err := m.Check(); err != nil {
		return Money{}, fmt.Errorf("%q: %w", trimmed, err)
	}
	return m, nil
}

func parse(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, fmt.Errorf("invalid monetary value %q", raw)
	}
	return Money{d: d}, nil
}

// Check reports whether m fits NUMERIC(14,4). The exponent is checked first
// so no arithmetic runs on an absurd scale.
func (m Money) Check() error {
	exp := m.d.Exponent()
	if exp >= maxDigits {
		return ErrOutOfRange
	}
	if exp < -(maxInputLen + MaxScale) {
		return ErrPrecision
	}
	if m.d.Abs().Cmp(maxAbs) >= 0 {
		return ErrOutOfRange
	}
	if exp < -MaxScale && !m.d.Equal(m.d.Truncate(MaxScale)) {
		return ErrPrecision
	}
	return nil
}

func MustParse(raw string) Money {
	m, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) MulInt(n int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(n)))}
}

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

func (m Money) IsZero() bool { return m.d.IsZero() }

// String renders two decimals unless the value carries more precision.
func (m Money) String() string {
	if m.d.Equal(m.d.Round(2)) {
		return m.d.StringFixed(2)
	}
	return m.d.String()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	parsed, err := Parse(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *Money) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		m.d = decimal.Zero
		return nil
	case string:
		parsed, err := parse(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case []byte:
		parsed, err := parse(string(v))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	default:
		return m.d.Scan(value)
	}
}

func (m Money) Value() (driver.Value, error) {
	return m.d.String(), nil
}
