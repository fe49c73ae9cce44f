package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are JSON numbers in the output record, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DateLayout is the canonical day/month/year format of a movement date.
const DateLayout = "02/01/2006"

// Date is a calendar day serialized as DD/MM/YYYY.
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts DD/MM/YYYY (single-digit day and month allowed).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("2/1/2006", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected DD/MM/YYYY", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s: expected a DD/MM/YYYY string", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Movement is one transaction line of a statement.
//
// Amount is positive for credits (deposits) and negative for debits
// (withdrawals). The sign is taken from the source data as-is.
type Movement struct {
	Date        Date            `json:"fecha"`
	Description string          `json:"descripcion"`
	Amount      decimal.Decimal `json:"monto"`
	Balance     decimal.Decimal `json:"saldo"`
}

// IsCredit reports whether the movement adds money to the account.
func (m Movement) IsCredit() bool {
	return m.Amount.IsPositive()
}

// StatementRecord is the canonical, normalized bank statement.
type StatementRecord struct {
	Bank           string          `json:"banco"`
	AccountNumber  string          `json:"numero_cuenta"`
	CLABE          string          `json:"clabe,omitempty"`
	AccountHolder  string          `json:"titular"`
	Period         string          `json:"periodo"`
	OpeningBalance decimal.Decimal `json:"saldo_inicial"`
	ClosingBalance decimal.Decimal `json:"saldo_final"`
	Movements      []Movement      `json:"movimientos"`
}

// Totals summarizes the movements of a statement.
type Totals struct {
	Credits decimal.Decimal `json:"abonos"`
	Debits  decimal.Decimal `json:"cargos"`
	Count   int             `json:"movimientos"`
}

// Totals sums credits and debits. Debits are reported as a positive magnitude.
func (s *StatementRecord) Totals() Totals {
	t := Totals{Credits: decimal.Zero, Debits: decimal.Zero, Count: len(s.Movements)}
	for _, m := range s.Movements {
		if m.Amount.IsNegative() {
			t.Debits = t.Debits.Add(m.Amount.Abs())
		} else {
			t.Credits = t.Credits.Add(m.Amount)
		}
	}
	return t
}
