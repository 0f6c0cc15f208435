package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one row in an account's materialized balance timeline. The
// running balance is the account balance after this entry was applied, signed
// by the account's balance type.
type LedgerEntry struct {
	SequenceNo     int
	Timestamp      time.Time
	DebitAmount    decimal.Decimal
	CreditAmount   decimal.Decimal
	Narration      string
	EventID        string
	RunningBalance decimal.Decimal
}
