package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/datasignstech/pyluca/internal/config"
	"github.com/datasignstech/pyluca/internal/journal"
	"github.com/datasignstech/pyluca/internal/models"
)

// AccountLedger is one account's materialized balance timeline: every
// journal entry touching the account, in order, with the running balance
// after it. The balance orientation is resolved once at construction.
type AccountLedger struct {
	account     string
	balanceType config.BalanceType
	entries     []models.LedgerEntry
}

func newAccountLedger(account string, balanceType config.BalanceType) *AccountLedger {
	return &AccountLedger{account: account, balanceType: balanceType}
}

// Account returns the account name this timeline belongs to.
func (al *AccountLedger) Account() string {
	return al.account
}

// signedContribution projects a journal entry onto the account's balance
// orientation: debit-normal accounts grow with debits, credit-normal with
// credits.
func (al *AccountLedger) signedContribution(e models.JournalEntry) decimal.Decimal {
	if al.balanceType == config.BalanceTypeDebit {
		return e.DebitAmount.Sub(e.CreditAmount)
	}
	return e.CreditAmount.Sub(e.DebitAmount)
}

// append records a journal entry, enforcing non-decreasing timestamps.
func (al *AccountLedger) append(e models.JournalEntry) (models.LedgerEntry, error) {
	if n := len(al.entries); n > 0 && e.Timestamp.Before(al.entries[n-1].Timestamp) {
		return models.LedgerEntry{}, &journal.BackdatedEntryError{
			EntryTimestamp: e.Timestamp,
			Watermark:      al.entries[n-1].Timestamp,
		}
	}
	return al.push(e), nil
}

// replay records a seed entry without re-validating ordering. The journal's
// ordering invariant applies only to appends; historical seeds may arrive
// unsorted by timestamp.
func (al *AccountLedger) replay(e models.JournalEntry) models.LedgerEntry {
	return al.push(e)
}

func (al *AccountLedger) push(e models.JournalEntry) models.LedgerEntry {
	le := models.LedgerEntry{
		SequenceNo:     e.SequenceNo,
		Timestamp:      e.Timestamp,
		DebitAmount:    e.DebitAmount,
		CreditAmount:   e.CreditAmount,
		Narration:      e.Narration,
		EventID:        e.EventID,
		RunningBalance: al.Balance().Add(al.signedContribution(e)),
	}
	al.entries = append(al.entries, le)
	return le
}

// Balance returns the latest running balance, zero for an untouched account.
func (al *AccountLedger) Balance() decimal.Decimal {
	if len(al.entries) == 0 {
		return decimal.Zero
	}
	return al.entries[len(al.entries)-1].RunningBalance
}

// BalanceAsOf returns the balance as of the given time: the running balance
// of the rightmost entry with timestamp <= asOf. Entries are timestamp
// ordered by the append invariant, so this is a binary search; among entries
// sharing a timestamp the latest-appended one wins.
func (al *AccountLedger) BalanceAsOf(asOf time.Time) decimal.Decimal {
	i := sort.Search(len(al.entries), func(k int) bool {
		return al.entries[k].Timestamp.After(asOf)
	})
	if i == 0 {
		return decimal.Zero
	}
	return al.entries[i-1].RunningBalance
}

// Entries returns a copy of the account's timeline.
func (al *AccountLedger) Entries() []models.LedgerEntry {
	return append([]models.LedgerEntry(nil), al.entries...)
}
