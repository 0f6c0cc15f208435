package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/datasignstech/pyluca/internal/aging"
	"github.com/datasignstech/pyluca/internal/config"
	"github.com/datasignstech/pyluca/internal/journal"
	"github.com/datasignstech/pyluca/internal/models"
)

// Ledger aggregates the per-account materialized balance views over one
// journal and is the write path for balanced postings. A single mutex
// serializes all access: the journal for a logical ledger key has at most
// one writer at a time, and reads see a consistent snapshot (never a
// half-appended posting pair).
type Ledger struct {
	mu           sync.Mutex
	cfg          *config.AccountingConfig
	journal      *journal.Journal
	key          string
	accounts     map[string]*AccountLedger
	balanceSheet []BalanceSheetRow
}

// New builds a ledger over the given journal. Any entries already in the
// journal are replayed into the per-account views in order; replay does not
// re-validate timestamp ordering (seeds may be historical).
func New(j *journal.Journal, cfg *config.AccountingConfig, key string) (*Ledger, error) {
	accounts := make(map[string]*AccountLedger, len(cfg.Accounts))
	for _, name := range cfg.AccountNames() {
		balanceType, err := cfg.BalanceTypeOf(name)
		if err != nil {
			return nil, err
		}
		accounts[name] = newAccountLedger(name, balanceType)
	}

	l := &Ledger{cfg: cfg, journal: j, key: key, accounts: accounts}
	for _, e := range j.Entries() {
		al, ok := accounts[e.Account]
		if !ok {
			return nil, &config.UnknownAccountError{Account: e.Account}
		}
		al.replay(e)
		l.pushBalanceSheetRow(e)
	}
	return l, nil
}

// Key returns the logical ledger key stamped onto every posting.
func (l *Ledger) Key() string {
	return l.key
}

// Journal returns the underlying journal.
func (l *Ledger) Journal() *journal.Journal {
	return l.journal
}

// Post records a balanced pair of journal entries: a debit leg against
// drAccount and a credit leg against crAccount, sharing the timestamp,
// narration and event id. A zero amount is a no-op. Nothing is mutated on
// error.
func (l *Ledger) Post(drAccount, crAccount string, amount decimal.Decimal, timestamp time.Time, narration, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.post(drAccount, crAccount, amount, timestamp, narration, eventID)
}

func (l *Ledger) post(drAccount, crAccount string, amount decimal.Decimal, timestamp time.Time, narration, eventID string) error {
	if amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return fmt.Errorf("posting amount must not be negative, got %s", amount)
	}
	drLedger, ok := l.accounts[drAccount]
	if !ok {
		return &config.UnknownAccountError{Account: drAccount}
	}
	crLedger, ok := l.accounts[crAccount]
	if !ok {
		return &config.UnknownAccountError{Account: crAccount}
	}

	// The debit leg's journal append performs the watermark check before
	// anything is stored; the credit leg shares its timestamp, so once the
	// debit leg is in, the credit leg cannot be rejected.
	debit, err := l.journal.Append(models.NewJournalEntry(drAccount, amount, decimal.Zero, timestamp, narration, l.key, eventID))
	if err != nil {
		return err
	}
	if _, err := drLedger.append(debit); err != nil {
		return err
	}
	l.pushBalanceSheetRow(debit)

	credit, err := l.journal.Append(models.NewJournalEntry(crAccount, decimal.Zero, amount, timestamp, narration, l.key, eventID))
	if err != nil {
		return err
	}
	if _, err := crLedger.append(credit); err != nil {
		return err
	}
	l.pushBalanceSheetRow(credit)
	return nil
}

// Record posts against a named rule from the configuration. The rule's
// narration is prefixed to the note, and meta (if any) is appended in the
// ##<json>## wire form. Non-positive amounts are skipped.
func (l *Ledger) Record(rule string, amount decimal.Decimal, timestamp time.Time, note string, meta map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.cfg.Rules[rule]
	if !ok {
		return fmt.Errorf("unknown rule %q", rule)
	}
	narration, err := models.AppendNarrationMeta(fmt.Sprintf("%s %s", r.Narration, note), meta)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return nil
	}
	return l.post(r.DrAccount, r.CrAccount, amount, timestamp, narration, "")
}

// Adjust books a reconciliation adjustment between two accounts.
func (l *Ledger) Adjust(drAccount, crAccount string, amount decimal.Decimal, timestamp time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.post(drAccount, crAccount, amount, timestamp, "Reconcile adjust", "")
}

// Balance returns the latest balance of an account.
func (l *Ledger) Balance(account string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	al, ok := l.accounts[account]
	if !ok {
		return decimal.Zero, &config.UnknownAccountError{Account: account}
	}
	return al.Balance(), nil
}

// BalanceAsOf returns the balance of an account as of the given time.
func (l *Ledger) BalanceAsOf(account string, asOf time.Time) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	al, ok := l.accounts[account]
	if !ok {
		return decimal.Zero, &config.UnknownAccountError{Account: account}
	}
	return al.BalanceAsOf(asOf), nil
}

// Balances returns the latest balance of every configured account.
func (l *Ledger) Balances() map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[string]decimal.Decimal, len(l.accounts))
	for name, al := range l.accounts {
		balances[name] = al.Balance()
	}
	return balances
}

// BalancesAsOf returns every configured account's balance as of a time.
func (l *Ledger) BalancesAsOf(asOf time.Time) map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[string]decimal.Decimal, len(l.accounts))
	for name, al := range l.accounts {
		balances[name] = al.BalanceAsOf(asOf)
	}
	return balances
}

// BalanceByType sums the latest balances of all accounts of the given type,
// skipping any in exclude.
func (l *Ledger) BalanceByType(accountType string, exclude []string) (decimal.Decimal, error) {
	return l.balanceByType(accountType, exclude, func(al *AccountLedger) decimal.Decimal {
		return al.Balance()
	})
}

// BalanceByTypeAsOf is BalanceByType at a point in time.
func (l *Ledger) BalanceByTypeAsOf(accountType string, exclude []string, asOf time.Time) (decimal.Decimal, error) {
	return l.balanceByType(accountType, exclude, func(al *AccountLedger) decimal.Decimal {
		return al.BalanceAsOf(asOf)
	})
}

func (l *Ledger) balanceByType(accountType string, exclude []string, balance func(*AccountLedger) decimal.Decimal) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cfg.AccountTypes[accountType]; !ok {
		return decimal.Zero, &config.UnknownAccountTypeError{AccountType: accountType}
	}
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}
	total := decimal.Zero
	for name, account := range l.cfg.Accounts {
		if account.Type != accountType || excluded[name] {
			continue
		}
		total = total.Add(balance(l.accounts[name]))
	}
	return total, nil
}

// Aging returns the FIFO aging of an account over the whole journal as of
// its watermark.
func (l *Ledger) Aging(account string) (*aging.AccountAging, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return aging.GetAccountAging(l.cfg, l.journal.Entries(), account, l.journal.MaxTimestamp(), nil)
}
