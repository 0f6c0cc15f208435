package aging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/datasignstech/pyluca/internal/config"
	"github.com/datasignstech/pyluca/internal/models"
)

// AccountMismatchError is returned when a previous aging checkpoint does not
// correspond to the requested account or account set. It signals checkpoint
// misuse by the caller and is never recovered silently.
type AccountMismatchError struct {
	Requested string
	Previous  string
}

func (e *AccountMismatchError) Error() string {
	return fmt.Sprintf("invalid previous aging state: requested %s does not match previous %s", e.Requested, e.Previous)
}

// AgingBucket is one discrete owed amount being paid off, in FIFO order with
// its siblings. Meta carries the structured payload parsed from the
// originating entry's narration, nil when there was none.
type AgingBucket struct {
	Timestamp time.Time
	Counter   *AmountCounter
	Meta      map[string]any
}

// AccountAging is the aging state of one account: the ordered bucket list,
// the unapplied paying flow carried forward, and the resume cursor. It is
// both the query result and the checkpoint for incremental recomputation.
type AccountAging struct {
	Account      string
	Buckets      []AgingBucket
	ExcessAmount decimal.Decimal

	// LastSequenceNo is the sequence number of the last entry applied;
	// incremental runs only consume entries beyond it. -1 when fresh.
	LastSequenceNo int

	// Cursor indexes the first not-yet-fully-paid bucket. Buckets before
	// it are fully paid; it never decreases.
	Cursor int
}

func newAccountAging(account string) *AccountAging {
	return &AccountAging{
		Account:        account,
		ExcessAmount:   decimal.Zero,
		LastSequenceNo: -1,
	}
}

// Clone deep-copies the aging state, counters included, so that resuming
// from a checkpoint leaves the checkpoint itself untouched.
func (a *AccountAging) Clone() *AccountAging {
	buckets := make([]AgingBucket, len(a.Buckets))
	for i, b := range a.Buckets {
		buckets[i] = AgingBucket{Timestamp: b.Timestamp, Counter: b.Counter.clone(), Meta: b.Meta}
	}
	return &AccountAging{
		Account:        a.Account,
		Buckets:        buckets,
		ExcessAmount:   a.ExcessAmount,
		LastSequenceNo: a.LastSequenceNo,
		Cursor:         a.Cursor,
	}
}

// payBuckets applies amount against the open buckets starting at the
// cursor, FIFO. The cursor advances lazily: only once a pay call observes
// the bucket at the cursor fully paid. Returns the unconsumed remainder.
func (a *AccountAging) payBuckets(amount decimal.Decimal, timestamp time.Time, source models.JournalEntry) (decimal.Decimal, error) {
	remaining := amount
	for remaining.IsPositive() && a.Cursor < len(a.Buckets) {
		bucket := a.Buckets[a.Cursor]
		_, rest, err := bucket.Counter.Pay(remaining, timestamp, map[string]any{
			"sequence_no": source.SequenceNo,
			"narration":   source.Narration,
		})
		if err != nil {
			return remaining, err
		}
		remaining = rest
		if !bucket.Counter.IsPaid() {
			break
		}
		a.Cursor++
	}
	return remaining, nil
}

// apply folds one journal entry into the state. The entry's debit/credit
// amounts are projected onto the account's balance orientation: the positive
// side opens a new bucket, the negative side (plus any carried excess) pays
// down open buckets in FIFO order.
func (a *AccountAging) apply(e models.JournalEntry, balanceType config.BalanceType, tolerance decimal.Decimal) error {
	positive, negative := e.DebitAmount, e.CreditAmount
	if balanceType == config.BalanceTypeCredit {
		positive, negative = e.CreditAmount, e.DebitAmount
	}
	if positive.IsPositive() {
		meta := e.Meta
		if meta == nil {
			meta = models.ExtractNarrationMeta(e.Narration)
		}
		counter, err := NewAmountCounterTol(positive, tolerance)
		if err != nil {
			return fmt.Errorf("entry %d: %w", e.SequenceNo, err)
		}
		a.Buckets = append(a.Buckets, AgingBucket{Timestamp: e.Timestamp, Counter: counter, Meta: meta})
	}
	excess, err := a.payBuckets(a.ExcessAmount.Add(negative), e.Timestamp, e)
	if err != nil {
		return err
	}
	a.ExcessAmount = excess
	a.LastSequenceNo = e.SequenceNo
	return nil
}

func counterTolerance(cfg *config.AccountingConfig) decimal.Decimal {
	if cfg.Tolerance.IsZero() {
		return DefaultTolerance
	}
	return cfg.Tolerance
}

// GetAccountAging computes the aging of one account over the entries with
// timestamp <= asOf, in the order presented. With a previous checkpoint only
// entries beyond its LastSequenceNo are consumed, and the result is
// identical to a from-scratch run over the full history.
func GetAccountAging(
	cfg *config.AccountingConfig,
	entries []models.JournalEntry,
	account string,
	asOf time.Time,
	previous *AccountAging,
) (*AccountAging, error) {
	if previous != nil && previous.Account != account {
		return nil, &AccountMismatchError{Requested: account, Previous: previous.Account}
	}
	balanceType, err := cfg.BalanceTypeOf(account)
	if err != nil {
		return nil, err
	}

	state := newAccountAging(account)
	minSequenceNo := -1
	if previous != nil {
		state = previous.Clone()
		minSequenceNo = previous.LastSequenceNo
	}
	tolerance := counterTolerance(cfg)
	for _, e := range entries {
		if e.Account != account || e.Timestamp.After(asOf) || e.SequenceNo <= minSequenceNo {
			continue
		}
		if err := state.apply(e, balanceType, tolerance); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// GetAccountsAging ages several accounts in a single pass over a shared
// entry stream. When resuming, the previous checkpoint must cover exactly
// the requested account set.
func GetAccountsAging(
	cfg *config.AccountingConfig,
	entries []models.JournalEntry,
	accounts []string,
	asOf time.Time,
	previous map[string]*AccountAging,
) (map[string]*AccountAging, error) {
	if previous != nil {
		if err := matchAccountSet(accounts, previous); err != nil {
			return nil, err
		}
	}

	states := make(map[string]*AccountAging, len(accounts))
	balanceTypes := make(map[string]config.BalanceType, len(accounts))
	for _, account := range accounts {
		balanceType, err := cfg.BalanceTypeOf(account)
		if err != nil {
			return nil, err
		}
		balanceTypes[account] = balanceType
		if prev := previous[account]; prev != nil {
			states[account] = prev.Clone()
		} else {
			states[account] = newAccountAging(account)
		}
	}

	tolerance := counterTolerance(cfg)
	for _, e := range entries {
		state, ok := states[e.Account]
		if !ok || e.Timestamp.After(asOf) {
			continue
		}
		if previous != nil && e.SequenceNo <= previous[e.Account].LastSequenceNo {
			continue
		}
		if err := state.apply(e, balanceTypes[e.Account], tolerance); err != nil {
			return nil, err
		}
	}
	return states, nil
}

func matchAccountSet(accounts []string, previous map[string]*AccountAging) error {
	mismatch := len(accounts) != len(previous)
	for _, account := range accounts {
		prev, ok := previous[account]
		if !ok || prev == nil || prev.Account != account {
			mismatch = true
			break
		}
	}
	if !mismatch {
		return nil
	}
	prevNames := make([]string, 0, len(previous))
	for name := range previous {
		prevNames = append(prevNames, name)
	}
	sort.Strings(prevNames)
	requested := append([]string(nil), accounts...)
	sort.Strings(requested)
	return &AccountMismatchError{
		Requested: fmt.Sprintf("accounts [%s]", strings.Join(requested, " ")),
		Previous:  fmt.Sprintf("accounts [%s]", strings.Join(prevNames, " ")),
	}
}
