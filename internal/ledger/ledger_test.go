package ledger_test

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasignstech/pyluca/internal/config"
	"github.com/datasignstech/pyluca/internal/journal"
	"github.com/datasignstech/pyluca/internal/ledger"
	"github.com/datasignstech/pyluca/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testConfig(t *testing.T) *config.AccountingConfig {
	t.Helper()
	cfg, err := config.New(config.AccountingConfig{
		AccountTypes: map[string]config.AccountType{
			"ASSET":   {BalanceType: config.BalanceTypeDebit},
			"INCOME":  {BalanceType: config.BalanceTypeCredit},
			"EXPENSE": {BalanceType: config.BalanceTypeDebit},
		},
		Accounts: map[string]config.Account{
			"SALARY":       {Type: "INCOME"},
			"SAVINGS_BANK": {Type: "ASSET"},
			"MUTUAL_FUNDS": {Type: "ASSET"},
			"LOANS":        {Type: "ASSET"},
			"CAR_EMI":      {Type: "EXPENSE"},
		},
		Rules: map[string]config.Rule{
			"LEND": {
				Narration: "Disburse loan",
				DrAccount: "LOANS",
				CrAccount: "SAVINGS_BANK",
			},
		},
	})
	require.NoError(t, err)
	return cfg
}

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(journal.New(), testConfig(t), "person1")
	require.NoError(t, err)
	return l
}

func mustBalance(t *testing.T, l *ledger.Ledger, account string) decimal.Decimal {
	t.Helper()
	balance, err := l.Balance(account)
	require.NoError(t, err)
	return balance
}

func TestPostAndBalances(t *testing.T) {
	l := newLedger(t)
	day1 := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", dec("20000"), day1, "April salary", ""))
	assert.Equal(t, 2, l.Journal().Len())
	assert.True(t, mustBalance(t, l, "SAVINGS_BANK").Equal(dec("20000")))
	assert.True(t, mustBalance(t, l, "SALARY").Equal(dec("20000")))

	require.NoError(t, l.Post("MUTUAL_FUNDS", "SAVINGS_BANK", dec("10000"), day2, "ELSS", ""))
	assert.True(t, mustBalance(t, l, "SAVINGS_BANK").Equal(dec("10000")))
	assert.True(t, mustBalance(t, l, "MUTUAL_FUNDS").Equal(dec("10000")))
	assert.True(t, mustBalance(t, l, "SALARY").Equal(dec("20000")))

	// point-in-time query before the second posting
	asOf, err := l.BalanceAsOf("SAVINGS_BANK", day1)
	require.NoError(t, err)
	assert.True(t, asOf.Equal(dec("20000")))
}

func TestDoubleEntryInvariant(t *testing.T) {
	l := newLedger(t)
	day := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", dec("20000"), day, "April salary", ""))
	require.NoError(t, l.Post("MUTUAL_FUNDS", "SAVINGS_BANK", dec("10000"), day.AddDate(0, 0, 1), "ELSS", ""))
	require.NoError(t, l.Post("LOANS", "SAVINGS_BANK", dec("5000"), day.AddDate(0, 0, 2), "Lend to Pramod", ""))
	require.NoError(t, l.Post("CAR_EMI", "SAVINGS_BANK", dec("3000"), day.AddDate(0, 0, 2), "EMI 3/48", ""))

	totalDr, totalCr := decimal.Zero, decimal.Zero
	for _, e := range l.Journal().Entries() {
		totalDr = totalDr.Add(e.DebitAmount)
		totalCr = totalCr.Add(e.CreditAmount)
	}
	assert.True(t, totalDr.Equal(totalCr))

	// the fundamental accounting equation over the closed account set
	asset, err := l.BalanceByType("ASSET", nil)
	require.NoError(t, err)
	income, err := l.BalanceByType("INCOME", nil)
	require.NoError(t, err)
	expense, err := l.BalanceByType("EXPENSE", nil)
	require.NoError(t, err)
	assert.True(t, asset.Equal(income.Sub(expense)))
}

func TestBalanceByType(t *testing.T) {
	l := newLedger(t)
	day := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", dec("20000"), day, "April salary", ""))
	require.NoError(t, l.Post("MUTUAL_FUNDS", "SAVINGS_BANK", dec("10000"), day.AddDate(0, 0, 1), "ELSS", ""))
	require.NoError(t, l.Post("LOANS", "SAVINGS_BANK", dec("5000"), day.AddDate(0, 0, 2), "Lend to Pramod", ""))
	require.NoError(t, l.Post("CAR_EMI", "SAVINGS_BANK", dec("3000"), day.AddDate(0, 0, 2), "EMI 3/48", ""))

	asset, err := l.BalanceByType("ASSET", nil)
	require.NoError(t, err)
	assert.True(t, asset.Equal(dec("17000")))

	asset, err = l.BalanceByType("ASSET", []string{"SAVINGS_BANK"})
	require.NoError(t, err)
	assert.True(t, asset.Equal(dec("15000")))

	asset, err = l.BalanceByType("ASSET", []string{"SAVINGS_BANK", "LOANS"})
	require.NoError(t, err)
	assert.True(t, asset.Equal(dec("10000")))

	_, err = l.BalanceByType("EQUITY", nil)
	var unknownType *config.UnknownAccountTypeError
	require.ErrorAs(t, err, &unknownType)
}

func TestPostBackdated(t *testing.T) {
	l := newLedger(t)
	jan31 := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	jan1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", dec("30000"), jan31, "Jan salary", ""))
	assert.Equal(t, jan31, l.Journal().MaxTimestamp())

	err := l.Post("LOANS", "SAVINGS_BANK", dec("5000"), jan1, "Loans", "")
	var backdated *journal.BackdatedEntryError
	require.ErrorAs(t, err, &backdated)

	// the rejected posting must not leave partial state behind
	assert.Equal(t, 2, l.Journal().Len())
	assert.True(t, mustBalance(t, l, "SAVINGS_BANK").Equal(dec("30000")))
	assert.True(t, mustBalance(t, l, "LOANS").IsZero())
}

func TestPostValidation(t *testing.T) {
	l := newLedger(t)
	day := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)

	// zero amount postings are dropped, never stored
	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", decimal.Zero, day, "nothing", ""))
	assert.Equal(t, 0, l.Journal().Len())

	err := l.Post("SAVINGS_BANK", "SALARY", dec("-5"), day, "negative", "")
	require.Error(t, err)

	var unknownAccount *config.UnknownAccountError
	err = l.Post("NO_SUCH", "SALARY", dec("100"), day, "", "")
	require.ErrorAs(t, err, &unknownAccount)
	err = l.Post("SAVINGS_BANK", "NO_SUCH", dec("100"), day, "", "")
	require.ErrorAs(t, err, &unknownAccount)
	assert.Equal(t, 0, l.Journal().Len())

	_, err = l.Balance("NO_SUCH")
	require.ErrorAs(t, err, &unknownAccount)
}

func TestAsOfMonotonicity(t *testing.T) {
	l := newLedger(t)
	day1 := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)
	day5 := day1.AddDate(0, 0, 5)

	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", dec("20000"), day1, "April salary", ""))
	require.NoError(t, l.Post("MUTUAL_FUNDS", "SAVINGS_BANK", dec("10000"), day5, "ELSS", ""))

	// no entries in (day1, day5) for SAVINGS_BANK: balance is flat
	for i := 0; i < 5; i++ {
		balance, err := l.BalanceAsOf("SAVINGS_BANK", day1.AddDate(0, 0, i))
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec("20000")), "day offset %d", i)
	}

	// no cutoff equals the watermark cutoff
	latest, err := l.BalanceAsOf("SAVINGS_BANK", l.Journal().MaxTimestamp())
	require.NoError(t, err)
	assert.True(t, mustBalance(t, l, "SAVINGS_BANK").Equal(latest))

	// before the first entry the balance is zero
	early, err := l.BalanceAsOf("SAVINGS_BANK", day1.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.True(t, early.IsZero())
}

func TestAsOfTieResolvesToLatest(t *testing.T) {
	l := newLedger(t)
	day := time.Date(2022, 5, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Post("LOANS", "SALARY", dec("5000"), day, "Lend", ""))
	require.NoError(t, l.Post("CAR_EMI", "LOANS", dec("3000"), day, "EMI", ""))

	// both postings share the timestamp: the latest-appended wins
	balance, err := l.BalanceAsOf("LOANS", day)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("2000")))
}

func TestBalances(t *testing.T) {
	l := newLedger(t)
	day := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", dec("20000"), day, "April salary", ""))
	require.NoError(t, l.Post("MUTUAL_FUNDS", "SAVINGS_BANK", dec("10000"), day.AddDate(0, 0, 1), "ELSS", ""))
	require.NoError(t, l.Post("LOANS", "SAVINGS_BANK", dec("5000"), day.AddDate(0, 0, 2), "Lend to Pramod", ""))
	require.NoError(t, l.Post("CAR_EMI", "SAVINGS_BANK", dec("3000"), day.AddDate(0, 0, 2), "EMI 3/48", ""))

	balances := l.Balances()
	assert.True(t, balances["SAVINGS_BANK"].Equal(dec("2000")))
	assert.True(t, balances["SALARY"].Equal(dec("20000")))
	assert.True(t, balances["MUTUAL_FUNDS"].Equal(dec("10000")))
	assert.True(t, balances["LOANS"].Equal(dec("5000")))
	assert.True(t, balances["CAR_EMI"].Equal(dec("3000")))

	dayOne := l.BalancesAsOf(day)
	assert.True(t, dayOne["SAVINGS_BANK"].Equal(dec("20000")))
	assert.True(t, dayOne["MUTUAL_FUNDS"].IsZero())
}

func TestBalanceSheet(t *testing.T) {
	l := newLedger(t)
	day := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", dec("20000"), day, "April salary", ""))
	require.NoError(t, l.Post("MUTUAL_FUNDS", "SAVINGS_BANK", dec("10000"), day.AddDate(0, 0, 1), "ELSS", ""))
	require.NoError(t, l.Post("LOANS", "SAVINGS_BANK", dec("5000"), day.AddDate(0, 0, 2), "Lend to Pramod", ""))
	require.NoError(t, l.Post("CAR_EMI", "SAVINGS_BANK", dec("3000"), day.AddDate(0, 0, 2), "EMI 3/48", ""))

	sheet := l.BalanceSheet()
	require.Len(t, sheet, 8)
	last := sheet[len(sheet)-1]
	assert.True(t, last.Balances["SALARY"].Equal(dec("20000")))
	assert.True(t, last.Balances["SAVINGS_BANK"].Equal(dec("2000")))
	assert.True(t, last.Balances["MUTUAL_FUNDS"].Equal(dec("10000")))
	assert.True(t, last.Balances["LOANS"].Equal(dec("5000")))
	assert.True(t, last.Balances["CAR_EMI"].Equal(dec("3000")))
}

func TestBalanceSheetCSV(t *testing.T) {
	l := newLedger(t)
	day := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", dec("20000"), day, "April salary", ""))
	require.NoError(t, l.Post("MUTUAL_FUNDS", "SAVINGS_BANK", dec("10000"), day.AddDate(0, 0, 1), "ELSS", ""))

	out, err := l.BalanceSheetCSV()
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5) // header + one row per journal entry

	assert.Equal(t, []string{
		"sequence_no", "account", "debit_amount", "credit_amount", "timestamp", "narration", "group_key",
		"CAR_EMI", "LOANS", "MUTUAL_FUNDS", "SALARY", "SAVINGS_BANK",
	}, records[0])

	first := records[1]
	assert.Equal(t, "0", first[0])
	assert.Equal(t, "SAVINGS_BANK", first[1])
	assert.Equal(t, "20000", first[2])
	assert.Equal(t, "0", first[3])
	assert.Equal(t, "April salary", first[5])
	assert.Equal(t, "person1", first[6])

	// last entry is the credit leg of the second posting
	last := records[4]
	assert.Equal(t, "3", last[0])
	assert.Equal(t, "SAVINGS_BANK", last[1])
	assert.Equal(t, "10000", last[9])  // MUTUAL_FUNDS balance column
	assert.Equal(t, "10000", last[11]) // SAVINGS_BANK balance column
}

func TestRecord(t *testing.T) {
	l := newLedger(t)
	day := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Post("SAVINGS_BANK", "SALARY", dec("20000"), day, "April salary", ""))
	require.NoError(t, l.Record("LEND", dec("5000"), day.AddDate(0, 0, 1), "to Pramod", map[string]any{"due_date": "2022-05-10"}))

	assert.True(t, mustBalance(t, l, "LOANS").Equal(dec("5000")))
	assert.True(t, mustBalance(t, l, "SAVINGS_BANK").Equal(dec("15000")))

	entries := l.Journal().Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, `Disburse loan to Pramod ##{"due_date":"2022-05-10"}##`, entries[2].Narration)
	assert.Equal(t, map[string]any{"due_date": "2022-05-10"}, entries[2].Meta)

	// the metadata flows through to the aging bucket
	loanAging, err := l.Aging("LOANS")
	require.NoError(t, err)
	require.Len(t, loanAging.Buckets, 1)
	assert.Equal(t, map[string]any{"due_date": "2022-05-10"}, loanAging.Buckets[0].Meta)

	// non-positive amounts are skipped, unknown rules rejected
	require.NoError(t, l.Record("LEND", decimal.Zero, day.AddDate(0, 0, 2), "", nil))
	assert.Equal(t, 4, l.Journal().Len())
	require.Error(t, l.Record("NO_SUCH_RULE", dec("1"), day.AddDate(0, 0, 2), "", nil))
}

func TestLedgerAgingOverSeededJournal(t *testing.T) {
	dt := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)
	j := journal.NewSeeded([]models.JournalEntry{
		{SequenceNo: 1, Account: "SAVINGS_BANK", DebitAmount: dec("1000"), CreditAmount: decimal.Zero, Timestamp: dt, GroupKey: "1"},
		{SequenceNo: 2, Account: "SAVINGS_BANK", DebitAmount: dec("1000"), CreditAmount: decimal.Zero, Timestamp: dt, GroupKey: "1"},
		{SequenceNo: 3, Account: "SAVINGS_BANK", DebitAmount: decimal.Zero, CreditAmount: dec("3000"), Timestamp: dt, GroupKey: "1"},
		{SequenceNo: 4, Account: "SAVINGS_BANK", DebitAmount: dec("2000"), CreditAmount: decimal.Zero, Timestamp: dt, GroupKey: "1"},
	})
	l, err := ledger.New(j, testConfig(t), "1")
	require.NoError(t, err)

	savingsAging, err := l.Aging("SAVINGS_BANK")
	require.NoError(t, err)
	assert.Len(t, savingsAging.Buckets, 3)
}

func TestNewReplaysSeededJournal(t *testing.T) {
	day := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	j := journal.NewSeeded([]models.JournalEntry{
		{SequenceNo: 0, Account: "SAVINGS_BANK", DebitAmount: dec("30000"), CreditAmount: decimal.Zero, Timestamp: day, GroupKey: "person2"},
		{SequenceNo: 1, Account: "SALARY", DebitAmount: decimal.Zero, CreditAmount: dec("30000"), Timestamp: day, GroupKey: "person2"},
	})
	l, err := ledger.New(j, testConfig(t), "person2")
	require.NoError(t, err)

	assert.True(t, mustBalance(t, l, "SAVINGS_BANK").Equal(dec("30000")))
	assert.True(t, mustBalance(t, l, "SALARY").Equal(dec("30000")))
	assert.Len(t, l.BalanceSheet(), 2)
}

func TestNewRejectsUnknownSeededAccount(t *testing.T) {
	day := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	j := journal.NewSeeded([]models.JournalEntry{
		{SequenceNo: 0, Account: "MYSTERY", DebitAmount: dec("1"), CreditAmount: decimal.Zero, Timestamp: day},
	})
	_, err := ledger.New(j, testConfig(t), "person2")
	var unknownAccount *config.UnknownAccountError
	require.ErrorAs(t, err, &unknownAccount)
}
