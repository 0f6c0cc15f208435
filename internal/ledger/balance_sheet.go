package ledger

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/datasignstech/pyluca/internal/models"
)

// BalanceSheetRow is one journal entry together with a snapshot of every
// configured account's balance after that entry was applied.
type BalanceSheetRow struct {
	Entry    models.JournalEntry
	Balances map[string]decimal.Decimal
}

// balanceSheetColumns is the fixed leading column set of the CSV export;
// one column per configured account follows.
var balanceSheetColumns = []string{
	"sequence_no", "account", "debit_amount", "credit_amount", "timestamp", "narration", "group_key",
}

func (l *Ledger) pushBalanceSheetRow(e models.JournalEntry) {
	balances := make(map[string]decimal.Decimal, len(l.accounts))
	for name, al := range l.accounts {
		balances[name] = al.Balance()
	}
	l.balanceSheet = append(l.balanceSheet, BalanceSheetRow{Entry: e, Balances: balances})
}

// BalanceSheet returns the flattened entry-by-entry projection with running
// balances for every configured account.
func (l *Ledger) BalanceSheet() []BalanceSheetRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]BalanceSheetRow(nil), l.balanceSheet...)
}

// BalanceSheetCSV serializes the balance sheet. The column order is the
// fixed entry columns followed by the configured accounts in sorted order.
func (l *Ledger) BalanceSheetCSV() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	accountNames := l.cfg.AccountNames()
	header := append(append([]string(nil), balanceSheetColumns...), accountNames...)

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, row := range l.balanceSheet {
		record := make([]string, 0, len(header))
		record = append(record,
			strconv.Itoa(row.Entry.SequenceNo),
			row.Entry.Account,
			row.Entry.DebitAmount.String(),
			row.Entry.CreditAmount.String(),
			row.Entry.Timestamp.Format(time.RFC3339),
			row.Entry.Narration,
			row.Entry.GroupKey,
		)
		for _, name := range accountNames {
			record = append(record, row.Balances[name].String())
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
