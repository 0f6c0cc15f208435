package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is one leg of a balanced double-entry posting. Entries are
// immutable once appended to a journal; the ledger and the aging engine only
// ever read them.
type JournalEntry struct {
	SequenceNo   int             // position in the journal, assigned on append
	Account      string          // account this leg touches
	DebitAmount  decimal.Decimal // non-negative; exactly one of debit/credit is non-zero
	CreditAmount decimal.Decimal // non-negative
	Timestamp    time.Time       // posting time, non-decreasing across the journal
	Narration    string          // free text, may carry a ##<json>## metadata payload
	GroupKey     string          // logical ledger/book the entry belongs to
	EventID      string          // optional id of the business event that produced it

	// Meta holds the structured metadata parsed out of Narration at
	// ingestion time, nil when the narration carries none.
	Meta map[string]any
}

// NewJournalEntry builds an entry with its narration metadata parsed once up
// front. The sequence number is assigned later by the journal on append.
func NewJournalEntry(account string, drAmount, crAmount decimal.Decimal, timestamp time.Time, narration, groupKey, eventID string) JournalEntry {
	return JournalEntry{
		Account:      account,
		DebitAmount:  drAmount,
		CreditAmount: crAmount,
		Timestamp:    timestamp,
		Narration:    narration,
		GroupKey:     groupKey,
		EventID:      eventID,
		Meta:         ExtractNarrationMeta(narration),
	}
}
