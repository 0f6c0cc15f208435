package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntryPosted is published after a balanced posting has been accepted
// into the journal.
type JournalEntryPosted struct {
	PostingID string          `json:"posting_id"`
	DrAccount string          `json:"dr_account"`
	CrAccount string          `json:"cr_account"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Narration string          `json:"narration"`
	GroupKey  string          `json:"group_key"`
}
