package journal

import (
	"fmt"
	"sort"
	"time"

	"github.com/datasignstech/pyluca/internal/models"
)

// BackdatedEntryError is returned when an append would violate the journal's
// non-decreasing timestamp invariant. The journal is left untouched; the
// caller must correct the timestamp or reorder upstream.
type BackdatedEntryError struct {
	EntryTimestamp time.Time
	Watermark      time.Time
}

func (e *BackdatedEntryError) Error() string {
	return fmt.Sprintf("backdated entries cannot be added: entry timestamp %s is before watermark %s",
		e.EntryTimestamp.Format(time.RFC3339), e.Watermark.Format(time.RFC3339))
}

// Journal is an append-only, globally time-ordered log of journal entries.
// It is not safe for concurrent use; the owning ledger serializes access.
type Journal struct {
	entries      []models.JournalEntry
	maxTimestamp time.Time
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// NewSeeded builds a journal over a pre-existing entry sequence. The seed is
// taken as-is: ordering is not re-validated (historical data may be supplied
// unsorted by timestamp for aging purposes) and the watermark is set to the
// maximum timestamp found, so later appends still cannot backdate.
func NewSeeded(entries []models.JournalEntry) *Journal {
	j := &Journal{entries: append([]models.JournalEntry(nil), entries...)}
	for _, e := range j.entries {
		if e.Timestamp.After(j.maxTimestamp) {
			j.maxTimestamp = e.Timestamp
		}
	}
	return j
}

// Append validates the entry against the watermark, assigns its sequence
// number and stores it. It returns the entry as stored.
func (j *Journal) Append(e models.JournalEntry) (models.JournalEntry, error) {
	if e.Timestamp.Before(j.maxTimestamp) {
		return models.JournalEntry{}, &BackdatedEntryError{EntryTimestamp: e.Timestamp, Watermark: j.maxTimestamp}
	}
	e.SequenceNo = len(j.entries)
	j.entries = append(j.entries, e)
	j.maxTimestamp = e.Timestamp
	return e, nil
}

// Entries returns a copy of all entries in append order.
func (j *Journal) Entries() []models.JournalEntry {
	return append([]models.JournalEntry(nil), j.entries...)
}

// Len returns the number of entries.
func (j *Journal) Len() int {
	return len(j.entries)
}

// MaxTimestamp returns the watermark: the latest timestamp accepted so far.
// Zero for an empty journal.
func (j *Journal) MaxTimestamp() time.Time {
	return j.maxTimestamp
}

// EntriesAsOf returns a copy of the prefix of entries with timestamp <=
// cutoff. Timestamps are non-decreasing in append order, so this is a binary
// search for the prefix boundary rather than a filter over the whole log.
func (j *Journal) EntriesAsOf(cutoff time.Time) []models.JournalEntry {
	i := sort.Search(len(j.entries), func(k int) bool {
		return j.entries[k].Timestamp.After(cutoff)
	})
	return append([]models.JournalEntry(nil), j.entries[:i]...)
}
