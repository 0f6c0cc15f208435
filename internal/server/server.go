package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/datasignstech/pyluca/internal/aging"
	"github.com/datasignstech/pyluca/internal/config"
	"github.com/datasignstech/pyluca/internal/interfaces"
	"github.com/datasignstech/pyluca/internal/ledger"
	"github.com/datasignstech/pyluca/internal/models/events"
)

// Topic the posted-entry events are published to.
const PostedEntriesTopic = "journal_entries_posted"

// Server exposes one ledger over HTTP. Publish failures are logged and not
// surfaced to the caller: the ledger is the source of truth and the posting
// has already been committed.
type Server struct {
	ledger    *ledger.Ledger
	publisher interfaces.EventPublisher
	mux       *http.ServeMux
}

// New wires the routes. publisher may be nil when eventing is disabled.
func New(l *ledger.Ledger, publisher interfaces.EventPublisher) *Server {
	s := &Server{ledger: l, publisher: publisher, mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/postings", s.handlePostings)
	s.mux.HandleFunc("/accounts/balance", s.handleBalance)
	s.mux.HandleFunc("/accounts/balances", s.handleBalances)
	s.mux.HandleFunc("/accounts/aging", s.handleAging)
	s.mux.HandleFunc("/balance-sheet.csv", s.handleBalanceSheetCSV)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

type postingRequest struct {
	DrAccount string          `json:"dr_account"`
	CrAccount string          `json:"cr_account"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Narration string          `json:"narration"`
}

func (s *Server) handlePostings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req postingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	postingID := uuid.New().String()
	if err := s.ledger.Post(req.DrAccount, req.CrAccount, req.Amount, req.Timestamp, req.Narration, postingID); err != nil {
		var unknownAccount *config.UnknownAccountError
		if errors.As(err, &unknownAccount) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		// Backdated postings and bad amounts are caller errors.
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.publisher != nil {
		event := events.JournalEntryPosted{
			PostingID: postingID,
			DrAccount: req.DrAccount,
			CrAccount: req.CrAccount,
			Amount:    req.Amount,
			Timestamp: req.Timestamp,
			Narration: req.Narration,
			GroupKey:  s.ledger.Key(),
		}
		if err := s.publisher.Publish(PostedEntriesTopic, event); err != nil {
			log.Printf("failed to publish posted entry event: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"posting_id": postingID})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	account := r.URL.Query().Get("account")
	if account == "" {
		http.Error(w, "account is a mandatory field", http.StatusBadRequest)
		return
	}

	var balance decimal.Decimal
	var err error
	if asOfParam := r.URL.Query().Get("as_of"); asOfParam != "" {
		asOf, parseErr := time.Parse(time.RFC3339, asOfParam)
		if parseErr != nil {
			http.Error(w, "as_of must be RFC3339", http.StatusBadRequest)
			return
		}
		balance, err = s.ledger.BalanceAsOf(account, asOf)
	} else {
		balance, err = s.ledger.Balance(account)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, struct {
		Account string          `json:"account"`
		Balance decimal.Decimal `json:"balance"`
	}{Account: account, Balance: balance})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if asOfParam := r.URL.Query().Get("as_of"); asOfParam != "" {
		asOf, err := time.Parse(time.RFC3339, asOfParam)
		if err != nil {
			http.Error(w, "as_of must be RFC3339", http.StatusBadRequest)
			return
		}
		writeJSON(w, s.ledger.BalancesAsOf(asOf))
		return
	}
	writeJSON(w, s.ledger.Balances())
}

type agingBucketResponse struct {
	Timestamp   time.Time       `json:"timestamp"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Balance     decimal.Decimal `json:"balance"`
	IsPaid      bool            `json:"is_paid"`
	Meta        map[string]any  `json:"meta,omitempty"`
}

type agingResponse struct {
	Account        string                `json:"account"`
	Buckets        []agingBucketResponse `json:"buckets"`
	ExcessAmount   decimal.Decimal       `json:"excess_amount"`
	LastSequenceNo int                   `json:"last_sequence_no"`
}

func (s *Server) handleAging(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	account := r.URL.Query().Get("account")
	if account == "" {
		http.Error(w, "account is a mandatory field", http.StatusBadRequest)
		return
	}

	accountAging, err := s.ledger.Aging(account)
	if err != nil {
		var unknownAccount *config.UnknownAccountError
		if errors.As(err, &unknownAccount) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, newAgingResponse(accountAging))
}

func newAgingResponse(a *aging.AccountAging) agingResponse {
	resp := agingResponse{
		Account:        a.Account,
		Buckets:        make([]agingBucketResponse, 0, len(a.Buckets)),
		ExcessAmount:   a.ExcessAmount,
		LastSequenceNo: a.LastSequenceNo,
	}
	for _, b := range a.Buckets {
		resp.Buckets = append(resp.Buckets, agingBucketResponse{
			Timestamp:   b.Timestamp,
			TotalAmount: b.Counter.TotalAmount(),
			PaidAmount:  b.Counter.PaidAmount(),
			Balance:     b.Counter.Balance(),
			IsPaid:      b.Counter.IsPaid(),
			Meta:        b.Meta,
		})
	}
	return resp
}

func (s *Server) handleBalanceSheetCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	out, err := s.ledger.BalanceSheetCSV()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Write([]byte(out))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
