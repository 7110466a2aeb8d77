package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"centavo/internal/domain/ledger"
)

// TransactionHandler exposes the ledger: postings, transfers, amendments,
// retirement and the per-concept audit trail.
type TransactionHandler struct {
	ledger *ledger.Service
	log    zerolog.Logger
}

func NewTransactionHandler(ledgerService *ledger.Service, log zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{ledger: ledgerService, log: log}
}

// Request/Response DTOs

type PostTransactionRequest struct {
	// ConceptID is optional; supply it to make retries idempotent.
	ConceptID   string `json:"conceptId,omitempty"`
	AccountID   string `json:"accountId"`
	CategoryID  string `json:"categoryId"`
	AmountMinor int64  `json:"amountMinor"`
	Status      string `json:"status,omitempty"`
	Date        string `json:"date"`
	Memo        string `json:"memo,omitempty"`
}

type PostTransferRequest struct {
	FromAccountID string `json:"fromAccountId"`
	ToAccountID   string `json:"toAccountId"`
	// CategoryID budgets the outflow; empty means a pure transfer.
	CategoryID  string `json:"categoryId,omitempty"`
	AmountMinor int64  `json:"amountMinor"`
	Date        string `json:"date"`
	Memo        string `json:"memo,omitempty"`
}

type AmendTransactionRequest struct {
	CategoryID  *string `json:"categoryId,omitempty"`
	AmountMinor *int64  `json:"amountMinor,omitempty"`
	Status      *string `json:"status,omitempty"`
	Date        *string `json:"date,omitempty"`
	Memo        *string `json:"memo,omitempty"`
}

type PostingResponse struct {
	VersionID   string `json:"versionId"`
	ConceptID   string `json:"conceptId"`
	AccountID   string `json:"accountId"`
	CategoryID  string `json:"categoryId"`
	AmountMinor int64  `json:"amountMinor"`
	Status      string `json:"status"`
	Date        string `json:"date"`
	Memo        string `json:"memo,omitempty"`
	Source      string `json:"source"`
	RecordedAt  string `json:"recordedAt"`
	IsActive    bool   `json:"isActive"`
}

type TransferResponse struct {
	BudgetLeg   PostingResponse `json:"budgetLeg"`
	TransferLeg PostingResponse `json:"transferLeg"`
}

func toPostingResponse(p *ledger.Posting) PostingResponse {
	return PostingResponse{
		VersionID:   p.VersionID.String(),
		ConceptID:   p.ConceptID.String(),
		AccountID:   p.AccountID,
		CategoryID:  p.CategoryID,
		AmountMinor: p.AmountMinor,
		Status:      string(p.Status),
		Date:        p.Date.Format("2006-01-02"),
		Memo:        p.Memo,
		Source:      p.Source,
		RecordedAt:  p.RecordedAt.Format(time.RFC3339),
		IsActive:    p.IsActive,
	}
}

func toPostingResponses(postings []*ledger.Posting) []PostingResponse {
	out := make([]PostingResponse, 0, len(postings))
	for _, p := range postings {
		out = append(out, toPostingResponse(p))
	}
	return out
}

// HandleTransactions routes requests to the appropriate handler based on method
func (h *TransactionHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListTransactions(w, r)
	case http.MethodPost:
		h.handlePostTransaction(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleTransactionByID routes requests for a specific concept
func (h *TransactionHandler) HandleTransactionByID(w http.ResponseWriter, r *http.Request) {
	conceptID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid concept ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetTransaction(w, r, conceptID)
	case http.MethodPut:
		h.handleAmendTransaction(w, r, conceptID)
	case http.MethodDelete:
		h.handleRetireTransaction(w, r, conceptID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleTransactionVersions returns the full audit trail of a concept
func (h *TransactionHandler) HandleTransactionVersions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conceptID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid concept ID", http.StatusBadRequest)
		return
	}

	versions, err := h.ledger.Versions(r.Context(), conceptID)
	if err != nil {
		if errors.Is(err, ledger.ErrConceptNotFound) {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("concept_id", conceptID.String()).Msg("failed to list transaction versions")
		http.Error(w, "Failed to list transaction versions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostingResponses(versions))
}

// HandleTransfers records a two-leg transfer
func (h *TransactionHandler) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PostTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "Invalid date format (use YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	budgetLeg, transferLeg, err := h.ledger.PostPair(r.Context(), ledger.TransferParams{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		CategoryID:    req.CategoryID,
		AmountMinor:   req.AmountMinor,
		Date:          date,
		Memo:          req.Memo,
	})
	if err != nil {
		if isLedgerValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("failed to record transfer")
		http.Error(w, "Failed to record transfer", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(TransferResponse{
		BudgetLeg:   toPostingResponse(budgetLeg),
		TransferLeg: toPostingResponse(transferLeg),
	})
}

// handleListTransactions returns an account's active postings, newest first
func (h *TransactionHandler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		http.Error(w, "accountId query parameter is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	postings, err := h.ledger.ListByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownAccount) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to list transactions")
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostingResponses(postings))
}

// handlePostTransaction records a single-leg posting
func (h *TransactionHandler) handlePostTransaction(w http.ResponseWriter, r *http.Request) {
	var req PostTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "Invalid date format (use YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	params := ledger.PostParams{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		AmountMinor: req.AmountMinor,
		Status:      ledger.Status(req.Status),
		Date:        date,
		Memo:        req.Memo,
	}
	if req.ConceptID != "" {
		conceptID, err := uuid.Parse(req.ConceptID)
		if err != nil {
			http.Error(w, "Invalid concept ID", http.StatusBadRequest)
			return
		}
		params.ConceptID = conceptID
	}

	posting, err := h.ledger.Post(r.Context(), params)
	if err != nil {
		switch {
		case isLedgerValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ledger.ErrConflictingEdit):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("failed to record posting")
			http.Error(w, "Failed to record posting", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostingResponse(posting))
}

// handleGetTransaction returns the active legs of a concept
func (h *TransactionHandler) handleGetTransaction(w http.ResponseWriter, r *http.Request, conceptID uuid.UUID) {
	actives, err := h.ledger.Active(r.Context(), conceptID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrConceptNotFound):
			http.Error(w, "Transaction not found", http.StatusNotFound)
		case errors.Is(err, ledger.ErrConceptRetired):
			http.Error(w, "Transaction already retired", http.StatusConflict)
		default:
			h.log.Error().Err(err).Str("concept_id", conceptID.String()).Msg("failed to get transaction")
			http.Error(w, "Failed to get transaction", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostingResponses(actives))
}

// handleAmendTransaction replaces the active version of a concept
func (h *TransactionHandler) handleAmendTransaction(w http.ResponseWriter, r *http.Request, conceptID uuid.UUID) {
	var req AmendTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	changes := ledger.AmendParams{
		CategoryID:  req.CategoryID,
		AmountMinor: req.AmountMinor,
		Memo:        req.Memo,
	}
	if req.Status != nil {
		status := ledger.Status(*req.Status)
		changes.Status = &status
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			http.Error(w, "Invalid date format (use YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		changes.Date = &date
	}

	posting, err := h.ledger.Amend(r.Context(), conceptID, changes)
	if err != nil {
		switch {
		case isLedgerValidationError(err), errors.Is(err, ledger.ErrNoChanges), errors.Is(err, ledger.ErrAmendTransfer):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ledger.ErrConceptNotFound):
			http.Error(w, "Transaction not found", http.StatusNotFound)
		case errors.Is(err, ledger.ErrConceptRetired), errors.Is(err, ledger.ErrConflictingEdit):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Str("concept_id", conceptID.String()).Msg("failed to amend transaction")
			http.Error(w, "Failed to amend transaction", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostingResponse(posting))
}

// handleRetireTransaction deactivates every active leg of a concept
func (h *TransactionHandler) handleRetireTransaction(w http.ResponseWriter, r *http.Request, conceptID uuid.UUID) {
	err := h.ledger.Retire(r.Context(), conceptID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrConceptNotFound):
			http.Error(w, "Transaction not found", http.StatusNotFound)
		case errors.Is(err, ledger.ErrConceptRetired), errors.Is(err, ledger.ErrConflictingEdit):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Str("concept_id", conceptID.String()).Msg("failed to retire transaction")
			http.Error(w, "Failed to retire transaction", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// isLedgerValidationError reports whether err is a request problem the
// caller can fix, as opposed to an infrastructure failure.
func isLedgerValidationError(err error) bool {
	return errors.Is(err, ledger.ErrInvalidAmount) ||
		errors.Is(err, ledger.ErrInvalidStatus) ||
		errors.Is(err, ledger.ErrDateRequired) ||
		errors.Is(err, ledger.ErrFutureDate) ||
		errors.Is(err, ledger.ErrUnknownAccount) ||
		errors.Is(err, ledger.ErrInactiveAccount) ||
		errors.Is(err, ledger.ErrUnknownCategory) ||
		errors.Is(err, ledger.ErrInactiveCategory) ||
		errors.Is(err, ledger.ErrSameAccount)
}
