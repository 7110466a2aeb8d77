package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"centavo/internal/domain/reconciliation"
)

// ReconciliationHandler exposes the statement worksheet and checkpoint
// commit for one account.
type ReconciliationHandler struct {
	reconciliation *reconciliation.Service
	log            zerolog.Logger
}

func NewReconciliationHandler(reconciliationService *reconciliation.Service, log zerolog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliation: reconciliationService, log: log}
}

// Request/Response DTOs

type CommitReconciliationRequest struct {
	Date                string `json:"date"`
	ClearedBalanceMinor int64  `json:"clearedBalanceMinor"`
	PendingTotalMinor   int64  `json:"pendingTotalMinor"`
}

type StatementResponse struct {
	Date                string `json:"date"`
	ClearedBalanceMinor int64  `json:"clearedBalanceMinor"`
	PendingTotalMinor   int64  `json:"pendingTotalMinor"`
}

type DifferencesResponse struct {
	ClearedMinor int64 `json:"clearedMinor"`
	PendingMinor int64 `json:"pendingMinor"`
	TotalMinor   int64 `json:"totalMinor"`
}

type WorksheetResponse struct {
	AccountID          string              `json:"accountId"`
	Statement          StatementResponse   `json:"statement"`
	LedgerClearedMinor int64               `json:"ledgerClearedMinor"`
	LedgerPendingMinor int64               `json:"ledgerPendingMinor"`
	Differences        DifferencesResponse `json:"differences"`
	LastReconciledAt   *string             `json:"lastReconciledAt,omitempty"`
	Candidates         []PostingResponse   `json:"candidates"`
}

type CheckpointResponse struct {
	ReconciliationID           string  `json:"reconciliationId"`
	AccountID                  string  `json:"accountId"`
	CreatedAt                  string  `json:"createdAt"`
	StatementDate              string  `json:"statementDate"`
	StatementBalanceMinor      int64   `json:"statementBalanceMinor"`
	StatementPendingTotalMinor int64   `json:"statementPendingTotalMinor"`
	PreviousReconciliationID   *string `json:"previousReconciliationId,omitempty"`
}

type UnbalancedResponse struct {
	Error       string              `json:"error"`
	Differences DifferencesResponse `json:"differences"`
}

func toDifferencesResponse(d reconciliation.Differences) DifferencesResponse {
	return DifferencesResponse{
		ClearedMinor: d.ClearedMinor,
		PendingMinor: d.PendingMinor,
		TotalMinor:   d.TotalMinor,
	}
}

func toCheckpointResponse(c *reconciliation.Checkpoint) CheckpointResponse {
	resp := CheckpointResponse{
		ReconciliationID:           c.ReconciliationID.String(),
		AccountID:                  c.AccountID,
		CreatedAt:                  c.CreatedAt.Format(time.RFC3339),
		StatementDate:              c.StatementDate.Format("2006-01-02"),
		StatementBalanceMinor:      c.StatementBalanceMinor,
		StatementPendingTotalMinor: c.StatementPendingMinor,
	}
	if c.PreviousReconciliationID != nil {
		prev := c.PreviousReconciliationID.String()
		resp.PreviousReconciliationID = &prev
	}
	return resp
}

// HandleWorksheet previews a reconciliation; the statement comes in as
// query parameters so the preview stays a plain GET
func (h *ReconciliationHandler) HandleWorksheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := r.PathValue("id")
	if accountID == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return
	}

	statement, err := statementFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	worksheet, err := h.reconciliation.Worksheet(r.Context(), accountID, statement)
	if err != nil {
		switch {
		case errors.Is(err, reconciliation.ErrUnknownAccount):
			http.Error(w, "Account not found", http.StatusNotFound)
		case errors.Is(err, reconciliation.ErrStatementDateRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to build reconciliation worksheet")
			http.Error(w, "Failed to build reconciliation worksheet", http.StatusInternalServerError)
		}
		return
	}

	resp := WorksheetResponse{
		AccountID: worksheet.AccountID,
		Statement: StatementResponse{
			Date:                worksheet.Statement.Date.Format("2006-01-02"),
			ClearedBalanceMinor: worksheet.Statement.ClearedBalanceMinor,
			PendingTotalMinor:   worksheet.Statement.PendingTotalMinor,
		},
		LedgerClearedMinor: worksheet.LedgerClearedMinor,
		LedgerPendingMinor: worksheet.LedgerPendingMinor,
		Differences:        toDifferencesResponse(worksheet.Differences),
		Candidates:         toPostingResponses(worksheet.Candidates),
	}
	if worksheet.LastReconciledAt != nil {
		last := worksheet.LastReconciledAt.Format(time.RFC3339)
		resp.LastReconciledAt = &last
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleCommit records a checkpoint when the statement matches the ledger
func (h *ReconciliationHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := r.PathValue("id")
	if accountID == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return
	}

	var req CommitReconciliationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "Invalid date format (use YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	checkpoint, err := h.reconciliation.Commit(r.Context(), accountID, reconciliation.Statement{
		Date:                date,
		ClearedBalanceMinor: req.ClearedBalanceMinor,
		PendingTotalMinor:   req.PendingTotalMinor,
	})
	if err != nil {
		var unbalanced *reconciliation.UnbalancedError
		switch {
		case errors.As(err, &unbalanced):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(UnbalancedResponse{
				Error:       unbalanced.Error(),
				Differences: toDifferencesResponse(unbalanced.Differences),
			})
		case errors.Is(err, reconciliation.ErrUnknownAccount):
			http.Error(w, "Account not found", http.StatusNotFound)
		case errors.Is(err, reconciliation.ErrInactiveAccount), errors.Is(err, reconciliation.ErrStatementDateRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to commit reconciliation")
			http.Error(w, "Failed to commit reconciliation", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toCheckpointResponse(checkpoint))
}

func statementFromQuery(r *http.Request) (reconciliation.Statement, error) {
	q := r.URL.Query()

	date, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		return reconciliation.Statement{}, errors.New("Invalid date format (use YYYY-MM-DD)")
	}

	cleared, err := strconv.ParseInt(q.Get("clearedBalanceMinor"), 10, 64)
	if err != nil {
		return reconciliation.Statement{}, errors.New("Invalid clearedBalanceMinor (integer minor units required)")
	}

	var pending int64
	if raw := q.Get("pendingTotalMinor"); raw != "" {
		pending, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return reconciliation.Statement{}, errors.New("Invalid pendingTotalMinor (integer minor units required)")
		}
	}

	return reconciliation.Statement{
		Date:                date,
		ClearedBalanceMinor: cleared,
		PendingTotalMinor:   pending,
	}, nil
}
