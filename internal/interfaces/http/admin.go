package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"centavo/internal/domain/account"
	"centavo/internal/domain/budget"
)

// AdminHandler exposes the self-heal surface: cache rebuilds and the
// consistency report. Destructive only toward derived state.
type AdminHandler struct {
	accounts *account.Service
	budget   *budget.Service
	log      zerolog.Logger
}

func NewAdminHandler(accountService *account.Service, budgetService *budget.Service, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{accounts: accountService, budget: budgetService, log: log}
}

// Request/Response DTOs

type RebuildRequest struct {
	// AccountID narrows the balance rebuild to one account; empty means
	// every account. Month additionally rebuilds that month's budget rows.
	AccountID string `json:"accountId,omitempty"`
	Month     string `json:"month,omitempty"`
}

type RebuildResponse struct {
	AccountsRebuilt int64   `json:"accountsRebuilt"`
	MonthRebuilt    *string `json:"monthRebuilt,omitempty"`
}

type BalanceDriftResponse struct {
	AccountID    string `json:"accountId"`
	CachedMinor  int64  `json:"cachedMinor"`
	DerivedMinor int64  `json:"derivedMinor"`
	DriftMinor   int64  `json:"driftMinor"`
}

type MonthDriftResponse struct {
	CategoryID   string `json:"categoryId"`
	Month        string `json:"month"`
	Field        string `json:"field"`
	CachedMinor  int64  `json:"cachedMinor"`
	DerivedMinor int64  `json:"derivedMinor"`
	DriftMinor   int64  `json:"driftMinor"`
}

type ConsistencyResponse struct {
	CheckedAt     string                 `json:"checkedAt"`
	Month         string                 `json:"month"`
	Consistent    bool                   `json:"consistent"`
	BalanceDrifts []BalanceDriftResponse `json:"balanceDrifts"`
	BudgetDrifts  []MonthDriftResponse   `json:"budgetDrifts"`
}

// HandleRebuild recomputes cached balances, and one month's budget rows
// when a month is given. Safe to repeat; caches converge on the ledger.
func (h *AdminHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rebuilt, err := h.accounts.Rebuild(r.Context(), req.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("failed to rebuild balances")
		http.Error(w, "Failed to rebuild balances", http.StatusInternalServerError)
		return
	}

	resp := RebuildResponse{AccountsRebuilt: rebuilt}
	if req.Month != "" {
		monthStart, err := parseMonth(req.Month)
		if err != nil {
			http.Error(w, "Invalid month format (use YYYY-MM)", http.StatusBadRequest)
			return
		}
		if err := h.budget.RebuildMonth(r.Context(), monthStart); err != nil {
			h.log.Error().Err(err).Time("month_start", monthStart).Msg("failed to rebuild budget month")
			http.Error(w, "Failed to rebuild budget month", http.StatusInternalServerError)
			return
		}
		month := monthStart.Format("2006-01")
		resp.MonthRebuilt = &month
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleConsistency reports cache drift without repairing anything. The
// month defaults to the current one.
func (h *AdminHandler) HandleConsistency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	monthStart := time.Now().UTC()
	if raw := r.URL.Query().Get("month"); raw != "" {
		var err error
		monthStart, err = parseMonth(raw)
		if err != nil {
			http.Error(w, "Invalid month format (use YYYY-MM)", http.StatusBadRequest)
			return
		}
	}

	balanceDrifts, err := h.accounts.VerifyBalances(r.Context(), "")
	if err != nil {
		h.log.Error().Err(err).Msg("failed to verify balances")
		http.Error(w, "Failed to verify balances", http.StatusInternalServerError)
		return
	}

	budgetDrifts, err := h.budget.VerifyMonth(r.Context(), monthStart)
	if err != nil {
		h.log.Error().Err(err).Time("month_start", monthStart).Msg("failed to verify budget month")
		http.Error(w, "Failed to verify budget month", http.StatusInternalServerError)
		return
	}

	resp := ConsistencyResponse{
		CheckedAt:     time.Now().UTC().Format(time.RFC3339),
		Month:         monthStart.Format("2006-01"),
		Consistent:    len(balanceDrifts) == 0 && len(budgetDrifts) == 0,
		BalanceDrifts: make([]BalanceDriftResponse, 0, len(balanceDrifts)),
		BudgetDrifts:  make([]MonthDriftResponse, 0, len(budgetDrifts)),
	}
	for _, d := range balanceDrifts {
		resp.BalanceDrifts = append(resp.BalanceDrifts, BalanceDriftResponse{
			AccountID:    d.AccountID,
			CachedMinor:  d.CachedMinor,
			DerivedMinor: d.DerivedMinor,
			DriftMinor:   d.DriftMinor,
		})
	}
	for _, d := range budgetDrifts {
		resp.BudgetDrifts = append(resp.BudgetDrifts, MonthDriftResponse{
			CategoryID:   d.CategoryID,
			Month:        d.MonthStart.Format("2006-01"),
			Field:        d.Field,
			CachedMinor:  d.CachedMinor,
			DerivedMinor: d.DerivedMinor,
			DriftMinor:   d.DriftMinor,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
