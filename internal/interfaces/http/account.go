package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"centavo/internal/domain/account"
)

// AccountHandler exposes account CRUD over the service layer.
type AccountHandler struct {
	accounts *account.Service
	log      zerolog.Logger
}

func NewAccountHandler(accountService *account.Service, log zerolog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accountService, log: log}
}

// Request/Response DTOs

type AccountDetailsPayload struct {
	InterestRateBps        *int32  `json:"interestRateBps,omitempty"`
	CreditLimitMinor       *int64  `json:"creditLimitMinor,omitempty"`
	Brokerage              *string `json:"brokerage,omitempty"`
	OriginalPrincipalMinor *int64  `json:"originalPrincipalMinor,omitempty"`
	LoanInterestRateBps    *int32  `json:"loanInterestRateBps,omitempty"`
	ValuationMinor         *int64  `json:"valuationMinor,omitempty"`
	ValuationDate          *string `json:"valuationDate,omitempty"`
}

type CreateAccountRequest struct {
	AccountID    string                 `json:"accountId"`
	Name         string                 `json:"name"`
	AccountType  string                 `json:"accountType"`
	AccountClass string                 `json:"accountClass"`
	AccountRole  string                 `json:"accountRole"`
	Details      *AccountDetailsPayload `json:"details,omitempty"`
}

type UpdateAccountRequest struct {
	Name        *string `json:"name,omitempty"`
	AccountRole *string `json:"accountRole,omitempty"`
}

type AccountResponse struct {
	AccountID           string `json:"accountId"`
	Name                string `json:"name"`
	AccountType         string `json:"accountType"`
	AccountClass        string `json:"accountClass"`
	AccountRole         string `json:"accountRole"`
	CurrentBalanceMinor int64  `json:"currentBalanceMinor"`
	IsActive            bool   `json:"isActive"`
	CreatedAt           string `json:"createdAt"`
	UpdatedAt           string `json:"updatedAt"`
}

type AccountDetailResponse struct {
	AccountResponse
	Details AccountDetailsPayload `json:"details"`
}

func toAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{
		AccountID:           a.AccountID,
		Name:                a.Name,
		AccountType:         string(a.AccountType),
		AccountClass:        string(a.AccountClass),
		AccountRole:         string(a.AccountRole),
		CurrentBalanceMinor: a.CurrentBalanceMinor,
		IsActive:            a.IsActive,
		CreatedAt:           a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           a.UpdatedAt.Format(time.RFC3339),
	}
}

func toDetailsPayload(d *account.Details) AccountDetailsPayload {
	p := AccountDetailsPayload{
		InterestRateBps:        d.InterestRateBps,
		CreditLimitMinor:       d.CreditLimitMinor,
		Brokerage:              d.Brokerage,
		OriginalPrincipalMinor: d.OriginalPrincipalMinor,
		LoanInterestRateBps:    d.LoanInterestRateBps,
		ValuationMinor:         d.ValuationMinor,
	}
	if d.ValuationDate != nil {
		formatted := d.ValuationDate.Format("2006-01-02")
		p.ValuationDate = &formatted
	}
	return p
}

// HandleAccounts routes requests to the appropriate handler based on method
func (h *AccountHandler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListAccounts(w, r)
	case http.MethodPost:
		h.handleCreateAccount(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAccountByID routes requests for a specific account
func (h *AccountHandler) HandleAccountByID(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	if accountID == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetAccount(w, r, accountID)
	case http.MethodPut:
		h.handleUpdateAccount(w, r, accountID)
	case http.MethodDelete:
		h.handleDeactivateAccount(w, r, accountID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleListAccounts returns all accounts; inactive ones only on request
func (h *AccountHandler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	accounts, err := h.accounts.List(r.Context(), includeInactive)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list accounts")
		http.Error(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		response = append(response, toAccountResponse(a))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCreateAccount creates a new account
func (h *AccountHandler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := account.CreateParams{
		AccountID:    req.AccountID,
		Name:         req.Name,
		AccountType:  account.Type(req.AccountType),
		AccountClass: account.Class(req.AccountClass),
		AccountRole:  account.Role(req.AccountRole),
	}
	if req.Details != nil {
		params.Details = account.Details{
			InterestRateBps:        req.Details.InterestRateBps,
			CreditLimitMinor:       req.Details.CreditLimitMinor,
			Brokerage:              req.Details.Brokerage,
			OriginalPrincipalMinor: req.Details.OriginalPrincipalMinor,
			LoanInterestRateBps:    req.Details.LoanInterestRateBps,
			ValuationMinor:         req.Details.ValuationMinor,
		}
		if req.Details.ValuationDate != nil {
			date, err := time.Parse("2006-01-02", *req.Details.ValuationDate)
			if err != nil {
				http.Error(w, "Invalid valuationDate format (use YYYY-MM-DD)", http.StatusBadRequest)
				return
			}
			params.Details.ValuationDate = &date
		}
	}

	created, err := h.accounts.Create(r.Context(), params)
	if err != nil {
		switch {
		case isAccountValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, account.ErrAlreadyExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("failed to create account")
			http.Error(w, "Failed to create account", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAccountResponse(created))
}

// handleGetAccount returns one account with its class details
func (h *AccountHandler) handleGetAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	acc, err := h.accounts.Get(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to get account")
		http.Error(w, "Failed to get account", http.StatusInternalServerError)
		return
	}

	details, err := h.accounts.GetDetails(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to get account details")
		http.Error(w, "Failed to get account", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AccountDetailResponse{
		AccountResponse: toAccountResponse(acc),
		Details:         toDetailsPayload(details),
	})
}

// handleUpdateAccount renames an account or changes its budget role
func (h *AccountHandler) handleUpdateAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := account.UpdateParams{Name: req.Name}
	if req.AccountRole != nil {
		role := account.Role(*req.AccountRole)
		params.AccountRole = &role
	}

	updated, err := h.accounts.Update(r.Context(), accountID, params)
	if err != nil {
		switch {
		case isAccountValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, account.ErrAccountNotFound):
			http.Error(w, "Account not found", http.StatusNotFound)
		default:
			h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to update account")
			http.Error(w, "Failed to update account", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(updated))
}

// isAccountValidationError reports whether err is a bad-request problem
// rather than a missing resource or a state conflict.
func isAccountValidationError(err error) bool {
	for _, target := range []error{
		account.ErrInvalidSlug,
		account.ErrNameRequired,
		account.ErrInvalidAccountType,
		account.ErrInvalidClass,
		account.ErrInvalidRole,
		account.ErrClassTypeMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// handleDeactivateAccount retires an account; its balance must be zero
func (h *AccountHandler) handleDeactivateAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	err := h.accounts.Deactivate(r.Context(), accountID)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrAccountNotFound):
			http.Error(w, "Account not found", http.StatusNotFound)
		case errors.Is(err, account.ErrBalanceNotZero):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to deactivate account")
			http.Error(w, "Failed to deactivate account", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
