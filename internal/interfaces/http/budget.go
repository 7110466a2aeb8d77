package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"centavo/internal/domain/budget"
)

// BudgetHandler exposes envelope allocations and the monthly budget view.
type BudgetHandler struct {
	budget *budget.Service
	log    zerolog.Logger
}

func NewBudgetHandler(budgetService *budget.Service, log zerolog.Logger) *BudgetHandler {
	return &BudgetHandler{budget: budgetService, log: log}
}

// Request/Response DTOs

type CreateAllocationRequest struct {
	Month string `json:"month"`
	// FromCategoryID moves budgeted money between envelopes; leave it
	// empty to allocate out of Ready to Assign.
	FromCategoryID *string `json:"fromCategoryId,omitempty"`
	ToCategoryID   string  `json:"toCategoryId"`
	AmountMinor    int64   `json:"amountMinor"`
}

type AllocationResponse struct {
	AllocationID   string  `json:"allocationId"`
	Month          string  `json:"month"`
	FromCategoryID *string `json:"fromCategoryId,omitempty"`
	ToCategoryID   string  `json:"toCategoryId"`
	AmountMinor    int64   `json:"amountMinor"`
	RecordedAt     string  `json:"recordedAt"`
}

type MonthStateResponse struct {
	CategoryID     string `json:"categoryId"`
	Month          string `json:"month"`
	AllocatedMinor int64  `json:"allocatedMinor"`
	InflowMinor    int64  `json:"inflowMinor"`
	ActivityMinor  int64  `json:"activityMinor"`
	AvailableMinor int64  `json:"availableMinor"`
}

type MonthSummaryResponse struct {
	Month              string               `json:"month"`
	ReadyToAssignMinor int64                `json:"readyToAssignMinor"`
	Categories         []MonthStateResponse `json:"categories"`
}

type ReadyToAssignResponse struct {
	Month              string `json:"month"`
	ReadyToAssignMinor int64  `json:"readyToAssignMinor"`
}

func toAllocationResponse(a *budget.Allocation) AllocationResponse {
	return AllocationResponse{
		AllocationID:   a.AllocationID.String(),
		Month:          a.MonthStart.Format("2006-01"),
		FromCategoryID: a.FromCategoryID,
		ToCategoryID:   a.ToCategoryID,
		AmountMinor:    a.AmountMinor,
		RecordedAt:     a.RecordedAt.Format(time.RFC3339),
	}
}

func toMonthSummaryResponse(s *budget.MonthSummary) MonthSummaryResponse {
	categories := make([]MonthStateResponse, 0, len(s.Categories))
	for _, c := range s.Categories {
		categories = append(categories, MonthStateResponse{
			CategoryID:     c.CategoryID,
			Month:          c.MonthStart.Format("2006-01"),
			AllocatedMinor: c.AllocatedMinor,
			InflowMinor:    c.InflowMinor,
			ActivityMinor:  c.ActivityMinor,
			AvailableMinor: c.AvailableMinor,
		})
	}
	return MonthSummaryResponse{
		Month:              s.MonthStart.Format("2006-01"),
		ReadyToAssignMinor: s.ReadyToAssignMinor,
		Categories:         categories,
	}
}

// HandleAllocations routes requests to the appropriate handler based on method
func (h *BudgetHandler) HandleAllocations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListAllocations(w, r)
	case http.MethodPost:
		h.handleCreateAllocation(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMonth returns the full budget picture for one month
func (h *BudgetHandler) HandleMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	monthStart, err := parseMonth(r.PathValue("month"))
	if err != nil {
		http.Error(w, "Invalid month format (use YYYY-MM)", http.StatusBadRequest)
		return
	}

	summary, err := h.budget.MonthSummary(r.Context(), monthStart)
	if err != nil {
		h.log.Error().Err(err).Time("month_start", monthStart).Msg("failed to build month summary")
		http.Error(w, "Failed to build month summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMonthSummaryResponse(summary))
}

// HandleReadyToAssign returns the pool's available balance for one month
func (h *BudgetHandler) HandleReadyToAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	monthStart, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		http.Error(w, "Invalid month format (use YYYY-MM)", http.StatusBadRequest)
		return
	}

	available, err := h.budget.ReadyToAssign(r.Context(), monthStart)
	if err != nil {
		h.log.Error().Err(err).Time("month_start", monthStart).Msg("failed to read ready-to-assign")
		http.Error(w, "Failed to read ready-to-assign", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ReadyToAssignResponse{
		Month:              monthStart.Format("2006-01"),
		ReadyToAssignMinor: available,
	})
}

// handleListAllocations returns a month's allocations, newest first
func (h *BudgetHandler) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	monthStart, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		http.Error(w, "Invalid month format (use YYYY-MM)", http.StatusBadRequest)
		return
	}

	allocations, err := h.budget.ListAllocations(r.Context(), monthStart)
	if err != nil {
		h.log.Error().Err(err).Time("month_start", monthStart).Msg("failed to list allocations")
		http.Error(w, "Failed to list allocations", http.StatusInternalServerError)
		return
	}

	response := make([]AllocationResponse, 0, len(allocations))
	for _, a := range allocations {
		response = append(response, toAllocationResponse(a))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCreateAllocation assigns money to an envelope, either out of the
// pool or from another envelope when fromCategoryId is given
func (h *BudgetHandler) handleCreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req CreateAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	monthStart, err := parseMonth(req.Month)
	if err != nil {
		http.Error(w, "Invalid month format (use YYYY-MM)", http.StatusBadRequest)
		return
	}

	var allocation *budget.Allocation
	if req.FromCategoryID != nil {
		allocation, err = h.budget.Move(r.Context(), monthStart, *req.FromCategoryID, req.ToCategoryID, req.AmountMinor)
	} else {
		allocation, err = h.budget.Allocate(r.Context(), monthStart, req.ToCategoryID, req.AmountMinor)
	}
	if err != nil {
		if isBudgetValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("to_category_id", req.ToCategoryID).Msg("failed to record allocation")
		http.Error(w, "Failed to record allocation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAllocationResponse(allocation))
}

func isBudgetValidationError(err error) bool {
	return errors.Is(err, budget.ErrInvalidAmount) ||
		errors.Is(err, budget.ErrMonthRequired) ||
		errors.Is(err, budget.ErrSameCategory) ||
		errors.Is(err, budget.ErrUnknownCategory) ||
		errors.Is(err, budget.ErrInactiveCategory) ||
		errors.Is(err, budget.ErrSystemCategory) ||
		errors.Is(err, budget.ErrInsufficientReadyToAssign)
}

// parseMonth parses a YYYY-MM month string into the first of the month, UTC.
func parseMonth(s string) (time.Time, error) {
	return time.Parse("2006-01", s)
}
