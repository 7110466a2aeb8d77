package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"centavo/internal/domain/investment"
)

// InvestmentHandler exposes portfolios, holdings reconciliation, security
// reference data and price recording.
type InvestmentHandler struct {
	investments *investment.Service
	log         zerolog.Logger
}

func NewInvestmentHandler(investmentService *investment.Service, log zerolog.Logger) *InvestmentHandler {
	return &InvestmentHandler{investments: investmentService, log: log}
}

// Request/Response DTOs

type HoldingPayload struct {
	Ticker       string          `json:"ticker"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCostMinor int64           `json:"avgCostMinor"`
}

type ReconcileHoldingsRequest struct {
	Holdings []HoldingPayload `json:"holdings"`
}

type UpsertSecurityRequest struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

type RecordPriceRequest struct {
	Date       string `json:"date"`
	PriceMinor int64  `json:"priceMinor"`
}

type SecurityResponse struct {
	SecurityID string `json:"securityId"`
	Name       string `json:"name"`
}

type PricePointResponse struct {
	SecurityID string `json:"securityId"`
	Date       string `json:"date"`
	PriceMinor int64  `json:"priceMinor"`
}

type PositionViewResponse struct {
	SecurityID       string          `json:"securityId"`
	Name             string          `json:"name"`
	Quantity         decimal.Decimal `json:"quantity"`
	AvgCostMinor     int64           `json:"avgCostMinor"`
	PriceMinor       *int64          `json:"priceMinor,omitempty"`
	MarketValueMinor int64           `json:"marketValueMinor"`
	CostBasisMinor   int64           `json:"costBasisMinor"`
	GainMinor        int64           `json:"gainMinor"`
}

type PortfolioResponse struct {
	AccountID           string                 `json:"accountId"`
	LedgerCashMinor     int64                  `json:"ledgerCashMinor"`
	UninvestedCashMinor int64                  `json:"uninvestedCashMinor"`
	HoldingsValueMinor  int64                  `json:"holdingsValueMinor"`
	NAVMinor            int64                  `json:"navMinor"`
	TotalReturnMinor    int64                  `json:"totalReturnMinor"`
	TotalReturnPct      *float64               `json:"totalReturnPct,omitempty"`
	Positions           []PositionViewResponse `json:"positions"`
}

func toPortfolioResponse(p *investment.Portfolio) PortfolioResponse {
	positions := make([]PositionViewResponse, 0, len(p.Positions))
	for _, v := range p.Positions {
		positions = append(positions, PositionViewResponse{
			SecurityID:       v.SecurityID,
			Name:             v.Name,
			Quantity:         v.Quantity,
			AvgCostMinor:     v.AvgCostMinor,
			PriceMinor:       v.PriceMinor,
			MarketValueMinor: v.MarketValueMinor,
			CostBasisMinor:   v.CostBasisMinor,
			GainMinor:        v.GainMinor,
		})
	}
	return PortfolioResponse{
		AccountID:           p.AccountID,
		LedgerCashMinor:     p.LedgerCashMinor,
		UninvestedCashMinor: p.UninvestedCashMinor,
		HoldingsValueMinor:  p.HoldingsValueMinor,
		NAVMinor:            p.NAVMinor,
		TotalReturnMinor:    p.TotalReturnMinor,
		TotalReturnPct:      p.TotalReturnPct,
		Positions:           positions,
	}
}

// HandlePortfolio returns the derived state of one investment account
func (h *InvestmentHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := r.PathValue("id")
	if accountID == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return
	}

	portfolio, err := h.investments.Portfolio(r.Context(), accountID)
	if err != nil {
		h.respondPortfolioError(w, err, accountID, "failed to build portfolio", "Failed to build portfolio")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPortfolioResponse(portfolio))
}

// HandleReconcileHoldings replaces the account's positions with the
// brokerage snapshot and returns the resulting portfolio
func (h *InvestmentHandler) HandleReconcileHoldings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := r.PathValue("id")
	if accountID == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return
	}

	var req ReconcileHoldingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	holdings := make([]investment.Holding, 0, len(req.Holdings))
	for _, p := range req.Holdings {
		holdings = append(holdings, investment.Holding{
			Ticker:       p.Ticker,
			Quantity:     p.Quantity,
			AvgCostMinor: p.AvgCostMinor,
		})
	}

	portfolio, err := h.investments.ReconcileHoldings(r.Context(), accountID, holdings)
	if err != nil {
		if isHoldingValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.respondPortfolioError(w, err, accountID, "failed to reconcile holdings", "Failed to reconcile holdings")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPortfolioResponse(portfolio))
}

// HandleSecurities registers or renames a security
func (h *InvestmentHandler) HandleSecurities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpsertSecurityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	security, err := h.investments.UpsertSecurity(r.Context(), req.Ticker, req.Name)
	if err != nil {
		if errors.Is(err, investment.ErrInvalidTicker) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("failed to upsert security")
		http.Error(w, "Failed to upsert security", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SecurityResponse{SecurityID: security.SecurityID, Name: security.Name})
}

// HandleSecurityPrices records a price point for one security and day
func (h *InvestmentHandler) HandleSecurityPrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	securityID := r.PathValue("id")
	if securityID == "" {
		http.Error(w, "Security ID is required", http.StatusBadRequest)
		return
	}

	var req RecordPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "Invalid date format (use YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	price, err := h.investments.RecordPrice(r.Context(), securityID, date, req.PriceMinor)
	if err != nil {
		switch {
		case errors.Is(err, investment.ErrUnknownSecurity):
			http.Error(w, "Security not found", http.StatusNotFound)
		case errors.Is(err, investment.ErrInvalidPrice), errors.Is(err, investment.ErrDateRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Str("security_id", securityID).Msg("failed to record price")
			http.Error(w, "Failed to record price", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(PricePointResponse{
		SecurityID: price.SecurityID,
		Date:       price.PriceDate.Format("2006-01-02"),
		PriceMinor: price.PriceMinor,
	})
}

func (h *InvestmentHandler) respondPortfolioError(w http.ResponseWriter, err error, accountID, logMsg, userMsg string) {
	switch {
	case errors.Is(err, investment.ErrUnknownAccount):
		http.Error(w, "Account not found", http.StatusNotFound)
	case errors.Is(err, investment.ErrInactiveAccount), errors.Is(err, investment.ErrNotInvestmentAccount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Str("account_id", accountID).Msg(logMsg)
		http.Error(w, userMsg, http.StatusInternalServerError)
	}
}

func isHoldingValidationError(err error) bool {
	return errors.Is(err, investment.ErrInvalidTicker) ||
		errors.Is(err, investment.ErrInvalidQuantity) ||
		errors.Is(err, investment.ErrInvalidCost) ||
		errors.Is(err, investment.ErrDuplicateHolding)
}
