package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"centavo/internal/domain/networth"
)

// NetWorthHandler exposes the point-in-time net worth rollup.
type NetWorthHandler struct {
	networth *networth.Service
	log      zerolog.Logger
}

func NewNetWorthHandler(netWorthService *networth.Service, log zerolog.Logger) *NetWorthHandler {
	return &NetWorthHandler{networth: netWorthService, log: log}
}

type AccountValueResponse struct {
	AccountID    string `json:"accountId"`
	Name         string `json:"name"`
	AccountType  string `json:"accountType"`
	AccountClass string `json:"accountClass"`
	ValueMinor   int64  `json:"valueMinor"`
	Source       string `json:"source"`
}

type NetWorthResponse struct {
	AsOf                string                 `json:"asOf"`
	AssetTotalMinor     int64                  `json:"assetTotalMinor"`
	LiabilityTotalMinor int64                  `json:"liabilityTotalMinor"`
	NetWorthMinor       int64                  `json:"netWorthMinor"`
	Accounts            []AccountValueResponse `json:"accounts"`
}

// HandleNetWorth returns the current rollup across all active accounts
func (h *NetWorthHandler) HandleNetWorth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.networth.Summary(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build net worth summary")
		http.Error(w, "Failed to build net worth summary", http.StatusInternalServerError)
		return
	}

	accounts := make([]AccountValueResponse, 0, len(summary.Accounts))
	for _, a := range summary.Accounts {
		accounts = append(accounts, AccountValueResponse{
			AccountID:    a.AccountID,
			Name:         a.Name,
			AccountType:  string(a.AccountType),
			AccountClass: string(a.AccountClass),
			ValueMinor:   a.ValueMinor,
			Source:       string(a.Source),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(NetWorthResponse{
		AsOf:                summary.AsOf.Format(time.RFC3339),
		AssetTotalMinor:     summary.AssetTotalMinor,
		LiabilityTotalMinor: summary.LiabilityTotalMinor,
		NetWorthMinor:       summary.NetWorthMinor,
		Accounts:            accounts,
	})
}
