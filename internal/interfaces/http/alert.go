package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"centavo/internal/domain/alert"
)

// AlertHandler exposes the alert feed and push device registration.
type AlertHandler struct {
	alerts *alert.Service
	log    zerolog.Logger
}

func NewAlertHandler(alertService *alert.Service, log zerolog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alertService, log: log}
}

// Request/Response DTOs

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type DeviceResponse struct {
	Token     string `json:"token"`
	Platform  string `json:"platform"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

type AlertEventResponse struct {
	AlertID    string  `json:"alertId"`
	Kind       string  `json:"kind"`
	CategoryID *string `json:"categoryId,omitempty"`
	AccountID  *string `json:"accountId,omitempty"`
	Month      *string `json:"month,omitempty"`
	Message    string  `json:"message"`
	CreatedAt  string  `json:"createdAt"`
}

func toAlertEventResponse(e *alert.Event) AlertEventResponse {
	resp := AlertEventResponse{
		AlertID:    e.AlertID.String(),
		Kind:       string(e.Kind),
		CategoryID: e.CategoryID,
		AccountID:  e.AccountID,
		Message:    e.Message,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
	if e.MonthStart != nil {
		month := e.MonthStart.Format("2006-01")
		resp.Month = &month
	}
	return resp
}

// HandleDevices registers a push target; re-registering reactivates it
func (h *AlertHandler) HandleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	device, err := h.alerts.RegisterDevice(r.Context(), alert.RegisterDeviceParams{
		Token:    req.Token,
		Platform: req.Platform,
	})
	if err != nil {
		if errors.Is(err, alert.ErrInvalidToken) || errors.Is(err, alert.ErrInvalidPlatform) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("failed to register device")
		http.Error(w, "Failed to register device", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(DeviceResponse{
		Token:     device.Token,
		Platform:  device.Platform,
		IsActive:  device.IsActive,
		CreatedAt: device.CreatedAt.Format(time.RFC3339),
	})
}

// HandleDeviceByToken unregisters a push target.
func (h *AlertHandler) HandleDeviceByToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.alerts.DeactivateToken(r.Context(), r.PathValue("token")); err != nil {
		if errors.Is(err, alert.ErrInvalidToken) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("failed to unregister device")
		http.Error(w, "Failed to unregister device", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleAlerts returns recorded alerts, newest first, optionally filtered
// by kind
func (h *AlertHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kind := alert.Kind(r.URL.Query().Get("kind"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	events, err := h.alerts.ListEvents(r.Context(), kind, limit, offset)
	if err != nil {
		if errors.Is(err, alert.ErrInvalidKind) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("failed to list alerts")
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	response := make([]AlertEventResponse, 0, len(events))
	for _, e := range events {
		response = append(response, toAlertEventResponse(e))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
