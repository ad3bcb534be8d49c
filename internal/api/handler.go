package api

import (
	"context"
	"crypto-alert-bot/internal/alert"
	"crypto-alert-bot/internal/types"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// defaultUserID owns alerts created without a user_id.
const defaultUserID = "web_user"

// AlertManager is the alert service surface exposed over HTTP.
type AlertManager interface {
	CreateAlert(ctx context.Context, userID, symbol string, alertType types.AlertType, condition types.ConditionType, value float64, message string) (int64, error)
	ListForUser(ctx context.Context, userID string) ([]types.Alert, error)
	Delete(ctx context.Context, alertID int64, userID string) (bool, error)
	History(ctx context.Context, alertID int64, userID string) ([]types.AlertHistoryEntry, bool, error)
}

// Checker runs an on-demand check pass.
type Checker interface {
	CheckNow(ctx context.Context) ([]types.TriggeredAlertEvent, error)
}

// Handler provides the alert HTTP endpoints.
type Handler struct {
	alerts  AlertManager
	checker Checker
}

func NewHandler(alerts AlertManager, checker Checker) (*Handler, error) {
	if alerts == nil {
		return nil, errors.New("alerts handler: nil alert manager")
	}
	if checker == nil {
		return nil, errors.New("alerts handler: nil checker")
	}
	return &Handler{alerts: alerts, checker: checker}, nil
}

// Routes mounts the handlers under /api/alerts.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api/alerts", func(r chi.Router) {
		r.Post("/create", h.handleCreate)
		r.Get("/check", h.handleCheck)
		r.Get("/user/{userID}", h.handleListForUser)
		r.Delete("/{alertID}", h.handleDelete)
		r.Get("/{alertID}/history", h.handleHistory)
	})
	return r
}

type createAlertRequest struct {
	UserID    flexString `json:"user_id"`
	Symbol    string     `json:"symbol"`
	AlertType string     `json:"alert_type"`
	Condition string     `json:"condition"`
	Value     flexString `json:"value"`
	Message   string     `json:"message"`
}

type deleteAlertRequest struct {
	UserID flexString `json:"user_id"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	alertType := types.AlertType(strings.ToUpper(strings.TrimSpace(req.AlertType)))
	condition := types.ConditionType(strings.ToUpper(strings.TrimSpace(req.Condition)))
	if req.Symbol == "" || alertType == "" || req.Value == "" || (condition == "" && alertType != types.AlertTypeVolume) {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	value, err := strconv.ParseFloat(string(req.Value), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value must be a number")
		return
	}

	userID := req.UserID.Or(defaultUserID)
	id, err := h.alerts.CreateAlert(r.Context(), userID, req.Symbol, alertType, condition, value, req.Message)
	if alert.IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("failed to create alert")
		writeError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"alert_id": id,
		"message":  "Alert created successfully",
	})
}

func (h *Handler) handleListForUser(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ListForUser(r.Context(), chi.URLParam(r, "userID"))
	if alert.IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to list alerts")
		writeError(w, http.StatusInternalServerError, "Failed to get alerts")
		return
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	alertID, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert id")
		return
	}

	var req deleteAlertRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	deleted, err := h.alerts.Delete(r.Context(), alertID, req.UserID.Or(defaultUserID))
	if err != nil {
		log.WithError(err).WithField("alert_id", alertID).Error("failed to delete alert")
		writeError(w, http.StatusInternalServerError, "Failed to delete alert")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Alert not found or unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Alert deleted",
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	alertID, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert id")
		return
	}
	userID := flexString(r.URL.Query().Get("user_id")).Or(defaultUserID)

	entries, found, err := h.alerts.History(r.Context(), alertID, userID)
	if err != nil {
		log.WithError(err).WithField("alert_id", alertID).Error("failed to read alert history")
		writeError(w, http.StatusInternalServerError, "Failed to get alert history")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Alert not found or unauthorized")
		return
	}
	if entries == nil {
		entries = []types.AlertHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id": alertID,
		"history":  entries,
		"total":    len(entries),
	})
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	events, err := h.checker.CheckNow(r.Context())
	if err != nil {
		log.WithError(err).Error("manual alert check failed")
		writeError(w, http.StatusInternalServerError, "Failed to check alerts")
		return
	}
	if events == nil {
		events = []types.TriggeredAlertEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"triggered_alerts": events,
		"count":            len(events),
	})
}

// decodeBody accepts an empty body and leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
