/**
 * @description
 * This file defines the HTTP handlers of the banking core. Handlers parse the request, call
 * the service and render either the result or the rejection.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameter handling.
 * - go.uber.org/zap: Structured logging.
 */
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/upbank/core-service/internal/domain"
	"go.uber.org/zap"
)

// BankService is the part of the application service the handlers call.
type BankService interface {
	Ping(ctx context.Context) error
	Login(ctx context.Context, username, password string) (*domain.AuthResult, error)
	Unblock(ctx context.Context, userID int64) (*domain.User, error)
	ClientByUser(ctx context.Context, userID int64) (*domain.Client, error)
	AccountByUser(ctx context.Context, userID int64) (*domain.Account, error)
	TransferHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.HistoryEntry, error)
	ResolveDestination(ctx context.Context, raw string) (*domain.DestinationView, error)
	SubmitTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferReceipt, error)
	ListUsers(ctx context.Context) ([]domain.UserSummary, error)
	ListAccounts(ctx context.Context) ([]domain.AccountSummary, error)
	UnfreezeAccount(ctx context.Context, accountID int64) (*domain.Account, error)
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service BankService
	logger  *zap.Logger
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service BankService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger.With(zap.String("component", "api"))}
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ResolveDestinationRequest is the body of POST /api/destinations/resolve.
type ResolveDestinationRequest struct {
	Identifier string `json:"identifier"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unhealthy", "STORE_UNAVAILABLE")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "userId")
	if !ok {
		return
	}

	client, err := h.service.ClientByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "userId")
	if !ok {
		return
	}

	account, err := h.service.AccountByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "userId")
	if !ok {
		return
	}
	limit, ok := intQuery(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := intQuery(w, r, "offset")
	if !ok {
		return
	}

	entries, err := h.service.TransferHistory(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleResolveDestination(w http.ResponseWriter, r *http.Request) {
	var req ResolveDestinationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.service.ResolveDestination(r.Context(), req.Identifier)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SenderID <= 0 {
		writeError(w, http.StatusBadRequest, "sender_id is required", "INVALID_REQUEST")
		return
	}

	receipt, err := h.service.SubmitTransfer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer", "INVALID_REQUEST")
		return 0, false
	}
	return id, true
}

// intQuery returns 0 when the parameter is absent.
func intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer", "INVALID_REQUEST")
		return 0, false
	}
	return value, true
}
