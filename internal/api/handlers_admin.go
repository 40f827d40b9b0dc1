package api

import (
	"net/http"

	"github.com/upbank/core-service/internal/domain"
	"go.uber.org/zap"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []domain.UserSummary{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.AccountSummary{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) handleUnblockUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "userId")
	if !ok {
		return
	}

	user, err := h.service.Unblock(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("user unblocked by admin", zap.Int64("user_id", user.ID))
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUnfreezeAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := idParam(w, r, "accountId")
	if !ok {
		return
	}

	account, err := h.service.UnfreezeAccount(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
