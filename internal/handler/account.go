package handler

import (
	"log/slog"
	"net/http"

	"github.com/speechvault/speechvault/internal/store"
)

type AccountHandler struct {
	accountStore *store.AccountStore
	datasetStore *store.DatasetStore
	logger       *slog.Logger
}

func NewAccountHandler(as *store.AccountStore, ds *store.DatasetStore, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accountStore: as, datasetStore: ds, logger: logger}
}

// Get returns the caller's account, wallet balance included, plus the
// datasets they created.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := AccountIDFromContext(r.Context())

	account, err := h.accountStore.GetByID(accountID)
	if err != nil {
		h.logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	datasets, err := h.datasetStore.ListByCreator(accountID)
	if err != nil {
		h.logger.Error("list datasets by creator", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account":  account,
		"datasets": datasets,
	})
}
