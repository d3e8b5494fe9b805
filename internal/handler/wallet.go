package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/speechvault/speechvault/internal/store"
	"github.com/speechvault/speechvault/internal/stripeclient"
)

type WalletHandler struct {
	stripe       *stripeclient.Client
	accountStore *store.AccountStore
	logger       *slog.Logger
}

func NewWalletHandler(sc *stripeclient.Client, as *store.AccountStore, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{stripe: sc, accountStore: as, logger: logger}
}

// TopUp creates a Stripe checkout session funding the caller's wallet and
// returns the URL to complete payment at. The wallet is credited by the
// webhook once Stripe confirms the charge, never here.
func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	accountID := AccountIDFromContext(r.Context())

	if h.stripe == nil {
		writeError(w, http.StatusServiceUnavailable, "payments not configured")
		return
	}

	var req struct {
		AmountMinor int64 `json:"amount_minor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.AmountMinor <= 0 {
		writeError(w, http.StatusBadRequest, "amount_minor must be positive")
		return
	}

	account, err := h.accountStore.GetByID(accountID)
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	customerID := ""
	if account.StripeCustomerID != nil {
		customerID = *account.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = h.stripe.CreateCustomer(account.Email)
		if err != nil {
			h.logger.Error("create stripe customer", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if err := h.accountStore.UpdateStripeCustomerID(account.ID, customerID); err != nil {
			h.logger.Error("save stripe customer id", "error", err)
		}
	}

	url, err := h.stripe.CreateTopUpSession(customerID, account.ID, req.AmountMinor)
	if err != nil {
		h.logger.Error("create topup session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
