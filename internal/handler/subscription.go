package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/speechvault/speechvault/internal/entitlement"
	"github.com/speechvault/speechvault/internal/store"
)

type SubscriptionHandler struct {
	entitlements      *entitlement.Service
	subscriptionStore *store.SubscriptionStore
	logger            *slog.Logger
}

func NewSubscriptionHandler(es *entitlement.Service, ss *store.SubscriptionStore, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{entitlements: es, subscriptionStore: ss, logger: logger}
}

type subscribeRequest struct {
	DatasetID int64 `json:"dataset_id"`
	Days      int64 `json:"days"`
	// Payment must equal the quoted net price exactly.
	Payment int64 `json:"payment"`
}

// Subscribe purchases timed access to a single dataset.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	accountID := AccountIDFromContext(r.Context())

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sub, err := h.entitlements.Subscribe(accountID, req.DatasetID, req.Days, req.Payment, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type subscribeBulkRequest struct {
	DatasetIDs []int64 `json:"dataset_ids"`
	Days       int64   `json:"days"`
	Payment    int64   `json:"payment"`
}

// SubscribeBulk purchases access to several datasets in one payment. All
// subscriptions share an expiry; any failure voids the whole purchase.
func (h *SubscriptionHandler) SubscribeBulk(w http.ResponseWriter, r *http.Request) {
	accountID := AccountIDFromContext(r.Context())

	var req subscribeBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	subs, err := h.entitlements.SubscribeBulk(accountID, req.DatasetIDs, req.Days, req.Payment, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subs)
}

// Quote previews the price of a prospective subscription.
func (h *SubscriptionHandler) Quote(w http.ResponseWriter, r *http.Request) {
	accountID := AccountIDFromContext(r.Context())

	var req struct {
		DatasetID int64 `json:"dataset_id"`
		Days      int64 `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	q, err := h.entitlements.Quote(accountID, req.DatasetID, req.Days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// List returns the caller's subscriptions.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := AccountIDFromContext(r.Context())

	subs, err := h.subscriptionStore.ListBySubscriber(accountID)
	if err != nil {
		h.logger.Error("list subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}
