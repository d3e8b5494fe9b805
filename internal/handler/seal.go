package handler

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/speechvault/speechvault/internal/entitlement"
	"github.com/speechvault/speechvault/internal/seal"
)

type SealHandler struct {
	entitlements *entitlement.Service
	sealer       *seal.Sealer
	logger       *slog.Logger
}

func NewSealHandler(es *entitlement.Service, sealer *seal.Sealer, logger *slog.Logger) *SealHandler {
	return &SealHandler{entitlements: es, sealer: sealer, logger: logger}
}

type approveRequest struct {
	PolicyID       string `json:"policy_id"`
	DatasetID      int64  `json:"dataset_id"`
	SubscriptionID int64  `json:"subscription_id"`
}

// Approve evaluates the authorization predicate for a key-release request
// and, on approval, returns the decryption key derived for the policy.
// Denials carry no detail: the caller learns only that release was refused.
func (h *SealHandler) Approve(w http.ResponseWriter, r *http.Request) {
	accountID := AccountIDFromContext(r.Context())

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PolicyID == "" {
		writeError(w, http.StatusBadRequest, "policy_id is required")
		return
	}

	if !h.entitlements.AuthorizeByID(accountID, req.PolicyID, req.DatasetID, req.SubscriptionID, time.Now()) {
		writeJSON(w, http.StatusForbidden, map[string]any{"approved": false})
		return
	}

	key, err := h.sealer.DeriveKey(req.PolicyID)
	if err != nil {
		h.logger.Error("derive key", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"approved": true,
		"key":      hex.EncodeToString(key),
	})
}
