package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/speechvault/speechvault/internal/blob"
	"github.com/speechvault/speechvault/internal/entitlement"
	"github.com/speechvault/speechvault/internal/seal"
	"github.com/speechvault/speechvault/internal/store"
)

// Capability tokens travel in this header rather than the body so that
// content uploads can stream raw bytes.
const capHeader = "X-Dataset-Cap"

// maxContentBytes bounds a single dataset upload.
const maxContentBytes = 64 << 20

type DatasetHandler struct {
	entitlements *entitlement.Service
	datasetStore *store.DatasetStore
	sealer       *seal.Sealer
	blobs        *blob.Store
	logger       *slog.Logger
}

func NewDatasetHandler(
	es *entitlement.Service,
	ds *store.DatasetStore,
	sealer *seal.Sealer,
	blobs *blob.Store,
	logger *slog.Logger,
) *DatasetHandler {
	return &DatasetHandler{
		entitlements: es,
		datasetStore: ds,
		sealer:       sealer,
		blobs:        blobs,
		logger:       logger,
	}
}

type datasetRequest struct {
	Language        string `json:"language"`
	Dialect         string `json:"dialect"`
	DurationSeconds int64  `json:"duration_seconds"`
	PolicyID        string `json:"policy_id"`
}

// Create registers dataset metadata and returns the creator capability.
// This is the only time the capability token is ever revealed.
func (h *DatasetHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := AccountIDFromContext(r.Context())

	var req datasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ds, cap, err := h.entitlements.CreateDataset(accountID, req.Language, req.Dialect, req.DurationSeconds, req.PolicyID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"dataset":   ds,
		"cap_token": cap.Token,
	})
}

// UploadContent encrypts the request body under the dataset's policy key,
// stores the sealed blob, and attaches the resulting reference. Requires
// the creator capability; succeeds at most once per dataset.
func (h *DatasetHandler) UploadContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	capToken := r.Header.Get(capHeader)
	if capToken == "" {
		writeError(w, http.StatusForbidden, "capability token required")
		return
	}

	// Validate the capability before accepting the upload so a bad token
	// never leaves an orphan blob behind.
	cap, err := h.datasetStore.GetCap(capToken)
	if err != nil {
		h.logger.Error("resolve cap", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if cap == nil || cap.DatasetID != id {
		writeDomainError(w, entitlement.ErrInvalidCap)
		return
	}

	ds, err := h.datasetStore.GetByID(id)
	if err != nil {
		h.logger.Error("get dataset", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ds == nil {
		writeDomainError(w, entitlement.ErrDatasetNotFound)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxContentBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty content")
		return
	}
	if len(data) > maxContentBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "content too large")
		return
	}

	// Each upload gets a fresh key id under the dataset's policy namespace.
	// The namespace prefix is what subscription checks authorize against.
	keyID := seal.PolicyKeyID(ds.PolicyID)
	sealed, err := h.sealer.Encrypt(data, keyID)
	if err != nil {
		h.logger.Error("seal content", "dataset_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ref, err := h.blobs.Put(r.Context(), sealed)
	if err != nil {
		h.logger.Error("store blob", "dataset_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.entitlements.AttachContent(id, capToken, ref, keyID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"content_ref":    ref,
		"content_key_id": keyID,
	})
}

// DownloadContent serves the decrypted dataset to an authorized subscriber.
// The caller names the subscription they hold; the authorize predicate
// decides, and any mismatch or expiry yields 403.
func (h *DatasetHandler) DownloadContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	subID, err := strconv.ParseInt(r.URL.Query().Get("subscription_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "subscription_id is required")
		return
	}
	accountID := AccountIDFromContext(r.Context())

	ds, err := h.datasetStore.GetByID(id)
	if err != nil {
		h.logger.Error("get dataset", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ds == nil {
		writeDomainError(w, entitlement.ErrDatasetNotFound)
		return
	}

	if ds.ContentRef == nil || ds.ContentKeyID == nil {
		writeError(w, http.StatusNotFound, "no content attached")
		return
	}
	if !h.entitlements.AuthorizeByID(accountID, *ds.ContentKeyID, id, subID, time.Now()) {
		writeError(w, http.StatusForbidden, "not authorized for this content")
		return
	}

	sealed, err := h.blobs.Get(r.Context(), *ds.ContentRef)
	if err != nil {
		h.logger.Error("fetch blob", "dataset_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	data, err := h.sealer.Decrypt(sealed, *ds.ContentKeyID)
	if err != nil {
		h.logger.Error("unseal content", "dataset_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// Withdraw sweeps the dataset's accumulated earnings into the creator's
// wallet. Authorized by capability, like all creator operations.
func (h *DatasetHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	capToken := r.Header.Get(capHeader)
	if capToken == "" {
		writeError(w, http.StatusForbidden, "capability token required")
		return
	}

	amount, err := h.entitlements.Withdraw(id, capToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"withdrawn": amount})
}

// Get returns one dataset's public metadata.
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ds, err := h.datasetStore.GetByID(id)
	if err != nil {
		h.logger.Error("get dataset", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ds == nil {
		writeError(w, http.StatusNotFound, "dataset not found")
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// List returns datasets, optionally filtered by language.
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	if lang := r.URL.Query().Get("language"); lang != "" {
		ds, err := h.datasetStore.ListByLanguage(lang)
		if err != nil {
			h.logger.Error("list datasets", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, ds)
		return
	}
	ds, err := h.datasetStore.List()
	if err != nil {
		h.logger.Error("list datasets", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ds)
}
