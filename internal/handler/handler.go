// Package handler exposes the marketplace over a JSON HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/speechvault/speechvault/internal/catalog"
	"github.com/speechvault/speechvault/internal/entitlement"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// writeDomainError maps catalog and entitlement errors onto HTTP statuses.
// Unknown errors are reported as 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrLanguageExists),
		errors.Is(err, entitlement.ErrAlreadyAttached),
		errors.Is(err, entitlement.ErrPolicyIDTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrLanguageNotFound),
		errors.Is(err, catalog.ErrDialectNotFound),
		errors.Is(err, entitlement.ErrDatasetNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, entitlement.ErrInvalidDuration),
		errors.Is(err, entitlement.ErrNoDatasets):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entitlement.ErrInvalidPayment),
		errors.Is(err, entitlement.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, entitlement.ErrInvalidCap),
		errors.Is(err, entitlement.ErrOwnContent),
		errors.Is(err, entitlement.ErrNotPublished):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
