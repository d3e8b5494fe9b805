package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/speechvault/speechvault/internal/catalog"
)

type LanguageHandler struct {
	catalog *catalog.Service
	logger  *slog.Logger
}

func NewLanguageHandler(cat *catalog.Service, logger *slog.Logger) *LanguageHandler {
	return &LanguageHandler{catalog: cat, logger: logger}
}

type languageRequest struct {
	Name       string `json:"name"`
	Dialect    string `json:"dialect"`
	SampleText string `json:"sample_text"`
}

// Create registers a new language category owned by the caller.
func (h *LanguageHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := AccountIDFromContext(r.Context())

	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	lang, err := h.catalog.RegisterLanguage(req.Name, req.Dialect, req.SampleText, accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lang)
}

// AddDialect appends a dialect to an existing language. Open to any
// authenticated account, not just the language creator.
func (h *LanguageHandler) AddDialect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		Dialect string `json:"dialect"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.catalog.AddDialect(name, req.Dialect); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSampleText appends a reference text to an existing language.
func (h *LanguageHandler) AddSampleText(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		SampleText string `json:"sample_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.catalog.AddSampleText(name, req.SampleText); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get returns one language with its dialects and sample texts.
func (h *LanguageHandler) Get(w http.ResponseWriter, r *http.Request) {
	lang, err := h.catalog.Get(r.PathValue("name"))
	if err != nil {
		h.logger.Error("get language", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if lang == nil {
		writeError(w, http.StatusNotFound, "language not found")
		return
	}
	writeJSON(w, http.StatusOK, lang)
}

// List returns all registered languages.
func (h *LanguageHandler) List(w http.ResponseWriter, r *http.Request) {
	langs, err := h.catalog.List()
	if err != nil {
		h.logger.Error("list languages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, langs)
}
