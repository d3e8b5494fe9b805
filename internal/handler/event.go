package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/speechvault/speechvault/internal/model"
	"github.com/speechvault/speechvault/internal/store"
)

const defaultEventLimit = 100

type EventHandler struct {
	eventStore *store.EventStore
	logger     *slog.Logger
}

func NewEventHandler(es *store.EventStore, logger *slog.Logger) *EventHandler {
	return &EventHandler{eventStore: es, logger: logger}
}

// List returns recent marketplace events, newest first. Filterable by
// type or dataset.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	var (
		events []*model.Event
		err    error
	)
	switch {
	case r.URL.Query().Get("dataset_id") != "":
		var datasetID int64
		datasetID, err = strconv.ParseInt(r.URL.Query().Get("dataset_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid dataset_id")
			return
		}
		events, err = h.eventStore.ListByDataset(datasetID, limit)
	case r.URL.Query().Get("type") != "":
		events, err = h.eventStore.ListByType(r.URL.Query().Get("type"), limit)
	default:
		events, err = h.eventStore.List(limit)
	}
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if events == nil {
		events = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
