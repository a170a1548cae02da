package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"hookfeed/internal"
	"hookfeed/pkg/events"
	"hookfeed/pkg/storage"
)

// ErrInvalidQuery is returned for a limit that is not a positive integer.
var ErrInvalidQuery = errors.New("invalid query")

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// FeedItem is a stored record plus its rendered display line.
type FeedItem struct {
	events.Record
	Message string `json:"message"`
}

// EventsHandler serves the most recent records, newest first.
type EventsHandler struct {
	Store        storage.EventStore
	DefaultLimit int
	MaxLimit     int
	Logger       *log.Logger
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	logger := internal.WithRequestID(h.Logger, internal.RequestIDFromContext(r.Context()))

	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, StatusResponse{Status: statusInvalidQuery, Error: err.Error()})
		return
	}
	if h.Store == nil {
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: statusStoreUnavailable})
		return
	}

	records, err := h.Store.RecentEvents(r.Context(), limit)
	if err != nil {
		logger.Printf("recent events failed: %v", err)
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: statusStoreUnavailable})
		return
	}

	items := make([]FeedItem, 0, len(records))
	for _, record := range records {
		items = append(items, FeedItem{Record: record, Message: events.Message(record)})
	}
	writeJSON(w, http.StatusOK, items)
}

// parseLimit applies the default for an absent limit and clamps large ones.
func (h *EventsHandler) parseLimit(raw string) (int, error) {
	defaultLimit, maxLimit := h.DefaultLimit, h.MaxLimit
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit %q is not an integer", ErrInvalidQuery, raw)
	}
	if limit < 1 {
		return 0, fmt.Errorf("%w: limit must be at least 1", ErrInvalidQuery)
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}
