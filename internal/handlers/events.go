package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"biolink-storefront-api/internal/events"
	"biolink-storefront-api/internal/models"
)

// EventsHandler handles event streaming requests
type EventsHandler struct {
	eventQueue *events.EventQueue
	logger     *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(eventQueue *events.EventQueue, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		eventQueue: eventQueue,
		logger:     logger,
	}
}

// GetEvents handles GET /v1/events - Offset-based polling with optional
// long polling via the wait parameter.
func (h *EventsHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "offset parameter is required", nil)
		return
	}

	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid offset parameter", nil)
		return
	}

	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 1000 {
			limit = parsedLimit
		}
	}

	waitSeconds := 0 // default
	if waitStr := r.URL.Query().Get("wait"); waitStr != "" {
		if parsedWait, err := strconv.Atoi(waitStr); err == nil && parsedWait >= 0 && parsedWait <= 60 {
			waitSeconds = parsedWait
		}
	}

	h.logger.Info("Events request received",
		"offset", offset,
		"limit", limit,
		"wait", waitSeconds,
		"remote_addr", r.RemoteAddr,
	)

	eventList, nextOffset, hasMore := h.eventQueue.GetEvents(offset, limit)

	// If no events and wait > 0, use long polling
	if len(eventList) == 0 && waitSeconds > 0 {
		h.logger.Debug("No events available, starting long polling",
			"offset", offset,
			"wait_seconds", waitSeconds,
		)

		waitChan := h.eventQueue.WaitForEvents(offset, time.Duration(waitSeconds)*time.Second)

		select {
		case <-waitChan:
			eventList, nextOffset, hasMore = h.eventQueue.GetEvents(offset, limit)
			h.logger.Debug("Long polling completed",
				"offset", offset,
				"events_count", len(eventList),
			)
		case <-r.Context().Done():
			h.logger.Debug("Client disconnected during long polling", "offset", offset)
			return
		}
	}

	response := models.EventsResponse{
		Events:     eventList,
		NextOffset: nextOffset,
		HasMore:    hasMore,
		Count:      len(eventList),
	}

	h.logger.Info("Events response sent",
		"offset", offset,
		"events_count", len(eventList),
		"next_offset", nextOffset,
		"has_more", hasMore,
	)

	writeJSONResponse(w, http.StatusOK, response)
}
