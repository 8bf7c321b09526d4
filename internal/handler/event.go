package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rydz/internal/domain"
	"rydz/internal/middleware"
	"rydz/internal/service"
)

// EventHandler handles HTTP requests for events.
type EventHandler struct {
	eventService *service.EventService
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(eventService *service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// CreateEventRequest is the HTTP request body for creating an event.
type CreateEventRequest struct {
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// EventResponse is the HTTP representation of an event.
type EventResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time,omitempty"`
	OrganizerID string    `json:"organizer_id"`
	Status      string    `json:"status"`
}

func eventResponse(e *domain.Event) EventResponse {
	return EventResponse{
		ID:          e.ID,
		Name:        e.Name,
		Location:    e.Location,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		OrganizerID: e.OrganizerID,
		Status:      string(e.Status),
	}
}

// CreateEvent handles POST /v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	event, err := h.eventService.CreateEvent(c.Request.Context(), service.CreateEventRequest{
		OrganizerID: middleware.CallerID(c),
		Name:        req.Name,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, eventResponse(event))
}

// GetEvent handles GET /v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.eventService.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, eventResponse(event))
}

// ListEvents handles GET /v1/events?from=RFC3339&to=RFC3339
func (h *EventHandler) ListEvents(c *gin.Context) {
	from, err := parseTimeQuery(c, "from", time.Now().UTC())
	if err != nil {
		return
	}
	to, err := parseTimeQuery(c, "to", from.AddDate(0, 0, 30))
	if err != nil {
		return
	}

	events, listErr := h.eventService.ListEvents(c.Request.Context(), from, to)
	if listErr != nil {
		respondError(c, listErr)
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, eventResponse(e))
	}
	respondJSON(c, http.StatusOK, resp)
}

// parseTimeQuery reads an RFC3339 query parameter, writing a 400 on parse
// failure. The returned error only signals that the response is done.
func parseTimeQuery(c *gin.Context, name string, fallback time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: name + " must be RFC3339"})
		return time.Time{}, err
	}
	return t, nil
}
