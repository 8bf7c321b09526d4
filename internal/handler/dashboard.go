package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rydz/internal/middleware"
	"rydz/internal/service"
)

// DashboardHandler serves the derived read views.
type DashboardHandler struct {
	aggregator  *service.AggregatorService
	horizonDays int
}

// NewDashboardHandler creates a new DashboardHandler. horizonDays is the
// schedule window used when the client does not ask for one; zero falls back
// to the service default.
func NewDashboardHandler(aggregator *service.AggregatorService, horizonDays int) *DashboardHandler {
	return &DashboardHandler{aggregator: aggregator, horizonDays: horizonDays}
}

// NextRydResponse is the HTTP response for the dashboard's next ryd.
type NextRydResponse struct {
	Ryd         *RydResponse `json:"ryd"`
	Driving     bool         `json:"driving"`
	PassengerID string       `json:"passenger_id,omitempty"`
}

// GetNextRyd handles GET /v1/dashboard/next-ryd. Responds with a null ryd
// when nothing is upcoming; that is not an error.
func (h *DashboardHandler) GetNextRyd(c *gin.Context) {
	next, err := h.aggregator.GetNextRyd(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if next == nil {
		respondJSON(c, http.StatusOK, NextRydResponse{})
		return
	}
	resp := rydResponse(next.Ryd)
	respondJSON(c, http.StatusOK, NextRydResponse{
		Ryd:         &resp,
		Driving:     next.Driving,
		PassengerID: next.PassengerID,
	})
}

// ScheduleItemResponse is one upcoming schedule entry.
type ScheduleItemResponse struct {
	Time    time.Time `json:"time"`
	Title   string    `json:"title"`
	RydID   string    `json:"ryd_id,omitempty"`
	EventID string    `json:"event_id,omitempty"`
	Driving bool      `json:"driving"`
}

// ScheduleDayResponse is one day's bucket of schedule entries.
type ScheduleDayResponse struct {
	Date  string                 `json:"date"`
	Items []ScheduleItemResponse `json:"items"`
}

// GetSchedule handles GET /v1/dashboard/schedule?days=N
func (h *DashboardHandler) GetSchedule(c *gin.Context) {
	days := h.horizonDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "days must be a positive integer"})
			return
		}
		days = parsed
	}

	schedule, err := h.aggregator.GetUpcomingSchedule(c.Request.Context(), middleware.CallerID(c), days)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]ScheduleDayResponse, 0, len(schedule))
	for _, day := range schedule {
		out := ScheduleDayResponse{Date: day.Date}
		for _, item := range day.Items {
			out.Items = append(out.Items, ScheduleItemResponse{
				Time:    item.Time,
				Title:   item.Title,
				RydID:   item.RydID,
				EventID: item.EventID,
				Driving: item.Driving,
			})
		}
		resp = append(resp, out)
	}
	respondJSON(c, http.StatusOK, resp)
}

// ConversationResponse is one conversation list entry.
type ConversationResponse struct {
	RydID        string                `json:"ryd_id"`
	Status       string                `json:"status"`
	Participants []ParticipantResponse `json:"participants"`
	LastMessage  *MessageResponse      `json:"last_message,omitempty"`
}

// ParticipantResponse is a resolved display identity.
type ParticipantResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// GetConversations handles GET /v1/conversations?archived=true|false
func (h *DashboardHandler) GetConversations(c *gin.Context) {
	archived := c.Query("archived") == "true"

	conversations, err := h.aggregator.GetConversations(c.Request.Context(), middleware.CallerID(c), archived)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out := ConversationResponse{
			RydID:  conv.RydID,
			Status: string(conv.Status),
		}
		for _, p := range conv.Participants {
			out.Participants = append(out.Participants, ParticipantResponse{UserID: p.UserID, Name: p.Name})
		}
		if conv.LastMessage != nil {
			out.LastMessage = &MessageResponse{
				ID:       conv.LastMessage.ID,
				SenderID: conv.LastMessage.SenderID,
				Text:     conv.LastMessage.Text,
				SentAt:   conv.LastMessage.SentAt,
			}
		}
		resp = append(resp, out)
	}
	respondJSON(c, http.StatusOK, resp)
}
