package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rydz/internal/domain"
	"rydz/internal/middleware"
	"rydz/internal/service"
)

// RydHandler handles HTTP requests for rydz.
type RydHandler struct {
	rydService *service.RydService
}

// NewRydHandler creates a new RydHandler.
func NewRydHandler(rydService *service.RydService) *RydHandler {
	return &RydHandler{rydService: rydService}
}

// ProposeRydRequest is the HTTP request body for proposing a ryd.
type ProposeRydRequest struct {
	EventID               string    `json:"event_id,omitempty"`
	Destination           string    `json:"destination,omitempty"`
	ProposedDepartureTime time.Time `json:"proposed_departure_time"`
	PlannedArrivalTime    time.Time `json:"planned_arrival_time"`
	SeatsTotal            int       `json:"seats_total"`
}

// ManifestEntryResponse is one passenger on a ryd response.
type ManifestEntryResponse struct {
	UserID      string `json:"user_id"`
	RequestedBy string `json:"requested_by"`
	Status      string `json:"status"`
}

// MessageResponse is one chat entry on a ryd response.
type MessageResponse struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// RydResponse is the HTTP representation of a ryd.
type RydResponse struct {
	ID                    string                  `json:"id"`
	DriverID              string                  `json:"driver_id"`
	EventID               string                  `json:"event_id,omitempty"`
	Destination           string                  `json:"destination,omitempty"`
	Status                string                  `json:"status"`
	ProposedDepartureTime time.Time               `json:"proposed_departure_time"`
	PlannedArrivalTime    time.Time               `json:"planned_arrival_time"`
	SeatsTotal            int                     `json:"seats_total"`
	SeatsOccupied         int                     `json:"seats_occupied"`
	Manifest              []ManifestEntryResponse `json:"manifest"`
	Messages              []MessageResponse       `json:"messages,omitempty"`
	CancelReason          string                  `json:"cancel_reason,omitempty"`
}

func rydResponse(ryd *domain.ActiveRyd) RydResponse {
	resp := RydResponse{
		ID:                    ryd.ID,
		DriverID:              ryd.DriverID,
		EventID:               ryd.EventID,
		Destination:           ryd.Destination,
		Status:                string(ryd.Status),
		ProposedDepartureTime: ryd.ProposedDepartureTime,
		PlannedArrivalTime:    ryd.PlannedArrivalTime,
		SeatsTotal:            ryd.SeatsTotal,
		SeatsOccupied:         ryd.SeatsOccupied(),
		CancelReason:          ryd.CancelReason,
	}
	for i := range ryd.PassengerManifest {
		entry := &ryd.PassengerManifest[i]
		resp.Manifest = append(resp.Manifest, ManifestEntryResponse{
			UserID:      entry.UserID,
			RequestedBy: entry.RequestedBy,
			Status:      string(entry.Status),
		})
	}
	for _, msg := range ryd.Messages {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:       msg.ID,
			SenderID: msg.SenderID,
			Text:     msg.Text,
			SentAt:   msg.SentAt,
		})
	}
	return resp
}

// ProposeRyd handles POST /v1/rydz
func (h *RydHandler) ProposeRyd(c *gin.Context) {
	var req ProposeRydRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	ryd, err := h.rydService.ProposeRyd(c.Request.Context(), service.ProposeRydRequest{
		DriverID:              middleware.CallerID(c),
		EventID:               req.EventID,
		Destination:           req.Destination,
		ProposedDepartureTime: req.ProposedDepartureTime,
		PlannedArrivalTime:    req.PlannedArrivalTime,
		SeatsTotal:            req.SeatsTotal,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, rydResponse(ryd))
}

// GetRyd handles GET /v1/rydz/:id
func (h *RydHandler) GetRyd(c *gin.Context) {
	ryd, err := h.rydService.GetRyd(c.Request.Context(), c.Param("id"), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rydResponse(ryd))
}

// RequestSeatRequest is the HTTP request body for requesting a seat.
type RequestSeatRequest struct {
	PassengerID string `json:"passenger_id"`
}

// RequestSeat handles POST /v1/rydz/:id/seats
func (h *RydHandler) RequestSeat(c *gin.Context) {
	var req RequestSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	caller := middleware.CallerID(c)
	passengerID := req.PassengerID
	if passengerID == "" {
		passengerID = caller
	}

	ryd, err := h.rydService.RequestSeat(c.Request.Context(), service.RequestSeatRequest{
		RydID:       c.Param("id"),
		RequesterID: caller,
		PassengerID: passengerID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rydResponse(ryd))
}

// SeatDecisionRequest is the HTTP request body for deciding a seat request.
type SeatDecisionRequest struct {
	Decision string `json:"decision"` // APPROVE or REJECT
}

// RespondToSeatRequest handles POST /v1/rydz/:id/seats/:passengerId/respond
func (h *RydHandler) RespondToSeatRequest(c *gin.Context) {
	var req SeatDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	ryd, err := h.rydService.RespondToSeatRequest(
		c.Request.Context(),
		c.Param("id"),
		middleware.CallerID(c),
		c.Param("passengerId"),
		service.SeatDecision(req.Decision),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rydResponse(ryd))
}

// ParentalDecisionRequest is the HTTP request body for a parental decision.
type ParentalDecisionRequest struct {
	Approve bool `json:"approve"`
}

// RespondToParentalApproval handles POST /v1/rydz/:id/seats/:passengerId/parental
func (h *RydHandler) RespondToParentalApproval(c *gin.Context) {
	var req ParentalDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	ryd, err := h.rydService.RespondToParentalApproval(
		c.Request.Context(),
		c.Param("id"),
		middleware.CallerID(c),
		c.Param("passengerId"),
		req.Approve,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rydResponse(ryd))
}

// ConfirmRydPlan handles POST /v1/rydz/:id/confirm
func (h *RydHandler) ConfirmRydPlan(c *gin.Context) {
	ryd, err := h.rydService.ConfirmRydPlan(c.Request.Context(), c.Param("id"), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rydResponse(ryd))
}

// AdvanceRequest is the HTTP request body for advancing ryd progress.
type AdvanceRequest struct {
	NextStatus string `json:"next_status"`
}

// AdvanceRydProgress handles POST /v1/rydz/:id/advance
func (h *RydHandler) AdvanceRydProgress(c *gin.Context) {
	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	ryd, err := h.rydService.AdvanceRydProgress(
		c.Request.Context(),
		c.Param("id"),
		middleware.CallerID(c),
		domain.RydStatus(req.NextStatus),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rydResponse(ryd))
}

// CancelRydRequest is the HTTP request body for cancelling a ryd.
type CancelRydRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelRyd handles POST /v1/rydz/:id/cancel
func (h *RydHandler) CancelRyd(c *gin.Context) {
	var req CancelRydRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	ryd, err := h.rydService.CancelRyd(c.Request.Context(), c.Param("id"), middleware.CallerID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rydResponse(ryd))
}

// PassengerProgressRequest is the HTTP request body for a pickup update.
type PassengerProgressRequest struct {
	Status string `json:"status"`
}

// UpdatePassengerProgress handles POST /v1/rydz/:id/passengers/:passengerId/progress
func (h *RydHandler) UpdatePassengerProgress(c *gin.Context) {
	var req PassengerProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	ryd, err := h.rydService.UpdatePassengerProgress(
		c.Request.Context(),
		c.Param("id"),
		middleware.CallerID(c),
		c.Param("passengerId"),
		domain.PassengerStatus(req.Status),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rydResponse(ryd))
}

// PostMessageRequest is the HTTP request body for posting a chat message.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// PostMessage handles POST /v1/rydz/:id/messages
func (h *RydHandler) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	ryd, err := h.rydService.PostMessage(c.Request.Context(), c.Param("id"), middleware.CallerID(c), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rydResponse(ryd))
}
