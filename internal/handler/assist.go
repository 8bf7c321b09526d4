package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rydz/internal/middleware"
	"rydz/internal/service"
)

// AssistHandler exposes the AI convenience endpoints. Failures here never
// touch ride state.
type AssistHandler struct {
	assistService *service.AssistService
}

// NewAssistHandler creates a new AssistHandler.
func NewAssistHandler(assistService *service.AssistService) *AssistHandler {
	return &AssistHandler{assistService: assistService}
}

// AssistResponse carries generated text back to the client.
type AssistResponse struct {
	Text string `json:"text"`
}

// SuggestCarpool handles POST /v1/assist/suggest-carpool
func (h *AssistHandler) SuggestCarpool(c *gin.Context) {
	text, err := h.assistService.SuggestCarpool(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, AssistResponse{Text: text})
}

// HelpRequest is the HTTP request body for a help question.
type HelpRequest struct {
	Question string `json:"question"`
}

// Help handles POST /v1/assist/help
func (h *AssistHandler) Help(c *gin.Context) {
	var req HelpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	text, err := h.assistService.Help(c.Request.Context(), middleware.CallerID(c), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, AssistResponse{Text: text})
}
