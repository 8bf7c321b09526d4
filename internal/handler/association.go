package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rydz/internal/middleware"
	"rydz/internal/service"
)

// AssociationHandler handles parent-student link and driver approval requests.
type AssociationHandler struct {
	associations *service.AssociationService
}

// NewAssociationHandler creates a new AssociationHandler.
func NewAssociationHandler(associations *service.AssociationService) *AssociationHandler {
	return &AssociationHandler{associations: associations}
}

// LinkStudentRequest is the HTTP request body for linking a student.
type LinkStudentRequest struct {
	StudentID string `json:"student_id"`
}

// StatusResponse is a minimal acknowledgment body.
type StatusResponse struct {
	Status string `json:"status"`
}

// LinkStudent handles POST /v1/associations/students
func (h *AssociationHandler) LinkStudent(c *gin.Context) {
	var req LinkStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	if err := h.associations.LinkParentAndStudent(c.Request.Context(), middleware.CallerID(c), req.StudentID); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, StatusResponse{Status: "linked"})
}

// DriverApprovalRequest is the HTTP request body for driver approval changes.
type DriverApprovalRequest struct {
	DriverID  string `json:"driver_id"`
	StudentID string `json:"student_id"`
}

// ApproveDriver handles POST /v1/associations/drivers
func (h *AssociationHandler) ApproveDriver(c *gin.Context) {
	var req DriverApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	if err := h.associations.ApproveDriver(c.Request.Context(), middleware.CallerID(c), req.DriverID, req.StudentID); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, StatusResponse{Status: "approved"})
}

// RevokeDriver handles POST /v1/associations/drivers/revoke
func (h *AssociationHandler) RevokeDriver(c *gin.Context) {
	var req DriverApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	if err := h.associations.RevokeDriver(c.Request.Context(), middleware.CallerID(c), req.DriverID, req.StudentID); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, StatusResponse{Status: "revoked"})
}
