package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rydz/internal/domain"
	"rydz/internal/middleware"
	"rydz/internal/service"
)

// FamilyHandler handles HTTP requests for families.
type FamilyHandler struct {
	familyService *service.FamilyService
}

// NewFamilyHandler creates a new FamilyHandler.
func NewFamilyHandler(familyService *service.FamilyService) *FamilyHandler {
	return &FamilyHandler{familyService: familyService}
}

// CreateFamilyRequest is the HTTP request body for creating a family.
type CreateFamilyRequest struct {
	Name string `json:"name"`
}

// FamilyResponse is the HTTP representation of a family.
type FamilyResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	MemberIDs        []string `json:"member_ids"`
	CreatorID        string   `json:"creator_id"`
	SubscriptionTier string   `json:"subscription_tier"`
}

func familyResponse(f *domain.Family) FamilyResponse {
	return FamilyResponse{
		ID:               f.ID,
		Name:             f.Name,
		MemberIDs:        f.MemberIDs,
		CreatorID:        f.CreatorID,
		SubscriptionTier: string(f.SubscriptionTier),
	}
}

// CreateFamily handles POST /v1/families
func (h *FamilyHandler) CreateFamily(c *gin.Context) {
	var req CreateFamilyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	family, err := h.familyService.CreateFamily(c.Request.Context(), middleware.CallerID(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, familyResponse(family))
}

// GetFamily handles GET /v1/families/:id
func (h *FamilyHandler) GetFamily(c *gin.Context) {
	family, err := h.familyService.GetFamily(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, familyResponse(family))
}
