package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rydz/internal/domain"
	"rydz/internal/middleware"
	"rydz/internal/service"
)

// ProfileHandler handles HTTP requests for user profiles.
type ProfileHandler struct {
	profileService *service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// RegisterProfileRequest is the HTTP request body for registering a profile.
type RegisterProfileRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	CanDrive bool   `json:"can_drive"`
}

// SavedLocationResponse is a named saved location.
type SavedLocationResponse struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ProfileResponse is the HTTP representation of a profile.
type ProfileResponse struct {
	ID                  string                  `json:"id"`
	Email               string                  `json:"email"`
	Name                string                  `json:"name"`
	Role                string                  `json:"role"`
	CanDrive            bool                    `json:"can_drive"`
	ManagedStudentIDs   []string                `json:"managed_student_ids,omitempty"`
	AssociatedParentIDs []string                `json:"associated_parent_ids,omitempty"`
	SavedLocations      []SavedLocationResponse `json:"saved_locations,omitempty"`
	FamilyIDs           []string                `json:"family_ids,omitempty"`
	Active              bool                    `json:"active"`
	CreatedAt           time.Time               `json:"created_at"`
}

func profileResponse(p *domain.UserProfile) ProfileResponse {
	resp := ProfileResponse{
		ID:                  p.ID,
		Email:               p.Email,
		Name:                p.Name,
		Role:                string(p.Role),
		CanDrive:            p.CanDrive,
		ManagedStudentIDs:   p.ManagedStudentIDs,
		AssociatedParentIDs: p.AssociatedParentIDs,
		FamilyIDs:           p.FamilyIDs,
		Active:              p.Active,
		CreatedAt:           p.CreatedAt,
	}
	for _, loc := range p.SavedLocations {
		resp.SavedLocations = append(resp.SavedLocations, SavedLocationResponse{Name: loc.Name, Address: loc.Address})
	}
	return resp
}

// RegisterProfile handles POST /v1/profiles
func (h *ProfileHandler) RegisterProfile(c *gin.Context) {
	var req RegisterProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	profile, err := h.profileService.RegisterProfile(c.Request.Context(), service.RegisterProfileRequest{
		UserID:   middleware.CallerID(c),
		Email:    req.Email,
		Name:     req.Name,
		Role:     domain.Role(req.Role),
		CanDrive: req.CanDrive,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, profileResponse(profile))
}

// GetProfile handles GET /v1/profiles/:id
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, err := h.profileService.GetProfile(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, profileResponse(profile))
}

// UpdateProfileRequest is the HTTP request body for profile edits.
type UpdateProfileRequest struct {
	Name           *string                 `json:"name,omitempty"`
	CanDrive       *bool                   `json:"can_drive,omitempty"`
	SavedLocations []SavedLocationResponse `json:"saved_locations,omitempty"`
}

// UpdateProfile handles PATCH /v1/profiles/me
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: string(service.KindValidation), Error: "invalid request body"})
		return
	}

	update := service.UpdateProfileRequest{
		Name:     req.Name,
		CanDrive: req.CanDrive,
	}
	if req.SavedLocations != nil {
		update.SavedLocations = make([]domain.SavedLocation, 0, len(req.SavedLocations))
		for _, loc := range req.SavedLocations {
			update.SavedLocations = append(update.SavedLocations, domain.SavedLocation{Name: loc.Name, Address: loc.Address})
		}
	}

	profile, err := h.profileService.UpdateProfile(c.Request.Context(), middleware.CallerID(c), update)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, profileResponse(profile))
}
