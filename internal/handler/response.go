package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rydz/internal/service"
)

// ErrorResponse represents an error response. Kind is the machine-readable
// error classification; the presentation layer owns user-facing copy.
type ErrorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// respondError sends an error response with the HTTP status implied by the
// error kind.
func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	c.JSON(statusForKind(kind), ErrorResponse{Kind: string(kind), Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// statusForKind maps the core's error taxonomy to HTTP status codes.
func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuthorization:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidState,
		service.KindCapacityExceeded,
		service.KindDuplicateEntry,
		service.KindAlreadyLinked,
		service.KindRoleMismatch,
		service.KindConcurrency:
		return http.StatusConflict
	case service.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
