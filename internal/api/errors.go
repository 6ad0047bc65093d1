package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/request"
	"github.com/stwalsh4118/auxroom/internal/session"
)

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError maps a service error onto the HTTP error taxonomy:
// 401 unknown token, 403 wrong role or membership, 404 absent entities,
// 409 re-resolving a terminal request, 400 validation and policy failures,
// 500 everything else.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Unknown or missing token",
		})

	case errors.Is(err, identity.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: err.Error(),
		})

	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrItemNotFound),
		errors.Is(err, request.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})

	case errors.Is(err, request.ErrRequestResolved):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: "Request has already been resolved",
		})

	case errors.Is(err, session.ErrPositionOutOfRange),
		errors.Is(err, session.ErrInvalidPlaybackAction),
		errors.Is(err, identity.ErrInvalidRole),
		errors.Is(err, request.ErrUnknownRequestType),
		errors.Is(err, request.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: err.Error(),
		})

	case session.IsPolicyViolation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "policy_violation",
			Message: err.Error(),
		})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		})
	}
}
