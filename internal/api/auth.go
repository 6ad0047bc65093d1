package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/logger"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role" binding:"required,oneof=host guest"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	identity *identity.Service
}

// NewAuthHandler creates a new auth handler instance
func NewAuthHandler(identityService *identity.Service) *AuthHandler {
	return &AuthHandler{identity: identityService}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	actor, err := h.identity.Login(ctx, req.Name, req.Role)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("role", req.Role).
			Msg("Failed to log actor in")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:  actor.Token,
		UserID: actor.ID.String(),
		Role:   actor.Role,
	})
}

// SetupAuthRoutes registers authentication routes
func SetupAuthRoutes(apiGroup *gin.RouterGroup, identityService *identity.Service) {
	handler := NewAuthHandler(identityService)
	apiGroup.POST("/auth/login", handler.Login)
}
