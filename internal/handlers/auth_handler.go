package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pocketbook/internal/middleware"
	"pocketbook/internal/services"
)

// AuthHandler exchanges the owner's access key for a bearer token.
type AuthHandler struct {
	authService  services.AuthServicer
	auditService services.AuditServicer
	jwtSecret    string
	tokenTTL     time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService services.AuthServicer, auditService services.AuditServicer, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		auditService: auditService,
		jwtSecret:    jwtSecret,
		tokenTTL:     tokenTTL,
	}
}

// TokenRequest represents the token request payload
type TokenRequest struct {
	AccessKey string `json:"access_key" binding:"required,max=256"`
}

// TokenResponse represents an issued access token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken handles the access key exchange
// @Summary     Issue an access token
// @Description Exchange the owner's access key for a bearer token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body TokenRequest true "Access key"
// @Success     200 {object} TokenResponse "Token issued"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid access key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/token [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	if err := h.authService.Authenticate(req.AccessKey); err != nil {
		h.auditService.Log("", "LOGIN_FAILED", "session", "", c.ClientIP(), nil)
		respondWithError(c, err)
		return
	}

	token, expiresAt, err := middleware.GenerateAccessToken(h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "LOGIN", "session", "", c.ClientIP(), nil)

	c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt})
}
