package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "teymia/internal/errors"
)

// TokenIssuer issues access tokens.
type TokenIssuer interface {
	Issue(subject string) (string, time.Time, error)
}

// AuthHandler exchanges the API key for a short-lived bearer token. The key
// itself is checked by middleware before the handler runs.
type AuthHandler struct {
	issuer TokenIssuer
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(issuer TokenIssuer) *AuthHandler {
	return &AuthHandler{issuer: issuer}
}

// TokenRequest represents the token request payload
type TokenRequest struct {
	Client string `json:"client" binding:"max=100"`
}

// TokenResponse represents the authentication response with token
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken handles POST /auth/token.
// @Summary     Issue an access token
// @Description Exchange the API key in X-API-Key for a bearer token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       X-API-Key header string true "API key"
// @Param       request body TokenRequest false "Client name"
// @Success     200 {object} TokenResponse "Token issued"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/token [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, invalidInput(err))
			return
		}
	}
	subject := req.Client
	if subject == "" {
		subject = "api"
	}

	token, expires, err := h.issuer.Issue(subject)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expires})
}
