package handlers

import (
	"errors"
	"net/http"
	"time"

	"task-manager/api/internal/logger"
	"task-manager/api/internal/models"
	"task-manager/api/internal/services"

	"github.com/gin-gonic/gin"
)

const RefreshCookieName = "refresh_token"

// RefreshCookie describes the HttpOnly cookie carrying the refresh token.
type RefreshCookie struct {
	Secure bool
	MaxAge time.Duration
}

func (rc RefreshCookie) set(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookieName, token, int(rc.MaxAge.Seconds()), "/", "", rc.Secure, true)
}

func (rc RefreshCookie) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookieName, "", -1, "/", "", rc.Secure, true)
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func newTokenResponse(access string, expiresIn int64) TokenResponse {
	return TokenResponse{AccessToken: access, TokenType: "bearer", ExpiresIn: expiresIn}
}

type AuthHandler struct {
	authService services.AuthService
	cookie      RefreshCookie
}

func NewAuthHandler(authService services.AuthService, cookie RefreshCookie) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, bindingDetail(err))
		return
	}

	pair, err := h.authService.LoginUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			abortWithDetail(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		logger.Error("login failed", "error", err)
		abortWithDetail(c, http.StatusInternalServerError, internalError)
		return
	}

	h.cookie.set(c, pair.RefreshToken)
	c.JSON(http.StatusOK, newTokenResponse(pair.AccessToken, pair.ExpiresIn))
}
