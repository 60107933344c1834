package handlers

import (
	"errors"
	"net/http"
	"strings"

	"task-manager/api/internal/logger"
	"task-manager/api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshHandler struct {
	authService services.AuthService
}

func NewRefreshHandler(authService services.AuthService) *RefreshHandler {
	return &RefreshHandler{authService: authService}
}

// Refresh reads the token from the cookie, then a JSON body, then the query string.
func (h *RefreshHandler) Refresh(c *gin.Context) {
	token := refreshTokenFrom(c)
	if token == "" {
		abortWithDetail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	access, expiresIn, err := h.authService.RefreshToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			abortWithDetail(c, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		logger.Error("token refresh failed", "error", err)
		abortWithDetail(c, http.StatusInternalServerError, internalError)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(access, expiresIn))
}

func refreshTokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(RefreshCookieName); err == nil && cookie != "" {
		return cookie
	}

	if c.Request.ContentLength != 0 && strings.HasPrefix(c.ContentType(), binding.MIMEJSON) {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
			return strings.TrimSpace(req.RefreshToken)
		}
	}

	return strings.TrimSpace(c.Query(RefreshCookieName))
}
