package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type LogoutHandler struct {
	cookie RefreshCookie
}

func NewLogoutHandler(cookie RefreshCookie) *LogoutHandler {
	return &LogoutHandler{cookie: cookie}
}

// Logout clears the refresh cookie. Tokens are stateless, so there is nothing to revoke.
func (h *LogoutHandler) Logout(c *gin.Context) {
	h.cookie.clear(c)
	c.Status(http.StatusNoContent)
}
