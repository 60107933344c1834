package handlers

import (
	"context"
	"net/http"
	"time"

	"task-manager/api/internal/logger"

	"github.com/gin-gonic/gin"
)

// DatabaseProbe is the part of the MongoDB store the health endpoint needs.
type DatabaseProbe interface {
	Ping(ctx context.Context) error
	DatabaseName() string
	RedactedURI() string
}

type HealthHandler struct {
	db DatabaseProbe
}

func NewHealthHandler(db DatabaseProbe) *HealthHandler {
	return &HealthHandler{db: db}
}

// MongoHealth pings the database and reports which database and host it reached.
func (h *HealthHandler) MongoHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("mongo health check failed", "error", err)
		abortWithDetail(c, http.StatusInternalServerError, "mongo ping failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"mongo":    "ok",
		"db":       h.db.DatabaseName(),
		"uri_tail": h.db.RedactedURI(),
	})
}
