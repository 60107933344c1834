package handlers

import (
	"context"
	"net/http"

	"task-manager/api/internal/advisor"
	"task-manager/api/internal/middleware"
	"task-manager/api/internal/monitoring"

	"github.com/gin-gonic/gin"
)

type Suggester interface {
	Suggest(ctx context.Context, in advisor.Input) advisor.Result
}

// SuggestDueDateRequest carries no length limits; the advisor truncates the
// description to its configured size before prompting.
type SuggestDueDateRequest struct {
	Title       *string `json:"title" binding:"required"`
	Description *string `json:"description"`
}

type AIHandler struct {
	advisor Suggester
}

func NewAIHandler(s Suggester) *AIHandler {
	return &AIHandler{advisor: s}
}

// SuggestDueDate answers 200 for every authenticated, well-formed request;
// upstream trouble shows up as a low-confidence fallback suggestion.
func (h *AIHandler) SuggestDueDate(c *gin.Context) {
	var req SuggestDueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, bindingDetail(err))
		return
	}

	in := advisor.Input{UserID: middleware.UserID(c), Title: *req.Title}
	if req.Description != nil {
		in.Description = *req.Description
	}

	res := h.advisor.Suggest(c.Request.Context(), in)
	monitoring.RecordSuggestion(res.Outcome())

	c.JSON(http.StatusOK, res.Suggestion)
}
