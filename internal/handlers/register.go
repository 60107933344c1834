package handlers

import (
	"errors"
	"net/http"

	"task-manager/api/internal/logger"
	"task-manager/api/internal/models"
	"task-manager/api/internal/services"

	"github.com/gin-gonic/gin"
)

type RegisterHandler struct {
	registerService services.RegisterService
}

func NewRegisterHandler(registerService services.RegisterService) *RegisterHandler {
	return &RegisterHandler{registerService: registerService}
}

func (h *RegisterHandler) Signup(c *gin.Context) {
	var req models.UserCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, bindingDetail(err))
		return
	}

	user, err := h.registerService.RegisterUser(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			abortWithDetail(c, http.StatusConflict, "Email already registered")
			return
		}
		logger.Error("signup failed", "error", err)
		abortWithDetail(c, http.StatusInternalServerError, internalError)
		return
	}

	logger.Info("user registered", "user_id", user.ID.Hex())
	c.JSON(http.StatusCreated, user.Out())
}
