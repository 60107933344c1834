package handlers

import (
	"net/http"

	"task-manager/api/internal/middleware"
	"task-manager/api/internal/models"
	"task-manager/api/internal/services"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

type taskListQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=todo in_progress done"`
	Due    string `form:"due" binding:"omitempty,oneof=this_week"`
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var in models.TaskCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithDetail(c, http.StatusBadRequest, bindingDetail(err))
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task.Out())
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	var q taskListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithDetail(c, http.StatusBadRequest, bindingDetail(err))
		return
	}

	opts := services.ListOptions{Due: q.Due}
	if q.Status != "" {
		status := models.Status(q.Status)
		opts.Status = &status
	}

	tasks, err := h.taskService.GetTasks(c.Request.Context(), middleware.UserID(c), opts)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	out := make([]models.TaskOut, 0, len(tasks))
	for i := range tasks {
		out = append(out, tasks[i].Out())
	}
	c.JSON(http.StatusOK, out)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	task, err := h.taskService.GetTaskByID(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task.Out())
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	if _, err := services.ParseTaskID(c.Param("id")); err != nil {
		respondTaskError(c, err)
		return
	}

	var in models.TaskUpdate
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			abortWithDetail(c, http.StatusBadRequest, bindingDetail(err))
			return
		}
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
	if err != nil {
		respondTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task.Out())
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.taskService.DeleteTask(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondTaskError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
