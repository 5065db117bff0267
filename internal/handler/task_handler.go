package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bdos/internal/service/portfolio"
)

type TaskHandler struct {
	portfolio Portfolio
	logger    *zap.Logger
}

func NewTaskHandler(p Portfolio, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{portfolio: p, logger: logger}
}

// ListTasks GET /projects/:id/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	tasks, err := h.portfolio.ListTasks(c.Request.Context(), actor, projectID)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "list tasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// CreateTask POST /projects/:id/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in portfolio.NewTask
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	task, err := h.portfolio.CreateTask(c.Request.Context(), actor, projectID, in)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "create task", err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

type taskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetTaskStatus POST /tasks/:id/status
func (h *TaskHandler) SetTaskStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	taskID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req taskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}
	task, err := h.portfolio.SetTaskStatus(c.Request.Context(), actor, taskID, req.Status)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "set task status", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListOpportunities GET /projects/:id/opportunities
func (h *TaskHandler) ListOpportunities(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	opps, err := h.portfolio.ListOpportunities(c.Request.Context(), actor, projectID)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "list opportunities", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"opportunities": opps})
}

// CreateOpportunity POST /projects/:id/opportunities
// value_estimate and probability are strings; anything non-numeric is stored as absent.
func (h *TaskHandler) CreateOpportunity(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in portfolio.NewOpportunity
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	opp, err := h.portfolio.CreateOpportunity(c.Request.Context(), actor, projectID, in)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "create opportunity", err)
		return
	}
	c.JSON(http.StatusCreated, opp)
}
