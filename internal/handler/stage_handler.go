package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StageHandler struct {
	workflow  Workflow
	portfolio Portfolio
	logger    *zap.Logger
}

func NewStageHandler(w Workflow, p Portfolio, logger *zap.Logger) *StageHandler {
	return &StageHandler{workflow: w, portfolio: p, logger: logger}
}

// stageParams reads :id and :sid.
func stageParams(c *gin.Context) (projectID, projectStageID int, ok bool) {
	if projectID, ok = paramID(c, "id"); !ok {
		return
	}
	projectStageID, ok = paramID(c, "sid")
	return
}

// GetStage GET /projects/:id/stages/:sid
func (h *StageHandler) GetStage(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, psID, ok := stageParams(c)
	if !ok {
		return
	}
	view, err := h.portfolio.StageDetail(c.Request.Context(), actor, projectID, psID)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "stage detail", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ToggleChecklist POST /projects/:id/stages/:sid/checklist/:cid/toggle
func (h *StageHandler) ToggleChecklist(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, psID, ok := stageParams(c)
	if !ok {
		return
	}
	entryID, ok := paramID(c, "cid")
	if !ok {
		return
	}
	entry, err := h.workflow.ToggleChecklist(c.Request.Context(), actor, projectID, psID, entryID)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "toggle checklist", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

type deliverableRequest struct {
	Content string `json:"content"`
}

// UpdateDeliverable POST /projects/:id/stages/:sid/deliverables/:did
func (h *StageHandler) UpdateDeliverable(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, psID, ok := stageParams(c)
	if !ok {
		return
	}
	deliverableID, ok := paramID(c, "did")
	if !ok {
		return
	}
	var req deliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	d, err := h.workflow.UpdateDeliverable(c.Request.Context(), actor, projectID, psID, deliverableID, req.Content)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "update deliverable", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// Decide POST /projects/:id/stages/:sid/decision
func (h *StageHandler) Decide(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, psID, ok := stageParams(c)
	if !ok {
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision required"})
		return
	}

	log := reqLogger(c, h.logger)
	ps, err := h.workflow.Decide(c.Request.Context(), actor, projectID, psID, req.Decision, req.Comment)
	if err != nil {
		writeError(c, log, "decide", err)
		return
	}
	log.Info("Stage decided",
		zap.Int("project_stage_id", ps.ID),
		zap.String("status", ps.Status),
		zap.Int("by_user", actor.UserID),
	)
	c.JSON(http.StatusOK, ps)
}
