package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bdos/internal/model"
)

// IdempotencyHeader lets clients retry project creation safely.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyGuard is satisfied by *util.Deduper.
type IdempotencyGuard interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

type ProjectHandler struct {
	workflow  Workflow
	portfolio Portfolio
	guard     IdempotencyGuard
	logger    *zap.Logger
}

// NewProjectHandler creates the handler. guard may be nil, in which case
// Idempotency-Key is ignored.
func NewProjectHandler(w Workflow, p Portfolio, guard IdempotencyGuard, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{workflow: w, portfolio: p, guard: guard, logger: logger}
}

type createProjectRequest struct {
	Name       string `json:"name"`
	Package    string `json:"package"`
	LeadSource string `json:"lead_source"`
}

// CreateProject POST /accounts/:id/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	accountID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	log := reqLogger(c, h.logger)

	key := c.GetHeader(IdempotencyHeader)
	scope := fmt.Sprintf("project-create:%d:%d", actor.OrgID, accountID)
	if key != "" && h.guard != nil {
		if !h.guard.AcquireOnce(ctx, scope, key) {
			c.JSON(http.StatusConflict, gin.H{"error": "duplicate request"})
			return
		}
	}

	project, err := h.workflow.CreateProject(ctx, actor, model.NewProject{
		AccountID:  accountID,
		Name:       req.Name,
		Package:    req.Package,
		LeadSource: req.LeadSource,
	})
	if err != nil {
		if key != "" && h.guard != nil {
			h.guard.Release(ctx, scope, key)
		}
		writeError(c, log, "create project", err)
		return
	}

	log.Info("Project created",
		zap.Int("project_id", project.ID),
		zap.Int("account_id", accountID),
		zap.Int("org_id", actor.OrgID),
	)
	c.JSON(http.StatusCreated, project)
}

// GetProject GET /projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.portfolio.ProjectDetail(c.Request.Context(), actor, projectID)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "project detail", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Instantiate POST /projects/:id/instantiate
// Succeeds only for a project with no stages yet; a repeat call returns 409.
func (h *ProjectHandler) Instantiate(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := h.workflow.InstantiateExisting(c.Request.Context(), actor, projectID)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "instantiate", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project_id": projectID, "stages": n})
}
