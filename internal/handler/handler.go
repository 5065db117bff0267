package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bdos/internal/model"
	"bdos/internal/service/portfolio"
	"bdos/pkg/logger"
)

const actorKey = "actor"

// Portfolio is the read/CRUD surface used by the handlers. *portfolio.Service satisfies it.
type Portfolio interface {
	Dashboard(ctx context.Context, actor model.Actor) (*portfolio.Dashboard, error)
	ListAccounts(ctx context.Context, actor model.Actor) ([]model.Account, error)
	CreateAccount(ctx context.Context, actor model.Actor, in portfolio.NewAccount) (*model.Account, error)
	GetAccount(ctx context.Context, actor model.Actor, accountID int) (*portfolio.AccountView, error)
	AddContact(ctx context.Context, actor model.Actor, accountID int, in portfolio.NewContact) (*model.Contact, error)
	ProjectDetail(ctx context.Context, actor model.Actor, projectID int) (*portfolio.ProjectView, error)
	StageDetail(ctx context.Context, actor model.Actor, projectID, projectStageID int) (*portfolio.StageView, error)
	ListTasks(ctx context.Context, actor model.Actor, projectID int) ([]portfolio.TaskView, error)
	CreateTask(ctx context.Context, actor model.Actor, projectID int, in portfolio.NewTask) (*model.Task, error)
	SetTaskStatus(ctx context.Context, actor model.Actor, taskID int, status string) (*model.Task, error)
	ListOpportunities(ctx context.Context, actor model.Actor, projectID int) ([]model.Opportunity, error)
	CreateOpportunity(ctx context.Context, actor model.Actor, projectID int, in portfolio.NewOpportunity) (*model.Opportunity, error)
}

// Workflow is the stage engine. *workflow.Engine satisfies it.
type Workflow interface {
	CreateProject(ctx context.Context, actor model.Actor, in model.NewProject) (*model.Project, error)
	InstantiateExisting(ctx context.Context, actor model.Actor, projectID int) (int, error)
	ToggleChecklist(ctx context.Context, actor model.Actor, projectID, projectStageID, entryID int) (*model.ChecklistEntry, error)
	UpdateDeliverable(ctx context.Context, actor model.Actor, projectID, projectStageID, deliverableID int, content string) (*model.Deliverable, error)
	Decide(ctx context.Context, actor model.Actor, projectID, projectStageID int, decision, comment string) (*model.ProjectStage, error)
}

// SetActor stores the authenticated caller on the request.
func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(actorKey, actor)
}

// ActorFrom returns the caller stored by SetActor.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

// mustActor aborts with 401 when the request carries no actor.
func mustActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return actor, ok
}

// paramID parses a positive integer path parameter; writes 400 otherwise.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func reqLogger(c *gin.Context, base *zap.Logger) *zap.Logger {
	return logger.WithTrace(c.Request.Context(), base)
}

// writeError maps service errors to HTTP statuses. Only unexpected errors are
// logged at error level; the body never carries internal details.
func writeError(c *gin.Context, log *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, model.ErrAlreadyInstantiated):
		c.JSON(http.StatusConflict, gin.H{"error": "project already instantiated"})
	case errors.Is(err, model.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, model.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
	default:
		log.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
