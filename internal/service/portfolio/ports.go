package portfolio

import (
	"context"
	"time"

	"bdos/internal/model"
)

// Scope is the read/write surface for one organization. Identifiers owned by
// another org resolve to model.ErrNotFound.
type Scope interface {
	ListAccounts(ctx context.Context, limit int) ([]model.Account, error)
	GetAccount(ctx context.Context, accountID int) (*model.Account, error)
	InsertAccount(ctx context.Context, a *model.Account) error
	ListContacts(ctx context.Context, accountID int) ([]model.Contact, error)
	InsertContact(ctx context.Context, c *model.Contact) error

	ListProjects(ctx context.Context, limit int) ([]model.Project, error)
	ListAccountProjects(ctx context.Context, accountID int) ([]model.Project, error)
	GetProject(ctx context.Context, projectID int) (*model.Project, error)
	ListProjectStages(ctx context.Context, projectID int) ([]model.ProjectStage, error)
	GetProjectStage(ctx context.Context, projectID, projectStageID int) (*model.ProjectStage, error)
	ListChecklist(ctx context.Context, projectID, projectStageID int) ([]model.ChecklistEntry, error)
	ListDeliverables(ctx context.Context, projectID, projectStageID int) ([]model.Deliverable, error)
	ListApprovals(ctx context.Context, projectID, projectStageID int) ([]model.Approval, error)

	ListTasks(ctx context.Context, projectID, limit int) ([]model.Task, error)
	InsertTask(ctx context.Context, t *model.Task) error
	SetTaskStatus(ctx context.Context, taskID int, status string) (*model.Task, error)
	OverdueTaskCount(ctx context.Context, now time.Time) (int, error)

	ListOpportunities(ctx context.Context, projectID, limit int) ([]model.Opportunity, error)
	InsertOpportunity(ctx context.Context, o *model.Opportunity) error
}

// ScopeFunc hands out the Scope for an org.
type ScopeFunc func(orgID int) Scope

// StageLookup resolves stage templates by id. *workflow.StaticCatalog satisfies it.
type StageLookup interface {
	Stage(id int) (model.StageTemplate, bool)
}
